package catalog

import (
	"context"
	"errors"

	"github.com/angelmondragon/promoengine/internal/promotions"
	"github.com/angelmondragon/promoengine/pkg/db/models"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Lookup is the repository surface a Snapshot reads from.
type Lookup interface {
	PointsPerUnit(ctx context.Context, productID string) (decimal.Decimal, error)
	IsMember(ctx context.Context, groupCode, entityCode string) (bool, error)
	ListProducts(ctx context.Context, productIDs []string) ([]models.CatalogProduct, error)
	ListCustomerGroups(ctx context.Context, customerID string) ([]models.GroupMembership, error)
	ListProductCategories(ctx context.Context, productIDs []string) ([]models.GroupMembership, error)
}

// Snapshot holds the catalog facts of one cart. It answers the engine's
// point and membership lookups from memory and falls back to the repository
// for anything it did not prefetch. A Snapshot is read-only once built.
type Snapshot struct {
	repo Lookup

	requested map[string]struct{}
	products  map[string]models.CatalogProduct
	// entity code -> group codes, for every entity whose memberships were loaded
	groups map[string]map[string]struct{}
}

var (
	_ promotions.PointResolver           = (*Snapshot)(nil)
	_ promotions.GroupMembershipResolver = (*Snapshot)(nil)
)

// Prefetch loads the products of the cart, the categories of their families
// and the customer's groups concurrently.
func Prefetch(ctx context.Context, repo Lookup, productIDs []string, customerID string) (*Snapshot, error) {
	if repo == nil {
		return nil, errors.New("catalog repository required")
	}
	ids := uniqueNonEmpty(productIDs)

	var (
		products   []models.CatalogProduct
		customer   []models.GroupMembership
		categories []models.GroupMembership
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = repo.ListProducts(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = repo.ListProductCategories(gctx, ids)
		return err
	})
	if customerID != "" {
		g.Go(func() error {
			var err error
			customer, err = repo.ListCustomerGroups(gctx, customerID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		repo:      repo,
		requested: make(map[string]struct{}, len(ids)),
		products:  make(map[string]models.CatalogProduct, len(products)),
		groups:    map[string]map[string]struct{}{},
	}
	for _, id := range ids {
		snap.requested[id] = struct{}{}
	}
	for _, product := range products {
		snap.products[product.ProductID] = product
		if product.FamilyID != nil && *product.FamilyID != "" {
			snap.loaded(*product.FamilyID)
		}
	}
	if customerID != "" {
		snap.loaded(customerID)
	}
	for _, row := range customer {
		snap.groups[row.EntityCode][row.GroupCode] = struct{}{}
	}
	for _, row := range categories {
		if _, ok := snap.groups[row.EntityCode]; !ok {
			continue
		}
		snap.groups[row.EntityCode][row.GroupCode] = struct{}{}
	}
	return snap, nil
}

// FamilyID returns the catalog family of productID, if known.
func (s *Snapshot) FamilyID(productID string) (string, bool) {
	product, ok := s.products[productID]
	if !ok || product.FamilyID == nil || *product.FamilyID == "" {
		return "", false
	}
	return *product.FamilyID, true
}

// PointsPerUnit implements promotions.PointResolver.
func (s *Snapshot) PointsPerUnit(ctx context.Context, productID string) (decimal.Decimal, error) {
	if product, ok := s.products[productID]; ok {
		return product.PointsPerUnit, nil
	}
	if _, ok := s.requested[productID]; ok {
		return decimal.Zero, nil
	}
	return s.repo.PointsPerUnit(ctx, productID)
}

// IsMember implements promotions.GroupMembershipResolver.
func (s *Snapshot) IsMember(ctx context.Context, groupCode, entityCode string) (bool, error) {
	if groups, ok := s.groups[entityCode]; ok {
		_, member := groups[groupCode]
		return member, nil
	}
	return s.repo.IsMember(ctx, groupCode, entityCode)
}

func (s *Snapshot) loaded(entityCode string) {
	if _, ok := s.groups[entityCode]; !ok {
		s.groups[entityCode] = map[string]struct{}{}
	}
}

func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
