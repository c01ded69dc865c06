package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/promoengine/internal/repo"
	"github.com/angelmondragon/promoengine/pkg/db/models"
	"github.com/angelmondragon/promoengine/pkg/enums"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository reads the pricing view of the catalog and group memberships.
type Repository struct {
	repo.Base
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// PointsPerUnit returns the promotional points of one unit of productID.
// Unknown products earn zero points.
func (r *Repository) PointsPerUnit(ctx context.Context, productID string) (decimal.Decimal, error) {
	var product models.CatalogProduct
	err := r.DB(ctx).
		Where("product_id = ?", productID).
		First(&product).Error
	if err != nil {
		if repo.IsNotFound(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return product.PointsPerUnit, nil
}

// IsMember reports whether entityCode belongs to groupCode, whatever the
// kind of group.
func (r *Repository) IsMember(ctx context.Context, groupCode, entityCode string) (bool, error) {
	if groupCode == "" || entityCode == "" {
		return false, nil
	}
	var count int64
	err := r.DB(ctx).
		Model(&models.GroupMembership{}).
		Where("group_code = ? AND entity_code = ?", groupCode, entityCode).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListProducts returns the catalog rows for the given product ids. Unknown
// ids are absent from the result.
func (r *Repository) ListProducts(ctx context.Context, productIDs []string) ([]models.CatalogProduct, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var products []models.CatalogProduct
	err := r.DB(ctx).
		Where("product_id IN ?", productIDs).
		Order("product_id").
		Find(&products).Error
	return products, err
}

// ListCustomerGroups returns the customer group memberships of customerID.
func (r *Repository) ListCustomerGroups(ctx context.Context, customerID string) ([]models.GroupMembership, error) {
	var rows []models.GroupMembership
	err := r.DB(ctx).
		Where("entity_type = ? AND entity_code = ?", enums.EntityTypeCustomerGroup, customerID).
		Order("group_code").
		Find(&rows).Error
	return rows, err
}

// ListProductCategories returns the category memberships of the families the
// given products belong to.
func (r *Repository) ListProductCategories(ctx context.Context, productIDs []string) ([]models.GroupMembership, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	families := r.DB(ctx).Model(&models.CatalogProduct{}).
		Select("family_id").
		Where("product_id IN ? AND family_id IS NOT NULL", productIDs)

	var rows []models.GroupMembership
	err := r.DB(ctx).
		Where("entity_type = ? AND entity_code IN (?)", enums.EntityTypeProductCategory, families).
		Order("group_code").
		Find(&rows).Error
	return rows, err
}

// UpsertProduct inserts or updates the pricing view of a product.
func (r *Repository) UpsertProduct(ctx context.Context, product *models.CatalogProduct) error {
	product.ProductID = strings.TrimSpace(product.ProductID)
	if product.ProductID == "" {
		return errors.New("product id required")
	}
	return r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"family_id", "name", "points_per_unit", "updated_at"}),
		}).
		Create(product).Error
}

// AddMembership records that entityCode belongs to groupCode. Adding an
// existing membership is a no-op.
func (r *Repository) AddMembership(ctx context.Context, groupType enums.EntityType, groupCode, entityCode string) error {
	if !groupType.IsValid() {
		return errors.New("invalid group type")
	}
	row := models.GroupMembership{
		GroupCode:  strings.TrimSpace(groupCode),
		EntityType: groupType.String(),
		EntityCode: strings.TrimSpace(entityCode),
	}
	if row.GroupCode == "" || row.EntityCode == "" {
		return errors.New("group code and entity code required")
	}
	return r.DB(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}
