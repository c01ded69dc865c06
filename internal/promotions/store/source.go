package store

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/promoengine/internal/promotions"
	"github.com/angelmondragon/promoengine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/promoengine/pkg/errors"
	"github.com/angelmondragon/promoengine/pkg/logger"
	"github.com/angelmondragon/promoengine/pkg/metrics"
)

const (
	cacheHit      = "hit"
	cacheMiss     = "miss"
	cacheError    = "error"
	cacheDisabled = "disabled"
)

type promotionRepository interface {
	ListEnabled(ctx context.Context) ([]models.Promotion, error)
	FindByCode(ctx context.Context, code string) (*models.Promotion, error)
}

// SourceParams wires a Source. Cache and Metrics are optional.
type SourceParams struct {
	Repository promotionRepository
	Cache      Cache
	Logger     *logger.Logger
	Metrics    *metrics.PromotionMetrics
}

// Source implements promotions.PromotionSource over the repository, reading
// through the cache when one is configured. Cache failures are logged and
// bypassed.
type Source struct {
	repo    promotionRepository
	cache   Cache
	logg    *logger.Logger
	metrics *metrics.PromotionMetrics
}

var _ promotions.PromotionSource = (*Source)(nil)

func NewSource(params SourceParams) (*Source, error) {
	if params.Repository == nil {
		return nil, errors.New("promotion repository required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Source{
		repo:    params.Repository,
		cache:   params.Cache,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// FindActivePromotions returns the enabled promotions whose validity window
// contains asOf, ordered by priority.
func (s *Source) FindActivePromotions(ctx context.Context, asOf time.Time) ([]promotions.Promotion, error) {
	rows, err := s.enabled(ctx)
	if err != nil {
		return nil, err
	}
	return filterActive(toDomainList(rows), asOf), nil
}

// FindByCode loads a single promotion regardless of its window or enabled
// flag so it can be simulated.
func (s *Source) FindByCode(ctx context.Context, code string) (*promotions.Promotion, error) {
	row, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promotion not found").
				WithDetails(map[string]string{"code": code})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promotion")
	}
	promo := toDomain(*row)
	return &promo, nil
}

// Refresh reloads the enabled promotions from the database into the cache.
func (s *Source) Refresh(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	generation, err := s.cache.Generation(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read promotions generation")
	}
	rows, err := s.repo.ListEnabled(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list enabled promotions")
	}
	if err := s.cache.Store(ctx, generation, rows); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store promotions snapshot")
	}
	return nil
}

// Invalidate drops the cached snapshot so the next read hits the database.
func (s *Source) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidate promotions cache")
	}
	s.logg.Info(ctx, "promotions cache invalidated")
	return nil
}

func (s *Source) enabled(ctx context.Context) ([]models.Promotion, error) {
	if s.cache == nil {
		s.metrics.IncCacheResult(cacheDisabled)
		return s.listEnabled(ctx)
	}

	generation, err := s.cache.Generation(ctx)
	if err != nil {
		return s.bypassCache(ctx, err)
	}
	rows, hit, err := s.cache.Load(ctx, generation)
	if err != nil {
		return s.bypassCache(ctx, err)
	}
	if hit {
		s.metrics.IncCacheResult(cacheHit)
		return rows, nil
	}

	s.metrics.IncCacheResult(cacheMiss)
	rows, err = s.listEnabled(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Store(ctx, generation, rows); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "promotions cache write failed")
	}
	return rows, nil
}

func (s *Source) listEnabled(ctx context.Context) ([]models.Promotion, error) {
	rows, err := s.repo.ListEnabled(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list enabled promotions")
	}
	return rows, nil
}

func (s *Source) bypassCache(ctx context.Context, err error) ([]models.Promotion, error) {
	s.metrics.IncCacheResult(cacheError)
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "promotions cache read failed")
	return s.listEnabled(ctx)
}
