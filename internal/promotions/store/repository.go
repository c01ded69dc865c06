package store

import (
	"context"
	"strings"

	"github.com/angelmondragon/promoengine/internal/repo"
	"github.com/angelmondragon/promoengine/pkg/db"
	"github.com/angelmondragon/promoengine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/promoengine/pkg/errors"
	"gorm.io/gorm"
)

// Repository persists promotion definitions and their nested rules.
type Repository struct {
	repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

// ListEnabled loads every enabled promotion with its rules, conditions and
// tiers, ordered by priority, creation time and code.
func (r *Repository) ListEnabled(ctx context.Context) ([]models.Promotion, error) {
	var rows []models.Promotion
	err := r.withRules(r.DB(ctx)).
		Where("is_enabled = ?", true).
		Order("priority ASC").
		Order("created_at ASC").
		Order("code ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByCode loads one promotion regardless of its enabled flag. A missing
// code returns gorm.ErrRecordNotFound.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Promotion, error) {
	var row models.Promotion
	err := r.withRules(r.DB(ctx)).
		Where("code = ?", strings.TrimSpace(code)).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Create inserts the promotion and its nested rules in one transaction.
func (r *Repository) Create(ctx context.Context, promo *models.Promotion) error {
	err := r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(promo).Error
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "promotion code already exists")
		}
		return err
	}
	return nil
}

// SetEnabled toggles the enabled flag of the promotion with the given code.
func (r *Repository) SetEnabled(ctx context.Context, code string, enabled bool) error {
	res := r.DB(ctx).
		Model(&models.Promotion{}).
		Where("code = ?", strings.TrimSpace(code)).
		Update("is_enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "promotion not found")
	}
	return nil
}

func (r *Repository) withRules(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Rules", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Rules.Conditions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Rules.Tiers", func(db *gorm.DB) *gorm.DB {
			return db.Order("threshold ASC")
		})
}

// IsNotFound reports whether err is a missing-row error from gorm.
func IsNotFound(err error) bool {
	return repo.IsNotFound(err)
}
