package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CatalogProduct is the pricing view of a product: its family and the
// promotional points one unit earns.
type CatalogProduct struct {
	ProductID     string          `gorm:"column:product_id;primaryKey"`
	FamilyID      *string         `gorm:"column:family_id"`
	Name          string          `gorm:"column:name;not null"`
	PointsPerUnit decimal.Decimal `gorm:"column:points_per_unit;type:numeric(12,2);not null;default:0"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
