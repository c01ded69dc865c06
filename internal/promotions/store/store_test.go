package store

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/promoengine/pkg/db/models"
	"github.com/angelmondragon/promoengine/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

const promotionsSchema = `
CREATE TABLE promotions (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT,
  starts_at DATETIME,
  ends_at DATETIME,
  priority INTEGER NOT NULL DEFAULT 0,
  exclusive INTEGER NOT NULL DEFAULT 0,
  combinability_group TEXT,
  apply_first_matching_rule_only INTEGER NOT NULL DEFAULT 0,
  is_enabled INTEGER NOT NULL DEFAULT 1,
  dynamic_conditions TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE promotion_rules (
  id TEXT PRIMARY KEY,
  promotion_id TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  combination_logic TEXT NOT NULL,
  breakpoint_type TEXT NOT NULL,
  calculation_method TEXT NOT NULL,
  created_at DATETIME
);
CREATE TABLE promotion_conditions (
  id TEXT PRIMARY KEY,
  rule_id TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  condition_type TEXT NOT NULL,
  operator TEXT NOT NULL,
  entity_type TEXT,
  entity_code TEXT,
  value NUMERIC NOT NULL DEFAULT 0
);
CREATE TABLE promotion_tiers (
  id TEXT PRIMARY KEY,
  rule_id TEXT NOT NULL,
  threshold NUMERIC NOT NULL,
  reward_type TEXT NOT NULL,
  discount_percent NUMERIC,
  discount_amount NUMERIC,
  free_product_id TEXT,
  free_units INTEGER
);`

func setupPromotionsDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(promotionsSchema).Error)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func strPtr(value string) *string {
	return &value
}

func timePtr(value time.Time) *time.Time {
	return &value
}

// percentPromotion is a single AMOUNT/BRACKET rule granting percent off from
// threshold zero.
func percentPromotion(code string, priority int, percent string) *models.Promotion {
	return &models.Promotion{
		Code:     code,
		Name:     code + " promotion",
		Priority: priority,
		Rules: []models.PromotionRule{{
			CombinationLogic:  "ALL",
			BreakpointType:    "AMOUNT",
			CalculationMethod: "BRACKET",
			Tiers: []models.PromotionTier{{
				Threshold:       decimal.Zero,
				RewardType:      "PERCENT_DISCOUNT_ON_ITEM",
				DiscountPercent: decimal.NullDecimal{Decimal: decimal.RequireFromString(percent), Valid: true},
			}},
		}},
	}
}

func mustCreate(t *testing.T, repo *Repository, promo *models.Promotion) *models.Promotion {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), promo))
	return promo
}
