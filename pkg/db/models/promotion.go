package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Promotion is the persisted promotion definition with its rules.
type Promotion struct {
	ID                         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Code                       string          `gorm:"column:code;not null;uniqueIndex"`
	Name                       string          `gorm:"column:name;not null"`
	Description                *string         `gorm:"column:description"`
	StartsAt                   *time.Time      `gorm:"column:starts_at"`
	EndsAt                     *time.Time      `gorm:"column:ends_at"`
	Priority                   int             `gorm:"column:priority;not null;default:0"`
	Exclusive                  bool            `gorm:"column:exclusive;not null;default:false"`
	CombinabilityGroup         *string         `gorm:"column:combinability_group"`
	ApplyFirstMatchingRuleOnly bool            `gorm:"column:apply_first_matching_rule_only;not null;default:false"`
	Enabled                    bool            `gorm:"column:is_enabled;not null;default:true"`
	DynamicConditions          []string        `gorm:"column:dynamic_conditions;type:jsonb;serializer:json"`
	Rules                      []PromotionRule `gorm:"foreignKey:PromotionID;constraint:OnDelete:CASCADE"`
	CreatedAt                  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Promotion) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PromotionRule groups conditions and tiers of a promotion. Position keeps
// the authored order.
type PromotionRule struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	PromotionID       uuid.UUID            `gorm:"column:promotion_id;type:uuid;not null"`
	Position          int                  `gorm:"column:position;not null;default:0"`
	CombinationLogic  string               `gorm:"column:combination_logic;not null"`
	BreakpointType    string               `gorm:"column:breakpoint_type;not null"`
	CalculationMethod string               `gorm:"column:calculation_method;not null"`
	Conditions        []PromotionCondition `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE"`
	Tiers             []PromotionTier      `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (r *PromotionRule) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// PromotionCondition is one gating predicate. EntityCode names the product,
// family, category or customer group depending on ConditionType; Value holds
// the subtotal amount or the quantity to compare against.
type PromotionCondition struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	RuleID        uuid.UUID       `gorm:"column:rule_id;type:uuid;not null"`
	Position      int             `gorm:"column:position;not null;default:0"`
	ConditionType string          `gorm:"column:condition_type;not null"`
	Operator      string          `gorm:"column:operator;not null"`
	EntityType    *string         `gorm:"column:entity_type"`
	EntityCode    *string         `gorm:"column:entity_code"`
	Value         decimal.Decimal `gorm:"column:value;type:numeric(12,2);not null;default:0"`
}

func (c *PromotionCondition) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// PromotionTier is one breakpoint of a rule and the reward it unlocks. Only
// the columns relevant to RewardType are set.
type PromotionTier struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	RuleID          uuid.UUID           `gorm:"column:rule_id;type:uuid;not null"`
	Threshold       decimal.Decimal     `gorm:"column:threshold;type:numeric(12,2);not null"`
	RewardType      string              `gorm:"column:reward_type;not null"`
	DiscountPercent decimal.NullDecimal `gorm:"column:discount_percent;type:numeric(5,2)"`
	DiscountAmount  decimal.NullDecimal `gorm:"column:discount_amount;type:numeric(12,2)"`
	FreeProductID   *string             `gorm:"column:free_product_id"`
	FreeUnits       *int                `gorm:"column:free_units"`
}

func (t *PromotionTier) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
