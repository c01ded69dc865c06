package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/promoengine/internal/catalog"
	"github.com/angelmondragon/promoengine/internal/promotions"
	"github.com/angelmondragon/promoengine/pkg/db/models"
	"github.com/angelmondragon/promoengine/pkg/enums"
	pkgerrors "github.com/angelmondragon/promoengine/pkg/errors"
)

// Fixtures is a JSON document of catalog data and promotion definitions used
// to seed a database.
type Fixtures struct {
	Products    []ProductFixture    `json:"products"`
	Memberships []MembershipFixture `json:"memberships"`
	Promotions  []PromotionFixture  `json:"promotions"`
}

type ProductFixture struct {
	ProductID     string          `json:"product_id"`
	FamilyID      string          `json:"family_id"`
	Name          string          `json:"name"`
	PointsPerUnit decimal.Decimal `json:"points_per_unit"`
}

type MembershipFixture struct {
	GroupType  enums.EntityType `json:"group_type"`
	GroupCode  string           `json:"group_code"`
	EntityCode string           `json:"entity_code"`
}

type PromotionFixture struct {
	Code                       string        `json:"code"`
	Name                       string        `json:"name"`
	Description                string        `json:"description"`
	StartsAt                   *time.Time    `json:"starts_at"`
	EndsAt                     *time.Time    `json:"ends_at"`
	Priority                   int           `json:"priority"`
	Exclusive                  bool          `json:"exclusive"`
	CombinabilityGroup         string        `json:"combinability_group"`
	ApplyFirstMatchingRuleOnly bool          `json:"apply_first_matching_rule_only"`
	Enabled                    *bool         `json:"enabled"`
	DynamicConditions          []string      `json:"dynamic_conditions"`
	Rules                      []RuleFixture `json:"rules"`
}

type RuleFixture struct {
	CombinationLogic  string             `json:"combination_logic"`
	BreakpointType    string             `json:"breakpoint_type"`
	CalculationMethod string             `json:"calculation_method"`
	Conditions        []ConditionFixture `json:"conditions"`
	Tiers             []TierFixture      `json:"tiers"`
}

type ConditionFixture struct {
	Type       string          `json:"type"`
	Operator   string          `json:"operator"`
	EntityType string          `json:"entity_type"`
	EntityCode string          `json:"entity_code"`
	Value      decimal.Decimal `json:"value"`
}

type TierFixture struct {
	Threshold       decimal.Decimal     `json:"threshold"`
	RewardType      string              `json:"reward_type"`
	DiscountPercent decimal.NullDecimal `json:"discount_percent"`
	DiscountAmount  decimal.NullDecimal `json:"discount_amount"`
	FreeProductID   string              `json:"free_product_id"`
	FreeUnits       int                 `json:"free_units"`
}

// SeedSummary counts the rows a seed run wrote. Promotions whose code already
// exists are skipped.
type SeedSummary struct {
	Products    int
	Memberships int
	Promotions  int
	Skipped     int
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DecodeFixtures reads a fixtures document, rejecting unknown fields.
func DecodeFixtures(r io.Reader) (*Fixtures, error) {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	var fx Fixtures
	if err := decoder.Decode(&fx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid fixtures document")
	}
	return &fx, nil
}

// Seed validates every promotion and then writes the whole document in one
// transaction.
func Seed(ctx context.Context, runner txRunner, fx *Fixtures) (SeedSummary, error) {
	var summary SeedSummary
	if runner == nil {
		return summary, errors.New("transaction runner required")
	}
	if fx == nil {
		return summary, nil
	}

	rows := make([]models.Promotion, 0, len(fx.Promotions))
	for _, promo := range fx.Promotions {
		row := promo.model()
		if err := validateFixture(row); err != nil {
			return summary, err
		}
		rows = append(rows, row)
	}

	err := runner.WithTx(ctx, func(tx *gorm.DB) error {
		catalogRepo := catalog.NewRepository(tx)
		promoRepo := NewRepository(tx)

		for _, p := range fx.Products {
			product := models.CatalogProduct{
				ProductID:     strings.TrimSpace(p.ProductID),
				FamilyID:      optional(p.FamilyID),
				Name:          p.Name,
				PointsPerUnit: p.PointsPerUnit,
			}
			if err := catalogRepo.UpsertProduct(ctx, &product); err != nil {
				return fmt.Errorf("upsert product %s: %w", p.ProductID, err)
			}
			summary.Products++
		}
		for _, m := range fx.Memberships {
			if err := catalogRepo.AddMembership(ctx, m.GroupType, strings.TrimSpace(m.GroupCode), strings.TrimSpace(m.EntityCode)); err != nil {
				return fmt.Errorf("add membership %s/%s: %w", m.GroupCode, m.EntityCode, err)
			}
			summary.Memberships++
		}
		for i := range rows {
			if _, err := promoRepo.FindByCode(ctx, rows[i].Code); err == nil {
				summary.Skipped++
				continue
			} else if !IsNotFound(err) {
				return fmt.Errorf("lookup promotion %s: %w", rows[i].Code, err)
			}
			if err := promoRepo.Create(ctx, &rows[i]); err != nil {
				return fmt.Errorf("create promotion %s: %w", rows[i].Code, err)
			}
			summary.Promotions++
		}
		return nil
	})
	if err != nil {
		return SeedSummary{}, err
	}
	return summary, nil
}

func (f PromotionFixture) model() models.Promotion {
	enabled := true
	if f.Enabled != nil {
		enabled = *f.Enabled
	}
	row := models.Promotion{
		Code:                       strings.TrimSpace(f.Code),
		Name:                       f.Name,
		Description:                optional(f.Description),
		StartsAt:                   f.StartsAt,
		EndsAt:                     f.EndsAt,
		Priority:                   f.Priority,
		Exclusive:                  f.Exclusive,
		CombinabilityGroup:         optional(f.CombinabilityGroup),
		ApplyFirstMatchingRuleOnly: f.ApplyFirstMatchingRuleOnly,
		Enabled:                    enabled,
		DynamicConditions:          f.DynamicConditions,
		Rules:                      make([]models.PromotionRule, 0, len(f.Rules)),
	}
	for i, rule := range f.Rules {
		ruleRow := models.PromotionRule{
			Position:          i,
			CombinationLogic:  rule.CombinationLogic,
			BreakpointType:    rule.BreakpointType,
			CalculationMethod: rule.CalculationMethod,
		}
		for j, cond := range rule.Conditions {
			ruleRow.Conditions = append(ruleRow.Conditions, models.PromotionCondition{
				Position:      j,
				ConditionType: cond.Type,
				Operator:      cond.Operator,
				EntityType:    optional(cond.EntityType),
				EntityCode:    optional(cond.EntityCode),
				Value:         cond.Value,
			})
		}
		for _, tier := range rule.Tiers {
			tierRow := models.PromotionTier{
				Threshold:       tier.Threshold,
				RewardType:      tier.RewardType,
				DiscountPercent: tier.DiscountPercent,
				DiscountAmount:  tier.DiscountAmount,
				FreeProductID:   optional(tier.FreeProductID),
			}
			if tier.FreeUnits > 0 {
				units := tier.FreeUnits
				tierRow.FreeUnits = &units
			}
			ruleRow.Tiers = append(ruleRow.Tiers, tierRow)
		}
		row.Rules = append(row.Rules, ruleRow)
	}
	return row
}

// validateFixture maps the row through the engine model so fixtures are held
// to the same checks the engine applies at run time, plus unknown tags.
func validateFixture(row models.Promotion) error {
	if row.Code == "" || strings.TrimSpace(row.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "promotion code and name are required")
	}
	promo := toDomain(row)
	for i, rule := range promo.Rules {
		if err := rule.Validate(); err != nil {
			return fixtureError(row.Code, i, err.Error())
		}
		for _, cond := range rule.Conditions {
			if unknown, ok := cond.(promotions.UnknownCondition); ok {
				return fixtureError(row.Code, i, fmt.Sprintf("unknown condition type %q", unknown.Type))
			}
		}
	}
	return nil
}

func fixtureError(code string, rule int, reason string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid promotion fixture").
		WithDetails(map[string]any{"code": code, "rule": rule, "reason": reason})
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
