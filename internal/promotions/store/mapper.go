package store

import (
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/promoengine/internal/promotions"
	"github.com/angelmondragon/promoengine/pkg/db/models"
	"github.com/angelmondragon/promoengine/pkg/enums"
)

// toDomain maps a persisted promotion into the engine's read-only model.
// Unknown condition and reward tags are kept as Unknown* values so the
// engine can skip them.
func toDomain(row models.Promotion) promotions.Promotion {
	promo := promotions.Promotion{
		ID:                         row.ID.String(),
		Code:                       row.Code,
		Name:                       row.Name,
		Description:                deref(row.Description),
		StartsAt:                   derefTime(row.StartsAt),
		EndsAt:                     derefTime(row.EndsAt),
		Priority:                   row.Priority,
		Exclusive:                  row.Exclusive,
		CombinabilityGroup:         strings.TrimSpace(deref(row.CombinabilityGroup)),
		ApplyFirstMatchingRuleOnly: row.ApplyFirstMatchingRuleOnly,
		DynamicConditions:          append([]string(nil), row.DynamicConditions...),
	}

	rules := append([]models.PromotionRule(nil), row.Rules...)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Position < rules[j].Position })
	promo.Rules = make([]promotions.Rule, 0, len(rules))
	for _, rule := range rules {
		promo.Rules = append(promo.Rules, ruleToDomain(row.Code, rule))
	}
	return promo
}

func toDomainList(rows []models.Promotion) []promotions.Promotion {
	out := make([]promotions.Promotion, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomain(row))
	}
	return out
}

func ruleToDomain(code string, row models.PromotionRule) promotions.Rule {
	conditions := append([]models.PromotionCondition(nil), row.Conditions...)
	sort.SliceStable(conditions, func(i, j int) bool { return conditions[i].Position < conditions[j].Position })

	rule := promotions.Rule{
		ID:            row.ID.String(),
		PromotionCode: code,
		Logic:         enums.CombinationLogic(normalizeTag(row.CombinationLogic)),
		Breakpoint:    enums.BreakpointType(normalizeTag(row.BreakpointType)),
		Method:        enums.CalculationMethod(normalizeTag(row.CalculationMethod)),
		Conditions:    make([]promotions.Condition, 0, len(conditions)),
		Tiers:         make([]promotions.Tier, 0, len(row.Tiers)),
	}
	for _, cond := range conditions {
		rule.Conditions = append(rule.Conditions, conditionToDomain(cond))
	}
	for _, tier := range row.Tiers {
		rule.Tiers = append(rule.Tiers, promotions.Tier{
			Threshold: tier.Threshold,
			Reward:    rewardToDomain(tier),
		})
	}
	return rule
}

func conditionToDomain(row models.PromotionCondition) promotions.Condition {
	kind, err := enums.ParseConditionType(normalizeTag(row.ConditionType))
	if err != nil {
		return promotions.UnknownCondition{Type: row.ConditionType}
	}
	op, err := enums.ParseComparisonOperator(row.Operator)
	if err != nil {
		// Rule validation rejects the raw value and skips the rule.
		op = enums.ComparisonOperator(row.Operator)
	}
	entity := strings.TrimSpace(deref(row.EntityCode))

	switch kind {
	case enums.ConditionTypeCartSubtotal:
		return promotions.CartSubtotal{Operator: op, Value: row.Value}
	case enums.ConditionTypeProductInCart:
		return promotions.ProductInCart{ProductID: entity, Operator: op, Quantity: row.Value}
	case enums.ConditionTypeProductFamilyInCart:
		return promotions.FamilyInCart{FamilyID: entity, Operator: op, Quantity: row.Value}
	case enums.ConditionTypeProductCategoryInCart:
		return promotions.CategoryInCart{CategoryID: entity, Operator: op, Quantity: row.Value}
	case enums.ConditionTypeCustomerInGroup:
		return promotions.CustomerInGroup{GroupCode: entity, Operator: op}
	}
	return promotions.UnknownCondition{Type: row.ConditionType}
}

func rewardToDomain(row models.PromotionTier) promotions.Reward {
	kind, err := enums.ParseRewardType(normalizeTag(row.RewardType))
	if err != nil {
		return promotions.UnknownReward{Type: row.RewardType}
	}
	switch kind {
	case enums.RewardTypePercentDiscountOnItem:
		if !row.DiscountPercent.Valid {
			return promotions.UnknownReward{Type: row.RewardType}
		}
		return promotions.PercentDiscount{Percent: row.DiscountPercent.Decimal}
	case enums.RewardTypeFixedDiscountOnCart:
		if !row.DiscountAmount.Valid {
			return promotions.UnknownReward{Type: row.RewardType}
		}
		return promotions.FixedDiscount{Amount: row.DiscountAmount.Decimal}
	case enums.RewardTypeFreeProduct:
		units := 0
		if row.FreeUnits != nil {
			units = *row.FreeUnits
		}
		return promotions.FreeProduct{ProductID: strings.TrimSpace(deref(row.FreeProductID)), Units: units}
	}
	return promotions.UnknownReward{Type: row.RewardType}
}

// filterActive keeps the promotions whose validity window contains asOf.
func filterActive(promos []promotions.Promotion, asOf time.Time) []promotions.Promotion {
	out := make([]promotions.Promotion, 0, len(promos))
	for _, promo := range promos {
		if promo.ActiveAt(asOf) {
			out = append(out, promo)
		}
	}
	return out
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func derefTime(value *time.Time) time.Time {
	if value == nil {
		return time.Time{}
	}
	return value.UTC()
}

func normalizeTag(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}
