package store

import (
	"testing"
	"time"

	"github.com/angelmondragon/promoengine/internal/promotions"
	"github.com/angelmondragon/promoengine/pkg/db/models"
	"github.com/angelmondragon/promoengine/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainMapsEveryConditionKind(t *testing.T) {
	row := models.Promotion{
		ID:                 uuid.New(),
		Code:               "MIX",
		Name:               "Mixed",
		Priority:           3,
		Exclusive:          true,
		CombinabilityGroup: strPtr(" seasonal "),
		StartsAt:           timePtr(testNow.Add(-time.Hour)),
		Rules: []models.PromotionRule{
			{
				ID:                uuid.New(),
				Position:          1,
				CombinationLogic:  "any",
				BreakpointType:    "quantity",
				CalculationMethod: "cumulative",
				Conditions: []models.PromotionCondition{
					{Position: 0, ConditionType: "CART_SUBTOTAL", Operator: ">=", Value: decimal.NewFromInt(100)},
					{Position: 1, ConditionType: "PRODUCT_IN_CART", Operator: "GT", EntityCode: strPtr("A"), Value: decimal.NewFromInt(1)},
					{Position: 2, ConditionType: "PRODUCT_FAMILY_IN_CART", Operator: "EQ", EntityCode: strPtr("fam"), Value: decimal.NewFromInt(2)},
					{Position: 3, ConditionType: "PRODUCT_CATEGORY_IN_CART", Operator: "LTE", EntityCode: strPtr("cat"), Value: decimal.NewFromInt(3)},
					{Position: 4, ConditionType: "CUSTOMER_IN_GROUP", Operator: "NEQ", EntityCode: strPtr("vip")},
					{Position: 5, ConditionType: "WEATHER", Operator: "EQ"},
				},
				Tiers: []models.PromotionTier{
					{Threshold: decimal.Zero, RewardType: "FIXED_DISCOUNT_ON_CART", DiscountAmount: decimal.NullDecimal{Decimal: decimal.NewFromInt(5), Valid: true}},
					{Threshold: decimal.NewFromInt(10), RewardType: "FREE_PRODUCT", FreeProductID: strPtr("GIFT"), FreeUnits: intPtr(2)},
				},
			},
			{ID: uuid.New(), Position: 0, CombinationLogic: "ALL", BreakpointType: "AMOUNT", CalculationMethod: "BRACKET"},
		},
	}

	promo := toDomain(row)

	assert.Equal(t, "MIX", promo.Code)
	assert.Equal(t, "seasonal", promo.CombinabilityGroup)
	assert.True(t, promo.Exclusive)
	assert.True(t, promo.EndsAt.IsZero())
	require.Len(t, promo.Rules, 2)
	assert.Equal(t, enums.CalculationMethodBracket, promo.Rules[0].Method)

	rule := promo.Rules[1]
	assert.Equal(t, "MIX", rule.PromotionCode)
	assert.Equal(t, enums.CombinationLogicAny, rule.Logic)
	assert.Equal(t, enums.BreakpointTypeQuantity, rule.Breakpoint)
	assert.Equal(t, enums.CalculationMethodCumulative, rule.Method)
	require.Len(t, rule.Conditions, 6)
	assert.Equal(t, promotions.CartSubtotal{Operator: enums.OperatorGreaterOrEqual, Value: decimal.NewFromInt(100)}, rule.Conditions[0])
	assert.Equal(t, promotions.ProductInCart{ProductID: "A", Operator: enums.OperatorGreater, Quantity: decimal.NewFromInt(1)}, rule.Conditions[1])
	assert.Equal(t, promotions.FamilyInCart{FamilyID: "fam", Operator: enums.OperatorEqual, Quantity: decimal.NewFromInt(2)}, rule.Conditions[2])
	assert.Equal(t, promotions.CategoryInCart{CategoryID: "cat", Operator: enums.OperatorLessOrEqual, Quantity: decimal.NewFromInt(3)}, rule.Conditions[3])
	assert.Equal(t, promotions.CustomerInGroup{GroupCode: "vip", Operator: enums.OperatorNotEqual}, rule.Conditions[4])
	assert.Equal(t, promotions.UnknownCondition{Type: "WEATHER"}, rule.Conditions[5])

	require.Len(t, rule.Tiers, 2)
	assert.Equal(t, promotions.FixedDiscount{Amount: decimal.NewFromInt(5)}, rule.Tiers[0].Reward)
	assert.Equal(t, promotions.FreeProduct{ProductID: "GIFT", Units: 2}, rule.Tiers[1].Reward)
	require.NoError(t, rule.Validate())
}

func TestToDomainKeepsBrokenRowsInvalid(t *testing.T) {
	rule := ruleToDomain("BROKEN", models.PromotionRule{
		CombinationLogic:  "ALL",
		BreakpointType:    "AMOUNT",
		CalculationMethod: "BRACKET",
		Conditions: []models.PromotionCondition{
			{ConditionType: "CART_SUBTOTAL", Operator: "ROUGHLY", Value: decimal.NewFromInt(1)},
		},
		Tiers: []models.PromotionTier{
			{Threshold: decimal.Zero, RewardType: "PERCENT_DISCOUNT_ON_ITEM"},
		},
	})

	assert.Equal(t, promotions.UnknownReward{Type: "PERCENT_DISCOUNT_ON_ITEM"}, rule.Tiers[0].Reward)
	require.ErrorIs(t, rule.Validate(), promotions.ErrInvalidConfiguration)
}

func TestFilterActive(t *testing.T) {
	open := promotions.Promotion{Code: "OPEN"}
	future := promotions.Promotion{Code: "FUTURE", StartsAt: testNow.Add(time.Hour)}
	past := promotions.Promotion{Code: "PAST", EndsAt: testNow.Add(-time.Hour)}
	current := promotions.Promotion{Code: "NOW", StartsAt: testNow.Add(-time.Hour), EndsAt: testNow.Add(time.Hour)}

	active := filterActive([]promotions.Promotion{open, future, past, current}, testNow)
	require.Len(t, active, 2)
	assert.Equal(t, "OPEN", active[0].Code)
	assert.Equal(t, "NOW", active[1].Code)
}

func intPtr(value int) *int {
	return &value
}
