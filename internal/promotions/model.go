package promotions

import (
	"time"

	"github.com/angelmondragon/promoengine/pkg/enums"
	"github.com/shopspring/decimal"
)

// CartItem is one immutable line of the cart snapshot handed to the engine.
type CartItem struct {
	ProductID string
	FamilyID  string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineTotal returns unit price times quantity at currency precision.
func (i CartItem) LineTotal() decimal.Decimal {
	return roundCurrency(i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))))
}

// Cart is the input snapshot of a pricing run. The engine never mutates it.
type Cart struct {
	CustomerID string
	Items      []CartItem
}

// OriginalTotal sums the line totals of every item.
func (c Cart) OriginalTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Promotion is a read-only promotion definition loaded for a run.
type Promotion struct {
	ID                         string
	Code                       string
	Name                       string
	Description                string
	StartsAt                   time.Time
	EndsAt                     time.Time
	Priority                   int
	Exclusive                  bool
	CombinabilityGroup         string
	ApplyFirstMatchingRuleOnly bool
	Rules                      []Rule
	DynamicConditions          []string
}

// ActiveAt reports whether t falls inside the validity window. Zero bounds
// leave that side of the window open.
func (p Promotion) ActiveAt(t time.Time) bool {
	if !p.StartsAt.IsZero() && t.Before(p.StartsAt) {
		return false
	}
	if !p.EndsAt.IsZero() && t.After(p.EndsAt) {
		return false
	}
	return true
}

// Rule couples gating conditions with the tiers they unlock.
type Rule struct {
	ID            string
	PromotionCode string
	Logic         enums.CombinationLogic
	Breakpoint    enums.BreakpointType
	Method        enums.CalculationMethod
	Conditions    []Condition
	Tiers         []Tier
}

// Tier grants Reward once the rule's breakpoint value reaches Threshold.
type Tier struct {
	Threshold decimal.Decimal
	Reward    Reward
}

// Condition is a closed set of cart predicates. Only the types declared in
// this package implement it.
type Condition interface {
	Kind() enums.ConditionType
	isCondition()
}

// CartSubtotal compares the cart's current final total with Value.
type CartSubtotal struct {
	Operator enums.ComparisonOperator
	Value    decimal.Decimal
}

// ProductInCart compares the quantity of ProductID in the cart with Quantity.
type ProductInCart struct {
	ProductID string
	Operator  enums.ComparisonOperator
	Quantity  decimal.Decimal
}

// FamilyInCart compares the quantity of items in FamilyID with Quantity.
type FamilyInCart struct {
	FamilyID string
	Operator enums.ComparisonOperator
	Quantity decimal.Decimal
}

// CategoryInCart compares the quantity of items whose family belongs to the
// CategoryID group with Quantity.
type CategoryInCart struct {
	CategoryID string
	Operator   enums.ComparisonOperator
	Quantity   decimal.Decimal
}

// CustomerInGroup holds when the cart's customer belongs to GroupCode. The
// NEQ operator inverts the check.
type CustomerInGroup struct {
	GroupCode string
	Operator  enums.ComparisonOperator
}

// UnknownCondition keeps a condition tag this build does not understand. It
// always evaluates to false.
type UnknownCondition struct {
	Type string
}

func (CartSubtotal) Kind() enums.ConditionType       { return enums.ConditionTypeCartSubtotal }
func (ProductInCart) Kind() enums.ConditionType      { return enums.ConditionTypeProductInCart }
func (FamilyInCart) Kind() enums.ConditionType       { return enums.ConditionTypeProductFamilyInCart }
func (CategoryInCart) Kind() enums.ConditionType     { return enums.ConditionTypeProductCategoryInCart }
func (CustomerInGroup) Kind() enums.ConditionType    { return enums.ConditionTypeCustomerInGroup }
func (u UnknownCondition) Kind() enums.ConditionType { return enums.ConditionType(u.Type) }

func (CartSubtotal) isCondition()     {}
func (ProductInCart) isCondition()    {}
func (FamilyInCart) isCondition()     {}
func (CategoryInCart) isCondition()   {}
func (CustomerInGroup) isCondition()  {}
func (UnknownCondition) isCondition() {}

// Reward is a closed set of tier payloads.
type Reward interface {
	Kind() enums.RewardType
	isReward()
}

// PercentDiscount takes Percent (0..100) off the eligible items.
type PercentDiscount struct {
	Percent decimal.Decimal
}

// FixedDiscount takes Amount off the eligible items, capped at their
// remaining price.
type FixedDiscount struct {
	Amount decimal.Decimal
}

// FreeProduct grants Units free units of ProductID without touching prices.
type FreeProduct struct {
	ProductID string
	Units     int
}

// UnknownReward keeps a reward tag this build does not understand. Tiers
// carrying it never apply.
type UnknownReward struct {
	Type string
}

func (PercentDiscount) Kind() enums.RewardType { return enums.RewardTypePercentDiscountOnItem }
func (FixedDiscount) Kind() enums.RewardType   { return enums.RewardTypeFixedDiscountOnCart }
func (FreeProduct) Kind() enums.RewardType     { return enums.RewardTypeFreeProduct }
func (u UnknownReward) Kind() enums.RewardType { return enums.RewardType(u.Type) }

func (PercentDiscount) isReward() {}
func (FixedDiscount) isReward()   {}
func (FreeProduct) isReward()     {}
func (UnknownReward) isReward()   {}
