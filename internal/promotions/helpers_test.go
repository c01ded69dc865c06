package promotions

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/promoengine/pkg/enums"
	"github.com/angelmondragon/promoengine/pkg/logger"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

// referenceCart is item A: 10 x 5.00 and item B: 1 x 100.00.
func referenceCart() Cart {
	return Cart{
		CustomerID: "cust-1",
		Items: []CartItem{
			{ProductID: "A", FamilyID: "fam-small", Name: "Item A", Quantity: 10, UnitPrice: dec("5.00")},
			{ProductID: "B", FamilyID: "fam-large", Name: "Item B", Quantity: 1, UnitPrice: dec("100.00")},
		},
	}
}

func singleItemCart(price string) Cart {
	return Cart{
		CustomerID: "cust-1",
		Items:      []CartItem{{ProductID: "X", Quantity: 1, UnitPrice: dec(price)}},
	}
}

func amountRule(method enums.CalculationMethod, tiers ...Tier) Rule {
	return Rule{
		ID:         "rule-1",
		Logic:      enums.CombinationLogicAll,
		Breakpoint: enums.BreakpointTypeAmount,
		Method:     method,
		Tiers:      tiers,
	}
}

func percentTier(threshold, percent string) Tier {
	return Tier{Threshold: dec(threshold), Reward: PercentDiscount{Percent: dec(percent)}}
}

func fixedTier(threshold, amount string) Tier {
	return Tier{Threshold: dec(threshold), Reward: FixedDiscount{Amount: dec(amount)}}
}

func promo(code string, priority int, rules ...Rule) Promotion {
	for i := range rules {
		rules[i].PromotionCode = code
	}
	return Promotion{Code: code, Name: code, Priority: priority, Rules: rules}
}

func assertMoney(t *testing.T, label string, want string, got decimal.Decimal) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: expected %s, got %s", label, want, got.StringFixed(2))
	}
}

// assertItemInvariants checks remaining + applied == original and bounds on
// every line.
func assertItemInvariants(t *testing.T, pc *PromotionContext) {
	t.Helper()
	for _, item := range pc.Items() {
		if !item.RemainingPrice.Add(item.DiscountApplied).Equal(item.OriginalLineTotal) {
			t.Fatalf("line %d: remaining %s + applied %s != original %s",
				item.Index, item.RemainingPrice, item.DiscountApplied, item.OriginalLineTotal)
		}
		if item.RemainingPrice.IsNegative() {
			t.Fatalf("line %d: negative remaining price %s", item.Index, item.RemainingPrice)
		}
		if item.RemainingQuantity < 0 || item.RemainingQuantity > item.Item.Quantity {
			t.Fatalf("line %d: remaining quantity %d out of range", item.Index, item.RemainingQuantity)
		}
	}
}

type stubSource struct {
	promos []Promotion
	err    error
	asOf   time.Time
}

func (s *stubSource) FindActivePromotions(_ context.Context, asOf time.Time) ([]Promotion, error) {
	s.asOf = asOf
	return s.promos, s.err
}

func (s *stubSource) FindByCode(_ context.Context, code string) (*Promotion, error) {
	for i := range s.promos {
		if s.promos[i].Code == code {
			return &s.promos[i], nil
		}
	}
	return nil, nil
}

type stubPoints map[string]decimal.Decimal

func (s stubPoints) PointsPerUnit(_ context.Context, productID string) (decimal.Decimal, error) {
	return s[productID], nil
}

type stubGroups struct {
	members map[string]map[string]bool
	err     error
	calls   int
}

func (s *stubGroups) IsMember(_ context.Context, group, entity string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.members[group][entity], nil
}

type stubDynamic struct {
	results map[string]bool
	err     error
	facts   Facts
}

func (s *stubDynamic) Evaluate(_ context.Context, expression string, facts Facts) (bool, error) {
	s.facts = facts
	if s.err != nil {
		return false, s.err
	}
	return s.results[expression], nil
}

func newTestEngine(t *testing.T, deps EngineDeps) *Engine {
	t.Helper()
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return testNow }
	}
	if deps.Logger == nil {
		deps.Logger = testLogger()
	}
	engine, err := NewEngine(deps)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}
