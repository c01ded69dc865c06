package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/promoengine/internal/promotions"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func sampleFacts() promotions.Facts {
	return promotions.Facts{
		CustomerID:    "cust-1",
		Subtotal:      decimal.RequireFromString("150.00"),
		CurrentTotal:  decimal.RequireFromString("135.00"),
		ItemCount:     2,
		TotalQuantity: 11,
		ProductIDs:    []string{"A", "B"},
		FamilyIDs:     []string{"fam-small", "fam-large"},
		Now:           time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func TestCELEvaluatorEvaluatesFacts(t *testing.T) {
	evaluator, err := NewCELEvaluator()
	require.NoError(t, err)

	tests := []struct {
		expr string
		want bool
	}{
		{`subtotal >= 100.0`, true},
		{`current_total < 135.0`, false},
		{`total_quantity > 10 && item_count == 2`, true},
		{`"B" in product_ids`, true},
		{`family_ids.exists(f, f.startsWith("fam-x"))`, false},
		{`customer_id == "cust-1"`, true},
		{`now.getFullYear() == 2026`, true},
		{`now > timestamp("2026-12-31T00:00:00Z")`, false},
	}
	for _, tt := range tests {
		got, err := evaluator.Evaluate(context.Background(), tt.expr, sampleFacts())
		require.NoError(t, err, tt.expr)
		require.Equal(t, tt.want, got, tt.expr)
	}
}

func TestCELEvaluatorRejectsInvalidExpressions(t *testing.T) {
	evaluator, err := NewCELEvaluator()
	require.NoError(t, err)

	for _, expr := range []string{
		``,
		`subtotal >=`,
		`unknown_var == 1`,
		`subtotal + 1.0`,
	} {
		_, err := evaluator.Evaluate(context.Background(), expr, sampleFacts())
		require.Error(t, err, expr)
		require.True(t, errors.Is(err, promotions.ErrInvalidConfiguration), expr)
	}
}

func TestCELEvaluatorCachesPrograms(t *testing.T) {
	evaluator, err := NewCELEvaluator()
	require.NoError(t, err)

	require.NoError(t, evaluator.Compile(`item_count > 0`))
	require.NoError(t, evaluator.Compile(` item_count > 0 `))
	require.Len(t, evaluator.programs, 1)
}

func TestCELEvaluatorStopsOnCancelledContext(t *testing.T) {
	evaluator, err := NewCELEvaluator()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = evaluator.Evaluate(ctx, `true`, sampleFacts())
	require.ErrorIs(t, err, context.Canceled)
}

func TestCELEvaluatorDrivesEngine(t *testing.T) {
	evaluator, err := NewCELEvaluator()
	require.NoError(t, err)

	promo := promotions.Promotion{
		Code:              "BIG_BASKET",
		DynamicConditions: []string{`total_quantity >= 10`},
		Rules: []promotions.Rule{{
			ID:         "r1",
			Logic:      "ALL",
			Breakpoint: "AMOUNT",
			Method:     "BRACKET",
			Tiers: []promotions.Tier{{
				Threshold: decimal.Zero,
				Reward:    promotions.PercentDiscount{Percent: decimal.NewFromInt(10)},
			}},
		}},
	}
	engine, err := promotions.NewEngine(promotions.EngineDeps{
		Source:  staticSource{promo},
		Dynamic: evaluator,
	})
	require.NoError(t, err)

	cart := promotions.Cart{Items: []promotions.CartItem{
		{ProductID: "A", Quantity: 10, UnitPrice: decimal.RequireFromString("5.00")},
	}}
	pc, err := engine.Apply(context.Background(), cart)
	require.NoError(t, err)
	require.True(t, pc.DiscountTotal().Equal(decimal.RequireFromString("5.00")), pc.DiscountTotal().String())
}

type staticSource []promotions.Promotion

func (s staticSource) FindActivePromotions(context.Context, time.Time) ([]promotions.Promotion, error) {
	return s, nil
}

func (s staticSource) FindByCode(_ context.Context, code string) (*promotions.Promotion, error) {
	for i := range s {
		if s[i].Code == code {
			return &s[i], nil
		}
	}
	return nil, nil
}
