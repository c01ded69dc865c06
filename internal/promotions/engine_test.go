package promotions

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/angelmondragon/promoengine/pkg/enums"
	pkgerrors "github.com/angelmondragon/promoengine/pkg/errors"
	"github.com/angelmondragon/promoengine/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func tenPercent(code string, priority int) Promotion {
	return promo(code, priority, amountRule(enums.CalculationMethodBracket, percentTier("0", "10")))
}

func TestNewEngineRequiresSource(t *testing.T) {
	if _, err := NewEngine(EngineDeps{}); err == nil {
		t.Fatalf("expected error without a promotion source")
	}
}

func TestApplyWithoutPromotionsLeavesCartUntouched(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t, EngineDeps{Source: &stubSource{}})

	pc, err := engine.Apply(context.Background(), referenceCart())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	assertMoney(t, "final total", "150.00", pc.FinalTotal())
	assertMoney(t, "discount total", "0", pc.DiscountTotal())
	if len(pc.AppliedPromotions()) != 0 || len(pc.FreeItems()) != 0 {
		t.Fatalf("expected no applied promotions or free items")
	}
}

func TestApplyRejectsEmptyCart(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t, EngineDeps{Source: &stubSource{}})

	_, err := engine.Apply(context.Background(), Cart{CustomerID: "cust-1"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplyRejectsSubCentUnitPrice(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t, EngineDeps{Source: &stubSource{}})

	_, err := engine.Apply(context.Background(), Cart{
		CustomerID: "cust-1",
		Items:      []CartItem{{ProductID: "X", Quantity: 3, UnitPrice: dec("0.333")}},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, _ := typed.Details().(map[string]string)
	if _, ok := details["items[0].unit_price"]; !ok {
		t.Fatalf("expected unit_price detail, got %v", typed.Details())
	}
}

func TestApplyPassesClockToSource(t *testing.T) {
	t.Parallel()
	source := &stubSource{}
	engine := newTestEngine(t, EngineDeps{Source: source})

	if _, err := engine.Apply(context.Background(), referenceCart()); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !source.asOf.Equal(testNow) {
		t.Fatalf("expected asOf %s, got %s", testNow, source.asOf)
	}
}

func TestSourceFailureIsDependencyError(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t, EngineDeps{Source: &stubSource{err: errors.New("db down")}})

	_, err := engine.Apply(context.Background(), referenceCart())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestExclusivePromotionStopsTheRun(t *testing.T) {
	t.Parallel()
	exclusive := tenPercent("EXCL", 1)
	exclusive.Exclusive = true
	source := &stubSource{promos: []Promotion{tenPercent("LATER", 2), exclusive}}
	engine := newTestEngine(t, EngineDeps{Source: source})

	pc, err := engine.Apply(context.Background(), referenceCart())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := pc.AppliedPromotionCodes(); !reflect.DeepEqual(got, []string{"EXCL"}) {
		t.Fatalf("expected only EXCL, got %v", got)
	}
	if !pc.ExclusiveApplied() {
		t.Fatalf("expected exclusive flag")
	}
	assertMoney(t, "discount total", "15.00", pc.DiscountTotal())
}

func TestExclusiveSkippedAfterAnotherPromotion(t *testing.T) {
	t.Parallel()
	exclusive := tenPercent("EXCL", 2)
	exclusive.Exclusive = true
	source := &stubSource{promos: []Promotion{tenPercent("FIRST", 1), exclusive}}
	engine := newTestEngine(t, EngineDeps{Source: source})

	pc, err := engine.Apply(context.Background(), referenceCart())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := pc.AppliedPromotionCodes(); !reflect.DeepEqual(got, []string{"FIRST"}) {
		t.Fatalf("expected only FIRST, got %v", got)
	}
	if pc.ExclusiveApplied() {
		t.Fatalf("exclusive promotion must not apply")
	}
}

func TestCombinabilityGroupAllowsOnePromotion(t *testing.T) {
	t.Parallel()
	first := tenPercent("G1", 1)
	first.CombinabilityGroup = "seasonal"
	second := tenPercent("G2", 2)
	second.CombinabilityGroup = "seasonal"
	other := tenPercent("OTHER", 3)
	other.CombinabilityGroup = "loyalty"
	engine := newTestEngine(t, EngineDeps{Source: &stubSource{promos: []Promotion{second, other, first}}})

	pc, err := engine.Apply(context.Background(), referenceCart())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := pc.AppliedPromotionCodes(); !reflect.DeepEqual(got, []string{"G1", "OTHER"}) {
		t.Fatalf("expected G1 and OTHER, got %v", got)
	}
	if got := pc.UsedCombinabilityGroups(); !reflect.DeepEqual(got, []string{"loyalty", "seasonal"}) {
		t.Fatalf("unexpected used groups %v", got)
	}
	// 15.00 off 150.00, then 13.50 off the remaining 135.00.
	assertMoney(t, "discount total", "28.50", pc.DiscountTotal())
	assertItemInvariants(t, pc)
}

func TestNotMatchedPromotionDoesNotConsumeGroup(t *testing.T) {
	t.Parallel()
	never := promo("NEVER", 1, amountRule(enums.CalculationMethodBracket, percentTier("1000", "50")))
	never.CombinabilityGroup = "seasonal"
	later := tenPercent("LATER", 2)
	later.CombinabilityGroup = "seasonal"
	engine := newTestEngine(t, EngineDeps{Source: &stubSource{promos: []Promotion{never, later}}})

	pc, err := engine.Apply(context.Background(), referenceCart())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := pc.AppliedPromotionCodes(); !reflect.DeepEqual(got, []string{"LATER"}) {
		t.Fatalf("expected LATER, got %v", got)
	}
}

func TestApplyIsDeterministic(t *testing.T) {
	t.Parallel()
	promos := []Promotion{
		promo("CUM", 2, amountRule(enums.CalculationMethodCumulative, percentTier("0", "5"), percentTier("100", "10"))),
		promo("FIX", 1, amountRule(enums.CalculationMethodBracket, fixedTier("50", "7.77"))),
		tenPercent("TEN", 2),
	}
	engine := newTestEngine(t, EngineDeps{Source: &stubSource{promos: promos}})

	first, err := engine.Apply(context.Background(), referenceCart())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	for i := 0; i < 20; i++ {
		next, err := engine.Apply(context.Background(), referenceCart())
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if !reflect.DeepEqual(first.Items(), next.Items()) {
			t.Fatalf("run %d produced different items", i)
		}
		if !reflect.DeepEqual(first.AppliedPromotions(), next.AppliedPromotions()) {
			t.Fatalf("run %d produced a different audit log", i)
		}
	}
	if got := first.AppliedPromotionCodes(); !reflect.DeepEqual(got, []string{"FIX", "CUM", "TEN"}) {
		t.Fatalf("expected priority order with stable ties, got %v", got)
	}
}

func TestFirstMatchingRuleOnly(t *testing.T) {
	t.Parallel()
	p := promo("FIRST", 1,
		amountRule(enums.CalculationMethodBracket, percentTier("1000", "50")),
		amountRule(enums.CalculationMethodBracket, percentTier("0", "10")),
		amountRule(enums.CalculationMethodBracket, fixedTier("0", "5")),
	)
	p.ApplyFirstMatchingRuleOnly = true
	engine := newTestEngine(t, EngineDeps{Source: &stubSource{promos: []Promotion{p}}})

	pc, err := engine.Apply(context.Background(), referenceCart())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	assertMoney(t, "discount total", "15.00", pc.DiscountTotal())
	if len(pc.AppliedPromotions()) != 1 {
		t.Fatalf("expected a single audit entry, got %d", len(pc.AppliedPromotions()))
	}
}

func TestAllMatchingRulesApplyByDefault(t *testing.T) {
	t.Parallel()
	p := promo("ALL", 1,
		amountRule(enums.CalculationMethodBracket, percentTier("0", "10")),
		amountRule(enums.CalculationMethodBracket, fixedTier("0", "5")),
	)
	engine := newTestEngine(t, EngineDeps{Source: &stubSource{promos: []Promotion{p}}})

	pc, err := engine.Apply(context.Background(), referenceCart())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	assertMoney(t, "discount total", "20.00", pc.DiscountTotal())
	if got := pc.AppliedPromotionCodes(); !reflect.DeepEqual(got, []string{"ALL"}) {
		t.Fatalf("expected the code once, got %v", got)
	}
}

func TestInvalidRuleIsSkipped(t *testing.T) {
	t.Parallel()
	broken := amountRule(enums.CalculationMethod("LOGARITHMIC"), percentTier("0", "50"))
	overPercent := amountRule(enums.CalculationMethodBracket, percentTier("0", "150"))
	p := promo("MIXED", 1, broken, overPercent, amountRule(enums.CalculationMethodBracket, percentTier("0", "10")))
	engine := newTestEngine(t, EngineDeps{Source: &stubSource{promos: []Promotion{p}}})

	pc, err := engine.Apply(context.Background(), referenceCart())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	assertMoney(t, "discount total", "15.00", pc.DiscountTotal())
}

func TestDynamicConditions(t *testing.T) {
	t.Parallel()

	gated := tenPercent("DYN", 1)
	gated.DynamicConditions = []string{"subtotal >= 100"}

	t.Run("holds", func(t *testing.T) {
		dynamic := &stubDynamic{results: map[string]bool{"subtotal >= 100": true}}
		engine := newTestEngine(t, EngineDeps{Source: &stubSource{promos: []Promotion{gated}}, Dynamic: dynamic})
		pc, err := engine.Apply(context.Background(), referenceCart())
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		assertMoney(t, "discount total", "15.00", pc.DiscountTotal())
		if dynamic.facts.CustomerID != "cust-1" || dynamic.facts.TotalQuantity != 11 || !dynamic.facts.Now.Equal(testNow) {
			t.Fatalf("unexpected facts %+v", dynamic.facts)
		}
		assertMoney(t, "facts subtotal", "150.00", dynamic.facts.Subtotal)
	})

	t.Run("rejects", func(t *testing.T) {
		dynamic := &stubDynamic{results: map[string]bool{}}
		engine := newTestEngine(t, EngineDeps{Source: &stubSource{promos: []Promotion{gated}}, Dynamic: dynamic})
		pc, err := engine.Apply(context.Background(), referenceCart())
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if len(pc.AppliedPromotionCodes()) != 0 {
			t.Fatalf("expected promotion to be skipped")
		}
	})

	t.Run("invalid expression skips", func(t *testing.T) {
		dynamic := &stubDynamic{err: fmt.Errorf("%w: bad syntax", ErrInvalidConfiguration)}
		engine := newTestEngine(t, EngineDeps{Source: &stubSource{promos: []Promotion{gated, tenPercent("PLAIN", 2)}}, Dynamic: dynamic})
		pc, err := engine.Apply(context.Background(), referenceCart())
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if got := pc.AppliedPromotionCodes(); !reflect.DeepEqual(got, []string{"PLAIN"}) {
			t.Fatalf("expected only PLAIN, got %v", got)
		}
	})

	t.Run("evaluator failure aborts", func(t *testing.T) {
		dynamic := &stubDynamic{err: errors.New("rules service down")}
		engine := newTestEngine(t, EngineDeps{Source: &stubSource{promos: []Promotion{gated}}, Dynamic: dynamic})
		_, err := engine.Apply(context.Background(), referenceCart())
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeDependency {
			t.Fatalf("expected dependency error, got %v", err)
		}
	})

	t.Run("missing evaluator skips", func(t *testing.T) {
		engine := newTestEngine(t, EngineDeps{Source: &stubSource{promos: []Promotion{gated}}})
		pc, err := engine.Apply(context.Background(), referenceCart())
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if len(pc.AppliedPromotionCodes()) != 0 {
			t.Fatalf("expected promotion to be skipped")
		}
	})
}

func TestValidityWindow(t *testing.T) {
	t.Parallel()
	expired := tenPercent("EXPIRED", 1)
	expired.StartsAt = testNow.Add(-48 * time.Hour)
	expired.EndsAt = testNow.Add(-24 * time.Hour)
	engine := newTestEngine(t, EngineDeps{Source: &stubSource{promos: []Promotion{expired}}})

	pc, err := engine.Apply(context.Background(), referenceCart())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(pc.AppliedPromotionCodes()) != 0 {
		t.Fatalf("expired promotion must not apply")
	}

	pc, err = engine.ApplyPromotion(context.Background(), referenceCart(), expired)
	if err != nil {
		t.Fatalf("apply promotion: %v", err)
	}
	assertMoney(t, "simulated discount", "15.00", pc.DiscountTotal())

	pc, err = engine.ApplyPromotions(context.Background(), referenceCart(), []Promotion{expired})
	if err != nil {
		t.Fatalf("apply promotions: %v", err)
	}
	if len(pc.AppliedPromotionCodes()) != 0 {
		t.Fatalf("explicit sets still honour the window")
	}
}

func TestRunOptionsOverrideResolvers(t *testing.T) {
	t.Parallel()
	vip := promo("VIP", 1, Rule{
		ID:         "vip",
		Logic:      enums.CombinationLogicAll,
		Breakpoint: enums.BreakpointTypeAmount,
		Method:     enums.CalculationMethodBracket,
		Conditions: []Condition{CustomerInGroup{GroupCode: "vip", Operator: enums.OperatorEqual}},
		Tiers:      []Tier{percentTier("0", "10")},
	})
	engine := newTestEngine(t, EngineDeps{Source: &stubSource{promos: []Promotion{vip}}})

	pc, err := engine.Apply(context.Background(), referenceCart())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(pc.AppliedPromotionCodes()) != 0 {
		t.Fatalf("default resolver knows no groups")
	}

	groups := &stubGroups{members: map[string]map[string]bool{"vip": {"cust-1": true}}}
	pc, err = engine.Apply(context.Background(), referenceCart(), WithGroupResolver(groups))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	assertMoney(t, "discount total", "15.00", pc.DiscountTotal())
}

func TestFreeItemsAccumulateAcrossPromotions(t *testing.T) {
	t.Parallel()
	gift := func(code string, priority, units int) Promotion {
		return promo(code, priority, amountRule(enums.CalculationMethodBracket,
			Tier{Threshold: dec("0"), Reward: FreeProduct{ProductID: "GIFT", Units: units}}))
	}
	engine := newTestEngine(t, EngineDeps{Source: &stubSource{promos: []Promotion{gift("G1", 1, 1), gift("G2", 2, 2)}}})

	pc, err := engine.Apply(context.Background(), referenceCart())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	free := pc.FreeItems()
	if len(free) != 1 || free[0].Quantity != 3 {
		t.Fatalf("expected 3 free GIFT units, got %+v", free)
	}
	if !reflect.DeepEqual(free[0].PromotionCodes, []string{"G1", "G2"}) {
		t.Fatalf("unexpected contributing codes %v", free[0].PromotionCodes)
	}
	assertMoney(t, "final total", "150.00", pc.FinalTotal())
}

func TestQuantityConsumedByEarlierPromotion(t *testing.T) {
	t.Parallel()
	qtyRule := func() Rule {
		return Rule{
			ID:         "qty",
			Logic:      enums.CombinationLogicAll,
			Breakpoint: enums.BreakpointTypeQuantity,
			Method:     enums.CalculationMethodBracket,
			Conditions: []Condition{ProductInCart{ProductID: "A", Operator: enums.OperatorGreaterOrEqual, Quantity: dec("1")}},
			Tiers:      []Tier{percentTier("6", "10")},
		}
	}
	engine := newTestEngine(t, EngineDeps{Source: &stubSource{promos: []Promotion{
		promo("Q1", 1, qtyRule()),
		promo("Q2", 2, qtyRule()),
	}}})

	pc, err := engine.Apply(context.Background(), referenceCart())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := pc.AppliedPromotionCodes(); !reflect.DeepEqual(got, []string{"Q1"}) {
		t.Fatalf("expected Q2 to find only 4 units left, got %v", got)
	}
	if got := pc.Item(0).RemainingQuantity; got != 4 {
		t.Fatalf("expected 4 units left, got %d", got)
	}
}

func TestApplyHonoursCancelledContext(t *testing.T) {
	t.Parallel()
	engine := newTestEngine(t, EngineDeps{Source: &stubSource{promos: []Promotion{tenPercent("TEN", 1)}}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Apply(ctx, referenceCart())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBestPromotionCombination(t *testing.T) {
	t.Parallel()
	a := tenPercent("A", 1)
	a.CombinabilityGroup = "g"
	b := promo("B", 2, amountRule(enums.CalculationMethodBracket, percentTier("0", "20")))
	b.CombinabilityGroup = "g"
	c := promo("C", 3, amountRule(enums.CalculationMethodBracket, fixedTier("0", "10")))
	x := promo("X", 4, amountRule(enums.CalculationMethodBracket, percentTier("0", "25")))
	x.Exclusive = true
	engine := newTestEngine(t, EngineDeps{Source: &stubSource{promos: []Promotion{x, c, b, a}}})

	best, err := engine.BestPromotionCombination(context.Background(), referenceCart(), 0)
	if err != nil {
		t.Fatalf("best combination: %v", err)
	}
	codes := make([]string, 0, len(best))
	for _, p := range best {
		codes = append(codes, p.Code)
	}
	// B then C: 30.00 + 10.00 beats A then C (25.00) and X alone (37.50).
	if !reflect.DeepEqual(codes, []string{"B", "C"}) {
		t.Fatalf("expected [B C], got %v", codes)
	}

	limited, err := engine.BestPromotionCombination(context.Background(), referenceCart(), 1)
	if err != nil {
		t.Fatalf("best combination: %v", err)
	}
	if len(limited) != 1 || limited[0].Code != "A" {
		t.Fatalf("expected limit to keep only A, got %+v", limited)
	}
}

func TestBestPromotionCombinationWithNothingApplicable(t *testing.T) {
	t.Parallel()
	never := promo("NEVER", 1, amountRule(enums.CalculationMethodBracket, percentTier("1000", "50")))
	engine := newTestEngine(t, EngineDeps{Source: &stubSource{promos: []Promotion{never}}})

	best, err := engine.BestPromotionCombination(context.Background(), referenceCart(), 0)
	if err != nil {
		t.Fatalf("best combination: %v", err)
	}
	if len(best) != 0 {
		t.Fatalf("expected no combination, got %+v", best)
	}
}

func TestOnlyPricedRunsAreRecordedInMetrics(t *testing.T) {
	t.Parallel()
	a := tenPercent("A", 1)
	b := promo("B", 2, amountRule(enums.CalculationMethodBracket, fixedTier("0", "10.00")))
	c := promo("C", 3, amountRule(enums.CalculationMethodBracket, fixedTier("0", "5.00")))
	reg := prometheus.NewRegistry()
	engine := newTestEngine(t, EngineDeps{
		Source:  &stubSource{promos: []Promotion{a, b, c}},
		Metrics: metrics.NewPromotionMetrics(reg),
	})
	ctx := context.Background()

	best, err := engine.BestPromotionCombination(ctx, referenceCart(), 0)
	if err != nil {
		t.Fatalf("best combination: %v", err)
	}
	if len(best) != 3 {
		t.Fatalf("expected all three promotions to combine, got %+v", best)
	}
	if _, err := engine.ApplyPromotion(ctx, referenceCart(), c); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	for _, code := range []string{"A", "B", "C"} {
		if got := counterValue(t, reg, "promotion_applied_total", "promotion", code); got != 0 {
			t.Fatalf("expected no applied count for %s before pricing, got %f", code, got)
		}
	}
	if got := counterValue(t, reg, "promotion_evaluations_total", "outcome", outcomeApplied); got != 0 {
		t.Fatalf("expected no evaluations before pricing, got %f", got)
	}

	if _, err := engine.ApplyPromotions(ctx, referenceCart(), best); err != nil {
		t.Fatalf("apply promotions: %v", err)
	}
	wantDiscount := map[string]float64{"A": 15, "B": 10, "C": 5}
	for code, want := range wantDiscount {
		if got := counterValue(t, reg, "promotion_applied_total", "promotion", code); got != 1 {
			t.Fatalf("expected applied=1 for %s, got %f", code, got)
		}
		if got := counterValue(t, reg, "promotion_discount_amount_total", "promotion", code); got != want {
			t.Fatalf("expected discount=%f for %s, got %f", want, code, got)
		}
	}
	if got := counterValue(t, reg, "promotion_evaluations_total", "outcome", outcomeApplied); got != 3 {
		t.Fatalf("expected applied evaluations=3, got %f", got)
	}
}

// counterValue returns the labelled counter value, or zero when the series
// has not been created.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabel(m.GetLabel(), label, value) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, pair := range labels {
		if pair.GetName() == name && pair.GetValue() == value {
			return true
		}
	}
	return false
}
