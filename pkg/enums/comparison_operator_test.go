package enums

import "testing"

func TestParseComparisonOperatorAcceptsSymbols(t *testing.T) {
	cases := map[string]ComparisonOperator{
		">=":  OperatorGreaterOrEqual,
		"GTE": OperatorGreaterOrEqual,
		"lt":  OperatorLess,
		"!=":  OperatorNotEqual,
		" = ": OperatorEqual,
	}
	for raw, want := range cases {
		got, err := ParseComparisonOperator(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s, got %s", raw, want, got)
		}
	}

	if _, err := ParseComparisonOperator("~"); err == nil {
		t.Fatalf("expected error for unknown operator")
	}
}

func TestComparisonOperatorCompare(t *testing.T) {
	tests := []struct {
		op   ComparisonOperator
		cmp  int
		want bool
	}{
		{OperatorGreaterOrEqual, 0, true},
		{OperatorGreaterOrEqual, -1, false},
		{OperatorGreater, 0, false},
		{OperatorEqual, 0, true},
		{OperatorNotEqual, 1, true},
		{OperatorLess, -1, true},
		{OperatorLessOrEqual, 1, false},
		{ComparisonOperator("BOGUS"), 0, false},
	}
	for _, tt := range tests {
		if got := tt.op.Compare(tt.cmp); got != tt.want {
			t.Fatalf("%s.Compare(%d): expected %v, got %v", tt.op, tt.cmp, tt.want, got)
		}
	}
}

func TestPromotionEnumsRejectUnknownValues(t *testing.T) {
	if _, err := ParseRewardType("BOGO"); err == nil {
		t.Fatalf("expected reward type error")
	}
	if _, err := ParseConditionType("WEATHER"); err == nil {
		t.Fatalf("expected condition type error")
	}
	if !CalculationMethodCumulative.IsValid() || CalculationMethod("LINEAR").IsValid() {
		t.Fatalf("unexpected calculation method validity")
	}
	if got, err := ParseBreakpointType("POINTS"); err != nil || got != BreakpointTypePoints {
		t.Fatalf("expected POINTS breakpoint, got %q (%v)", got, err)
	}
}
