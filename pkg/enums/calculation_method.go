package enums

import "fmt"

// CalculationMethod controls how tiers combine: one best tier or per-tier slices.
type CalculationMethod string

const (
	CalculationMethodBracket    CalculationMethod = "BRACKET"
	CalculationMethodCumulative CalculationMethod = "CUMULATIVE"
)

var validCalculationMethods = []CalculationMethod{
	CalculationMethodBracket,
	CalculationMethodCumulative,
}

// String implements fmt.Stringer.
func (c CalculationMethod) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CalculationMethod.
func (c CalculationMethod) IsValid() bool {
	for _, candidate := range validCalculationMethods {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCalculationMethod converts raw input into a CalculationMethod.
func ParseCalculationMethod(value string) (CalculationMethod, error) {
	for _, candidate := range validCalculationMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid calculation method %q", value)
}
