package enums

import "fmt"

// CombinationLogic joins the conditions of a promotion rule.
type CombinationLogic string

const (
	CombinationLogicAll CombinationLogic = "ALL"
	CombinationLogicAny CombinationLogic = "ANY"
)

var validCombinationLogics = []CombinationLogic{
	CombinationLogicAll,
	CombinationLogicAny,
}

// String implements fmt.Stringer.
func (c CombinationLogic) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CombinationLogic.
func (c CombinationLogic) IsValid() bool {
	for _, candidate := range validCombinationLogics {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCombinationLogic converts raw input into a CombinationLogic.
func ParseCombinationLogic(value string) (CombinationLogic, error) {
	for _, candidate := range validCombinationLogics {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid combination logic %q", value)
}
