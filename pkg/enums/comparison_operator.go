package enums

import (
	"fmt"
	"strings"
)

// ComparisonOperator compares a measured cart value against a condition value.
type ComparisonOperator string

const (
	OperatorGreaterOrEqual ComparisonOperator = "GTE"
	OperatorGreater        ComparisonOperator = "GT"
	OperatorEqual          ComparisonOperator = "EQ"
	OperatorNotEqual       ComparisonOperator = "NEQ"
	OperatorLess           ComparisonOperator = "LT"
	OperatorLessOrEqual    ComparisonOperator = "LTE"
)

var validComparisonOperators = []ComparisonOperator{
	OperatorGreaterOrEqual,
	OperatorGreater,
	OperatorEqual,
	OperatorNotEqual,
	OperatorLess,
	OperatorLessOrEqual,
}

var operatorSymbols = map[string]ComparisonOperator{
	">=": OperatorGreaterOrEqual,
	">":  OperatorGreater,
	"=":  OperatorEqual,
	"==": OperatorEqual,
	"!=": OperatorNotEqual,
	"<>": OperatorNotEqual,
	"<":  OperatorLess,
	"<=": OperatorLessOrEqual,
}

// String implements fmt.Stringer.
func (o ComparisonOperator) String() string {
	return string(o)
}

// IsValid reports whether the value is a known ComparisonOperator.
func (o ComparisonOperator) IsValid() bool {
	for _, candidate := range validComparisonOperators {
		if candidate == o {
			return true
		}
	}
	return false
}

// Compare applies the operator to the result of a three-way comparison
// (-1, 0, 1) between the measured value and the condition value.
func (o ComparisonOperator) Compare(cmp int) bool {
	switch o {
	case OperatorGreaterOrEqual:
		return cmp >= 0
	case OperatorGreater:
		return cmp > 0
	case OperatorEqual:
		return cmp == 0
	case OperatorNotEqual:
		return cmp != 0
	case OperatorLess:
		return cmp < 0
	case OperatorLessOrEqual:
		return cmp <= 0
	}
	return false
}

// ParseComparisonOperator converts raw input into a ComparisonOperator. Both
// the stored names (GTE) and their symbols (>=) are accepted.
func ParseComparisonOperator(value string) (ComparisonOperator, error) {
	trimmed := strings.TrimSpace(value)
	if op, ok := operatorSymbols[trimmed]; ok {
		return op, nil
	}
	for _, candidate := range validComparisonOperators {
		if string(candidate) == strings.ToUpper(trimmed) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid comparison operator %q", value)
}
