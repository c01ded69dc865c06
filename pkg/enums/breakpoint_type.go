package enums

import "fmt"

// BreakpointType selects the cart measure used to look up a promotion tier.
type BreakpointType string

const (
	BreakpointTypeAmount   BreakpointType = "AMOUNT"
	BreakpointTypeQuantity BreakpointType = "QUANTITY"
	BreakpointTypePoints   BreakpointType = "POINTS"
)

var validBreakpointTypes = []BreakpointType{
	BreakpointTypeAmount,
	BreakpointTypeQuantity,
	BreakpointTypePoints,
}

// String implements fmt.Stringer.
func (b BreakpointType) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BreakpointType.
func (b BreakpointType) IsValid() bool {
	for _, candidate := range validBreakpointTypes {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBreakpointType converts raw input into a BreakpointType.
func ParseBreakpointType(value string) (BreakpointType, error) {
	for _, candidate := range validBreakpointTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid breakpoint type %q", value)
}
