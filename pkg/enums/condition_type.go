package enums

import "fmt"

// ConditionType identifies which predicate a promotion condition evaluates.
type ConditionType string

const (
	ConditionTypeCartSubtotal          ConditionType = "CART_SUBTOTAL"
	ConditionTypeProductInCart         ConditionType = "PRODUCT_IN_CART"
	ConditionTypeProductFamilyInCart   ConditionType = "PRODUCT_FAMILY_IN_CART"
	ConditionTypeProductCategoryInCart ConditionType = "PRODUCT_CATEGORY_IN_CART"
	ConditionTypeCustomerInGroup       ConditionType = "CUSTOMER_IN_GROUP"
)

var validConditionTypes = []ConditionType{
	ConditionTypeCartSubtotal,
	ConditionTypeProductInCart,
	ConditionTypeProductFamilyInCart,
	ConditionTypeProductCategoryInCart,
	ConditionTypeCustomerInGroup,
}

// String implements fmt.Stringer.
func (c ConditionType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ConditionType.
func (c ConditionType) IsValid() bool {
	for _, candidate := range validConditionTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseConditionType converts raw input into a ConditionType.
func ParseConditionType(value string) (ConditionType, error) {
	for _, candidate := range validConditionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid condition type %q", value)
}
