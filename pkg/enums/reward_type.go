package enums

import "fmt"

// RewardType identifies what a promotion tier grants once it is reached.
type RewardType string

const (
	RewardTypePercentDiscountOnItem RewardType = "PERCENT_DISCOUNT_ON_ITEM"
	RewardTypeFixedDiscountOnCart   RewardType = "FIXED_DISCOUNT_ON_CART"
	RewardTypeFreeProduct           RewardType = "FREE_PRODUCT"
)

var validRewardTypes = []RewardType{
	RewardTypePercentDiscountOnItem,
	RewardTypeFixedDiscountOnCart,
	RewardTypeFreeProduct,
}

// String implements fmt.Stringer.
func (r RewardType) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RewardType.
func (r RewardType) IsValid() bool {
	for _, candidate := range validRewardTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRewardType converts raw input into a RewardType.
func ParseRewardType(value string) (RewardType, error) {
	for _, candidate := range validRewardTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reward type %q", value)
}
