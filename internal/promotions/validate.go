package promotions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/promoengine/pkg/enums"
	pkgerrors "github.com/angelmondragon/promoengine/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidConfiguration marks a promotion definition that cannot be
// evaluated. Rules failing with it are skipped instead of failing the run.
var ErrInvalidConfiguration = errors.New("invalid promotion configuration")

var hundred = decimal.NewFromInt(100)

// Validate rejects carts the engine cannot price.
func (c Cart) Validate() error {
	if len(c.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart must contain at least one item")
	}
	details := map[string]string{}
	for i, item := range c.Items {
		field := fmt.Sprintf("items[%d]", i)
		switch {
		case strings.TrimSpace(item.ProductID) == "":
			details[field+".product_id"] = "is required"
		case item.Quantity <= 0:
			details[field+".quantity"] = "must be greater than 0"
		case item.UnitPrice.IsNegative():
			details[field+".unit_price"] = "must not be negative"
		case !item.UnitPrice.Equal(item.UnitPrice.Round(2)):
			details[field+".unit_price"] = "must have at most 2 decimal places"
		}
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid cart").WithDetails(details)
	}
	return nil
}

// Validate reports configuration problems that prevent the rule from being
// applied. The returned error wraps ErrInvalidConfiguration.
func (r Rule) Validate() error {
	if !r.Logic.IsValid() {
		return r.invalid("unknown combination logic %q", r.Logic)
	}
	if !r.Breakpoint.IsValid() {
		return r.invalid("unknown breakpoint type %q", r.Breakpoint)
	}
	if !r.Method.IsValid() {
		return r.invalid("unknown calculation method %q", r.Method)
	}
	if len(r.Tiers) == 0 {
		return r.invalid("rule has no tiers")
	}
	for i, tier := range r.Tiers {
		if tier.Threshold.IsNegative() {
			return r.invalid("tier %d has a negative threshold", i)
		}
		if err := validateReward(tier.Reward); err != nil {
			return r.invalid("tier %d: %v", i, err)
		}
	}
	for i, cond := range r.Conditions {
		if err := validateCondition(cond); err != nil {
			return r.invalid("condition %d: %v", i, err)
		}
	}
	return nil
}

func (r Rule) invalid(format string, args ...any) error {
	return fmt.Errorf("%w: rule %s: %s", ErrInvalidConfiguration, r.ID, fmt.Sprintf(format, args...))
}

func validateReward(reward Reward) error {
	switch rw := reward.(type) {
	case nil:
		return errors.New("missing reward")
	case PercentDiscount:
		if rw.Percent.IsNegative() || rw.Percent.GreaterThan(hundred) {
			return fmt.Errorf("percent %s outside 0..100", rw.Percent)
		}
	case FixedDiscount:
		if rw.Amount.IsNegative() {
			return fmt.Errorf("fixed amount %s is negative", rw.Amount)
		}
	case FreeProduct:
		if strings.TrimSpace(rw.ProductID) == "" {
			return errors.New("free product reward has no product")
		}
		if rw.Units <= 0 {
			return fmt.Errorf("free product units %d must be positive", rw.Units)
		}
	default:
		return fmt.Errorf("unknown reward type %q", reward.Kind())
	}
	return nil
}

// validateCondition only checks operators; unknown kinds are left to the
// evaluator, which fails them closed.
func validateCondition(cond Condition) error {
	var op enums.ComparisonOperator
	switch c := cond.(type) {
	case nil:
		return errors.New("missing condition")
	case CartSubtotal:
		op = c.Operator
	case ProductInCart:
		op = c.Operator
	case FamilyInCart:
		op = c.Operator
	case CategoryInCart:
		op = c.Operator
	case CustomerInGroup:
		if c.Operator == "" {
			return nil
		}
		op = c.Operator
	default:
		return nil
	}
	if !op.IsValid() {
		return fmt.Errorf("unknown operator %q", op)
	}
	return nil
}
