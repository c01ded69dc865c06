package promotions

import (
	"context"

	"github.com/angelmondragon/promoengine/pkg/enums"
	pkgerrors "github.com/angelmondragon/promoengine/pkg/errors"
	"github.com/angelmondragon/promoengine/pkg/logger"
	"github.com/shopspring/decimal"
)

// ConditionEvaluator decides whether a rule's conditions hold for the current
// state of a run. It keeps no state between calls.
type ConditionEvaluator struct {
	groups GroupMembershipResolver
	logg   *logger.Logger
}

// NewConditionEvaluator builds an evaluator. A nil resolver treats every
// membership lookup as false.
func NewConditionEvaluator(groups GroupMembershipResolver, logg *logger.Logger) *ConditionEvaluator {
	if groups == nil {
		groups = noGroups{}
	}
	return &ConditionEvaluator{groups: groups, logg: logg}
}

// Evaluate joins conditions with logic. An empty list always holds.
func (e *ConditionEvaluator) Evaluate(ctx context.Context, pc *PromotionContext, conditions []Condition, logic enums.CombinationLogic) (bool, error) {
	if len(conditions) == 0 {
		return true, nil
	}

	switch logic {
	case enums.CombinationLogicAll:
		for _, cond := range conditions {
			ok, err := e.evaluate(ctx, pc, cond)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case enums.CombinationLogicAny:
		for _, cond := range conditions {
			ok, err := e.evaluate(ctx, pc, cond)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}

	e.warn(ctx, "promotion.condition.unknown_logic", map[string]any{"logic": logic})
	return false, nil
}

func (e *ConditionEvaluator) evaluate(ctx context.Context, pc *PromotionContext, cond Condition) (bool, error) {
	switch c := cond.(type) {
	case CartSubtotal:
		return c.Operator.Compare(pc.FinalTotal().Cmp(c.Value)), nil
	case ProductInCart:
		qty := quantityWhere(pc.cart, func(item CartItem) bool { return item.ProductID == c.ProductID })
		return c.Operator.Compare(qty.Cmp(c.Quantity)), nil
	case FamilyInCart:
		qty := quantityWhere(pc.cart, func(item CartItem) bool { return item.FamilyID == c.FamilyID })
		return c.Operator.Compare(qty.Cmp(c.Quantity)), nil
	case CategoryInCart:
		qty, err := e.categoryQuantity(ctx, pc.cart, c.CategoryID)
		if err != nil {
			return false, err
		}
		return c.Operator.Compare(qty.Cmp(c.Quantity)), nil
	case CustomerInGroup:
		member := false
		if pc.cart.CustomerID != "" {
			var err error
			member, err = e.groups.IsMember(ctx, c.GroupCode, pc.cart.CustomerID)
			if err != nil {
				return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve customer group membership")
			}
		}
		if c.Operator == enums.OperatorNotEqual {
			return !member, nil
		}
		return member, nil
	}

	kind := ""
	if cond != nil {
		kind = string(cond.Kind())
	}
	e.warn(ctx, "promotion.condition.unknown_type", map[string]any{"condition_type": kind})
	return false, nil
}

func (e *ConditionEvaluator) categoryQuantity(ctx context.Context, cart Cart, categoryID string) (decimal.Decimal, error) {
	members := map[string]bool{}
	total := int64(0)
	for _, item := range cart.Items {
		if item.FamilyID == "" {
			continue
		}
		member, seen := members[item.FamilyID]
		if !seen {
			var err error
			member, err = e.groups.IsMember(ctx, categoryID, item.FamilyID)
			if err != nil {
				return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve category membership")
			}
			members[item.FamilyID] = member
		}
		if member {
			total += int64(item.Quantity)
		}
	}
	return decimal.NewFromInt(total), nil
}

func (e *ConditionEvaluator) warn(ctx context.Context, msg string, fields map[string]any) {
	if e.logg == nil {
		return
	}
	e.logg.Warn(e.logg.WithFields(ctx, fields), msg)
}

func quantityWhere(cart Cart, match func(CartItem) bool) decimal.Decimal {
	total := int64(0)
	for _, item := range cart.Items {
		if match(item) {
			total += int64(item.Quantity)
		}
	}
	return decimal.NewFromInt(total)
}
