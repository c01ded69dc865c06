package promotions

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PromotionSource supplies fully populated promotion definitions.
type PromotionSource interface {
	FindActivePromotions(ctx context.Context, asOf time.Time) ([]Promotion, error)
	FindByCode(ctx context.Context, code string) (*Promotion, error)
}

// PointResolver returns the promotional points earned by one unit of a
// product. Unknown products resolve to zero without an error.
type PointResolver interface {
	PointsPerUnit(ctx context.Context, productID string) (decimal.Decimal, error)
}

// GroupMembershipResolver answers whether entityCode belongs to groupCode.
type GroupMembershipResolver interface {
	IsMember(ctx context.Context, groupCode, entityCode string) (bool, error)
}

// DynamicConditionEvaluator evaluates an externally defined promotion
// condition against the cart facts. Errors wrapping ErrInvalidConfiguration
// fail the promotion closed; any other error aborts the run.
type DynamicConditionEvaluator interface {
	Evaluate(ctx context.Context, expression string, facts Facts) (bool, error)
}

// Facts describes the cart to dynamic conditions.
type Facts struct {
	CustomerID    string
	Subtotal      decimal.Decimal
	CurrentTotal  decimal.Decimal
	ItemCount     int
	TotalQuantity int
	ProductIDs    []string
	FamilyIDs     []string
	Now           time.Time
}

type zeroPoints struct{}

func (zeroPoints) PointsPerUnit(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

type noGroups struct{}

func (noGroups) IsMember(context.Context, string, string) (bool, error) {
	return false, nil
}
