package pricing

import (
	"fmt"
	"strings"

	pkgerrors "github.com/angelmondragon/promoengine/pkg/errors"
)

// Validate checks the request before any promotion work is done.
func (in QuoteInput) Validate() error {
	details := map[string]string{}
	if strings.TrimSpace(in.CustomerID) == "" {
		details["customer_id"] = "is required"
	}
	if len(in.Items) == 0 {
		details["items"] = "at least one item is required"
	}
	for i, item := range in.Items {
		field := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(item.ProductID) == "" {
			details[field+".product_id"] = "is required"
		}
		if item.Quantity <= 0 {
			details[field+".quantity"] = "must be greater than zero"
		}
		switch {
		case item.UnitPrice.IsNegative():
			details[field+".unit_price"] = "must not be negative"
		case !item.UnitPrice.Equal(item.UnitPrice.Round(2)):
			details[field+".unit_price"] = "must have at most 2 decimal places"
		}
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid quote request").WithDetails(details)
	}
	return nil
}
