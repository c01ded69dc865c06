package controllers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/promoengine/api/responses"
	"github.com/angelmondragon/promoengine/api/validators"
	"github.com/angelmondragon/promoengine/internal/pricing"
	pkgerrors "github.com/angelmondragon/promoengine/pkg/errors"
	"github.com/angelmondragon/promoengine/pkg/logger"
)

const (
	maxCodeLen           = 64
	maxCombinationLimit  = 50
	maxCandidatesQuery   = "max_candidates"
	promotionCodeURLPart = "code"
)

// PricingService prices carts against the active promotion set.
type PricingService interface {
	Quote(ctx context.Context, in pricing.QuoteInput) (*pricing.Quote, error)
	Simulate(ctx context.Context, code string, in pricing.QuoteInput) (*pricing.Quote, error)
	BestCombination(ctx context.Context, in pricing.QuoteInput, maxCandidates int) (*pricing.Quote, error)
}

type quoteRequest struct {
	CustomerID string             `json:"customer_id" validate:"required"`
	Items      []quoteItemRequest `json:"items" validate:"required,min=1,dive"`
}

type quoteItemRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	FamilyID  string          `json:"family_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0"`
}

func (r quoteRequest) toInput() pricing.QuoteInput {
	items := make([]pricing.QuoteItem, len(r.Items))
	for i, item := range r.Items {
		items[i] = pricing.QuoteItem{
			ProductID: validators.SanitizeString(item.ProductID, maxCodeLen),
			FamilyID:  validators.SanitizeString(item.FamilyID, maxCodeLen),
			Name:      validators.SanitizeString(item.Name, 255),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return pricing.QuoteInput{
		CustomerID: validators.SanitizeString(r.CustomerID, maxCodeLen),
		Items:      items,
	}
}

// PricingQuote applies every eligible active promotion to the posted cart.
func PricingQuote(svc PricingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing service unavailable"))
			return
		}

		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Quote(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// PricingBestCombination searches for the promotion subset giving the
// largest discount. The optional max_candidates query bounds the search.
func PricingBestCombination(svc PricingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, maxCandidatesQuery, 0, 1, maxCombinationLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.BestCombination(r.Context(), payload.toInput(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// PricingSimulate applies a single promotion to the cart regardless of its
// schedule or enabled flag.
func PricingSimulate(svc PricingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing service unavailable"))
			return
		}

		code, err := validators.PathParam(r, promotionCodeURLPart, maxCodeLen)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPromotionCode(ctx, code)
		}
		quote, err := svc.Simulate(ctx, code, payload.toInput())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}
