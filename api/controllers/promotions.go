package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/promoengine/api/responses"
	"github.com/angelmondragon/promoengine/api/validators"
	"github.com/angelmondragon/promoengine/internal/pricing"
	pkgerrors "github.com/angelmondragon/promoengine/pkg/errors"
	"github.com/angelmondragon/promoengine/pkg/logger"
)

// PromotionReader exposes promotion definitions to API clients.
type PromotionReader interface {
	ActivePromotions(ctx context.Context) ([]pricing.PromotionSummary, error)
	Promotion(ctx context.Context, code string) (*pricing.PromotionSummary, error)
}

// PromotionAdmin drops the cached active promotion set and toggles promotions.
type PromotionAdmin interface {
	InvalidateCache(ctx context.Context) (bool, error)
	SetPromotionEnabled(ctx context.Context, code string, enabled bool) error
}

func ActivePromotions(svc PromotionReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promotion service unavailable"))
			return
		}

		list, err := svc.ActivePromotions(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if list == nil {
			list = []pricing.PromotionSummary{}
		}
		responses.WriteSuccess(w, list)
	}
}

func PromotionByCode(svc PromotionReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promotion service unavailable"))
			return
		}

		code, err := validators.PathParam(r, promotionCodeURLPart, maxCodeLen)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Promotion(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// AdminInvalidatePromotionCache bumps the cache generation so the next read
// reloads promotions from the database.
func AdminInvalidatePromotionCache(svc PromotionAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promotion service unavailable"))
			return
		}

		invalidated, err := svc.InvalidateCache(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithField(r.Context(), "invalidated", invalidated), "promotions.cache_invalidated")
		}
		responses.WriteSuccess(w, map[string]bool{"invalidated": invalidated})
	}
}

// AdminSetPromotionEnabled returns a handler that enables or disables the
// promotion named in the path.
func AdminSetPromotionEnabled(svc PromotionAdmin, enabled bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promotion service unavailable"))
			return
		}

		code, err := validators.PathParam(r, promotionCodeURLPart, maxCodeLen)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetPromotionEnabled(r.Context(), code, enabled); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"code": code, "enabled": enabled})
	}
}
