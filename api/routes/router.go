package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/promoengine/api/controllers"
	"github.com/angelmondragon/promoengine/api/middleware"
	"github.com/angelmondragon/promoengine/pkg/config"
	"github.com/angelmondragon/promoengine/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	checks map[string]controllers.Pinger,
	gatherer prometheus.Gatherer,
	pricingService controllers.PricingService,
	promotionReader controllers.PromotionReader,
	promotionAdmin controllers.PromotionAdmin,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, checks))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/pricing", func(r chi.Router) {
			r.Post("/quote", controllers.PricingQuote(pricingService, logg))
			r.Post("/best-combination", controllers.PricingBestCombination(pricingService, logg))
			r.Post("/promotions/{code}/simulate", controllers.PricingSimulate(pricingService, logg))
		})

		r.Route("/promotions", func(r chi.Router) {
			r.Get("/active", controllers.ActivePromotions(promotionReader, logg))
			r.Get("/{code}", controllers.PromotionByCode(promotionReader, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Post("/promotions/cache/invalidate", controllers.AdminInvalidatePromotionCache(promotionAdmin, logg))
		r.Post("/promotions/{code}/enable", controllers.AdminSetPromotionEnabled(promotionAdmin, true, logg))
		r.Post("/promotions/{code}/disable", controllers.AdminSetPromotionEnabled(promotionAdmin, false, logg))
	})

	return r
}
