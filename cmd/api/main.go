package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/promoengine/api/controllers"
	"github.com/angelmondragon/promoengine/api/routes"
	"github.com/angelmondragon/promoengine/internal/catalog"
	"github.com/angelmondragon/promoengine/internal/pricing"
	"github.com/angelmondragon/promoengine/internal/promotions"
	"github.com/angelmondragon/promoengine/internal/promotions/rules"
	"github.com/angelmondragon/promoengine/internal/promotions/store"
	"github.com/angelmondragon/promoengine/pkg/config"
	"github.com/angelmondragon/promoengine/pkg/db"
	"github.com/angelmondragon/promoengine/pkg/logger"
	"github.com/angelmondragon/promoengine/pkg/metrics"
	"github.com/angelmondragon/promoengine/pkg/migrate"
	"github.com/angelmondragon/promoengine/pkg/pubsub"
	"github.com/angelmondragon/promoengine/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	closers = append(closers, dbClient.Close)

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promMetrics := metrics.NewPromotionMetrics(registry)

	checks := map[string]controllers.Pinger{"database": dbClient}

	var cache store.Cache
	if cfg.FeatureFlags.PromotionCache {
		redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		closers = append(closers, redisClient.Close)
		checks["redis"] = redisClient

		redisCache, err := store.NewRedisCache(redisClient, cfg.Promotions.CacheTTL)
		if err != nil {
			return err
		}
		cache = redisCache
	}

	promotionRepo := store.NewRepository(dbClient.DB())
	source, err := store.NewSource(store.SourceParams{
		Repository: promotionRepo,
		Cache:      cache,
		Logger:     logg,
		Metrics:    promMetrics,
	})
	if err != nil {
		return err
	}

	celEvaluator, err := rules.NewCELEvaluator()
	if err != nil {
		return err
	}

	catalogRepo := catalog.NewRepository(dbClient.DB())
	engine, err := promotions.NewEngine(promotions.EngineDeps{
		Source:  source,
		Points:  catalogRepo,
		Groups:  catalogRepo,
		Dynamic: celEvaluator,
		Logger:  logg,
		Metrics: promMetrics,
	})
	if err != nil {
		return err
	}

	params := pricing.ServiceParams{
		Engine:               engine,
		Toggler:              promotionRepo,
		Promotions:           source,
		Catalog:              catalogRepo,
		Logger:               logg,
		Metrics:              promMetrics,
		CalculationTimeout:   cfg.Promotions.CalculationTimeout,
		MaxCombinationLength: cfg.Promotions.MaxCombinationCandidates,
	}
	if cache != nil {
		params.Cache = source
	}
	if cfg.FeatureFlags.AuditEvents {
		psClient, err := pubsub.NewClient(bootCtx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return err
		}
		closers = append(closers, psClient.Close)
		checks["pubsub"] = psClient

		events, err := pricing.NewPubSubPublisher(psClient.PricingPublisher())
		if err != nil {
			return err
		}
		params.Events = events
	}

	pricingService, err := pricing.NewService(params)
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, checks, registry, pricingService, pricingService, pricingService),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":   cfg.App.Env,
		"addr":  addr,
		"cache": cache != nil,
	})
	logg.Info(ctx, "starting api server")

	group, groupCtx := errgroup.WithContext(ctx)
	if cache != nil {
		refresher, err := store.NewRefresher(source, cfg.Promotions.CacheRefreshInterval, logg)
		if err != nil {
			return err
		}
		group.Go(func() error {
			return refresher.Run(groupCtx)
		})
	}
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logg.Info(ctx, "api server shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
