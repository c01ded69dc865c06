package pricing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/promoengine/internal/catalog"
	"github.com/angelmondragon/promoengine/internal/promotions"
	pkgerrors "github.com/angelmondragon/promoengine/pkg/errors"
	"github.com/angelmondragon/promoengine/pkg/logger"
	"github.com/angelmondragon/promoengine/pkg/metrics"
	"github.com/google/uuid"
)

const defaultCalculationTimeout = 2 * time.Second

type promotionEngine interface {
	Apply(ctx context.Context, cart promotions.Cart, opts ...promotions.RunOption) (*promotions.PromotionContext, error)
	ApplyPromotion(ctx context.Context, cart promotions.Cart, promo promotions.Promotion, opts ...promotions.RunOption) (*promotions.PromotionContext, error)
	ApplyPromotions(ctx context.Context, cart promotions.Cart, promos []promotions.Promotion, opts ...promotions.RunOption) (*promotions.PromotionContext, error)
	BestPromotionCombination(ctx context.Context, cart promotions.Cart, limit int, opts ...promotions.RunOption) ([]promotions.Promotion, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type promotionToggler interface {
	SetEnabled(ctx context.Context, code string, enabled bool) error
}

// ServiceParams wires the pricing service. Engine, Promotions and Logger are
// required; the rest are optional.
type ServiceParams struct {
	Engine               promotionEngine
	Promotions           promotions.PromotionSource
	Catalog              catalog.Lookup
	Cache                cacheInvalidator
	Toggler              promotionToggler
	Events               EventPublisher
	Logger               *logger.Logger
	Metrics              *metrics.PromotionMetrics
	CalculationTimeout   time.Duration
	MaxCombinationLength int
	Clock                func() time.Time
	NewID                func() string
}

// Service prices carts against the promotion catalog.
type Service struct {
	engine     promotionEngine
	promos     promotions.PromotionSource
	catalog    catalog.Lookup
	cache      cacheInvalidator
	toggler    promotionToggler
	events     EventPublisher
	logg       *logger.Logger
	metrics    *metrics.PromotionMetrics
	timeout    time.Duration
	comboLimit int
	clock      func() time.Time
	newID      func() string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Engine == nil {
		return nil, errors.New("promotion engine required")
	}
	if params.Promotions == nil {
		return nil, errors.New("promotion source required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	timeout := params.CalculationTimeout
	if timeout <= 0 {
		timeout = defaultCalculationTimeout
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	newID := params.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Service{
		engine:     params.Engine,
		promos:     params.Promotions,
		catalog:    params.Catalog,
		cache:      params.Cache,
		toggler:    params.Toggler,
		events:     params.Events,
		logg:       params.Logger,
		metrics:    params.Metrics,
		timeout:    timeout,
		comboLimit: params.MaxCombinationLength,
		clock:      clock,
		newID:      newID,
	}, nil
}

type runFunc func(ctx context.Context, cart promotions.Cart, opts []promotions.RunOption) (*promotions.PromotionContext, error)

// Quote prices the cart against every promotion active now.
func (s *Service) Quote(ctx context.Context, in QuoteInput) (*Quote, error) {
	return s.calculate(ctx, ModeQuote, in, func(ctx context.Context, cart promotions.Cart, opts []promotions.RunOption) (*promotions.PromotionContext, error) {
		return s.engine.Apply(ctx, cart, opts...)
	})
}

// Simulate prices the cart against a single promotion, enabled or not and
// regardless of its validity window.
func (s *Service) Simulate(ctx context.Context, code string, in QuoteInput) (*Quote, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promotion code is required")
	}
	ctx = s.logg.WithPromotionCode(ctx, code)
	return s.calculate(ctx, ModeSimulate, in, func(ctx context.Context, cart promotions.Cart, opts []promotions.RunOption) (*promotions.PromotionContext, error) {
		promo, err := s.findPromotion(ctx, code)
		if err != nil {
			return nil, err
		}
		return s.engine.ApplyPromotion(ctx, cart, *promo, opts...)
	})
}

// BestCombination searches for the combination of active promotions with the
// largest discount and prices the cart with it. maxCandidates bounds the
// search; zero or less uses the configured bound.
func (s *Service) BestCombination(ctx context.Context, in QuoteInput, maxCandidates int) (*Quote, error) {
	limit := s.comboLimit
	if maxCandidates > 0 {
		limit = maxCandidates
	}
	return s.calculate(ctx, ModeBestCombination, in, func(ctx context.Context, cart promotions.Cart, opts []promotions.RunOption) (*promotions.PromotionContext, error) {
		best, err := s.engine.BestPromotionCombination(ctx, cart, limit, opts...)
		if err != nil {
			return nil, err
		}
		return s.engine.ApplyPromotions(ctx, cart, best, opts...)
	})
}

// ActivePromotions lists the promotions active now in evaluation order.
func (s *Service) ActivePromotions(ctx context.Context) ([]PromotionSummary, error) {
	promos, err := s.promos.FindActivePromotions(ctx, s.clock())
	if err != nil {
		return nil, asDependency(err, "load active promotions")
	}
	out := make([]PromotionSummary, 0, len(promos))
	for _, promo := range promos {
		out = append(out, summarize(promo))
	}
	return out, nil
}

// Promotion describes a single promotion by code.
func (s *Service) Promotion(ctx context.Context, code string) (*PromotionSummary, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promotion code is required")
	}
	promo, err := s.findPromotion(ctx, code)
	if err != nil {
		return nil, err
	}
	summary := summarize(*promo)
	return &summary, nil
}

// InvalidateCache drops the cached active promotions. It reports false when
// no cache is configured.
func (s *Service) InvalidateCache(ctx context.Context) (bool, error) {
	if s.cache == nil {
		return false, nil
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		return false, asDependency(err, "invalidate promotions cache")
	}
	return true, nil
}

// SetPromotionEnabled switches a promotion on or off and drops the cached
// active set. A failed invalidation is logged; the refresher or the snapshot
// TTL picks the change up later.
func (s *Service) SetPromotionEnabled(ctx context.Context, code string, enabled bool) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "promotion code is required")
	}
	if s.toggler == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "promotion administration unavailable")
	}
	ctx = s.logg.WithFields(s.logg.WithPromotionCode(ctx, code), map[string]any{"enabled": enabled})
	if err := s.toggler.SetEnabled(ctx, code, enabled); err != nil {
		return asDependency(err, "update promotion")
	}
	if _, err := s.InvalidateCache(ctx); err != nil {
		s.logg.Error(ctx, "promotions.cache_invalidate_failed", err)
	}
	s.logg.Info(ctx, "promotions.enabled_changed")
	return nil
}

func (s *Service) calculate(ctx context.Context, mode Mode, in QuoteInput, run runFunc) (*Quote, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	ctx = s.logg.WithCustomerID(ctx, strings.TrimSpace(in.CustomerID))
	ctx = s.logg.WithField(ctx, "pricing_mode", string(mode))

	started := time.Now()
	calcCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cart := in.cart()
	opts, err := s.prefetch(calcCtx, &cart)
	var pc *promotions.PromotionContext
	if err == nil {
		pc, err = run(calcCtx, cart, opts)
	}
	s.metrics.ObserveCalculation(string(mode), time.Since(started))
	if err != nil {
		s.metrics.IncCalculationFailure(string(mode))
		err = s.classify(err)
		s.logg.Error(ctx, "pricing.calculation_failed", err)
		return nil, err
	}

	quote := buildQuote(s.newID(), mode, pc, s.clock())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"quote_id":       quote.ID,
		"discount_total": quote.DiscountTotal.StringFixed(2),
		"promotions":     quote.PromotionCodes,
	}), "pricing.quote_calculated")
	s.publish(ctx, quote)
	return &quote, nil
}

// prefetch loads the catalog facts of the cart, fills family ids the caller
// left out and returns run options answering lookups from the snapshot.
func (s *Service) prefetch(ctx context.Context, cart *promotions.Cart) ([]promotions.RunOption, error) {
	if s.catalog == nil {
		return nil, nil
	}
	productIDs := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	snap, err := catalog.Prefetch(ctx, s.catalog, productIDs, cart.CustomerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prefetch catalog facts")
	}
	for i := range cart.Items {
		if cart.Items[i].FamilyID != "" {
			continue
		}
		if family, ok := snap.FamilyID(cart.Items[i].ProductID); ok {
			cart.Items[i].FamilyID = family
		}
	}
	return []promotions.RunOption{
		promotions.WithPointResolver(snap),
		promotions.WithGroupResolver(snap),
	}, nil
}

func (s *Service) findPromotion(ctx context.Context, code string) (*promotions.Promotion, error) {
	promo, err := s.promos.FindByCode(ctx, code)
	if err != nil {
		return nil, asDependency(err, "load promotion")
	}
	if promo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promotion not found").
			WithDetails(map[string]string{"code": code})
	}
	return promo, nil
}

func (s *Service) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, "pricing calculation timed out").
			WithDetails(map[string]string{"timeout": s.timeout.String()})
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "pricing calculation failed")
}

func (s *Service) publish(ctx context.Context, quote Quote) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishQuote(ctx, quote); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "quote_id", quote.ID), "pricing.audit_event_failed", err)
	}
}

func asDependency(err error, message string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
