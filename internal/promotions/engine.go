package promotions

import (
	"context"
	"errors"
	"io"
	"sort"
	"time"

	pkgerrors "github.com/angelmondragon/promoengine/pkg/errors"
	"github.com/angelmondragon/promoengine/pkg/logger"
	"github.com/angelmondragon/promoengine/pkg/metrics"
)

// Evaluation outcomes recorded per promotion.
const (
	outcomeApplied          = "applied"
	outcomeOutsideWindow    = "outside_window"
	outcomeDynamicRejected  = "dynamic_rejected"
	outcomeExclusiveApplied = "exclusive_applied"
	outcomeExclusiveBlocked = "exclusive_blocked"
	outcomeGroupUsed        = "group_used"
	outcomeNotMatched       = "not_matched"
)

// Clock returns the current time. Injected so runs can be pinned in tests.
type Clock func() time.Time

// EngineDeps wires the engine to its collaborators. Source is required.
type EngineDeps struct {
	Source  PromotionSource
	Points  PointResolver
	Groups  GroupMembershipResolver
	Dynamic DynamicConditionEvaluator
	Clock   Clock
	Logger  *logger.Logger
	Metrics *metrics.PromotionMetrics
}

// Engine sequences promotions over a cart and records what applied.
type Engine struct {
	source  PromotionSource
	points  PointResolver
	groups  GroupMembershipResolver
	dynamic DynamicConditionEvaluator
	clock   Clock
	logg    *logger.Logger
	metrics *metrics.PromotionMetrics
}

// NewEngine validates deps and fills defaults for the optional ones.
func NewEngine(deps EngineDeps) (*Engine, error) {
	if deps.Source == nil {
		return nil, errors.New("promotion source required")
	}
	if deps.Points == nil {
		deps.Points = zeroPoints{}
	}
	if deps.Groups == nil {
		deps.Groups = noGroups{}
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}
	if deps.Logger == nil {
		deps.Logger = logger.New(logger.Options{ServiceName: "promotions", Output: io.Discard})
	}
	return &Engine{
		source:  deps.Source,
		points:  deps.Points,
		groups:  deps.Groups,
		dynamic: deps.Dynamic,
		clock:   deps.Clock,
		logg:    deps.Logger,
		metrics: deps.Metrics,
	}, nil
}

// RunOption adjusts a single run.
type RunOption func(*runConfig)

type runConfig struct {
	points       PointResolver
	groups       GroupMembershipResolver
	ignoreWindow bool
	// record controls whether the run feeds the evaluation and applied
	// counters. Previews and search trials leave them alone.
	record bool
}

// WithPointResolver overrides the point resolver for one run.
func WithPointResolver(points PointResolver) RunOption {
	return func(cfg *runConfig) {
		if points != nil {
			cfg.points = points
		}
	}
}

// WithGroupResolver overrides the group membership resolver for one run.
func WithGroupResolver(groups GroupMembershipResolver) RunOption {
	return func(cfg *runConfig) {
		if groups != nil {
			cfg.groups = groups
		}
	}
}

func (e *Engine) runConfig(opts []RunOption) runConfig {
	cfg := runConfig{points: e.points, groups: e.groups, record: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Apply prices cart against every promotion active now.
func (e *Engine) Apply(ctx context.Context, cart Cart, opts ...RunOption) (*PromotionContext, error) {
	if err := cart.Validate(); err != nil {
		return nil, err
	}
	now := e.clock()
	promos, err := e.activePromotions(ctx, now)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, cart, promos, now, e.runConfig(opts))
}

// ApplyPromotion simulates a single promotion on cart. The validity window
// is ignored so drafts and expired promotions can be previewed; dynamic
// conditions and rule gating still apply. Simulations are not counted as
// applied promotions.
func (e *Engine) ApplyPromotion(ctx context.Context, cart Cart, promo Promotion, opts ...RunOption) (*PromotionContext, error) {
	if err := cart.Validate(); err != nil {
		return nil, err
	}
	cfg := e.runConfig(opts)
	cfg.ignoreWindow = true
	cfg.record = false
	return e.run(ctx, cart, []Promotion{promo}, e.clock(), cfg)
}

// ApplyPromotions prices cart against an explicit set of promotions with the
// same gating as Apply.
func (e *Engine) ApplyPromotions(ctx context.Context, cart Cart, promos []Promotion, opts ...RunOption) (*PromotionContext, error) {
	if err := cart.Validate(); err != nil {
		return nil, err
	}
	return e.run(ctx, cart, promos, e.clock(), e.runConfig(opts))
}

func (e *Engine) activePromotions(ctx context.Context, now time.Time) ([]Promotion, error) {
	promos, err := e.source.FindActivePromotions(ctx, now)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active promotions")
	}
	return promos, nil
}

func (e *Engine) run(ctx context.Context, cart Cart, promos []Promotion, now time.Time, cfg runConfig) (*PromotionContext, error) {
	ordered := sortByPriority(promos)
	pc := NewPromotionContext(cart)
	evaluator := NewConditionEvaluator(cfg.groups, e.logg)
	applicator := NewRewardApplicator(cfg.points, cfg.groups, e.logg)

	for i := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		promo := &ordered[i]
		pctx := e.logg.WithPromotionCode(ctx, promo.Code)

		before := pc.DiscountTotal()
		outcome, err := e.applyOne(pctx, pc, promo, now, cfg, evaluator, applicator)
		if err != nil {
			return nil, err
		}
		if cfg.record {
			e.metrics.IncEvaluation(outcome)
		}
		if outcome != outcomeApplied {
			e.logg.Debug(e.logg.WithField(pctx, "outcome", outcome), "promotion.skipped")
			continue
		}
		if cfg.record {
			e.metrics.ObserveApplied(promo.Code, pc.DiscountTotal().Sub(before).InexactFloat64())
		}
		if promo.Exclusive {
			break
		}
	}
	return pc, nil
}

func (e *Engine) applyOne(ctx context.Context, pc *PromotionContext, promo *Promotion, now time.Time, cfg runConfig, evaluator *ConditionEvaluator, applicator *RewardApplicator) (string, error) {
	if !cfg.ignoreWindow && !promo.ActiveAt(now) {
		return outcomeOutsideWindow, nil
	}
	ok, err := e.dynamicConditionsHold(ctx, pc, promo, now)
	if err != nil {
		return "", err
	}
	if !ok {
		return outcomeDynamicRejected, nil
	}
	if reason := pc.blockedBy(promo); reason != "" {
		return reason, nil
	}

	applied := false
	for _, rule := range promo.Rules {
		if err := rule.Validate(); err != nil {
			e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "promotion.rule.invalid")
			continue
		}
		matched, err := evaluator.Evaluate(ctx, pc, rule.Conditions, rule.Logic)
		if err != nil {
			return "", err
		}
		if !matched {
			continue
		}
		result, err := applicator.Apply(ctx, pc, promo, rule)
		if err != nil {
			return "", err
		}
		if !result.Applied {
			continue
		}
		applied = true
		if promo.ApplyFirstMatchingRuleOnly {
			break
		}
	}

	if !applied {
		return outcomeNotMatched, nil
	}
	pc.markApplied(promo)
	return outcomeApplied, nil
}

func (e *Engine) dynamicConditionsHold(ctx context.Context, pc *PromotionContext, promo *Promotion, now time.Time) (bool, error) {
	if len(promo.DynamicConditions) == 0 {
		return true, nil
	}
	if e.dynamic == nil {
		e.logg.Warn(ctx, "promotion.dynamic.evaluator_missing")
		return false, nil
	}

	facts := pc.facts()
	facts.Now = now
	for _, expr := range promo.DynamicConditions {
		ok, err := e.dynamic.Evaluate(ctx, expr, facts)
		if err != nil {
			if errors.Is(err, ErrInvalidConfiguration) {
				e.logg.Warn(e.logg.WithFields(ctx, map[string]any{
					"expression": expr,
					"error":      err.Error(),
				}), "promotion.dynamic.invalid")
				return false, nil
			}
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "evaluate dynamic condition")
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// sortByPriority returns a copy ordered by ascending priority, keeping the
// source order for ties.
func sortByPriority(promos []Promotion) []Promotion {
	ordered := make([]Promotion, len(promos))
	copy(ordered, promos)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})
	return ordered
}
