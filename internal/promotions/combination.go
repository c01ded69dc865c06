package promotions

import (
	"context"

	"github.com/shopspring/decimal"
)

// BestPromotionCombination searches the active promotions for the set that
// yields the largest total discount without breaking exclusivity or
// combinability. Each candidate, in priority order, seeds a combination that
// greedily takes later compatible candidates whenever they raise the total.
// limit bounds the number of candidates considered; zero or less means all.
// The returned promotions are the ones that actually applied in the best run.
// Trial runs are not recorded in metrics; pricing the returned set with
// ApplyPromotions records it once.
func (e *Engine) BestPromotionCombination(ctx context.Context, cart Cart, limit int, opts ...RunOption) ([]Promotion, error) {
	if err := cart.Validate(); err != nil {
		return nil, err
	}
	now := e.clock()
	promos, err := e.activePromotions(ctx, now)
	if err != nil {
		return nil, err
	}

	candidates := sortByPriority(promos)
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	cfg := e.runConfig(opts)
	cfg.record = false

	var (
		best      []Promotion
		bestTotal = decimal.Zero
	)
	for i := range candidates {
		combo := []Promotion{candidates[i]}
		pc, err := e.run(ctx, cart, combo, now, cfg)
		if err != nil {
			return nil, err
		}
		total := pc.DiscountTotal()
		if !total.IsPositive() {
			continue
		}

		for j := i + 1; j < len(candidates); j++ {
			if !compatible(combo, candidates[j]) {
				continue
			}
			trial := append(append([]Promotion{}, combo...), candidates[j])
			trialPC, err := e.run(ctx, cart, trial, now, cfg)
			if err != nil {
				return nil, err
			}
			if trialPC.DiscountTotal().GreaterThan(total) {
				combo, pc, total = trial, trialPC, trialPC.DiscountTotal()
			}
		}

		if total.GreaterThan(bestTotal) {
			best = appliedSubset(combo, pc)
			bestTotal = total
		}
	}
	return best, nil
}

// compatible reports whether candidate may join combo in the same run.
func compatible(combo []Promotion, candidate Promotion) bool {
	if candidate.Exclusive {
		return len(combo) == 0
	}
	for _, promo := range combo {
		if promo.Exclusive {
			return false
		}
		if candidate.CombinabilityGroup != "" && promo.CombinabilityGroup == candidate.CombinabilityGroup {
			return false
		}
	}
	return true
}

func appliedSubset(combo []Promotion, pc *PromotionContext) []Promotion {
	applied := map[string]struct{}{}
	for _, code := range pc.AppliedPromotionCodes() {
		applied[code] = struct{}{}
	}
	out := make([]Promotion, 0, len(combo))
	for _, promo := range sortByPriority(combo) {
		if _, ok := applied[promo.Code]; ok {
			out = append(out, promo)
		}
	}
	return out
}
