package promotions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/promoengine/pkg/enums"
	pkgerrors "github.com/angelmondragon/promoengine/pkg/errors"
	"github.com/angelmondragon/promoengine/pkg/logger"
	"github.com/shopspring/decimal"
)

// RewardApplicator computes tier rewards for a matched rule and writes them
// into the run context.
type RewardApplicator struct {
	points PointResolver
	groups GroupMembershipResolver
	logg   *logger.Logger
}

// NewRewardApplicator builds an applicator. Nil resolvers resolve every
// product to zero points and every membership to false.
func NewRewardApplicator(points PointResolver, groups GroupMembershipResolver, logg *logger.Logger) *RewardApplicator {
	if points == nil {
		points = zeroPoints{}
	}
	if groups == nil {
		groups = noGroups{}
	}
	return &RewardApplicator{points: points, groups: groups, logg: logg}
}

// RewardOutcome summarizes what one rule application changed.
type RewardOutcome struct {
	Applied   bool
	Discount  decimal.Decimal
	FreeUnits int
}

// tierGrant is a tier reached by the breakpoint value together with the
// portion of the breakpoint it covers. upper is nil for open ranges.
type tierGrant struct {
	tier  Tier
	lower decimal.Decimal
	upper *decimal.Decimal
	slice decimal.Decimal
}

// breakpointMeasure is the breakpoint value of the eligible lines plus the
// per-unit points used to compute it.
type breakpointMeasure struct {
	value  decimal.Decimal
	points map[int]decimal.Decimal
}

// Apply evaluates the rule's tiers against the eligible lines and applies the
// resulting rewards. Audit entries are appended only when something applied.
func (a *RewardApplicator) Apply(ctx context.Context, pc *PromotionContext, promo *Promotion, rule Rule) (RewardOutcome, error) {
	outcome := RewardOutcome{Discount: decimal.Zero}

	eligible, err := a.eligibleItems(ctx, pc, rule)
	if err != nil || len(eligible) == 0 {
		return outcome, err
	}

	measure, err := a.measure(ctx, pc, rule.Breakpoint, eligible)
	if err != nil {
		return outcome, err
	}

	tiers := sortTiers(rule.Tiers)
	var grants []tierGrant
	switch rule.Method {
	case enums.CalculationMethodBracket:
		grants = bracketGrants(tiers, measure.value)
	case enums.CalculationMethodCumulative:
		grants = cumulativeGrants(tiers, measure.value)
	}
	if len(grants) == 0 {
		return outcome, nil
	}

	available := pc.remainingTotal(eligible)
	discount := decimal.Zero
	entries := make([]AppliedPromotion, 0, len(grants))

	for _, grant := range grants {
		switch reward := grant.tier.Reward.(type) {
		case PercentDiscount:
			basis := sliceBasis(rule.Breakpoint, grant.slice, measure.value, available)
			amount := roundCurrency(basis.Mul(reward.Percent).Div(hundred))
			amount = decimal.Min(amount, available.Sub(discount))
			if !amount.IsPositive() {
				continue
			}
			discount = discount.Add(amount)
			entries = append(entries, AppliedPromotion{
				PromotionCode: promo.Code,
				Description:   describeGrant(rule, grant),
				Amount:        amount,
			})
		case FixedDiscount:
			amount := decimal.Min(roundCurrency(reward.Amount), available.Sub(discount))
			if !amount.IsPositive() {
				continue
			}
			discount = discount.Add(amount)
			entries = append(entries, AppliedPromotion{
				PromotionCode: promo.Code,
				Description:   describeGrant(rule, grant),
				Amount:        amount,
			})
		case FreeProduct:
			pc.grantFreeItems(reward.ProductID, reward.Units, promo.Code)
			outcome.FreeUnits += reward.Units
			entries = append(entries, AppliedPromotion{
				PromotionCode: promo.Code,
				Description:   describeGrant(rule, grant),
				Amount:        decimal.Zero,
			})
		default:
			if a.logg != nil {
				kind := ""
				if reward != nil {
					kind = string(reward.Kind())
				}
				a.logg.Warn(a.logg.WithField(ctx, "reward_type", kind), "promotion.reward.unknown_type")
			}
		}
	}

	if len(entries) == 0 {
		return outcome, nil
	}
	if discount.IsPositive() {
		outcome.Discount = pc.distribute(eligible, discount)
	}
	a.consume(pc, rule, eligible, measure, grants)
	for _, entry := range entries {
		pc.logApplied(entry)
	}
	outcome.Applied = true
	return outcome, nil
}

// eligibleItems returns the lines a rule targets: the lines referenced by its
// product, family and category conditions, or every line when it has none.
// Only conditions that need the entity in the cart narrow the scope; a
// condition such as "product Z less than 1" targets nothing by itself.
func (a *RewardApplicator) eligibleItems(ctx context.Context, pc *PromotionContext, rule Rule) ([]int, error) {
	products := map[string]struct{}{}
	families := map[string]struct{}{}
	categories := []string{}
	for _, cond := range rule.Conditions {
		switch c := cond.(type) {
		case ProductInCart:
			if requiresPresence(c.Operator, c.Quantity) {
				products[c.ProductID] = struct{}{}
			}
		case FamilyInCart:
			if requiresPresence(c.Operator, c.Quantity) {
				families[c.FamilyID] = struct{}{}
			}
		case CategoryInCart:
			if requiresPresence(c.Operator, c.Quantity) {
				categories = append(categories, c.CategoryID)
			}
		}
	}

	scoped := len(products) > 0 || len(families) > 0 || len(categories) > 0
	indexes := make([]int, 0, pc.Len())
	for i, item := range pc.cart.Items {
		if !scoped {
			indexes = append(indexes, i)
			continue
		}
		if _, ok := products[item.ProductID]; ok {
			indexes = append(indexes, i)
			continue
		}
		if _, ok := families[item.FamilyID]; ok && item.FamilyID != "" {
			indexes = append(indexes, i)
			continue
		}
		if item.FamilyID == "" {
			continue
		}
		for _, category := range categories {
			member, err := a.groups.IsMember(ctx, category, item.FamilyID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve category membership")
			}
			if member {
				indexes = append(indexes, i)
				break
			}
		}
	}
	return indexes, nil
}

// requiresPresence reports whether a quantity condition fails when the
// entity is absent from the cart.
func requiresPresence(op enums.ComparisonOperator, quantity decimal.Decimal) bool {
	return !op.Compare(decimal.Zero.Cmp(quantity))
}

func (a *RewardApplicator) measure(ctx context.Context, pc *PromotionContext, breakpoint enums.BreakpointType, eligible []int) (breakpointMeasure, error) {
	m := breakpointMeasure{value: decimal.Zero}
	switch breakpoint {
	case enums.BreakpointTypeAmount:
		m.value = pc.remainingTotal(eligible)
	case enums.BreakpointTypeQuantity:
		units := 0
		for _, idx := range eligible {
			units += pc.rows[idx].remainingQuantity
		}
		m.value = decimal.NewFromInt(int64(units))
	case enums.BreakpointTypePoints:
		m.points = make(map[int]decimal.Decimal, len(eligible))
		for _, idx := range eligible {
			perUnit, err := a.points.PointsPerUnit(ctx, pc.cart.Items[idx].ProductID)
			if err != nil {
				return m, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve product points")
			}
			m.points[idx] = perUnit
			m.value = m.value.Add(perUnit.Mul(decimal.NewFromInt(int64(pc.rows[idx].remainingQuantity))))
		}
	}
	return m, nil
}

// consume removes the units that formed a QUANTITY or POINTS breakpoint from
// the eligible lines so later promotions cannot count them again.
func (a *RewardApplicator) consume(pc *PromotionContext, rule Rule, eligible []int, m breakpointMeasure, grants []tierGrant) {
	cumulative := rule.Method == enums.CalculationMethodCumulative
	switch rule.Breakpoint {
	case enums.BreakpointTypeQuantity:
		units := int(m.value.IntPart())
		if !cumulative {
			units = int(grants[0].tier.Threshold.Ceil().IntPart())
		}
		for _, idx := range eligible {
			if units <= 0 {
				return
			}
			units -= pc.consumeQuantity(idx, units)
		}
	case enums.BreakpointTypePoints:
		need := grants[0].tier.Threshold
		for _, idx := range eligible {
			perUnit := m.points[idx]
			if !perUnit.IsPositive() {
				continue
			}
			if cumulative {
				pc.consumeQuantity(idx, pc.rows[idx].remainingQuantity)
				continue
			}
			if !need.IsPositive() {
				return
			}
			units := int(need.Div(perUnit).Ceil().IntPart())
			consumed := pc.consumeQuantity(idx, units)
			need = need.Sub(perUnit.Mul(decimal.NewFromInt(int64(consumed))))
		}
	}
}

// sortTiers returns the tiers ordered by ascending threshold without touching
// the rule's own slice.
func sortTiers(tiers []Tier) []Tier {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Threshold.LessThan(sorted[j].Threshold)
	})
	return sorted
}

// bracketGrants selects the single tier with the highest threshold not above
// value.
func bracketGrants(tiers []Tier, value decimal.Decimal) []tierGrant {
	selected := -1
	for i, tier := range tiers {
		if tier.Threshold.LessThanOrEqual(value) {
			selected = i
		}
	}
	if selected < 0 {
		return nil
	}
	return []tierGrant{{
		tier:  tiers[selected],
		lower: tiers[selected].Threshold,
		slice: value,
	}}
}

// cumulativeGrants cuts value into the ranges between consecutive thresholds.
// Tier i covers [threshold_i, threshold_i+1); the last tier covers everything
// above its threshold.
func cumulativeGrants(tiers []Tier, value decimal.Decimal) []tierGrant {
	grants := make([]tierGrant, 0, len(tiers))
	for i, tier := range tiers {
		top := value
		var upper *decimal.Decimal
		if i+1 < len(tiers) {
			next := tiers[i+1].Threshold
			upper = &next
			top = decimal.Min(value, next)
		}
		slice := top.Sub(tier.Threshold)
		if !slice.IsPositive() {
			continue
		}
		grants = append(grants, tierGrant{
			tier:  tier,
			lower: tier.Threshold,
			upper: upper,
			slice: slice,
		})
	}
	return grants
}

// sliceBasis converts a slice of the breakpoint into the money it stands for.
// Amount slices are money already; quantity and points slices take their
// share of the eligible remaining price.
func sliceBasis(breakpoint enums.BreakpointType, slice, value, available decimal.Decimal) decimal.Decimal {
	if breakpoint == enums.BreakpointTypeAmount {
		return decimal.Min(slice, available)
	}
	if !value.IsPositive() {
		return decimal.Zero
	}
	return available.Mul(slice).Div(value)
}

func describeGrant(rule Rule, grant tierGrant) string {
	var what string
	switch reward := grant.tier.Reward.(type) {
	case PercentDiscount:
		what = reward.Percent.String() + "% off"
	case FixedDiscount:
		what = reward.Amount.StringFixed(currencyPlaces) + " off"
	case FreeProduct:
		what = fmt.Sprintf("%d free x %s", reward.Units, reward.ProductID)
	}

	measure := strings.ToLower(rule.Breakpoint.String())
	if rule.Method != enums.CalculationMethodCumulative {
		return fmt.Sprintf("%s (%s >= %s)", what, measure, grant.lower)
	}
	if grant.upper == nil {
		return fmt.Sprintf("%s (%s above %s)", what, measure, grant.lower)
	}
	return fmt.Sprintf("%s (%s %s to %s)", what, measure, grant.lower, *grant.upper)
}
