package promotions

import (
	"sort"

	"github.com/shopspring/decimal"
)

// itemRow is the mutable state of one cart line during a run. Rows live in a
// slice parallel to the cart items and are only touched through the context.
type itemRow struct {
	original          decimal.Decimal
	remainingPrice    decimal.Decimal
	remainingQuantity int
	discountApplied   decimal.Decimal
}

// ItemContext is a read-only view of one cart line and its run state.
type ItemContext struct {
	Index             int
	Item              CartItem
	OriginalLineTotal decimal.Decimal
	RemainingPrice    decimal.Decimal
	RemainingQuantity int
	DiscountApplied   decimal.Decimal
}

// AppliedPromotion is one entry of the audit log.
type AppliedPromotion struct {
	PromotionCode string
	Description   string
	Amount        decimal.Decimal
}

// FreeItemGrant accumulates the free units granted for a product.
type FreeItemGrant struct {
	ProductID      string
	Quantity       int
	PromotionCodes []string
}

// PromotionContext holds the state of a single pricing run. It is created per
// call and never shared between runs.
type PromotionContext struct {
	cart             Cart
	rows             []itemRow
	usedGroups       map[string]struct{}
	exclusiveApplied bool
	appliedLog       []AppliedPromotion
	appliedCodes     []string
	freeItems        map[string]*FreeItemGrant
}

// NewPromotionContext seeds one row per cart item at its full line total.
func NewPromotionContext(cart Cart) *PromotionContext {
	items := make([]CartItem, len(cart.Items))
	copy(items, cart.Items)

	rows := make([]itemRow, len(items))
	for i, item := range items {
		total := item.LineTotal()
		rows[i] = itemRow{
			original:          total,
			remainingPrice:    total,
			remainingQuantity: item.Quantity,
			discountApplied:   decimal.Zero,
		}
	}

	return &PromotionContext{
		cart:       Cart{CustomerID: cart.CustomerID, Items: items},
		rows:       rows,
		usedGroups: map[string]struct{}{},
		freeItems:  map[string]*FreeItemGrant{},
	}
}

// Cart returns the snapshot the context was built from.
func (pc *PromotionContext) Cart() Cart {
	return pc.cart
}

// Len returns the number of cart lines.
func (pc *PromotionContext) Len() int {
	return len(pc.rows)
}

// Item returns the view of line i.
func (pc *PromotionContext) Item(i int) ItemContext {
	row := pc.rows[i]
	return ItemContext{
		Index:             i,
		Item:              pc.cart.Items[i],
		OriginalLineTotal: row.original,
		RemainingPrice:    row.remainingPrice,
		RemainingQuantity: row.remainingQuantity,
		DiscountApplied:   row.discountApplied,
	}
}

// Items returns views of every line in cart order.
func (pc *PromotionContext) Items() []ItemContext {
	out := make([]ItemContext, len(pc.rows))
	for i := range pc.rows {
		out[i] = pc.Item(i)
	}
	return out
}

// OriginalTotal is the cart total before any promotion.
func (pc *PromotionContext) OriginalTotal() decimal.Decimal {
	total := decimal.Zero
	for _, row := range pc.rows {
		total = total.Add(row.original)
	}
	return total
}

// DiscountTotal is the sum of discounts applied so far.
func (pc *PromotionContext) DiscountTotal() decimal.Decimal {
	total := decimal.Zero
	for _, row := range pc.rows {
		total = total.Add(row.discountApplied)
	}
	return total
}

// FinalTotal is the cart total after the discounts applied so far.
func (pc *PromotionContext) FinalTotal() decimal.Decimal {
	total := decimal.Zero
	for _, row := range pc.rows {
		total = total.Add(row.remainingPrice)
	}
	return total
}

// AppliedPromotions returns a copy of the audit log.
func (pc *PromotionContext) AppliedPromotions() []AppliedPromotion {
	out := make([]AppliedPromotion, len(pc.appliedLog))
	copy(out, pc.appliedLog)
	return out
}

// AppliedPromotionCodes lists the promotions that applied, in order.
func (pc *PromotionContext) AppliedPromotionCodes() []string {
	out := make([]string, len(pc.appliedCodes))
	copy(out, pc.appliedCodes)
	return out
}

// FreeItems returns the free-item grants ordered by product id.
func (pc *PromotionContext) FreeItems() []FreeItemGrant {
	out := make([]FreeItemGrant, 0, len(pc.freeItems))
	for _, grant := range pc.freeItems {
		codes := make([]string, len(grant.PromotionCodes))
		copy(codes, grant.PromotionCodes)
		out = append(out, FreeItemGrant{
			ProductID:      grant.ProductID,
			Quantity:       grant.Quantity,
			PromotionCodes: codes,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// ExclusiveApplied reports whether an exclusive promotion has applied.
func (pc *PromotionContext) ExclusiveApplied() bool {
	return pc.exclusiveApplied
}

// UsedCombinabilityGroups returns the groups consumed so far, sorted.
func (pc *PromotionContext) UsedCombinabilityGroups() []string {
	out := make([]string, 0, len(pc.usedGroups))
	for group := range pc.usedGroups {
		out = append(out, group)
	}
	sort.Strings(out)
	return out
}

func (pc *PromotionContext) remainingPrices(indexes []int) []decimal.Decimal {
	out := make([]decimal.Decimal, len(indexes))
	for i, idx := range indexes {
		out[i] = pc.rows[idx].remainingPrice
	}
	return out
}

func (pc *PromotionContext) remainingTotal(indexes []int) decimal.Decimal {
	total := decimal.Zero
	for _, idx := range indexes {
		total = total.Add(pc.rows[idx].remainingPrice)
	}
	return total
}

// applyDiscount moves amount from the remaining price to the applied discount
// of line i, never past zero. It returns the amount actually applied.
func (pc *PromotionContext) applyDiscount(i int, amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	row := &pc.rows[i]
	if amount.GreaterThan(row.remainingPrice) {
		amount = row.remainingPrice
	}
	row.remainingPrice = row.remainingPrice.Sub(amount)
	row.discountApplied = row.discountApplied.Add(amount)
	return amount
}

// distribute spreads amount over the given lines proportionally to their
// remaining price and returns the total applied.
func (pc *PromotionContext) distribute(indexes []int, amount decimal.Decimal) decimal.Decimal {
	allocations := allocateProportionally(pc.remainingPrices(indexes), amount)
	applied := decimal.Zero
	for i, idx := range indexes {
		applied = applied.Add(pc.applyDiscount(idx, allocations[i]))
	}
	return applied
}

// consumeQuantity lowers the remaining reward quantity of line i by at most
// units and returns how many units were consumed.
func (pc *PromotionContext) consumeQuantity(i, units int) int {
	if units <= 0 {
		return 0
	}
	row := &pc.rows[i]
	if units > row.remainingQuantity {
		units = row.remainingQuantity
	}
	row.remainingQuantity -= units
	return units
}

func (pc *PromotionContext) grantFreeItems(productID string, units int, promoCode string) {
	grant, ok := pc.freeItems[productID]
	if !ok {
		grant = &FreeItemGrant{ProductID: productID}
		pc.freeItems[productID] = grant
	}
	grant.Quantity += units
	for _, code := range grant.PromotionCodes {
		if code == promoCode {
			return
		}
	}
	grant.PromotionCodes = append(grant.PromotionCodes, promoCode)
}

func (pc *PromotionContext) logApplied(entry AppliedPromotion) {
	pc.appliedLog = append(pc.appliedLog, entry)
}

// blockedBy returns why promo cannot join the promotions already applied, or
// an empty string when it can.
func (pc *PromotionContext) blockedBy(promo *Promotion) string {
	if pc.exclusiveApplied {
		return outcomeExclusiveApplied
	}
	if promo.Exclusive && len(pc.appliedLog) > 0 {
		return outcomeExclusiveBlocked
	}
	if promo.CombinabilityGroup != "" {
		if _, used := pc.usedGroups[promo.CombinabilityGroup]; used {
			return outcomeGroupUsed
		}
	}
	return ""
}

func (pc *PromotionContext) markApplied(promo *Promotion) {
	pc.appliedCodes = append(pc.appliedCodes, promo.Code)
	if promo.Exclusive {
		pc.exclusiveApplied = true
	}
	if promo.CombinabilityGroup != "" {
		pc.usedGroups[promo.CombinabilityGroup] = struct{}{}
	}
}

func (pc *PromotionContext) facts() Facts {
	facts := Facts{
		CustomerID:    pc.cart.CustomerID,
		Subtotal:      pc.OriginalTotal(),
		CurrentTotal:  pc.FinalTotal(),
		ItemCount:     len(pc.cart.Items),
		ProductIDs:    make([]string, 0, len(pc.cart.Items)),
		FamilyIDs:     []string{},
		TotalQuantity: 0,
	}
	seenFamily := map[string]struct{}{}
	for _, item := range pc.cart.Items {
		facts.TotalQuantity += item.Quantity
		facts.ProductIDs = append(facts.ProductIDs, item.ProductID)
		if item.FamilyID == "" {
			continue
		}
		if _, ok := seenFamily[item.FamilyID]; ok {
			continue
		}
		seenFamily[item.FamilyID] = struct{}{}
		facts.FamilyIDs = append(facts.FamilyIDs, item.FamilyID)
	}
	return facts
}
