package pricing

import (
	"strings"
	"time"

	"github.com/angelmondragon/promoengine/internal/promotions"
	"github.com/shopspring/decimal"
)

// Mode identifies which pricing operation produced a quote.
type Mode string

const (
	ModeQuote           Mode = "quote"
	ModeSimulate        Mode = "simulate"
	ModeBestCombination Mode = "best_combination"
)

// QuoteItem is one requested cart line.
type QuoteItem struct {
	ProductID string
	FamilyID  string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// QuoteInput is the cart snapshot a caller asks to price.
type QuoteInput struct {
	CustomerID string
	Items      []QuoteItem
}

// Quote is the fully priced cart returned to callers and published as an
// audit event.
type Quote struct {
	ID                string             `json:"id"`
	Mode              Mode               `json:"mode"`
	CustomerID        string             `json:"customer_id"`
	OriginalTotal     decimal.Decimal    `json:"original_total"`
	DiscountTotal     decimal.Decimal    `json:"discount_total"`
	FinalTotal        decimal.Decimal    `json:"final_total"`
	Lines             []QuoteLine        `json:"lines"`
	AppliedPromotions []AppliedPromotion `json:"applied_promotions"`
	PromotionCodes    []string           `json:"promotion_codes"`
	FreeItems         []FreeItem         `json:"free_items"`
	CalculatedAt      time.Time          `json:"calculated_at"`
}

// QuoteLine is the priced view of one cart line.
type QuoteLine struct {
	ProductID         string          `json:"product_id"`
	FamilyID          string          `json:"family_id,omitempty"`
	Name              string          `json:"name,omitempty"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	OriginalLineTotal decimal.Decimal `json:"original_line_total"`
	DiscountApplied   decimal.Decimal `json:"discount_applied"`
	FinalLineTotal    decimal.Decimal `json:"final_line_total"`
}

// AppliedPromotion is one audit entry of the run.
type AppliedPromotion struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// FreeItem is a granted free product and the promotions that granted it.
type FreeItem struct {
	ProductID      string   `json:"product_id"`
	Quantity       int      `json:"quantity"`
	PromotionCodes []string `json:"promotion_codes"`
}

// PromotionSummary describes a promotion definition to API clients.
type PromotionSummary struct {
	Code               string     `json:"code"`
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	Priority           int        `json:"priority"`
	Exclusive          bool       `json:"exclusive"`
	CombinabilityGroup string     `json:"combinability_group,omitempty"`
	StartsAt           *time.Time `json:"starts_at,omitempty"`
	EndsAt             *time.Time `json:"ends_at,omitempty"`
	RuleCount          int        `json:"rule_count"`
}

func (in QuoteInput) cart() promotions.Cart {
	items := make([]promotions.CartItem, len(in.Items))
	for i, item := range in.Items {
		items[i] = promotions.CartItem{
			ProductID: strings.TrimSpace(item.ProductID),
			FamilyID:  strings.TrimSpace(item.FamilyID),
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return promotions.Cart{CustomerID: strings.TrimSpace(in.CustomerID), Items: items}
}

func buildQuote(id string, mode Mode, pc *promotions.PromotionContext, at time.Time) Quote {
	cart := pc.Cart()
	quote := Quote{
		ID:                id,
		Mode:              mode,
		CustomerID:        cart.CustomerID,
		OriginalTotal:     pc.OriginalTotal(),
		DiscountTotal:     pc.DiscountTotal(),
		FinalTotal:        pc.FinalTotal(),
		Lines:             make([]QuoteLine, 0, pc.Len()),
		AppliedPromotions: []AppliedPromotion{},
		PromotionCodes:    pc.AppliedPromotionCodes(),
		FreeItems:         []FreeItem{},
		CalculatedAt:      at,
	}
	for _, item := range pc.Items() {
		quote.Lines = append(quote.Lines, QuoteLine{
			ProductID:         item.Item.ProductID,
			FamilyID:          item.Item.FamilyID,
			Name:              item.Item.Name,
			Quantity:          item.Item.Quantity,
			UnitPrice:         item.Item.UnitPrice,
			OriginalLineTotal: item.OriginalLineTotal,
			DiscountApplied:   item.DiscountApplied,
			FinalLineTotal:    item.RemainingPrice,
		})
	}
	for _, entry := range pc.AppliedPromotions() {
		quote.AppliedPromotions = append(quote.AppliedPromotions, AppliedPromotion{
			Code:        entry.PromotionCode,
			Description: entry.Description,
			Amount:      entry.Amount,
		})
	}
	for _, grant := range pc.FreeItems() {
		quote.FreeItems = append(quote.FreeItems, FreeItem{
			ProductID:      grant.ProductID,
			Quantity:       grant.Quantity,
			PromotionCodes: grant.PromotionCodes,
		})
	}
	return quote
}

func summarize(promo promotions.Promotion) PromotionSummary {
	summary := PromotionSummary{
		Code:               promo.Code,
		Name:               promo.Name,
		Description:        promo.Description,
		Priority:           promo.Priority,
		Exclusive:          promo.Exclusive,
		CombinabilityGroup: promo.CombinabilityGroup,
		RuleCount:          len(promo.Rules),
	}
	if !promo.StartsAt.IsZero() {
		starts := promo.StartsAt
		summary.StartsAt = &starts
	}
	if !promo.EndsAt.IsZero() {
		ends := promo.EndsAt
		summary.EndsAt = &ends
	}
	return summary
}
