// Package pricing computes what a game costs right now. Everything here is a
// pure function of its inputs so browse and checkout derive identical prices.
package pricing

import (
	"time"

	"github.com/playvault/storefront/internal/models"
	"github.com/shopspring/decimal"
)

// centPlaces is the currency precision.
const centPlaces = 2

var hundred = decimal.NewFromInt(100)

// Quote is the resolved price of one game.
type Quote struct {
	OriginalPrice   decimal.Decimal
	FinalPrice      decimal.Decimal
	DiscountPercent int // publisher + sale, capped at 100
	IsFree          bool
}

// Resolve stacks the publisher discount and the active sale additively, caps
// the sum at 100 and applies it to the base price.
func Resolve(game *models.Game, sale *models.SaleEvent, now time.Time) Quote {
	if game == nil {
		return Quote{OriginalPrice: decimal.Zero, FinalPrice: decimal.Zero, IsFree: true}
	}
	base := game.BasePrice
	if base.IsNegative() {
		base = decimal.Zero
	}

	total := PublisherDiscount(game, now)
	if sale != nil {
		total += ClampPercent(sale.DiscountPercent)
	}
	if total > 100 {
		total = 100
	}

	final := ApplyPercent(base, total)
	return Quote{
		OriginalPrice:   base.Round(centPlaces),
		FinalPrice:      final,
		DiscountPercent: total,
		IsFree:          !final.IsPositive(),
	}
}

// PublisherDiscount returns the game's own discount, which lapses once its
// flash sale has ended.
func PublisherDiscount(game *models.Game, now time.Time) int {
	if game == nil {
		return 0
	}
	if game.FlashSaleEndsAt != nil && now.After(*game.FlashSaleEndsAt) {
		return 0
	}
	return ClampPercent(game.DiscountPercent)
}

// ApplyVoucher layers a voucher discount multiplicatively on an already
// resolved price. It is not part of the 100 cap used for publisher and sale
// stacking.
func ApplyVoucher(price decimal.Decimal, voucherPercent int) decimal.Decimal {
	return ApplyPercent(price, ClampPercent(voucherPercent))
}

// ApplyPercent returns price*(1-percent/100) rounded half-up to cents and
// floored at zero.
func ApplyPercent(price decimal.Decimal, percent int) decimal.Decimal {
	factor := hundred.Sub(decimal.NewFromInt(int64(ClampPercent(percent)))).Div(hundred)
	return RoundCents(price.Mul(factor))
}

// RoundCents rounds half-up to two decimals and floors at zero. Round is half
// away from zero, which is half-up for the non-negative amounts used here.
func RoundCents(amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	return amount.Round(centPlaces)
}

// ClampPercent bounds a percentage to [0, 100].
func ClampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// PickSale returns the single sale event that applies at now: the highest
// discount among enabled events whose window contains now, ties going to the
// most recently created (then the highest id). Only one sale ever stacks.
func PickSale(events []models.SaleEvent, now time.Time) *models.SaleEvent {
	var best *models.SaleEvent
	for i := range events {
		e := &events[i]
		if !e.Covers(now) {
			continue
		}
		if best == nil || beats(e, best) {
			best = e
		}
	}
	if best == nil {
		return nil
	}
	picked := *best
	return &picked
}

func beats(a, b *models.SaleEvent) bool {
	if a.DiscountPercent != b.DiscountPercent {
		return a.DiscountPercent > b.DiscountPercent
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
