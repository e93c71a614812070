package pricing

import (
	"github.com/shopspring/decimal"

	"comic-price-lab/internal/domain"
)

// Adjuster corrects the systematic bias between asking prices and realized
// prices. It is pure and applied exactly once per record.
type Adjuster struct {
	factor decimal.Decimal
}

// NewAdjuster creates an adjuster with the given buy-it-now discount factor.
// The factor applies to asking prices (buy-it-now / best-offer listings that
// have not sold), which systematically overstate market value.
func NewAdjuster(binDiscountFactor float64) *Adjuster {
	return &Adjuster{factor: decimal.NewFromFloat(binDiscountFactor)}
}

// Adjustment is the outcome of adjusting one price.
type Adjustment struct {
	PriceMinor int64 // adjusted price, minor units
	Discounted bool  // the asking-price discount was applied
	Penalized  bool  // unknown sale type, caller lowers confidence
}

// Adjust maps (sale type, status, price) to an adjusted price:
//
//	auction                  -> unchanged (market-clearing price)
//	buy-it-now/best-offer    -> unchanged when sold, discounted otherwise
//	private-sale             -> unchanged (excluded from bias correction)
//	unknown                  -> unchanged, confidence penalty
//
// Discounting multiplies the minor-unit price by the configured factor and
// rounds half away from zero, so the result is identical across runs and
// platforms. The adjusted price is never negative for non-negative input.
func (a *Adjuster) Adjust(saleType domain.SaleType, status domain.SaleStatus, priceMinor int64) Adjustment {
	switch saleType {
	case domain.SaleTypeBuyItNow, domain.SaleTypeBestOffer:
		if status == domain.SaleStatusSold {
			return Adjustment{PriceMinor: priceMinor}
		}
		adjusted := decimal.NewFromInt(priceMinor).Mul(a.factor).Round(0).IntPart()
		return Adjustment{PriceMinor: adjusted, Discounted: true}
	case domain.SaleTypeUnknown:
		return Adjustment{PriceMinor: priceMinor, Penalized: true}
	default:
		// AUCTION and PRIVATE_SALE carry the observed price through.
		return Adjustment{PriceMinor: priceMinor}
	}
}
