package service

import (
	"time"

	"github.com/korepay/settlement-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// feeScale is the number of decimal places fees are rounded to. Rounding is
// applied exactly once, when the fee is computed; stored fees are never
// re-derived.
const feeScale = 2

var percentBase = decimal.NewFromInt(100)

// PricingService resolves the fee for a transaction against the active
// pricing scheme of the owner and product.
type PricingService struct {
	pricingRepo domain.PricingRepository
}

// NewPricingService creates a new PricingService
func NewPricingService(pricingRepo domain.PricingRepository) *PricingService {
	return &PricingService{pricingRepo: pricingRepo}
}

// ResolveFee looks up the scheme valid on the transaction date and applies
// the card or channel rate to the amount. A missing scheme or rate is a
// domain error, never a silent zero fee.
func (s *PricingService) ResolveFee(ownerID int32, ownerType domain.OwnerType, productID int32, cardType, channel string, amount decimal.Decimal, onDate time.Time) (decimal.Decimal, error) {
	scheme, err := s.pricingRepo.GetActiveScheme(ownerID, ownerType, productID, onDate)
	if err != nil {
		return decimal.Zero, err
	}

	if cardType != "" {
		rate, err := s.pricingRepo.GetCardRate(scheme.ID, cardType)
		if err == nil {
			return applyRate(rate.Kind, rate.Rate, amount), nil
		}
		if err != domain.ErrNoRate || channel == "" {
			return decimal.Zero, err
		}
	}

	if channel == "" {
		return decimal.Zero, domain.ErrNoRate
	}

	rate, err := s.pricingRepo.GetChannelRate(scheme.ID, channel)
	if err != nil {
		return decimal.Zero, err
	}
	return applyRate(rate.Kind, rate.Rate, amount), nil
}

// applyRate computes the fee, rounding half-up to feeScale decimals once.
// decimal.Round rounds half away from zero, which equals half-up for the
// non-negative amounts and rates handled here.
func applyRate(kind domain.RateKind, rate, amount decimal.Decimal) decimal.Decimal {
	if kind == domain.RateKindFlat {
		return rate.Round(feeScale)
	}
	return amount.Mul(rate).Div(percentBase).Round(feeScale)
}
