package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RateKind string

const (
	RateKindPercent RateKind = "percent"
	RateKindFlat    RateKind = "flat"
)

// PricingScheme is an effective-dated fee schedule assigned to an owner and
// product. Read-only from the settlement engine's perspective.
type PricingScheme struct {
	ID            int32      `json:"id"`
	OwnerID       int32      `json:"ownerId"`
	OwnerType     OwnerType  `json:"ownerType"`
	ProductID     int32      `json:"productId"`
	EffectiveFrom time.Time  `json:"effectiveFrom"`
	EffectiveTo   *time.Time `json:"effectiveTo,omitempty"`
}

type CardRate struct {
	ID       int32           `json:"id"`
	SchemeID int32           `json:"schemeId"`
	CardType string          `json:"cardType"`
	Kind     RateKind        `json:"kind"`
	Rate     decimal.Decimal `json:"rate"`
}

type ChannelRate struct {
	ID       int32           `json:"id"`
	SchemeID int32           `json:"schemeId"`
	Channel  string          `json:"channel"`
	Kind     RateKind        `json:"kind"`
	Rate     decimal.Decimal `json:"rate"`
}

type PricingRepository interface {
	// GetActiveScheme returns the scheme valid on the given date
	// (effectiveFrom <= date, and date <= effectiveTo when set).
	GetActiveScheme(ownerID int32, ownerType OwnerType, productID int32, onDate time.Time) (*PricingScheme, error)
	GetCardRate(schemeID int32, cardType string) (*CardRate, error)
	GetChannelRate(schemeID int32, channel string) (*ChannelRate, error)
}
