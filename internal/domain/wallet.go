package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletBalance holds the balance fields shared by every owner type's wallet.
// It is embedded rather than inherited: only field reuse was ever intended.
type WalletBalance struct {
	AvailableBalance  decimal.Decimal `json:"availableBalance"`
	CutOfAmount       decimal.Decimal `json:"cutOfAmount"`
	LastUpdatedAmount decimal.Decimal `json:"lastUpdatedAmount"`
	LastUpdatedAt     *time.Time      `json:"lastUpdatedAt,omitempty"`
	TotalCash         decimal.Decimal `json:"totalCash"`
	UsedCash          decimal.Decimal `json:"usedCash"`
}

// Wallet is the per-owner balance store. Balance fields are mutated only via
// WalletRepository.ApplyDelta, never by direct assignment elsewhere.
type Wallet struct {
	ID        int32     `json:"id"`
	OwnerID   int32     `json:"ownerId"`
	OwnerType OwnerType `json:"ownerType"`
	WalletBalance
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type WalletRepository interface {
	GetByOwner(ownerID int32, ownerType OwnerType) (*Wallet, error)
	// ApplyDelta adds delta (negative for debits) to the wallet's available
	// balance as a locked read-modify-write. Debits that would overdraw fail
	// with ErrInsufficientBalance. LastUpdatedAmount/LastUpdatedAt are set on
	// every successful mutation.
	ApplyDelta(ownerID int32, ownerType OwnerType, delta decimal.Decimal, reason string) (*Wallet, error)
}
