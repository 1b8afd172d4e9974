package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// VendorTransaction is a captured payment event received from an external
// payment vendor. It is created by ingestion and only ever mutated here by
// the batch processor, which flips Settled exactly once.
type VendorTransaction struct {
	ID                int32           `json:"id"`
	VendorRef         string          `json:"vendorRef"`
	MID               string          `json:"mid"`
	TID               string          `json:"tid"`
	Amount            decimal.Decimal `json:"amount"`
	CardType          string          `json:"cardType,omitempty"`
	Channel           string          `json:"channel,omitempty"`
	TransactedAt      time.Time       `json:"transactedAt"`
	Status            string          `json:"status"`
	Settled           bool            `json:"settled"`
	SettledAt         *time.Time      `json:"settledAt,omitempty"`
	SettlementBatchID *int32          `json:"settlementBatchId,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

type VendorTransactionRepository interface {
	GetByIDs(ids []int32) ([]*VendorTransaction, error)
	// ListUnsettled returns unsettled transactions whose MID or TID is in the
	// given terminal sets and whose transaction time falls in [start, end).
	ListUnsettled(mids, tids []string, windowStart, windowEnd time.Time) ([]*VendorTransaction, error)
}
