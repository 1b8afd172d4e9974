package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OwnerType string

const (
	OwnerTypeMerchant  OwnerType = "merchant"
	OwnerTypeFranchise OwnerType = "franchise"
	OwnerTypePartner   OwnerType = "partner"
)

type BatchStatus string

const (
	BatchStatusOpen       BatchStatus = "OPEN"
	BatchStatusProcessing BatchStatus = "PROCESSING"
	BatchStatusCompleted  BatchStatus = "COMPLETED"
	BatchStatusFailed     BatchStatus = "FAILED"
)

type CandidateStatus string

const (
	CandidateStatusSelected CandidateStatus = "SELECTED"
	CandidateStatusSettled  CandidateStatus = "SETTLED"
	CandidateStatusFailed   CandidateStatus = "FAILED"
)

// BatchTotals holds the aggregated money figures for a batch. Before
// processing the fee is a zero placeholder and net equals gross; after
// processing the totals are recomputed from settled candidate rows.
type BatchTotals struct {
	TransactionCount int32           `json:"transactionCount"`
	GrossAmount      decimal.Decimal `json:"grossAmount"`
	FeeAmount        decimal.Decimal `json:"feeAmount"`
	NetAmount        decimal.Decimal `json:"netAmount"`
}

// SettlementBatch is the unit of settlement work for one owner and cycle.
// At most one batch per (owner, cycleKey) may be OPEN or PROCESSING at a time.
type SettlementBatch struct {
	ID          int32       `json:"id"`
	BatchRef    uuid.UUID   `json:"batchRef"`
	OwnerID     int32       `json:"ownerId"`
	OwnerType   OwnerType   `json:"ownerType"`
	ProductID   *int32      `json:"productId,omitempty"`
	CycleKey    string      `json:"cycleKey"`
	WindowStart time.Time   `json:"windowStart"`
	WindowEnd   time.Time   `json:"windowEnd"`
	Status      BatchStatus `json:"status"`
	BatchTotals
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SettlementCandidate joins a batch to a vendor transaction. MerchantID
// attributes the candidate to a merchant for franchise batches; for merchant
// batches it equals the batch owner.
type SettlementCandidate struct {
	ID            int32           `json:"id"`
	BatchID       int32           `json:"batchId"`
	TransactionID int32           `json:"transactionId"`
	MerchantID    int32           `json:"merchantId"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	Net           decimal.Decimal `json:"net"`
	Status        CandidateStatus `json:"status"`
	FailureReason *string         `json:"failureReason,omitempty"`
	SettledAt     *time.Time      `json:"settledAt,omitempty"`
}

// BatchProgress is the poll shape for asynchronous processing.
type BatchProgress struct {
	Total   int32 `json:"total"`
	Settled int32 `json:"settled"`
	Failed  int32 `json:"failed"`
	Pending int32 `json:"pending"`
}

// SettlementExecution carries everything needed to settle one candidate in a
// single unit of work: flip the transaction's settled flag, credit the wallet
// with the net amount under a row lock, and mark the candidate settled.
type SettlementExecution struct {
	CandidateID   int32
	BatchID       int32
	TransactionID int32
	OwnerID       int32
	OwnerType     OwnerType
	Fee           decimal.Decimal
	Net           decimal.Decimal
	SettledAt     time.Time
}

type SettlementBatchRepository interface {
	// GetOrCreateActive returns the existing OPEN/PROCESSING batch for the
	// owner and cycle key, or persists the given batch. The second return
	// value reports whether a new row was created. Concurrent callers for the
	// same cycle must all receive the same row.
	GetOrCreateActive(batch *SettlementBatch) (*SettlementBatch, bool, error)
	GetByID(id int32) (*SettlementBatch, error)
	// UpdateStatus transitions the batch from one status to another. It
	// returns ErrBatchStatusConflict when the row is not in the expected
	// from status, making double-runs detectable.
	UpdateStatus(id int32, from, to BatchStatus) error
	UpdateTotals(id int32, totals BatchTotals) error
	// ReplaceCandidates atomically swaps the batch's candidate set and
	// persists provisional totals. Fails with ErrBatchNotOpen unless the
	// batch is OPEN.
	ReplaceCandidates(batchID int32, candidates []*SettlementCandidate, totals BatchTotals) error
}

type SettlementCandidateRepository interface {
	ListByBatch(batchID int32) ([]*SettlementCandidate, error)
	// ListSelected returns SELECTED candidates in ascending id order so
	// re-runs process in a stable, reproducible order.
	ListSelected(batchID int32) ([]*SettlementCandidate, error)
	MarkFailed(id int32, reason string) error
	// ResetFailed flips all FAILED candidates of the batch back to SELECTED
	// and returns how many were reset.
	ResetFailed(batchID int32) (int64, error)
	// Settle performs the candidate's settlement atomically. It fails with
	// ErrAlreadySettled when the underlying transaction was settled by
	// another batch in the meantime.
	Settle(exec SettlementExecution) error
	Progress(batchID int32) (*BatchProgress, error)
	// TotalsFromSettled recomputes batch totals from settled candidate rows.
	TotalsFromSettled(batchID int32) (*BatchTotals, error)
}
