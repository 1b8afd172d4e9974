package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/korepay/settlement-backend/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// BatchService owns the settlement batch lifecycle: get-or-create per cycle,
// candidate attachment, and the read surface used by polling clients. Status
// transitions during processing belong to the BatchProcessor.
type BatchService struct {
	batchRepo        domain.SettlementBatchRepository
	candidateRepo    domain.SettlementCandidateRepository
	txRepo           domain.VendorTransactionRepository
	merchantRepo     domain.MerchantRepository
	franchiseRepo    domain.FranchiseRepository
	candidateService *CandidateService
}

// NewBatchService creates a new BatchService
func NewBatchService(
	batchRepo domain.SettlementBatchRepository,
	candidateRepo domain.SettlementCandidateRepository,
	txRepo domain.VendorTransactionRepository,
	merchantRepo domain.MerchantRepository,
	franchiseRepo domain.FranchiseRepository,
	candidateService *CandidateService,
) *BatchService {
	return &BatchService{
		batchRepo:        batchRepo,
		candidateRepo:    candidateRepo,
		txRepo:           txRepo,
		merchantRepo:     merchantRepo,
		franchiseRepo:    franchiseRepo,
		candidateService: candidateService,
	}
}

// GetOrCreateActiveBatch returns the owner's OPEN/PROCESSING batch for the
// cycle key, creating a fresh OPEN batch when none exists. Safe under
// concurrent callers for the same cycle.
func (s *BatchService) GetOrCreateActiveBatch(ownerID int32, ownerType domain.OwnerType, productID *int32, cycleKey, createdBy string, windowStart, windowEnd time.Time) (*domain.SettlementBatch, error) {
	if cycleKey == "" {
		return nil, domain.ErrCycleKeyRequired
	}
	if !windowStart.Before(windowEnd) {
		return nil, domain.ErrInvalidWindow
	}
	if err := s.verifyOwner(ownerID, ownerType); err != nil {
		return nil, err
	}

	batch := &domain.SettlementBatch{
		BatchRef:    uuid.New(),
		OwnerID:     ownerID,
		OwnerType:   ownerType,
		ProductID:   productID,
		CycleKey:    cycleKey,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Status:      domain.BatchStatusOpen,
		CreatedBy:   createdBy,
	}

	result, created, err := s.batchRepo.GetOrCreateActive(batch)
	if err != nil {
		return nil, err
	}
	if created {
		log.Info().
			Int32("batch_id", result.ID).
			Int32("owner_id", ownerID).
			Str("owner_type", string(ownerType)).
			Str("cycle_key", cycleKey).
			Msg("Created settlement batch")
	}
	return result, nil
}

// AttachAllCandidates replaces the batch's candidate set with every eligible
// transaction in the batch window. Merchant batches only; franchise batches
// are populated by the FranchiseService fan-out.
func (s *BatchService) AttachAllCandidates(batchID, ownerID int32, ownerType domain.OwnerType) (*domain.SettlementBatch, error) {
	batch, err := s.ownedBatch(batchID, ownerID, ownerType)
	if err != nil {
		return nil, err
	}
	if batch.Status != domain.BatchStatusOpen {
		return nil, domain.ErrBatchNotOpen
	}

	transactions, err := s.candidateService.SelectCandidates(ownerID, batch.ProductID, batch.WindowStart, batch.WindowEnd)
	if err != nil {
		return nil, err
	}

	return s.replaceCandidates(batch, transactions, ownerID)
}

// UpdateCandidates replaces the batch's candidate set with the caller's
// selection. Disallowed once processing has started.
func (s *BatchService) UpdateCandidates(batchID, ownerID int32, ownerType domain.OwnerType, transactionIDs []int32) (*domain.SettlementBatch, error) {
	if len(transactionIDs) == 0 {
		return nil, domain.ErrEmptySelection
	}

	batch, err := s.ownedBatch(batchID, ownerID, ownerType)
	if err != nil {
		return nil, err
	}
	if batch.Status != domain.BatchStatusOpen {
		return nil, domain.ErrBatchNotOpen
	}

	transactions, err := s.txRepo.GetByIDs(transactionIDs)
	if err != nil {
		return nil, err
	}
	if len(transactions) != len(transactionIDs) {
		return nil, domain.ErrTransactionNotFound
	}
	for _, txn := range transactions {
		if txn.Settled {
			return nil, domain.ErrAlreadySettled
		}
	}

	return s.replaceCandidates(batch, transactions, ownerID)
}

// GetCandidates lists the batch's candidates in processing order
func (s *BatchService) GetCandidates(batchID, ownerID int32, ownerType domain.OwnerType) ([]*domain.SettlementCandidate, error) {
	if _, err := s.ownedBatch(batchID, ownerID, ownerType); err != nil {
		return nil, err
	}
	return s.candidateRepo.ListByBatch(batchID)
}

// GetBatch returns the batch after verifying ownership
func (s *BatchService) GetBatch(batchID, ownerID int32, ownerType domain.OwnerType) (*domain.SettlementBatch, error) {
	return s.ownedBatch(batchID, ownerID, ownerType)
}

// GetProgress returns candidate status counts for the poll endpoint
func (s *BatchService) GetProgress(batchID, ownerID int32, ownerType domain.OwnerType) (*domain.BatchProgress, error) {
	if _, err := s.ownedBatch(batchID, ownerID, ownerType); err != nil {
		return nil, err
	}
	return s.candidateRepo.Progress(batchID)
}

func (s *BatchService) replaceCandidates(batch *domain.SettlementBatch, transactions []*domain.VendorTransaction, merchantID int32) (*domain.SettlementBatch, error) {
	candidates := make([]*domain.SettlementCandidate, len(transactions))
	gross := decimal.Zero
	for i, txn := range transactions {
		candidates[i] = &domain.SettlementCandidate{
			BatchID:       batch.ID,
			TransactionID: txn.ID,
			MerchantID:    merchantID,
			Amount:        txn.Amount,
			Status:        domain.CandidateStatusSelected,
		}
		gross = gross.Add(txn.Amount)
	}

	// Fees are unknown until processing; net provisionally equals gross.
	totals := domain.BatchTotals{
		TransactionCount: int32(len(candidates)),
		GrossAmount:      gross,
		FeeAmount:        decimal.Zero,
		NetAmount:        gross,
	}

	if err := s.batchRepo.ReplaceCandidates(batch.ID, candidates, totals); err != nil {
		return nil, err
	}
	return s.batchRepo.GetByID(batch.ID)
}

func (s *BatchService) ownedBatch(batchID, ownerID int32, ownerType domain.OwnerType) (*domain.SettlementBatch, error) {
	batch, err := s.batchRepo.GetByID(batchID)
	if err != nil {
		return nil, err
	}
	if batch.OwnerID != ownerID || batch.OwnerType != ownerType {
		return nil, domain.ErrBatchOwnerMismatch
	}
	return batch, nil
}

func (s *BatchService) verifyOwner(ownerID int32, ownerType domain.OwnerType) error {
	switch ownerType {
	case domain.OwnerTypeMerchant:
		_, err := s.merchantRepo.GetByID(ownerID)
		return err
	case domain.OwnerTypeFranchise:
		_, err := s.franchiseRepo.GetByID(ownerID)
		return err
	default:
		return nil
	}
}
