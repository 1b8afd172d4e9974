package service

import (
	"time"

	"github.com/korepay/settlement-backend/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// FranchiseService builds franchise-owned settlement batches by fanning out
// candidate selection across the franchise's merchants. The resulting batch
// settles into the franchise wallet; candidates keep their merchant
// attribution for reporting.
type FranchiseService struct {
	franchiseRepo    domain.FranchiseRepository
	merchantRepo     domain.MerchantRepository
	batchRepo        domain.SettlementBatchRepository
	candidateService *CandidateService
	batchService     *BatchService
}

// NewFranchiseService creates a new FranchiseService
func NewFranchiseService(
	franchiseRepo domain.FranchiseRepository,
	merchantRepo domain.MerchantRepository,
	batchRepo domain.SettlementBatchRepository,
	candidateService *CandidateService,
	batchService *BatchService,
) *FranchiseService {
	return &FranchiseService{
		franchiseRepo:    franchiseRepo,
		merchantRepo:     merchantRepo,
		batchRepo:        batchRepo,
		candidateService: candidateService,
		batchService:     batchService,
	}
}

// CreateFullBatch builds a franchise batch over every merchant of the
// franchise for the given product and window.
func (s *FranchiseService) CreateFullBatch(franchiseID, productID int32, cycleKey, createdBy string, windowStart, windowEnd time.Time) (*domain.SettlementBatch, error) {
	merchants, err := s.merchantRepo.ListByFranchise(franchiseID)
	if err != nil {
		return nil, err
	}
	return s.createBatch(franchiseID, productID, cycleKey, createdBy, windowStart, windowEnd, merchants)
}

// CreateSelectiveBatch builds a franchise batch over an explicit merchant
// subset. Every merchant must belong to the franchise.
func (s *FranchiseService) CreateSelectiveBatch(franchiseID, productID int32, merchantIDs []int32, cycleKey, createdBy string, windowStart, windowEnd time.Time) (*domain.SettlementBatch, error) {
	if len(merchantIDs) == 0 {
		return nil, domain.ErrEmptySelection
	}

	merchants := make([]*domain.Merchant, 0, len(merchantIDs))
	for _, id := range merchantIDs {
		merchant, err := s.merchantRepo.GetByID(id)
		if err != nil {
			return nil, err
		}
		if merchant.FranchiseID == nil || *merchant.FranchiseID != franchiseID {
			return nil, domain.ErrMerchantNotInFranchise
		}
		merchants = append(merchants, merchant)
	}

	return s.createBatch(franchiseID, productID, cycleKey, createdBy, windowStart, windowEnd, merchants)
}

// createBatch gets or creates the franchise's active batch for the cycle and,
// when it is still OPEN, replaces its candidate set with the selection across
// the given merchants. A merchant whose selection fails is logged and skipped
// so one misconfigured merchant does not block the rest of the franchise.
func (s *FranchiseService) createBatch(franchiseID, productID int32, cycleKey, createdBy string, windowStart, windowEnd time.Time, merchants []*domain.Merchant) (*domain.SettlementBatch, error) {
	if _, err := s.franchiseRepo.GetByID(franchiseID); err != nil {
		return nil, err
	}

	pid := productID
	batch, err := s.batchService.GetOrCreateActiveBatch(franchiseID, domain.OwnerTypeFranchise, &pid, cycleKey, createdBy, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	if batch.Status != domain.BatchStatusOpen {
		// Already processing for this cycle; return it untouched.
		return batch, nil
	}

	var candidates []*domain.SettlementCandidate
	gross := decimal.Zero
	for _, merchant := range merchants {
		transactions, err := s.candidateService.SelectCandidates(merchant.ID, &pid, windowStart, windowEnd)
		if err != nil {
			log.Warn().
				Err(err).
				Int32("franchise_id", franchiseID).
				Int32("merchant_id", merchant.ID).
				Msg("Skipping merchant during franchise candidate selection")
			continue
		}
		for _, txn := range transactions {
			candidates = append(candidates, &domain.SettlementCandidate{
				BatchID:       batch.ID,
				TransactionID: txn.ID,
				MerchantID:    merchant.ID,
				Amount:        txn.Amount,
				Status:        domain.CandidateStatusSelected,
			})
			gross = gross.Add(txn.Amount)
		}
	}

	totals := domain.BatchTotals{
		TransactionCount: int32(len(candidates)),
		GrossAmount:      gross,
		FeeAmount:        decimal.Zero,
		NetAmount:        gross,
	}

	if err := s.batchRepo.ReplaceCandidates(batch.ID, candidates, totals); err != nil {
		return nil, err
	}

	log.Info().
		Int32("batch_id", batch.ID).
		Int32("franchise_id", franchiseID).
		Int("merchants", len(merchants)).
		Int("candidates", len(candidates)).
		Msg("Built franchise settlement batch")

	return s.batchRepo.GetByID(batch.ID)
}
