package service

import (
	"time"

	"github.com/korepay/settlement-backend/internal/domain"
)

// CandidateService selects unsettled vendor transactions for a merchant's
// terminals within a time window. Selection is read-only; nothing is marked
// until the batch processor runs.
type CandidateService struct {
	merchantRepo domain.MerchantRepository
	txRepo       domain.VendorTransactionRepository
}

// NewCandidateService creates a new CandidateService
func NewCandidateService(merchantRepo domain.MerchantRepository, txRepo domain.VendorTransactionRepository) *CandidateService {
	return &CandidateService{
		merchantRepo: merchantRepo,
		txRepo:       txRepo,
	}
}

// SelectCandidates returns the merchant's unsettled transactions in
// [windowStart, windowEnd). An empty result is valid; an unknown merchant or
// a merchant without terminals is an error.
func (s *CandidateService) SelectCandidates(merchantID int32, productID *int32, windowStart, windowEnd time.Time) ([]*domain.VendorTransaction, error) {
	if !windowStart.Before(windowEnd) {
		return nil, domain.ErrInvalidWindow
	}

	if _, err := s.merchantRepo.GetByID(merchantID); err != nil {
		return nil, err
	}

	var (
		terminals []*domain.Terminal
		err       error
	)
	if productID != nil {
		terminals, err = s.merchantRepo.ListTerminalsByProduct(merchantID, *productID)
	} else {
		terminals, err = s.merchantRepo.ListTerminals(merchantID)
	}
	if err != nil {
		return nil, err
	}
	if len(terminals) == 0 {
		return nil, domain.ErrNoTerminals
	}

	mids := make([]string, 0, len(terminals))
	tids := make([]string, 0, len(terminals))
	seenMID := make(map[string]bool)
	seenTID := make(map[string]bool)
	for _, t := range terminals {
		if t.MID != "" && !seenMID[t.MID] {
			seenMID[t.MID] = true
			mids = append(mids, t.MID)
		}
		if t.TID != "" && !seenTID[t.TID] {
			seenTID[t.TID] = true
			tids = append(tids, t.TID)
		}
	}

	return s.txRepo.ListUnsettled(mids, tids, windowStart, windowEnd)
}
