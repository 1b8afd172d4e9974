package service

import (
	"errors"
	"testing"
	"time"

	"github.com/korepay/settlement-backend/internal/domain"
	"github.com/korepay/settlement-backend/internal/testutil"
	"github.com/shopspring/decimal"
)

type franchiseFixture struct {
	service       *FranchiseService
	batchRepo     *testutil.MockSettlementBatchRepository
	candidateRepo *testutil.MockSettlementCandidateRepository
	txRepo        *testutil.MockVendorTransactionRepository
	merchantRepo  *testutil.MockMerchantRepository
	franchiseRepo *testutil.MockFranchiseRepository
}

func setupFranchiseService() *franchiseFixture {
	batchRepo := testutil.NewMockSettlementBatchRepository()
	candidateRepo := testutil.NewMockSettlementCandidateRepository()
	txRepo := testutil.NewMockVendorTransactionRepository()
	merchantRepo := testutil.NewMockMerchantRepository()
	franchiseRepo := testutil.NewMockFranchiseRepository()

	batchRepo.CandidateStore = candidateRepo

	franchiseRepo.AddFranchise(&domain.Franchise{ID: 10, Name: "Kore Group", Status: "active"})

	franchiseID := int32(10)
	merchantRepo.AddMerchant(&domain.Merchant{ID: 1, FranchiseID: &franchiseID, Name: "Branch A", Status: "active"})
	merchantRepo.AddMerchant(&domain.Merchant{ID: 2, FranchiseID: &franchiseID, Name: "Branch B", Status: "active"})
	merchantRepo.AddMerchant(&domain.Merchant{ID: 3, Name: "Independent", Status: "active"})

	merchantRepo.AddTerminal(&domain.Terminal{ID: 1, MerchantID: 1, ProductID: 1, MID: "MID-A", TID: "TID-A"})
	merchantRepo.AddTerminal(&domain.Terminal{ID: 2, MerchantID: 2, ProductID: 1, MID: "MID-B", TID: "TID-B"})

	candidateService := NewCandidateService(merchantRepo, txRepo)
	batchService := NewBatchService(batchRepo, candidateRepo, txRepo, merchantRepo, franchiseRepo, candidateService)
	service := NewFranchiseService(franchiseRepo, merchantRepo, batchRepo, candidateService, batchService)

	return &franchiseFixture{
		service:       service,
		batchRepo:     batchRepo,
		candidateRepo: candidateRepo,
		txRepo:        txRepo,
		merchantRepo:  merchantRepo,
		franchiseRepo: franchiseRepo,
	}
}

func (f *franchiseFixture) addTransaction(id int32, mid, amount string) {
	f.txRepo.AddTransaction(&domain.VendorTransaction{
		ID:           id,
		MID:          mid,
		Amount:       decimal.RequireFromString(amount),
		TransactedAt: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	})
}

var (
	franchiseWindowStart = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	franchiseWindowEnd   = time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
)

func TestFranchiseService_CreateFullBatch(t *testing.T) {
	f := setupFranchiseService()
	f.addTransaction(1, "MID-A", "100.00")
	f.addTransaction(2, "MID-B", "200.00")
	f.addTransaction(3, "MID-B", "50.00")

	batch, err := f.service.CreateFullBatch(10, 1, "2024-03-10", "ops@example.com", franchiseWindowStart, franchiseWindowEnd)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if batch.OwnerType != domain.OwnerTypeFranchise || batch.OwnerID != 10 {
		t.Errorf("expected franchise-owned batch, got %s %d", batch.OwnerType, batch.OwnerID)
	}
	if batch.TransactionCount != 3 {
		t.Errorf("expected 3 candidates, got %d", batch.TransactionCount)
	}
	if !batch.GrossAmount.Equal(decimal.RequireFromString("350.00")) {
		t.Errorf("expected gross 350.00, got %s", batch.GrossAmount)
	}

	// Candidates keep their merchant attribution
	candidates, err := f.candidateRepo.ListByBatch(batch.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	byMerchant := make(map[int32]int)
	for _, c := range candidates {
		byMerchant[c.MerchantID]++
	}
	if byMerchant[1] != 1 || byMerchant[2] != 2 {
		t.Errorf("expected attribution {1:1, 2:2}, got %v", byMerchant)
	}
}

func TestFranchiseService_CreateSelectiveBatch(t *testing.T) {
	f := setupFranchiseService()
	f.addTransaction(1, "MID-A", "100.00")
	f.addTransaction(2, "MID-B", "200.00")

	batch, err := f.service.CreateSelectiveBatch(10, 1, []int32{2}, "2024-03-10", "ops@example.com", franchiseWindowStart, franchiseWindowEnd)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if batch.TransactionCount != 1 {
		t.Errorf("expected 1 candidate, got %d", batch.TransactionCount)
	}
	if !batch.GrossAmount.Equal(decimal.RequireFromString("200.00")) {
		t.Errorf("expected gross 200.00, got %s", batch.GrossAmount)
	}
}

func TestFranchiseService_CreateSelectiveBatch_RejectsForeignMerchant(t *testing.T) {
	f := setupFranchiseService()

	_, err := f.service.CreateSelectiveBatch(10, 1, []int32{1, 3}, "2024-03-10", "ops", franchiseWindowStart, franchiseWindowEnd)
	if !errors.Is(err, domain.ErrMerchantNotInFranchise) {
		t.Errorf("expected ErrMerchantNotInFranchise, got %v", err)
	}
}

func TestFranchiseService_CreateSelectiveBatch_EmptySelection(t *testing.T) {
	f := setupFranchiseService()

	_, err := f.service.CreateSelectiveBatch(10, 1, nil, "2024-03-10", "ops", franchiseWindowStart, franchiseWindowEnd)
	if !errors.Is(err, domain.ErrEmptySelection) {
		t.Errorf("expected ErrEmptySelection, got %v", err)
	}
}

func TestFranchiseService_CreateFullBatch_UnknownFranchise(t *testing.T) {
	f := setupFranchiseService()

	_, err := f.service.CreateFullBatch(99, 1, "2024-03-10", "ops", franchiseWindowStart, franchiseWindowEnd)
	if !errors.Is(err, domain.ErrFranchiseNotFound) {
		t.Errorf("expected ErrFranchiseNotFound, got %v", err)
	}
}

func TestFranchiseService_CreateFullBatch_SkipsBrokenMerchant(t *testing.T) {
	f := setupFranchiseService()
	f.addTransaction(1, "MID-A", "100.00")

	// Branch C has no terminals; its selection fails and is skipped
	franchiseID := int32(10)
	f.merchantRepo.AddMerchant(&domain.Merchant{ID: 4, FranchiseID: &franchiseID, Name: "Branch C", Status: "active"})

	batch, err := f.service.CreateFullBatch(10, 1, "2024-03-10", "ops@example.com", franchiseWindowStart, franchiseWindowEnd)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if batch.TransactionCount != 1 {
		t.Errorf("expected 1 candidate from the healthy merchants, got %d", batch.TransactionCount)
	}
}

func TestFranchiseService_CreateFullBatch_ReturnsProcessingBatchUntouched(t *testing.T) {
	f := setupFranchiseService()
	f.addTransaction(1, "MID-A", "100.00")

	batch, err := f.service.CreateFullBatch(10, 1, "2024-03-10", "ops@example.com", franchiseWindowStart, franchiseWindowEnd)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := f.batchRepo.UpdateStatus(batch.ID, domain.BatchStatusOpen, domain.BatchStatusProcessing); err != nil {
		t.Fatalf("failed to transition batch: %v", err)
	}

	f.addTransaction(2, "MID-B", "999.99")
	again, err := f.service.CreateFullBatch(10, 1, "2024-03-10", "ops@example.com", franchiseWindowStart, franchiseWindowEnd)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if again.ID != batch.ID {
		t.Errorf("expected the in-flight batch %d, got %d", batch.ID, again.ID)
	}
	if again.TransactionCount != 1 {
		t.Errorf("expected candidate set untouched, got %d", again.TransactionCount)
	}
}
