package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/korepay/settlement-backend/internal/domain"
	"github.com/korepay/settlement-backend/internal/service"
	"github.com/korepay/settlement-backend/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func setupFranchiseHandler() (*FranchiseHandler, *testutil.MockVendorTransactionRepository) {
	batchRepo := testutil.NewMockSettlementBatchRepository()
	candidateRepo := testutil.NewMockSettlementCandidateRepository()
	txRepo := testutil.NewMockVendorTransactionRepository()
	merchantRepo := testutil.NewMockMerchantRepository()
	franchiseRepo := testutil.NewMockFranchiseRepository()
	pricingRepo := testutil.NewMockPricingRepository()

	batchRepo.CandidateStore = candidateRepo

	franchiseRepo.AddFranchise(&domain.Franchise{ID: 10, Name: "Kore Group", Status: "active"})
	franchiseID := int32(10)
	merchantRepo.AddMerchant(&domain.Merchant{ID: 1, FranchiseID: &franchiseID, Name: "Branch A", Status: "active"})
	merchantRepo.AddMerchant(&domain.Merchant{ID: 3, Name: "Independent", Status: "active"})
	merchantRepo.AddTerminal(&domain.Terminal{ID: 1, MerchantID: 1, ProductID: 1, MID: "MID-A", TID: "TID-A"})

	candidateService := service.NewCandidateService(merchantRepo, txRepo)
	batchService := service.NewBatchService(batchRepo, candidateRepo, txRepo, merchantRepo, franchiseRepo, candidateService)
	franchiseService := service.NewFranchiseService(franchiseRepo, merchantRepo, batchRepo, candidateService, batchService)
	processor := service.NewBatchProcessor(batchRepo, candidateRepo, txRepo, service.NewPricingService(pricingRepo), zerolog.Nop(), service.BatchProcessorConfig{
		Workers:   1,
		QueueSize: 8,
	})

	return NewFranchiseHandler(franchiseService, batchService, processor), txRepo
}

func validBulkRequest() BulkBatchRequest {
	return BulkBatchRequest{
		ProductID:   1,
		CycleKey:    "2024-03-10",
		WindowStart: "2024-03-10T00:00:00Z",
		WindowEnd:   "2024-03-11T00:00:00Z",
	}
}

func TestFranchiseHandler_CreateBatch_Full(t *testing.T) {
	handler, txRepo := setupFranchiseHandler()
	txRepo.AddTransaction(&domain.VendorTransaction{
		ID: 1, MID: "MID-A", Amount: decimal.RequireFromString("100.00"),
		TransactedAt: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	})

	c, rec := newJSONContext(t, http.MethodPost, "/api/v1/franchises/10/bulk-settlement/batches", validBulkRequest(), []string{"id"}, []string{"10"})
	if err := handler.CreateBatch(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var response BatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if response.OwnerType != "franchise" || response.OwnerID != 10 {
		t.Errorf("expected franchise-owned batch, got %s %d", response.OwnerType, response.OwnerID)
	}
	if response.TransactionCount != 1 {
		t.Errorf("expected 1 candidate, got %d", response.TransactionCount)
	}
}

func TestFranchiseHandler_CreateBatch_ForeignMerchant(t *testing.T) {
	handler, _ := setupFranchiseHandler()

	req := validBulkRequest()
	req.MerchantIDs = []int32{3}
	c, rec := newJSONContext(t, http.MethodPost, "/api/v1/franchises/10/bulk-settlement/batches", req, []string{"id"}, []string{"10"})
	if err := handler.CreateBatch(c); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestFranchiseHandler_CreateBatch_MissingProduct(t *testing.T) {
	handler, _ := setupFranchiseHandler()

	req := validBulkRequest()
	req.ProductID = 0
	c, rec := newJSONContext(t, http.MethodPost, "/api/v1/franchises/10/bulk-settlement/batches", req, []string{"id"}, []string{"10"})
	if err := handler.CreateBatch(c); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestFranchiseHandler_CreateBatch_UnknownFranchise(t *testing.T) {
	handler, _ := setupFranchiseHandler()

	c, rec := newJSONContext(t, http.MethodPost, "/api/v1/franchises/99/bulk-settlement/batches", validBulkRequest(), []string{"id"}, []string{"99"})
	if err := handler.CreateBatch(c); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestFranchiseHandler_Process_Accepted(t *testing.T) {
	handler, txRepo := setupFranchiseHandler()
	txRepo.AddTransaction(&domain.VendorTransaction{
		ID: 1, MID: "MID-A", Amount: decimal.RequireFromString("100.00"),
		TransactedAt: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	})

	c, _ := newJSONContext(t, http.MethodPost, "/api/v1/franchises/10/bulk-settlement/batches", validBulkRequest(), []string{"id"}, []string{"10"})
	if err := handler.CreateBatch(c); err != nil {
		t.Fatalf("failed to create batch: %v", err)
	}

	c, rec := newJSONContext(t, http.MethodPost, "/process", nil, []string{"id", "batchId"}, []string{"10", "1"})
	if err := handler.Process(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d: %s", http.StatusAccepted, rec.Code, rec.Body.String())
	}
}
