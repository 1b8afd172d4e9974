package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/korepay/settlement-backend/internal/domain"
	"github.com/korepay/settlement-backend/internal/middleware"
	"github.com/korepay/settlement-backend/internal/service"
	"github.com/korepay/settlement-backend/internal/testutil"
	"github.com/korepay/settlement-backend/internal/util"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type handlerFixture struct {
	handler       *SettlementHandler
	batchRepo     *testutil.MockSettlementBatchRepository
	candidateRepo *testutil.MockSettlementCandidateRepository
	txRepo        *testutil.MockVendorTransactionRepository
	merchantRepo  *testutil.MockMerchantRepository
}

func setupSettlementHandler() *handlerFixture {
	batchRepo := testutil.NewMockSettlementBatchRepository()
	candidateRepo := testutil.NewMockSettlementCandidateRepository()
	txRepo := testutil.NewMockVendorTransactionRepository()
	merchantRepo := testutil.NewMockMerchantRepository()
	franchiseRepo := testutil.NewMockFranchiseRepository()
	pricingRepo := testutil.NewMockPricingRepository()

	batchRepo.CandidateStore = candidateRepo

	merchantRepo.AddMerchant(&domain.Merchant{ID: 1, Name: "Corner Cafe", Status: "active"})
	merchantRepo.AddTerminal(&domain.Terminal{ID: 1, MerchantID: 1, ProductID: 1, MID: "MID-1", TID: "TID-1"})

	candidateService := service.NewCandidateService(merchantRepo, txRepo)
	batchService := service.NewBatchService(batchRepo, candidateRepo, txRepo, merchantRepo, franchiseRepo, candidateService)
	processor := service.NewBatchProcessor(batchRepo, candidateRepo, txRepo, service.NewPricingService(pricingRepo), zerolog.Nop(), service.BatchProcessorConfig{
		Workers:   1,
		QueueSize: 8,
	})

	return &handlerFixture{
		handler:       NewSettlementHandler(batchService, processor),
		batchRepo:     batchRepo,
		candidateRepo: candidateRepo,
		txRepo:        txRepo,
		merchantRepo:  merchantRepo,
	}
}

func newJSONContext(t *testing.T, method, path string, body interface{}, paramNames, paramValues []string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	e := echo.New()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames(paramNames...)
	c.SetParamValues(paramValues...)

	ctx := context.WithValue(c.Request().Context(), middleware.SubjectKey, "auth0|operator")
	c.SetRequest(c.Request().WithContext(ctx))

	return c, rec
}

func validBatchRequest() CreateBatchRequest {
	return CreateBatchRequest{
		CycleKey:    "2024-03-10",
		WindowStart: "2024-03-10T00:00:00Z",
		WindowEnd:   "2024-03-11T00:00:00Z",
	}
}

func TestSettlementHandler_CreateBatch_Success(t *testing.T) {
	f := setupSettlementHandler()

	c, rec := newJSONContext(t, http.MethodPost, "/api/v1/merchants/1/settlement/batches", validBatchRequest(), []string{"id"}, []string{"1"})

	if err := f.handler.CreateBatch(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var response BatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if response.Status != string(domain.BatchStatusOpen) {
		t.Errorf("expected OPEN batch, got %s", response.Status)
	}
	if response.CycleKey != "2024-03-10" {
		t.Errorf("expected cycle key 2024-03-10, got %s", response.CycleKey)
	}
	if response.CreatedBy != "auth0|operator" {
		t.Errorf("expected createdBy from token subject, got %s", response.CreatedBy)
	}
}

func TestSettlementHandler_CreateBatch_Idempotent(t *testing.T) {
	f := setupSettlementHandler()

	c1, rec1 := newJSONContext(t, http.MethodPost, "/api/v1/merchants/1/settlement/batches", validBatchRequest(), []string{"id"}, []string{"1"})
	if err := f.handler.CreateBatch(c1); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	var first BatchResponse
	if err := json.Unmarshal(rec1.Body.Bytes(), &first); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	c2, rec2 := newJSONContext(t, http.MethodPost, "/api/v1/merchants/1/settlement/batches", validBatchRequest(), []string{"id"}, []string{"1"})
	if err := f.handler.CreateBatch(c2); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	var second BatchResponse
	if err := json.Unmarshal(rec2.Body.Bytes(), &second); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected same batch for same cycle, got %d and %d", first.ID, second.ID)
	}
}

func TestSettlementHandler_CreateBatch_DefaultWindow(t *testing.T) {
	f := setupSettlementHandler()

	req := validBatchRequest()
	req.WindowStart, req.WindowEnd = "", ""
	wantStart, wantEnd := util.PreviousDayWindow(time.Now())

	c, rec := newJSONContext(t, http.MethodPost, "/api/v1/merchants/1/settlement/batches", req, []string{"id"}, []string{"1"})
	if err := f.handler.CreateBatch(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var response BatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if response.WindowStart != wantStart.Format(time.RFC3339) {
		t.Errorf("expected window start %s, got %s", wantStart.Format(time.RFC3339), response.WindowStart)
	}
	if response.WindowEnd != wantEnd.Format(time.RFC3339) {
		t.Errorf("expected window end %s, got %s", wantEnd.Format(time.RFC3339), response.WindowEnd)
	}
}

func TestSettlementHandler_CreateBatch_Validation(t *testing.T) {
	f := setupSettlementHandler()

	// Missing cycle key
	req := validBatchRequest()
	req.CycleKey = ""
	c, rec := newJSONContext(t, http.MethodPost, "/api/v1/merchants/1/settlement/batches", req, []string{"id"}, []string{"1"})
	if err := f.handler.CreateBatch(c); err != nil {
		t.Fatalf("expected nil error (error in response), got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	// Inverted window
	req = validBatchRequest()
	req.WindowStart, req.WindowEnd = req.WindowEnd, req.WindowStart
	c, rec = newJSONContext(t, http.MethodPost, "/api/v1/merchants/1/settlement/batches", req, []string{"id"}, []string{"1"})
	if err := f.handler.CreateBatch(c); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d for inverted window, got %d", http.StatusBadRequest, rec.Code)
	}

	// Unknown merchant
	c, rec = newJSONContext(t, http.MethodPost, "/api/v1/merchants/42/settlement/batches", validBatchRequest(), []string{"id"}, []string{"42"})
	if err := f.handler.CreateBatch(c); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d for unknown merchant, got %d", http.StatusNotFound, rec.Code)
	}
}

func (f *handlerFixture) createOpenBatch(t *testing.T) BatchResponse {
	t.Helper()
	c, rec := newJSONContext(t, http.MethodPost, "/api/v1/merchants/1/settlement/batches", validBatchRequest(), []string{"id"}, []string{"1"})
	if err := f.handler.CreateBatch(c); err != nil {
		t.Fatalf("failed to create batch: %v", err)
	}
	var response BatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	return response
}

func TestSettlementHandler_UpdateCandidates(t *testing.T) {
	f := setupSettlementHandler()
	batch := f.createOpenBatch(t)

	f.txRepo.AddTransaction(&domain.VendorTransaction{
		ID: 1, MID: "MID-1", Amount: decimal.RequireFromString("55.00"),
		TransactedAt: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
	})

	c, rec := newJSONContext(t, http.MethodPost, "/batches", CandidatesRequest{TransactionIDs: []int32{1}},
		[]string{"id", "batchId"}, []string{"1", "1"})
	if err := f.handler.UpdateCandidates(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var response BatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if response.ID != batch.ID {
		t.Errorf("expected batch %d, got %d", batch.ID, response.ID)
	}
	if response.TransactionCount != 1 || response.GrossAmount != "55.00" {
		t.Errorf("expected 1 candidate totaling 55.00, got %d / %s", response.TransactionCount, response.GrossAmount)
	}
}

func TestSettlementHandler_UpdateCandidates_EmptySelectsAll(t *testing.T) {
	f := setupSettlementHandler()
	f.createOpenBatch(t)

	f.txRepo.AddTransaction(&domain.VendorTransaction{
		ID: 1, MID: "MID-1", Amount: decimal.RequireFromString("10.00"),
		TransactedAt: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
	})
	f.txRepo.AddTransaction(&domain.VendorTransaction{
		ID: 2, MID: "MID-1", Amount: decimal.RequireFromString("20.00"),
		TransactedAt: time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC),
	})

	c, rec := newJSONContext(t, http.MethodPost, "/batches", CandidatesRequest{},
		[]string{"id", "batchId"}, []string{"1", "1"})
	if err := f.handler.UpdateCandidates(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var response BatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if response.TransactionCount != 2 {
		t.Errorf("expected every eligible transaction attached, got %d", response.TransactionCount)
	}
}

func TestSettlementHandler_Process_Accepted(t *testing.T) {
	f := setupSettlementHandler()
	f.createOpenBatch(t)

	c, rec := newJSONContext(t, http.MethodPost, "/process", nil, []string{"id", "batchId"}, []string{"1", "1"})
	if err := f.handler.Process(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d: %s", http.StatusAccepted, rec.Code, rec.Body.String())
	}

	var response AcceptedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if response.Status != string(domain.BatchStatusProcessing) {
		t.Errorf("expected PROCESSING, got %s", response.Status)
	}
}

func TestSettlementHandler_Process_Conflict(t *testing.T) {
	f := setupSettlementHandler()
	f.createOpenBatch(t)

	c, _ := newJSONContext(t, http.MethodPost, "/process", nil, []string{"id", "batchId"}, []string{"1", "1"})
	if err := f.handler.Process(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Second trigger conflicts
	c, rec := newJSONContext(t, http.MethodPost, "/process", nil, []string{"id", "batchId"}, []string{"1", "1"})
	if err := f.handler.Process(c); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
}

func TestSettlementHandler_Process_WrongOwner(t *testing.T) {
	f := setupSettlementHandler()
	f.createOpenBatch(t)
	f.merchantRepo.AddMerchant(&domain.Merchant{ID: 2, Name: "Other", Status: "active"})

	c, rec := newJSONContext(t, http.MethodPost, "/process", nil, []string{"id", "batchId"}, []string{"2", "1"})
	if err := f.handler.Process(c); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
}

func TestSettlementHandler_Resume_RequiresFailed(t *testing.T) {
	f := setupSettlementHandler()
	f.createOpenBatch(t)

	c, rec := newJSONContext(t, http.MethodPost, "/resume", nil, []string{"id", "batchId"}, []string{"1", "1"})
	if err := f.handler.Resume(c); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
}

func TestSettlementHandler_GetProgress(t *testing.T) {
	f := setupSettlementHandler()
	f.createOpenBatch(t)

	c, rec := newJSONContext(t, http.MethodGet, "/progress", nil, []string{"id", "batchId"}, []string{"1", "1"})
	if err := f.handler.GetProgress(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var progress domain.BatchProgress
	if err := json.Unmarshal(rec.Body.Bytes(), &progress); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if progress.Total != 0 {
		t.Errorf("expected empty progress for fresh batch, got %+v", progress)
	}
}

func TestSettlementHandler_GetBatch_NotFound(t *testing.T) {
	f := setupSettlementHandler()

	c, rec := newJSONContext(t, http.MethodGet, "/batches/9", nil, []string{"id", "batchId"}, []string{"1", "9"})
	if err := f.handler.GetBatch(c); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestSettlementHandler_InvalidIDParam(t *testing.T) {
	f := setupSettlementHandler()

	c, rec := newJSONContext(t, http.MethodGet, "/batches/x", nil, []string{"id", "batchId"}, []string{"abc", "1"})
	if err := f.handler.GetBatch(c); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}
