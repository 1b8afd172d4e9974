package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/korepay/settlement-backend/internal/domain"
	"github.com/korepay/settlement-backend/internal/middleware"
	"github.com/korepay/settlement-backend/internal/service"
	"github.com/korepay/settlement-backend/internal/util"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// SettlementHandler handles merchant settlement HTTP requests
type SettlementHandler struct {
	batchService *service.BatchService
	processor    *service.BatchProcessor
}

// NewSettlementHandler creates a new SettlementHandler
func NewSettlementHandler(batchService *service.BatchService, processor *service.BatchProcessor) *SettlementHandler {
	return &SettlementHandler{
		batchService: batchService,
		processor:    processor,
	}
}

// CreateBatchRequest represents the JSON request for opening a settlement batch.
// Omitting both window bounds settles the previous UTC day's captures.
type CreateBatchRequest struct {
	CycleKey    string `json:"cycleKey"`
	WindowStart string `json:"windowStart"`
	WindowEnd   string `json:"windowEnd"`
	ProductID   *int32 `json:"productId,omitempty"`
}

// CandidatesRequest represents the JSON request for setting batch candidates.
// An empty transaction list selects every eligible transaction in the window.
type CandidatesRequest struct {
	TransactionIDs []int32 `json:"transactionIds"`
}

// BatchResponse represents a settlement batch in API responses
type BatchResponse struct {
	ID               int32  `json:"id"`
	BatchRef         string `json:"batchRef"`
	OwnerID          int32  `json:"ownerId"`
	OwnerType        string `json:"ownerType"`
	ProductID        *int32 `json:"productId,omitempty"`
	CycleKey         string `json:"cycleKey"`
	WindowStart      string `json:"windowStart"`
	WindowEnd        string `json:"windowEnd"`
	Status           string `json:"status"`
	TransactionCount int32  `json:"transactionCount"`
	GrossAmount      string `json:"grossAmount"`
	FeeAmount        string `json:"feeAmount"`
	NetAmount        string `json:"netAmount"`
	CreatedBy        string `json:"createdBy"`
	CreatedAt        string `json:"createdAt"`
}

// CandidateResponse represents a settlement candidate in API responses
type CandidateResponse struct {
	ID            int32   `json:"id"`
	TransactionID int32   `json:"transactionId"`
	MerchantID    int32   `json:"merchantId"`
	Amount        string  `json:"amount"`
	Fee           string  `json:"fee"`
	Net           string  `json:"net"`
	Status        string  `json:"status"`
	FailureReason *string `json:"failureReason,omitempty"`
	SettledAt     *string `json:"settledAt,omitempty"`
}

// AcceptedResponse represents the body of a 202 response for async processing
type AcceptedResponse struct {
	BatchID int32  `json:"batchId"`
	Status  string `json:"status"`
}

// CreateBatch opens or returns the active settlement batch for a cycle
// @Summary Get or create active settlement batch
// @Description Returns the merchant's OPEN/PROCESSING batch for the cycle key, creating one if none exists. The window defaults to the previous UTC day when omitted
// @Tags settlement
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Merchant ID"
// @Param request body CreateBatchRequest true "Batch request"
// @Success 200 {object} BatchResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Router /merchants/{id}/settlement/batches [post]
func (h *SettlementHandler) CreateBatch(c echo.Context) error {
	merchantID, err := parseIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid merchant ID", nil)
	}

	var req CreateBatchRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	if req.CycleKey == "" {
		return NewValidationError(c, "Cycle key is required", []ValidationError{
			{Field: "cycleKey", Message: "Cycle key is required"},
		})
	}

	var windowStart, windowEnd time.Time
	if req.WindowStart == "" && req.WindowEnd == "" {
		windowStart, windowEnd = util.PreviousDayWindow(time.Now())
	} else {
		windowStart, windowEnd, err = parseWindow(req.WindowStart, req.WindowEnd)
		if err != nil {
			return NewValidationError(c, "Invalid settlement window", nil)
		}
	}

	createdBy := middleware.GetSubject(c)
	batch, err := h.batchService.GetOrCreateActiveBatch(merchantID, domain.OwnerTypeMerchant, req.ProductID, req.CycleKey, createdBy, windowStart, windowEnd)
	if err != nil {
		log.Error().Err(err).Int32("merchant_id", merchantID).Msg("Failed to get or create settlement batch")
		return h.handleServiceError(c, err)
	}

	return c.JSON(http.StatusOK, toBatchResponse(batch))
}

// GetBatch returns one settlement batch
// @Summary Get settlement batch
// @Tags settlement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Merchant ID"
// @Param batchId path int true "Batch ID"
// @Success 200 {object} BatchResponse
// @Failure 404 {object} ProblemDetails
// @Router /merchants/{id}/settlement/batches/{batchId} [get]
func (h *SettlementHandler) GetBatch(c echo.Context) error {
	merchantID, batchID, err := parseBatchParams(c)
	if err != nil {
		return NewValidationError(c, "Invalid path parameters", nil)
	}

	batch, err := h.batchService.GetBatch(batchID, merchantID, domain.OwnerTypeMerchant)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toBatchResponse(batch))
}

// GetCandidates lists the batch's candidates
// @Summary List settlement candidates
// @Tags settlement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Merchant ID"
// @Param batchId path int true "Batch ID"
// @Success 200 {array} CandidateResponse
// @Failure 404 {object} ProblemDetails
// @Router /merchants/{id}/settlement/batches/{batchId}/candidates [get]
func (h *SettlementHandler) GetCandidates(c echo.Context) error {
	merchantID, batchID, err := parseBatchParams(c)
	if err != nil {
		return NewValidationError(c, "Invalid path parameters", nil)
	}

	candidates, err := h.batchService.GetCandidates(batchID, merchantID, domain.OwnerTypeMerchant)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	resp := make([]CandidateResponse, len(candidates))
	for i, candidate := range candidates {
		resp[i] = toCandidateResponse(candidate)
	}
	return c.JSON(http.StatusOK, resp)
}

// UpdateCandidates replaces the batch's candidate selection
// @Summary Set settlement candidates
// @Description Replaces the candidate set with the given transactions, or with every eligible transaction when the list is empty
// @Tags settlement
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Merchant ID"
// @Param batchId path int true "Batch ID"
// @Param request body CandidatesRequest true "Candidate selection"
// @Success 200 {object} BatchResponse
// @Failure 400 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /merchants/{id}/settlement/batches/{batchId}/candidates [post]
func (h *SettlementHandler) UpdateCandidates(c echo.Context) error {
	merchantID, batchID, err := parseBatchParams(c)
	if err != nil {
		return NewValidationError(c, "Invalid path parameters", nil)
	}

	var req CandidatesRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	var batch *domain.SettlementBatch
	if len(req.TransactionIDs) == 0 {
		batch, err = h.batchService.AttachAllCandidates(batchID, merchantID, domain.OwnerTypeMerchant)
	} else {
		batch, err = h.batchService.UpdateCandidates(batchID, merchantID, domain.OwnerTypeMerchant, req.TransactionIDs)
	}
	if err != nil {
		log.Error().Err(err).Int32("batch_id", batchID).Msg("Failed to update candidates")
		return h.handleServiceError(c, err)
	}

	return c.JSON(http.StatusOK, toBatchResponse(batch))
}

// Process starts asynchronous settlement of the batch
// @Summary Process settlement batch
// @Description Transitions the batch to PROCESSING and settles candidates asynchronously; poll progress or subscribe to the websocket for completion
// @Tags settlement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Merchant ID"
// @Param batchId path int true "Batch ID"
// @Success 202 {object} AcceptedResponse
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /merchants/{id}/settlement/batches/{batchId}/process [post]
func (h *SettlementHandler) Process(c echo.Context) error {
	merchantID, batchID, err := parseBatchParams(c)
	if err != nil {
		return NewValidationError(c, "Invalid path parameters", nil)
	}

	if _, err := h.batchService.GetBatch(batchID, merchantID, domain.OwnerTypeMerchant); err != nil {
		return h.handleServiceError(c, err)
	}

	if err := h.processor.Process(batchID); err != nil {
		log.Error().Err(err).Int32("batch_id", batchID).Msg("Failed to start batch processing")
		return h.handleServiceError(c, err)
	}

	return c.JSON(http.StatusAccepted, AcceptedResponse{
		BatchID: batchID,
		Status:  string(domain.BatchStatusProcessing),
	})
}

// Resume retries the failed candidates of a batch
// @Summary Resume settlement batch
// @Description Resets FAILED candidates and reprocesses them; settled candidates are never re-settled
// @Tags settlement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Merchant ID"
// @Param batchId path int true "Batch ID"
// @Success 202 {object} AcceptedResponse
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /merchants/{id}/settlement/batches/{batchId}/resume [post]
func (h *SettlementHandler) Resume(c echo.Context) error {
	merchantID, batchID, err := parseBatchParams(c)
	if err != nil {
		return NewValidationError(c, "Invalid path parameters", nil)
	}

	if _, err := h.batchService.GetBatch(batchID, merchantID, domain.OwnerTypeMerchant); err != nil {
		return h.handleServiceError(c, err)
	}

	if err := h.processor.Resume(batchID); err != nil {
		log.Error().Err(err).Int32("batch_id", batchID).Msg("Failed to resume batch")
		return h.handleServiceError(c, err)
	}

	return c.JSON(http.StatusAccepted, AcceptedResponse{
		BatchID: batchID,
		Status:  string(domain.BatchStatusProcessing),
	})
}

// GetProgress returns candidate status counts for polling
// @Summary Get settlement progress
// @Tags settlement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Merchant ID"
// @Param batchId path int true "Batch ID"
// @Success 200 {object} domain.BatchProgress
// @Failure 404 {object} ProblemDetails
// @Router /merchants/{id}/settlement/batches/{batchId}/progress [get]
func (h *SettlementHandler) GetProgress(c echo.Context) error {
	merchantID, batchID, err := parseBatchParams(c)
	if err != nil {
		return NewValidationError(c, "Invalid path parameters", nil)
	}

	progress, err := h.batchService.GetProgress(batchID, merchantID, domain.OwnerTypeMerchant)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, progress)
}

// handleServiceError maps domain errors to appropriate HTTP responses
func (h *SettlementHandler) handleServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrMerchantNotFound):
		return NewNotFoundError(c, "Merchant not found")
	case errors.Is(err, domain.ErrBatchNotFound):
		return NewNotFoundError(c, "Settlement batch not found")
	case errors.Is(err, domain.ErrTransactionNotFound):
		return NewNotFoundError(c, "One or more transactions not found")
	case errors.Is(err, domain.ErrBatchOwnerMismatch):
		return NewForbiddenError(c, "Batch does not belong to this merchant")
	case errors.Is(err, domain.ErrCycleKeyRequired):
		return NewValidationError(c, "Cycle key is required", nil)
	case errors.Is(err, domain.ErrInvalidWindow):
		return NewValidationError(c, "Window start must precede window end", nil)
	case errors.Is(err, domain.ErrEmptySelection):
		return NewValidationError(c, "At least one transaction must be selected", nil)
	case errors.Is(err, domain.ErrNoTerminals):
		return NewConflictError(c, "Merchant has no terminals to settle")
	case errors.Is(err, domain.ErrBatchNotOpen):
		return NewConflictError(c, "Batch is no longer open")
	case errors.Is(err, domain.ErrBatchAlreadyProcessing):
		return NewConflictError(c, "Batch is already being processed")
	case errors.Is(err, domain.ErrBatchNotResumable):
		return NewConflictError(c, "Only failed batches can be resumed")
	case errors.Is(err, domain.ErrAlreadySettled):
		return NewConflictError(c, "One or more transactions are already settled")
	case errors.Is(err, domain.ErrQueueFull):
		return NewConflictError(c, "Processing queue is full, retry shortly")
	default:
		return NewInternalError(c, "Settlement operation failed")
	}
}

func toBatchResponse(batch *domain.SettlementBatch) BatchResponse {
	return BatchResponse{
		ID:               batch.ID,
		BatchRef:         batch.BatchRef.String(),
		OwnerID:          batch.OwnerID,
		OwnerType:        string(batch.OwnerType),
		ProductID:        batch.ProductID,
		CycleKey:         batch.CycleKey,
		WindowStart:      batch.WindowStart.Format(time.RFC3339),
		WindowEnd:        batch.WindowEnd.Format(time.RFC3339),
		Status:           string(batch.Status),
		TransactionCount: batch.TransactionCount,
		GrossAmount:      batch.GrossAmount.StringFixed(2),
		FeeAmount:        batch.FeeAmount.StringFixed(2),
		NetAmount:        batch.NetAmount.StringFixed(2),
		CreatedBy:        batch.CreatedBy,
		CreatedAt:        batch.CreatedAt.Format(time.RFC3339),
	}
}

func toCandidateResponse(candidate *domain.SettlementCandidate) CandidateResponse {
	resp := CandidateResponse{
		ID:            candidate.ID,
		TransactionID: candidate.TransactionID,
		MerchantID:    candidate.MerchantID,
		Amount:        candidate.Amount.StringFixed(2),
		Fee:           candidate.Fee.StringFixed(2),
		Net:           candidate.Net.StringFixed(2),
		Status:        string(candidate.Status),
		FailureReason: candidate.FailureReason,
	}
	if candidate.SettledAt != nil {
		s := candidate.SettledAt.Format(time.RFC3339)
		resp.SettledAt = &s
	}
	return resp
}

func parseIDParam(c echo.Context, name string) (int32, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, echo.ErrBadRequest
	}
	return int32(id), nil
}

func parseBatchParams(c echo.Context) (ownerID, batchID int32, err error) {
	ownerID, err = parseIDParam(c, "id")
	if err != nil {
		return 0, 0, err
	}
	batchID, err = parseIDParam(c, "batchId")
	if err != nil {
		return 0, 0, err
	}
	return ownerID, batchID, nil
}

func parseWindow(start, end string) (time.Time, time.Time, error) {
	windowStart, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	windowEnd, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return windowStart, windowEnd, nil
}
