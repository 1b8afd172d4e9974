package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/korepay/settlement-backend/internal/domain"
	"github.com/korepay/settlement-backend/internal/middleware"
	"github.com/korepay/settlement-backend/internal/service"
	"github.com/korepay/settlement-backend/internal/util"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// FranchiseHandler handles franchise bulk settlement HTTP requests
type FranchiseHandler struct {
	franchiseService *service.FranchiseService
	batchService     *service.BatchService
	processor        *service.BatchProcessor
}

// NewFranchiseHandler creates a new FranchiseHandler
func NewFranchiseHandler(franchiseService *service.FranchiseService, batchService *service.BatchService, processor *service.BatchProcessor) *FranchiseHandler {
	return &FranchiseHandler{
		franchiseService: franchiseService,
		batchService:     batchService,
		processor:        processor,
	}
}

// BulkBatchRequest represents the JSON request for a franchise bulk batch.
// An empty merchant list spans every merchant of the franchise; omitting both
// window bounds settles the previous UTC day's captures.
type BulkBatchRequest struct {
	ProductID   int32   `json:"productId"`
	MerchantIDs []int32 `json:"merchantIds,omitempty"`
	CycleKey    string  `json:"cycleKey"`
	WindowStart string  `json:"windowStart"`
	WindowEnd   string  `json:"windowEnd"`
}

// CreateBatch builds a franchise settlement batch across its merchants
// @Summary Create franchise bulk settlement batch
// @Description Selects candidates across the franchise's merchants (all, or the given subset) for one product and folds them into a single franchise batch
// @Tags bulk-settlement
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Franchise ID"
// @Param request body BulkBatchRequest true "Bulk batch request"
// @Success 200 {object} BatchResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Router /franchises/{id}/bulk-settlement/batches [post]
func (h *FranchiseHandler) CreateBatch(c echo.Context) error {
	franchiseID, err := parseIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid franchise ID", nil)
	}

	var req BulkBatchRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	if req.CycleKey == "" {
		return NewValidationError(c, "Cycle key is required", []ValidationError{
			{Field: "cycleKey", Message: "Cycle key is required"},
		})
	}
	if req.ProductID <= 0 {
		return NewValidationError(c, "Product ID is required", []ValidationError{
			{Field: "productId", Message: "Product ID is required"},
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

	var batch *domain.SettlementBatch
	if len(req.MerchantIDs) == 0 {
		batch, err = h.franchiseService.CreateFullBatch(franchiseID, req.ProductID, req.CycleKey, createdBy, windowStart, windowEnd)
	} else {
		batch, err = h.franchiseService.CreateSelectiveBatch(franchiseID, req.ProductID, req.MerchantIDs, req.CycleKey, createdBy, windowStart, windowEnd)
	}
	if err != nil {
		log.Error().Err(err).Int32("franchise_id", franchiseID).Msg("Failed to build franchise batch")
		return h.handleServiceError(c, err)
	}

	return c.JSON(http.StatusOK, toBatchResponse(batch))
}

// GetBatch returns one franchise batch
// @Summary Get franchise batch
// @Tags bulk-settlement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Franchise ID"
// @Param batchId path int true "Batch ID"
// @Success 200 {object} BatchResponse
// @Failure 404 {object} ProblemDetails
// @Router /franchises/{id}/bulk-settlement/batches/{batchId} [get]
func (h *FranchiseHandler) GetBatch(c echo.Context) error {
	franchiseID, batchID, err := parseBatchParams(c)
	if err != nil {
		return NewValidationError(c, "Invalid path parameters", nil)
	}

	batch, err := h.batchService.GetBatch(batchID, franchiseID, domain.OwnerTypeFranchise)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toBatchResponse(batch))
}

// GetCandidates lists the franchise batch's candidates
// @Summary List franchise batch candidates
// @Tags bulk-settlement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Franchise ID"
// @Param batchId path int true "Batch ID"
// @Success 200 {array} CandidateResponse
// @Failure 404 {object} ProblemDetails
// @Router /franchises/{id}/bulk-settlement/batches/{batchId}/candidates [get]
func (h *FranchiseHandler) GetCandidates(c echo.Context) error {
	franchiseID, batchID, err := parseBatchParams(c)
	if err != nil {
		return NewValidationError(c, "Invalid path parameters", nil)
	}

	candidates, err := h.batchService.GetCandidates(batchID, franchiseID, domain.OwnerTypeFranchise)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	resp := make([]CandidateResponse, len(candidates))
	for i, candidate := range candidates {
		resp[i] = toCandidateResponse(candidate)
	}
	return c.JSON(http.StatusOK, resp)
}

// Process starts asynchronous settlement of the franchise batch
// @Summary Process franchise batch
// @Tags bulk-settlement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Franchise ID"
// @Param batchId path int true "Batch ID"
// @Success 202 {object} AcceptedResponse
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /franchises/{id}/bulk-settlement/batches/{batchId}/process [post]
func (h *FranchiseHandler) Process(c echo.Context) error {
	franchiseID, batchID, err := parseBatchParams(c)
	if err != nil {
		return NewValidationError(c, "Invalid path parameters", nil)
	}

	if _, err := h.batchService.GetBatch(batchID, franchiseID, domain.OwnerTypeFranchise); err != nil {
		return h.handleServiceError(c, err)
	}

	if err := h.processor.Process(batchID); err != nil {
		log.Error().Err(err).Int32("batch_id", batchID).Msg("Failed to start franchise batch processing")
		return h.handleServiceError(c, err)
	}

	return c.JSON(http.StatusAccepted, AcceptedResponse{
		BatchID: batchID,
		Status:  string(domain.BatchStatusProcessing),
	})
}

// Resume retries the failed candidates of a franchise batch
// @Summary Resume franchise batch
// @Tags bulk-settlement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Franchise ID"
// @Param batchId path int true "Batch ID"
// @Success 202 {object} AcceptedResponse
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /franchises/{id}/bulk-settlement/batches/{batchId}/resume [post]
func (h *FranchiseHandler) Resume(c echo.Context) error {
	franchiseID, batchID, err := parseBatchParams(c)
	if err != nil {
		return NewValidationError(c, "Invalid path parameters", nil)
	}

	if _, err := h.batchService.GetBatch(batchID, franchiseID, domain.OwnerTypeFranchise); err != nil {
		return h.handleServiceError(c, err)
	}

	if err := h.processor.Resume(batchID); err != nil {
		log.Error().Err(err).Int32("batch_id", batchID).Msg("Failed to resume franchise batch")
		return h.handleServiceError(c, err)
	}

	return c.JSON(http.StatusAccepted, AcceptedResponse{
		BatchID: batchID,
		Status:  string(domain.BatchStatusProcessing),
	})
}

// GetProgress returns candidate status counts for polling
// @Summary Get franchise batch progress
// @Tags bulk-settlement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Franchise ID"
// @Param batchId path int true "Batch ID"
// @Success 200 {object} domain.BatchProgress
// @Failure 404 {object} ProblemDetails
// @Router /franchises/{id}/bulk-settlement/batches/{batchId}/progress [get]
func (h *FranchiseHandler) GetProgress(c echo.Context) error {
	franchiseID, batchID, err := parseBatchParams(c)
	if err != nil {
		return NewValidationError(c, "Invalid path parameters", nil)
	}

	progress, err := h.batchService.GetProgress(batchID, franchiseID, domain.OwnerTypeFranchise)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, progress)
}

// handleServiceError maps domain errors to appropriate HTTP responses
func (h *FranchiseHandler) handleServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrFranchiseNotFound):
		return NewNotFoundError(c, "Franchise not found")
	case errors.Is(err, domain.ErrMerchantNotFound):
		return NewNotFoundError(c, "One or more merchants not found")
	case errors.Is(err, domain.ErrBatchNotFound):
		return NewNotFoundError(c, "Settlement batch not found")
	case errors.Is(err, domain.ErrMerchantNotInFranchise):
		return NewValidationError(c, "All merchants must belong to the franchise", nil)
	case errors.Is(err, domain.ErrBatchOwnerMismatch):
		return NewForbiddenError(c, "Batch does not belong to this franchise")
	case errors.Is(err, domain.ErrCycleKeyRequired):
		return NewValidationError(c, "Cycle key is required", nil)
	case errors.Is(err, domain.ErrInvalidWindow):
		return NewValidationError(c, "Window start must precede window end", nil)
	case errors.Is(err, domain.ErrEmptySelection):
		return NewValidationError(c, "At least one merchant must be selected", nil)
	case errors.Is(err, domain.ErrBatchNotOpen):
		return NewConflictError(c, "Batch is no longer open")
	case errors.Is(err, domain.ErrBatchAlreadyProcessing):
		return NewConflictError(c, "Batch is already being processed")
	case errors.Is(err, domain.ErrBatchNotResumable):
		return NewConflictError(c, "Only failed batches can be resumed")
	case errors.Is(err, domain.ErrQueueFull):
		return NewConflictError(c, "Processing queue is full, retry shortly")
	default:
		return NewInternalError(c, "Bulk settlement operation failed")
	}
}
