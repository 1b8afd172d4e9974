package domain

import "errors"

// Domain errors
var (
	ErrNotFound            = errors.New("resource not found")
	ErrInternalError       = errors.New("internal error")
	ErrMerchantNotFound    = errors.New("merchant not found")
	ErrFranchiseNotFound   = errors.New("franchise not found")
	ErrBatchNotFound       = errors.New("settlement batch not found")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrTransactionNotFound = errors.New("vendor transaction not found")

	ErrInvalidWindow    = errors.New("window start must be before window end")
	ErrCycleKeyRequired = errors.New("cycle key is required")
	ErrNoTerminals      = errors.New("owner has no assigned terminals")
	ErrEmptySelection   = errors.New("at least one transaction must be selected")

	ErrBatchNotOpen           = errors.New("batch is not open for candidate changes")
	ErrBatchAlreadyProcessing = errors.New("batch is already processing")
	ErrBatchNotResumable      = errors.New("batch is not in a resumable state")
	ErrBatchStatusConflict    = errors.New("batch is not in the expected status")
	ErrBatchOwnerMismatch     = errors.New("batch does not belong to owner")
	ErrMerchantNotInFranchise = errors.New("merchant does not belong to franchise")

	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrNoPricingScheme     = errors.New("no active pricing scheme")
	ErrNoRate              = errors.New("no rate configured for card type or channel")
	ErrAlreadySettled      = errors.New("transaction already settled")
	ErrQueueFull           = errors.New("processing queue is full")
)
