package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/korepay/settlement-backend/internal/domain"
	"github.com/korepay/settlement-backend/internal/service"
	"github.com/labstack/echo/v4"
)

// WalletHandler handles wallet HTTP requests. The settlement engine only
// exposes reads; balance changes happen through settlement processing.
type WalletHandler struct {
	walletService *service.WalletService
}

// NewWalletHandler creates a new WalletHandler
func NewWalletHandler(walletService *service.WalletService) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
	}
}

// WalletResponse represents a wallet in API responses
type WalletResponse struct {
	ID                int32   `json:"id"`
	OwnerID           int32   `json:"ownerId"`
	OwnerType         string  `json:"ownerType"`
	AvailableBalance  string  `json:"availableBalance"`
	CutOfAmount       string  `json:"cutOfAmount"`
	LastUpdatedAmount string  `json:"lastUpdatedAmount"`
	LastUpdatedAt     *string `json:"lastUpdatedAt,omitempty"`
	TotalCash         string  `json:"totalCash"`
	UsedCash          string  `json:"usedCash"`
}

// GetMerchantWallet returns the merchant's wallet
// @Summary Get merchant wallet
// @Tags wallets
// @Produce json
// @Security BearerAuth
// @Param id path int true "Merchant ID"
// @Success 200 {object} WalletResponse
// @Failure 404 {object} ProblemDetails
// @Router /merchants/{id}/wallet [get]
func (h *WalletHandler) GetMerchantWallet(c echo.Context) error {
	return h.getWallet(c, domain.OwnerTypeMerchant)
}

// GetFranchiseWallet returns the franchise's wallet
// @Summary Get franchise wallet
// @Tags wallets
// @Produce json
// @Security BearerAuth
// @Param id path int true "Franchise ID"
// @Success 200 {object} WalletResponse
// @Failure 404 {object} ProblemDetails
// @Router /franchises/{id}/wallet [get]
func (h *WalletHandler) GetFranchiseWallet(c echo.Context) error {
	return h.getWallet(c, domain.OwnerTypeFranchise)
}

func (h *WalletHandler) getWallet(c echo.Context, ownerType domain.OwnerType) error {
	ownerID, err := parseIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid owner ID", nil)
	}

	wallet, err := h.walletService.GetByOwner(ownerID, ownerType)
	if err != nil {
		if errors.Is(err, domain.ErrWalletNotFound) {
			return NewNotFoundError(c, "Wallet not found")
		}
		return NewInternalError(c, "Failed to load wallet")
	}

	return c.JSON(http.StatusOK, toWalletResponse(wallet))
}

func toWalletResponse(wallet *domain.Wallet) WalletResponse {
	resp := WalletResponse{
		ID:                wallet.ID,
		OwnerID:           wallet.OwnerID,
		OwnerType:         string(wallet.OwnerType),
		AvailableBalance:  wallet.AvailableBalance.StringFixed(2),
		CutOfAmount:       wallet.CutOfAmount.StringFixed(2),
		LastUpdatedAmount: wallet.LastUpdatedAmount.StringFixed(2),
		TotalCash:         wallet.TotalCash.StringFixed(2),
		UsedCash:          wallet.UsedCash.StringFixed(2),
	}
	if wallet.LastUpdatedAt != nil {
		s := wallet.LastUpdatedAt.Format(time.RFC3339)
		resp.LastUpdatedAt = &s
	}
	return resp
}
