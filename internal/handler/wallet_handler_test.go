package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/korepay/settlement-backend/internal/domain"
	"github.com/korepay/settlement-backend/internal/service"
	"github.com/korepay/settlement-backend/internal/testutil"
	"github.com/shopspring/decimal"
)

func setupWalletHandler() (*WalletHandler, *testutil.MockWalletRepository) {
	walletRepo := testutil.NewMockWalletRepository()
	return NewWalletHandler(service.NewWalletService(walletRepo)), walletRepo
}

func TestWalletHandler_GetMerchantWallet(t *testing.T) {
	handler, walletRepo := setupWalletHandler()

	updated := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	walletRepo.AddWallet(&domain.Wallet{
		OwnerID:   1,
		OwnerType: domain.OwnerTypeMerchant,
		WalletBalance: domain.WalletBalance{
			AvailableBalance:  decimal.RequireFromString("374.24"),
			LastUpdatedAmount: decimal.RequireFromString("32.50"),
			LastUpdatedAt:     &updated,
		},
	})

	c, rec := newJSONContext(t, http.MethodGet, "/api/v1/merchants/1/wallet", nil, []string{"id"}, []string{"1"})
	if err := handler.GetMerchantWallet(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response WalletResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if response.AvailableBalance != "374.24" {
		t.Errorf("expected balance 374.24, got %s", response.AvailableBalance)
	}
	if response.LastUpdatedAt == nil || *response.LastUpdatedAt != "2024-03-10T18:00:00Z" {
		t.Errorf("unexpected lastUpdatedAt %v", response.LastUpdatedAt)
	}
}

func TestWalletHandler_GetFranchiseWallet(t *testing.T) {
	handler, walletRepo := setupWalletHandler()
	walletRepo.AddWallet(&domain.Wallet{
		OwnerID:   10,
		OwnerType: domain.OwnerTypeFranchise,
		WalletBalance: domain.WalletBalance{
			AvailableBalance: decimal.RequireFromString("1200.00"),
		},
	})

	c, rec := newJSONContext(t, http.MethodGet, "/api/v1/franchises/10/wallet", nil, []string{"id"}, []string{"10"})
	if err := handler.GetFranchiseWallet(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response WalletResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if response.OwnerType != "franchise" {
		t.Errorf("expected franchise wallet, got %s", response.OwnerType)
	}
}

func TestWalletHandler_NotFound(t *testing.T) {
	handler, _ := setupWalletHandler()

	c, rec := newJSONContext(t, http.MethodGet, "/api/v1/merchants/9/wallet", nil, []string{"id"}, []string{"9"})
	if err := handler.GetMerchantWallet(c); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}
