package service

import (
	"errors"
	"testing"

	"github.com/korepay/settlement-backend/internal/domain"
	"github.com/korepay/settlement-backend/internal/testutil"
	"github.com/shopspring/decimal"
)

func setupWallet() (*WalletService, *testutil.MockWalletRepository) {
	walletRepo := testutil.NewMockWalletRepository()
	walletRepo.AddWallet(&domain.Wallet{
		OwnerID:   1,
		OwnerType: domain.OwnerTypeMerchant,
		WalletBalance: domain.WalletBalance{
			AvailableBalance: decimal.RequireFromString("100.00"),
		},
	})
	return NewWalletService(walletRepo), walletRepo
}

func TestWalletService_Credit(t *testing.T) {
	service, _ := setupWallet()

	wallet, err := service.Credit(1, domain.OwnerTypeMerchant, decimal.RequireFromString("25.50"), "test credit")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !wallet.AvailableBalance.Equal(decimal.RequireFromString("125.50")) {
		t.Errorf("expected balance 125.50, got %s", wallet.AvailableBalance)
	}
	if !wallet.LastUpdatedAmount.Equal(decimal.RequireFromString("25.50")) {
		t.Errorf("expected last updated amount 25.50, got %s", wallet.LastUpdatedAmount)
	}
	if wallet.LastUpdatedAt == nil {
		t.Error("expected last updated timestamp to be set")
	}
}

func TestWalletService_Credit_RejectsNonPositive(t *testing.T) {
	service, _ := setupWallet()

	if _, err := service.Credit(1, domain.OwnerTypeMerchant, decimal.Zero, "zero"); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if _, err := service.Credit(1, domain.OwnerTypeMerchant, decimal.RequireFromString("-5.00"), "negative"); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for negative, got %v", err)
	}
}

func TestWalletService_Debit(t *testing.T) {
	service, _ := setupWallet()

	wallet, err := service.Debit(1, domain.OwnerTypeMerchant, decimal.RequireFromString("40.00"), "payout")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !wallet.AvailableBalance.Equal(decimal.RequireFromString("60.00")) {
		t.Errorf("expected balance 60.00, got %s", wallet.AvailableBalance)
	}
}

func TestWalletService_Debit_Overdraw(t *testing.T) {
	service, walletRepo := setupWallet()

	_, err := service.Debit(1, domain.OwnerTypeMerchant, decimal.RequireFromString("100.01"), "too much")
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// Balance untouched after the rejected debit
	wallet, err := walletRepo.GetByOwner(1, domain.OwnerTypeMerchant)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !wallet.AvailableBalance.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("expected balance 100.00, got %s", wallet.AvailableBalance)
	}
}

func TestWalletService_Debit_ToExactZero(t *testing.T) {
	service, _ := setupWallet()

	wallet, err := service.Debit(1, domain.OwnerTypeMerchant, decimal.RequireFromString("100.00"), "drain")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !wallet.AvailableBalance.IsZero() {
		t.Errorf("expected zero balance, got %s", wallet.AvailableBalance)
	}
}

func TestWalletService_GetByOwner_NotFound(t *testing.T) {
	service, _ := setupWallet()

	_, err := service.GetByOwner(99, domain.OwnerTypeMerchant)
	if !errors.Is(err, domain.ErrWalletNotFound) {
		t.Errorf("expected ErrWalletNotFound, got %v", err)
	}
}
