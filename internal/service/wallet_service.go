package service

import (
	"github.com/korepay/settlement-backend/internal/domain"
	"github.com/korepay/settlement-backend/internal/websocket"
	"github.com/shopspring/decimal"
)

// WalletService is the single entry point for wallet balance changes. Every
// mutation goes through the repository's locked read-modify-write.
type WalletService struct {
	walletRepo     domain.WalletRepository
	eventPublisher websocket.EventPublisher
}

// NewWalletService creates a new WalletService
func NewWalletService(walletRepo domain.WalletRepository) *WalletService {
	return &WalletService{walletRepo: walletRepo}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *WalletService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *WalletService) publishEvent(owner string, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(owner, event)
	}
}

// GetByOwner returns the owner's wallet for profile and stat display
func (s *WalletService) GetByOwner(ownerID int32, ownerType domain.OwnerType) (*domain.Wallet, error) {
	return s.walletRepo.GetByOwner(ownerID, ownerType)
}

// Credit adds amount to the owner's available balance
func (s *WalletService) Credit(ownerID int32, ownerType domain.OwnerType, amount decimal.Decimal, reason string) (*domain.Wallet, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	wallet, err := s.walletRepo.ApplyDelta(ownerID, ownerType, amount, reason)
	if err != nil {
		return nil, err
	}

	s.publishEvent(websocket.OwnerKey(string(ownerType), ownerID), websocket.WalletCredited(wallet))
	return wallet, nil
}

// Debit removes amount from the owner's available balance. Fails with
// ErrInsufficientBalance when the wallet would overdraw.
func (s *WalletService) Debit(ownerID int32, ownerType domain.OwnerType, amount decimal.Decimal, reason string) (*domain.Wallet, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	return s.walletRepo.ApplyDelta(ownerID, ownerType, amount.Neg(), reason)
}
