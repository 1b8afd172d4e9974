package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/korepay/settlement-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// WalletRepository implements domain.WalletRepository using PostgreSQL
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository creates a new WalletRepository
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

const walletColumns = `id, owner_id, owner_type, available_balance, cut_of_amount, last_updated_amount, last_updated_at, total_cash, used_cash, created_at, updated_at`

// GetByOwner retrieves the wallet for an owner
func (r *WalletRepository) GetByOwner(ownerID int32, ownerType domain.OwnerType) (*domain.Wallet, error) {
	ctx := context.Background()

	row := r.pool.QueryRow(ctx,
		`SELECT `+walletColumns+`
		 FROM wallets
		 WHERE owner_id = $1 AND owner_type = $2`, ownerID, string(ownerType))
	wallet, err := scanWallet(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrWalletNotFound
		}
		return nil, err
	}
	return wallet, nil
}

// ApplyDelta mutates the wallet balance as a locked read-modify-write inside
// its own database transaction
func (r *WalletRepository) ApplyDelta(ownerID int32, ownerType domain.OwnerType, delta decimal.Decimal, reason string) (*domain.Wallet, error) {
	ctx := context.Background()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	wallet, err := applyWalletDelta(ctx, tx, ownerID, ownerType, delta, reason)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return wallet, nil
}

// applyWalletDelta is the single code path that writes wallet balance fields.
// It locks the wallet row for the duration of the read-modify-write and
// records a ledger entry for the mutation. The caller owns the transaction.
func applyWalletDelta(ctx context.Context, q queryer, ownerID int32, ownerType domain.OwnerType, delta decimal.Decimal, reason string) (*domain.Wallet, error) {
	row := q.QueryRow(ctx,
		`SELECT `+walletColumns+`
		 FROM wallets
		 WHERE owner_id = $1 AND owner_type = $2
		 FOR UPDATE`, ownerID, string(ownerType))
	wallet, err := scanWallet(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrWalletNotFound
		}
		return nil, err
	}

	newBalance := wallet.AvailableBalance.Add(delta)
	if delta.IsNegative() && newBalance.IsNegative() {
		return nil, domain.ErrInsufficientBalance
	}

	balanceNum, err := decimalToPgNumeric(newBalance)
	if err != nil {
		return nil, fmt.Errorf("invalid balance: %w", err)
	}
	deltaNum, err := decimalToPgNumeric(delta)
	if err != nil {
		return nil, fmt.Errorf("invalid delta: %w", err)
	}

	row = q.QueryRow(ctx,
		`UPDATE wallets
		 SET available_balance = $2,
		     last_updated_amount = $3,
		     last_updated_at = now(),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+walletColumns, wallet.ID, balanceNum, deltaNum)
	updated, err := scanWallet(row)
	if err != nil {
		return nil, err
	}

	if _, err := q.Exec(ctx,
		`INSERT INTO wallet_entries (wallet_id, delta, balance_after, reason)
		 VALUES ($1, $2, $3, $4)`, wallet.ID, deltaNum, balanceNum, reason); err != nil {
		return nil, err
	}

	return updated, nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var (
		wallet            domain.Wallet
		ownerType         string
		availableBalance  pgtype.Numeric
		cutOfAmount       pgtype.Numeric
		lastUpdatedAmount pgtype.Numeric
		lastUpdatedAt     pgtype.Timestamptz
		totalCash         pgtype.Numeric
		usedCash          pgtype.Numeric
	)
	if err := row.Scan(&wallet.ID, &wallet.OwnerID, &ownerType, &availableBalance, &cutOfAmount,
		&lastUpdatedAmount, &lastUpdatedAt, &totalCash, &usedCash, &wallet.CreatedAt, &wallet.UpdatedAt); err != nil {
		return nil, err
	}
	wallet.OwnerType = domain.OwnerType(ownerType)
	wallet.AvailableBalance = pgNumericToDecimal(availableBalance)
	wallet.CutOfAmount = pgNumericToDecimal(cutOfAmount)
	wallet.LastUpdatedAmount = pgNumericToDecimal(lastUpdatedAmount)
	if lastUpdatedAt.Valid {
		wallet.LastUpdatedAt = &lastUpdatedAt.Time
	}
	wallet.TotalCash = pgNumericToDecimal(totalCash)
	wallet.UsedCash = pgNumericToDecimal(usedCash)
	return &wallet, nil
}
