package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/korepay/settlement-backend/internal/domain"
)

// VendorTransactionRepository implements domain.VendorTransactionRepository
// using PostgreSQL
type VendorTransactionRepository struct {
	pool *pgxpool.Pool
}

// NewVendorTransactionRepository creates a new VendorTransactionRepository
func NewVendorTransactionRepository(pool *pgxpool.Pool) *VendorTransactionRepository {
	return &VendorTransactionRepository{pool: pool}
}

const vendorTransactionColumns = `id, vendor_ref, mid, tid, amount, card_type, channel, transacted_at, status, settled, settled_at, settlement_batch_id, created_at`

// GetByIDs retrieves vendor transactions by their IDs
func (r *VendorTransactionRepository) GetByIDs(ids []int32) ([]*domain.VendorTransaction, error) {
	ctx := context.Background()

	rows, err := r.pool.Query(ctx,
		`SELECT `+vendorTransactionColumns+`
		 FROM vendor_transactions
		 WHERE id = ANY($1)
		 ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanVendorTransactions(rows)
}

// ListUnsettled retrieves unsettled transactions matching the terminal sets
// within the half-open window [windowStart, windowEnd)
func (r *VendorTransactionRepository) ListUnsettled(mids, tids []string, windowStart, windowEnd time.Time) ([]*domain.VendorTransaction, error) {
	ctx := context.Background()

	rows, err := r.pool.Query(ctx,
		`SELECT `+vendorTransactionColumns+`
		 FROM vendor_transactions
		 WHERE settled = false
		   AND transacted_at >= $1
		   AND transacted_at < $2
		   AND (mid = ANY($3) OR tid = ANY($4))
		 ORDER BY id`, windowStart, windowEnd, mids, tids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanVendorTransactions(rows)
}

func scanVendorTransactions(rows pgx.Rows) ([]*domain.VendorTransaction, error) {
	var result []*domain.VendorTransaction
	for rows.Next() {
		txn, err := scanVendorTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, txn)
	}
	return result, rows.Err()
}

func scanVendorTransaction(row pgx.Row) (*domain.VendorTransaction, error) {
	var (
		txn       domain.VendorTransaction
		amount    pgtype.Numeric
		cardType  pgtype.Text
		channel   pgtype.Text
		settledAt pgtype.Timestamptz
		batchID   pgtype.Int4
	)
	if err := row.Scan(&txn.ID, &txn.VendorRef, &txn.MID, &txn.TID, &amount, &cardType, &channel,
		&txn.TransactedAt, &txn.Status, &txn.Settled, &settledAt, &batchID, &txn.CreatedAt); err != nil {
		return nil, err
	}
	txn.Amount = pgNumericToDecimal(amount)
	if cardType.Valid {
		txn.CardType = cardType.String
	}
	if channel.Valid {
		txn.Channel = channel.String
	}
	if settledAt.Valid {
		txn.SettledAt = &settledAt.Time
	}
	if batchID.Valid {
		txn.SettlementBatchID = &batchID.Int32
	}
	return &txn, nil
}
