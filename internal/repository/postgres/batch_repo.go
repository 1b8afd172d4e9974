package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/korepay/settlement-backend/internal/domain"
)

// SettlementBatchRepository implements domain.SettlementBatchRepository using
// PostgreSQL
type SettlementBatchRepository struct {
	pool *pgxpool.Pool
}

// NewSettlementBatchRepository creates a new SettlementBatchRepository
func NewSettlementBatchRepository(pool *pgxpool.Pool) *SettlementBatchRepository {
	return &SettlementBatchRepository{pool: pool}
}

const batchColumns = `id, batch_ref, owner_id, owner_type, product_id, cycle_key, window_start, window_end, status, transaction_count, gross_amount, fee_amount, net_amount, created_by, created_at, updated_at`

// GetOrCreateActive returns the existing OPEN/PROCESSING batch for the owner
// and cycle key or inserts the given one. Uniqueness is enforced by a partial
// unique index on (owner_id, owner_type, cycle_key) WHERE status IN
// ('OPEN','PROCESSING'), so concurrent callers converge on one row.
func (r *SettlementBatchRepository) GetOrCreateActive(batch *domain.SettlementBatch) (*domain.SettlementBatch, bool, error) {
	ctx := context.Background()

	var productID pgtype.Int4
	if batch.ProductID != nil {
		productID.Int32 = *batch.ProductID
		productID.Valid = true
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO settlement_batches
		   (batch_ref, owner_id, owner_type, product_id, cycle_key, window_start, window_end, status, transaction_count, gross_amount, fee_amount, net_amount, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, 0, 0, 0, $9)
		 ON CONFLICT (owner_id, owner_type, cycle_key) WHERE status IN ('OPEN', 'PROCESSING') DO NOTHING
		 RETURNING `+batchColumns,
		batch.BatchRef, batch.OwnerID, string(batch.OwnerType), productID, batch.CycleKey,
		batch.WindowStart, batch.WindowEnd, string(domain.BatchStatusOpen), batch.CreatedBy)
	created, err := scanBatch(row)
	if err == nil {
		return created, true, nil
	}
	if err != pgx.ErrNoRows {
		return nil, false, err
	}

	// Conflict: an active batch already exists for this cycle.
	row = r.pool.QueryRow(ctx,
		`SELECT `+batchColumns+`
		 FROM settlement_batches
		 WHERE owner_id = $1 AND owner_type = $2 AND cycle_key = $3
		   AND status IN ($4, $5)`,
		batch.OwnerID, string(batch.OwnerType), batch.CycleKey,
		string(domain.BatchStatusOpen), string(domain.BatchStatusProcessing))
	existing, err := scanBatch(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, domain.ErrBatchNotFound
		}
		return nil, false, err
	}
	return existing, false, nil
}

// GetByID retrieves a batch by its ID
func (r *SettlementBatchRepository) GetByID(id int32) (*domain.SettlementBatch, error) {
	ctx := context.Background()

	row := r.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM settlement_batches WHERE id = $1`, id)
	batch, err := scanBatch(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrBatchNotFound
		}
		return nil, err
	}
	return batch, nil
}

// UpdateStatus transitions a batch between statuses with a conditional update
func (r *SettlementBatchRepository) UpdateStatus(id int32, from, to domain.BatchStatus) error {
	ctx := context.Background()

	tag, err := r.pool.Exec(ctx,
		`UPDATE settlement_batches
		 SET status = $3, updated_at = now()
		 WHERE id = $1 AND status = $2`, id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(id); err != nil {
			return err
		}
		return domain.ErrBatchStatusConflict
	}
	return nil
}

// UpdateTotals persists recomputed batch totals
func (r *SettlementBatchRepository) UpdateTotals(id int32, totals domain.BatchTotals) error {
	ctx := context.Background()

	gross, err := decimalToPgNumeric(totals.GrossAmount)
	if err != nil {
		return fmt.Errorf("invalid gross amount: %w", err)
	}
	fee, err := decimalToPgNumeric(totals.FeeAmount)
	if err != nil {
		return fmt.Errorf("invalid fee amount: %w", err)
	}
	net, err := decimalToPgNumeric(totals.NetAmount)
	if err != nil {
		return fmt.Errorf("invalid net amount: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE settlement_batches
		 SET transaction_count = $2, gross_amount = $3, fee_amount = $4, net_amount = $5, updated_at = now()
		 WHERE id = $1`, id, totals.TransactionCount, gross, fee, net)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBatchNotFound
	}
	return nil
}

// ReplaceCandidates atomically swaps the candidate set of an OPEN batch and
// persists the provisional totals
func (r *SettlementBatchRepository) ReplaceCandidates(batchID int32, candidates []*domain.SettlementCandidate, totals domain.BatchTotals) error {
	ctx := context.Background()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Lock the batch row so racing replacements serialize; the later write
	// wins with a consistent candidate set.
	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM settlement_batches WHERE id = $1 FOR UPDATE`, batchID).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ErrBatchNotFound
		}
		return err
	}
	if domain.BatchStatus(status) != domain.BatchStatusOpen {
		return domain.ErrBatchNotOpen
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM settlement_candidates WHERE batch_id = $1`, batchID); err != nil {
		return err
	}

	insert := &pgx.Batch{}
	for _, c := range candidates {
		amount, err := decimalToPgNumeric(c.Amount)
		if err != nil {
			return fmt.Errorf("invalid candidate amount: %w", err)
		}
		insert.Queue(
			`INSERT INTO settlement_candidates (batch_id, transaction_id, merchant_id, amount, fee, net, status)
			 VALUES ($1, $2, $3, $4, 0, 0, $5)`,
			batchID, c.TransactionID, c.MerchantID, amount, string(domain.CandidateStatusSelected))
	}
	if insert.Len() > 0 {
		if err := tx.SendBatch(ctx, insert).Close(); err != nil {
			return err
		}
	}

	gross, err := decimalToPgNumeric(totals.GrossAmount)
	if err != nil {
		return fmt.Errorf("invalid gross amount: %w", err)
	}
	fee, err := decimalToPgNumeric(totals.FeeAmount)
	if err != nil {
		return fmt.Errorf("invalid fee amount: %w", err)
	}
	net, err := decimalToPgNumeric(totals.NetAmount)
	if err != nil {
		return fmt.Errorf("invalid net amount: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE settlement_batches
		 SET transaction_count = $2, gross_amount = $3, fee_amount = $4, net_amount = $5, updated_at = now()
		 WHERE id = $1`, batchID, totals.TransactionCount, gross, fee, net); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func scanBatch(row pgx.Row) (*domain.SettlementBatch, error) {
	var (
		batch     domain.SettlementBatch
		ownerType string
		productID pgtype.Int4
		status    string
		gross     pgtype.Numeric
		fee       pgtype.Numeric
		net       pgtype.Numeric
	)
	if err := row.Scan(&batch.ID, &batch.BatchRef, &batch.OwnerID, &ownerType, &productID,
		&batch.CycleKey, &batch.WindowStart, &batch.WindowEnd, &status, &batch.TransactionCount,
		&gross, &fee, &net, &batch.CreatedBy, &batch.CreatedAt, &batch.UpdatedAt); err != nil {
		return nil, err
	}
	batch.OwnerType = domain.OwnerType(ownerType)
	if productID.Valid {
		batch.ProductID = &productID.Int32
	}
	batch.Status = domain.BatchStatus(status)
	batch.GrossAmount = pgNumericToDecimal(gross)
	batch.FeeAmount = pgNumericToDecimal(fee)
	batch.NetAmount = pgNumericToDecimal(net)
	return &batch, nil
}
