package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/korepay/settlement-backend/internal/domain"
)

// SettlementCandidateRepository implements domain.SettlementCandidateRepository
// using PostgreSQL
type SettlementCandidateRepository struct {
	pool *pgxpool.Pool
}

// NewSettlementCandidateRepository creates a new SettlementCandidateRepository
func NewSettlementCandidateRepository(pool *pgxpool.Pool) *SettlementCandidateRepository {
	return &SettlementCandidateRepository{pool: pool}
}

const candidateColumns = `id, batch_id, transaction_id, merchant_id, amount, fee, net, status, failure_reason, settled_at`

// ListByBatch retrieves all candidates of a batch in id order
func (r *SettlementCandidateRepository) ListByBatch(batchID int32) ([]*domain.SettlementCandidate, error) {
	return r.list(
		`SELECT `+candidateColumns+`
		 FROM settlement_candidates
		 WHERE batch_id = $1
		 ORDER BY id`, batchID)
}

// ListSelected retrieves SELECTED candidates of a batch in id order
func (r *SettlementCandidateRepository) ListSelected(batchID int32) ([]*domain.SettlementCandidate, error) {
	return r.list(
		`SELECT `+candidateColumns+`
		 FROM settlement_candidates
		 WHERE batch_id = $1 AND status = 'SELECTED'
		 ORDER BY id`, batchID)
}

func (r *SettlementCandidateRepository) list(sql string, args ...any) ([]*domain.SettlementCandidate, error) {
	ctx := context.Background()

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.SettlementCandidate
	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, candidate)
	}
	return result, rows.Err()
}

// MarkFailed records a per-candidate failure without touching siblings
func (r *SettlementCandidateRepository) MarkFailed(id int32, reason string) error {
	ctx := context.Background()

	tag, err := r.pool.Exec(ctx,
		`UPDATE settlement_candidates
		 SET status = 'FAILED', failure_reason = $2
		 WHERE id = $1`, id, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ResetFailed flips FAILED candidates back to SELECTED ahead of a resume
func (r *SettlementCandidateRepository) ResetFailed(batchID int32) (int64, error) {
	ctx := context.Background()

	tag, err := r.pool.Exec(ctx,
		`UPDATE settlement_candidates
		 SET status = 'SELECTED', failure_reason = NULL
		 WHERE batch_id = $1 AND status = 'FAILED'`, batchID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Settle performs one candidate's settlement as a single unit of work: the
// conditional flip of the transaction's settled flag, the locked wallet
// credit, and the candidate status update either all commit or all roll back.
func (r *SettlementCandidateRepository) Settle(exec domain.SettlementExecution) error {
	ctx := context.Background()

	fee, err := decimalToPgNumeric(exec.Fee)
	if err != nil {
		return fmt.Errorf("invalid fee: %w", err)
	}
	net, err := decimalToPgNumeric(exec.Net)
	if err != nil {
		return fmt.Errorf("invalid net: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Conditional update guards against another batch settling the same
	// transaction: zero rows means it is no longer ours to settle.
	tag, err := tx.Exec(ctx,
		`UPDATE vendor_transactions
		 SET settled = true, settled_at = $2, settlement_batch_id = $3
		 WHERE id = $1 AND settled = false`,
		exec.TransactionID, exec.SettledAt, exec.BatchID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadySettled
	}

	reason := fmt.Sprintf("settlement batch %d transaction %d", exec.BatchID, exec.TransactionID)
	if _, err := applyWalletDelta(ctx, tx, exec.OwnerID, exec.OwnerType, exec.Net, reason); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE settlement_candidates
		 SET status = 'SETTLED', fee = $2, net = $3, settled_at = $4, failure_reason = NULL
		 WHERE id = $1`, exec.CandidateID, fee, net, exec.SettledAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Progress aggregates candidate statuses for the poll endpoint
func (r *SettlementCandidateRepository) Progress(batchID int32) (*domain.BatchProgress, error) {
	ctx := context.Background()

	var progress domain.BatchProgress
	err := r.pool.QueryRow(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE status = 'SETTLED'),
		        count(*) FILTER (WHERE status = 'FAILED'),
		        count(*) FILTER (WHERE status = 'SELECTED')
		 FROM settlement_candidates
		 WHERE batch_id = $1`, batchID).
		Scan(&progress.Total, &progress.Settled, &progress.Failed, &progress.Pending)
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// TotalsFromSettled recomputes batch totals from settled candidate rows
func (r *SettlementCandidateRepository) TotalsFromSettled(batchID int32) (*domain.BatchTotals, error) {
	ctx := context.Background()

	var (
		totals domain.BatchTotals
		gross  pgtype.Numeric
		fee    pgtype.Numeric
		net    pgtype.Numeric
	)
	err := r.pool.QueryRow(ctx,
		`SELECT count(*), coalesce(sum(amount), 0), coalesce(sum(fee), 0), coalesce(sum(net), 0)
		 FROM settlement_candidates
		 WHERE batch_id = $1 AND status = 'SETTLED'`, batchID).
		Scan(&totals.TransactionCount, &gross, &fee, &net)
	if err != nil {
		return nil, err
	}
	totals.GrossAmount = pgNumericToDecimal(gross)
	totals.FeeAmount = pgNumericToDecimal(fee)
	totals.NetAmount = pgNumericToDecimal(net)
	return &totals, nil
}

func scanCandidate(row pgx.Row) (*domain.SettlementCandidate, error) {
	var (
		candidate     domain.SettlementCandidate
		amount        pgtype.Numeric
		fee           pgtype.Numeric
		net           pgtype.Numeric
		status        string
		failureReason pgtype.Text
		settledAt     pgtype.Timestamptz
	)
	if err := row.Scan(&candidate.ID, &candidate.BatchID, &candidate.TransactionID, &candidate.MerchantID,
		&amount, &fee, &net, &status, &failureReason, &settledAt); err != nil {
		return nil, err
	}
	candidate.Amount = pgNumericToDecimal(amount)
	candidate.Fee = pgNumericToDecimal(fee)
	candidate.Net = pgNumericToDecimal(net)
	candidate.Status = domain.CandidateStatus(status)
	if failureReason.Valid {
		candidate.FailureReason = &failureReason.String
	}
	if settledAt.Valid {
		candidate.SettledAt = &settledAt.Time
	}
	return &candidate, nil
}
