package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/korepay/settlement-backend/internal/domain"
)

// MerchantRepository implements domain.MerchantRepository using PostgreSQL.
// Merchant master data is owned by an external CRUD service; this repository
// only reads it.
type MerchantRepository struct {
	pool *pgxpool.Pool
}

// NewMerchantRepository creates a new MerchantRepository
func NewMerchantRepository(pool *pgxpool.Pool) *MerchantRepository {
	return &MerchantRepository{pool: pool}
}

// GetByID retrieves a merchant by its ID
func (r *MerchantRepository) GetByID(id int32) (*domain.Merchant, error) {
	ctx := context.Background()

	var (
		merchant    domain.Merchant
		franchiseID pgtype.Int4
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, franchise_id, name, status FROM merchants WHERE id = $1`, id).
		Scan(&merchant.ID, &franchiseID, &merchant.Name, &merchant.Status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrMerchantNotFound
		}
		return nil, err
	}
	if franchiseID.Valid {
		merchant.FranchiseID = &franchiseID.Int32
	}
	return &merchant, nil
}

// ListByFranchise retrieves all merchants under a franchise
func (r *MerchantRepository) ListByFranchise(franchiseID int32) ([]*domain.Merchant, error) {
	ctx := context.Background()

	rows, err := r.pool.Query(ctx,
		`SELECT id, franchise_id, name, status FROM merchants WHERE franchise_id = $1 ORDER BY id`, franchiseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Merchant
	for rows.Next() {
		var (
			merchant domain.Merchant
			fID      pgtype.Int4
		)
		if err := rows.Scan(&merchant.ID, &fID, &merchant.Name, &merchant.Status); err != nil {
			return nil, err
		}
		if fID.Valid {
			merchant.FranchiseID = &fID.Int32
		}
		result = append(result, &merchant)
	}
	return result, rows.Err()
}

// ListTerminals retrieves all terminals assigned to a merchant
func (r *MerchantRepository) ListTerminals(merchantID int32) ([]*domain.Terminal, error) {
	return r.listTerminals(
		`SELECT id, merchant_id, product_id, mid, tid FROM terminals WHERE merchant_id = $1 ORDER BY id`, merchantID)
}

// ListTerminalsByProduct retrieves the merchant's terminals for one product
func (r *MerchantRepository) ListTerminalsByProduct(merchantID, productID int32) ([]*domain.Terminal, error) {
	return r.listTerminals(
		`SELECT id, merchant_id, product_id, mid, tid FROM terminals WHERE merchant_id = $1 AND product_id = $2 ORDER BY id`,
		merchantID, productID)
}

func (r *MerchantRepository) listTerminals(sql string, args ...any) ([]*domain.Terminal, error) {
	ctx := context.Background()

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Terminal
	for rows.Next() {
		var terminal domain.Terminal
		if err := rows.Scan(&terminal.ID, &terminal.MerchantID, &terminal.ProductID, &terminal.MID, &terminal.TID); err != nil {
			return nil, err
		}
		result = append(result, &terminal)
	}
	return result, rows.Err()
}
