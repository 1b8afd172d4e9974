package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/korepay/settlement-backend/internal/domain"
)

// FranchiseRepository implements domain.FranchiseRepository using PostgreSQL
type FranchiseRepository struct {
	pool *pgxpool.Pool
}

// NewFranchiseRepository creates a new FranchiseRepository
func NewFranchiseRepository(pool *pgxpool.Pool) *FranchiseRepository {
	return &FranchiseRepository{pool: pool}
}

// GetByID retrieves a franchise by its ID
func (r *FranchiseRepository) GetByID(id int32) (*domain.Franchise, error) {
	ctx := context.Background()

	var franchise domain.Franchise
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, status FROM franchises WHERE id = $1`, id).
		Scan(&franchise.ID, &franchise.Name, &franchise.Status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrFranchiseNotFound
		}
		return nil, err
	}
	return &franchise, nil
}
