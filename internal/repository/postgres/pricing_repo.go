package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/korepay/settlement-backend/internal/domain"
)

// PricingRepository implements domain.PricingRepository using PostgreSQL
type PricingRepository struct {
	pool *pgxpool.Pool
}

// NewPricingRepository creates a new PricingRepository
func NewPricingRepository(pool *pgxpool.Pool) *PricingRepository {
	return &PricingRepository{pool: pool}
}

// GetActiveScheme retrieves the pricing scheme valid on the given date.
// A productID of zero matches schemes of any product, for batches that are
// not product-scoped.
func (r *PricingRepository) GetActiveScheme(ownerID int32, ownerType domain.OwnerType, productID int32, onDate time.Time) (*domain.PricingScheme, error) {
	ctx := context.Background()

	var (
		scheme      domain.PricingScheme
		ownerTypeDB string
		effectiveTo pgtype.Timestamptz
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, owner_type, product_id, effective_from, effective_to
		 FROM pricing_schemes
		 WHERE owner_id = $1 AND owner_type = $2
		   AND ($3 = 0 OR product_id = $3)
		   AND effective_from <= $4
		   AND (effective_to IS NULL OR effective_to >= $4)
		 ORDER BY effective_from DESC
		 LIMIT 1`, ownerID, string(ownerType), productID, onDate).
		Scan(&scheme.ID, &scheme.OwnerID, &ownerTypeDB, &scheme.ProductID, &scheme.EffectiveFrom, &effectiveTo)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNoPricingScheme
		}
		return nil, err
	}
	scheme.OwnerType = domain.OwnerType(ownerTypeDB)
	if effectiveTo.Valid {
		scheme.EffectiveTo = &effectiveTo.Time
	}
	return &scheme, nil
}

// GetCardRate retrieves the rate row for a card type within a scheme
func (r *PricingRepository) GetCardRate(schemeID int32, cardType string) (*domain.CardRate, error) {
	ctx := context.Background()

	var (
		rate domain.CardRate
		kind string
		num  pgtype.Numeric
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, scheme_id, card_type, kind, rate
		 FROM card_rates
		 WHERE scheme_id = $1 AND card_type = $2`, schemeID, cardType).
		Scan(&rate.ID, &rate.SchemeID, &rate.CardType, &kind, &num)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNoRate
		}
		return nil, err
	}
	rate.Kind = domain.RateKind(kind)
	rate.Rate = pgNumericToDecimal(num)
	return &rate, nil
}

// GetChannelRate retrieves the rate row for a channel within a scheme
func (r *PricingRepository) GetChannelRate(schemeID int32, channel string) (*domain.ChannelRate, error) {
	ctx := context.Background()

	var (
		rate domain.ChannelRate
		kind string
		num  pgtype.Numeric
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, scheme_id, channel, kind, rate
		 FROM channel_rates
		 WHERE scheme_id = $1 AND channel = $2`, schemeID, channel).
		Scan(&rate.ID, &rate.SchemeID, &rate.Channel, &kind, &num)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNoRate
		}
		return nil, err
	}
	rate.Kind = domain.RateKind(kind)
	rate.Rate = pgNumericToDecimal(num)
	return &rate, nil
}
