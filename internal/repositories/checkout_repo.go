package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/scarif/internal/database"
	"github.com/BradenHooton/scarif/internal/models"
	"github.com/BradenHooton/scarif/internal/money"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CheckoutRepository struct {
	pool *pgxpool.Pool
}

func NewCheckoutRepository(db *database.DB) *CheckoutRepository {
	return &CheckoutRepository{pool: db.Pool}
}

// Monetary columns travel as text so the fixed-point representation is
// never coerced through a float.
func scanCheckoutRow(scanner rowScanner) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	var subtotal, shipping, discount, total string

	err := scanner.Scan(
		&session.ID, &session.AccountEmail,
		&subtotal, &shipping, &discount, &total,
		&session.AppliedCoupon, &session.FraudBlocked,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	for _, field := range []struct {
		dst *money.Money
		src string
	}{
		{&session.Subtotal, subtotal},
		{&session.Shipping, shipping},
		{&session.Discount, discount},
		{&session.Total, total},
	} {
		m, err := money.FromString(field.src)
		if err != nil {
			return nil, fmt.Errorf("invalid monetary value %q: %w", field.src, err)
		}
		*field.dst = m
	}

	return &session, nil
}

func (r *CheckoutRepository) Create(ctx context.Context, session *models.CheckoutSession) error {
	query := `
		INSERT INTO checkout_sessions (id, account_email, subtotal, shipping, discount, total, applied_coupon, fraud_blocked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		session.ID, session.AccountEmail,
		session.Subtotal.String(), session.Shipping.String(),
		session.Discount.String(), session.Total.String(),
		session.AppliedCoupon, session.FraudBlocked,
		session.CreatedAt, session.UpdatedAt,
	)
	return database.MapPostgresError(err)
}

func (r *CheckoutRepository) Get(ctx context.Context, id string) (*models.CheckoutSession, error) {
	query := `
		SELECT id, account_email, subtotal::text, shipping::text, discount::text, total::text, applied_coupon, fraud_blocked, created_at, updated_at
		FROM checkout_sessions WHERE id = $1
	`
	return scanCheckoutRow(r.pool.QueryRow(ctx, query, id))
}

func (r *CheckoutRepository) Update(ctx context.Context, session *models.CheckoutSession) error {
	query := `
		UPDATE checkout_sessions
		SET subtotal = $2, shipping = $3, discount = $4, total = $5, applied_coupon = $6, fraud_blocked = $7, updated_at = $8
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		session.ID,
		session.Subtotal.String(), session.Shipping.String(),
		session.Discount.String(), session.Total.String(),
		session.AppliedCoupon, session.FraudBlocked,
		session.UpdatedAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
