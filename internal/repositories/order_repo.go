package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/scarif/internal/database"
	"github.com/BradenHooton/scarif/internal/money"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{pool: db.Pool}
}

// PriorOrderCount backs first-purchase coupon eligibility.
func (r *OrderRepository) PriorOrderCount(ctx context.Context, accountEmail string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE account_email = $1`, accountEmail).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// RecordOrder appends a completed order.
func (r *OrderRepository) RecordOrder(ctx context.Context, accountEmail string, total money.Money, completedAt time.Time) error {
	query := `INSERT INTO orders (account_email, total, completed_at) VALUES ($1, $2, $3)`
	_, err := r.pool.Exec(ctx, query, accountEmail, total.String(), completedAt)
	return database.MapPostgresError(err)
}
