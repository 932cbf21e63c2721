package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/scarif/internal/database"
	"github.com/BradenHooton/scarif/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DeclineRepository struct {
	pool *pgxpool.Pool
}

func NewDeclineRepository(db *database.DB) *DeclineRepository {
	return &DeclineRepository{pool: db.Pool}
}

func (r *DeclineRepository) Record(ctx context.Context, decline *models.PaymentDecline) error {
	query := `INSERT INTO payment_declines (account_email, declined_at) VALUES ($1, $2)`
	_, err := r.pool.Exec(ctx, query, decline.AccountEmail, decline.DeclinedAt)
	return database.MapPostgresError(err)
}

func (r *DeclineRepository) ListSince(ctx context.Context, accountEmail string, since time.Time) ([]models.PaymentDecline, error) {
	query := `
		SELECT account_email, declined_at
		FROM payment_declines
		WHERE account_email = $1 AND declined_at >= $2
		ORDER BY declined_at
	`
	rows, err := r.pool.Query(ctx, query, accountEmail, since)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	declines := make([]models.PaymentDecline, 0)
	for rows.Next() {
		var d models.PaymentDecline
		if err := rows.Scan(&d.AccountEmail, &d.DeclinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan decline: %w", err)
		}
		declines = append(declines, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return declines, nil
}

// DeleteBefore prunes declines older than the cutoff; they can never count
// toward a block again.
func (r *DeclineRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM payment_declines WHERE declined_at < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
