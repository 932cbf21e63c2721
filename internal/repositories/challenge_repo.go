package repositories

import (
	"context"

	"github.com/BradenHooton/scarif/internal/database"
	"github.com/BradenHooton/scarif/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ChallengeRepository struct {
	pool *pgxpool.Pool
}

func NewChallengeRepository(db *database.DB) *ChallengeRepository {
	return &ChallengeRepository{pool: db.Pool}
}

// Replace upserts the account's single challenge row, discarding any prior
// challenge whether consumed or not.
func (r *ChallengeRepository) Replace(ctx context.Context, challenge *models.TwoFactorChallenge) error {
	query := `
		INSERT INTO two_factor_challenges (account_email, code_hash, issued_at, expires_at, consumed)
		VALUES ($1, $2, $3, $4, FALSE)
		ON CONFLICT (account_email) DO UPDATE
		SET code_hash = EXCLUDED.code_hash, issued_at = EXCLUDED.issued_at, expires_at = EXCLUDED.expires_at, consumed = FALSE
	`
	_, err := r.pool.Exec(ctx, query, challenge.AccountEmail, challenge.CodeHash, challenge.IssuedAt, challenge.ExpiresAt)
	return database.MapPostgresError(err)
}

func (r *ChallengeRepository) Get(ctx context.Context, accountEmail string) (*models.TwoFactorChallenge, error) {
	query := `
		SELECT account_email, code_hash, issued_at, expires_at, consumed
		FROM two_factor_challenges WHERE account_email = $1
	`
	var challenge models.TwoFactorChallenge
	err := r.pool.QueryRow(ctx, query, accountEmail).Scan(
		&challenge.AccountEmail, &challenge.CodeHash,
		&challenge.IssuedAt, &challenge.ExpiresAt, &challenge.Consumed,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &challenge, nil
}

// Consume is a compare-and-set on the consumed flag: exactly one concurrent
// caller can win it.
func (r *ChallengeRepository) Consume(ctx context.Context, accountEmail string) error {
	query := `
		UPDATE two_factor_challenges
		SET consumed = TRUE
		WHERE account_email = $1 AND consumed = FALSE
	`
	tag, err := r.pool.Exec(ctx, query, accountEmail)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *ChallengeRepository) Delete(ctx context.Context, accountEmail string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM two_factor_challenges WHERE account_email = $1`, accountEmail)
	return database.MapPostgresError(err)
}
