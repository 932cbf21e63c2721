package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/scarif/internal/database"
	"github.com/BradenHooton/scarif/internal/models"
	"github.com/jackc/pgx/v5"
)

type ResetTokenRepository struct {
	db *database.DB
}

func NewResetTokenRepository(db *database.DB) *ResetTokenRepository {
	return &ResetTokenRepository{db: db}
}

// Replace installs the account's single outstanding token. The unique index
// on account_email means the prior token, consumed or not, is dropped first.
func (r *ResetTokenRepository) Replace(ctx context.Context, token *models.ResetToken) error {
	query := `
		INSERT INTO reset_tokens (token_hash, account_email, issued_at, expires_at, consumed)
		VALUES ($1, $2, $3, $4, FALSE)
		ON CONFLICT (account_email) DO UPDATE
		SET token_hash = EXCLUDED.token_hash, issued_at = EXCLUDED.issued_at, expires_at = EXCLUDED.expires_at, consumed = FALSE
	`
	_, err := r.db.Pool.Exec(ctx, query, token.TokenHash, token.AccountEmail, token.IssuedAt, token.ExpiresAt)
	return database.MapPostgresError(err)
}

func (r *ResetTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*models.ResetToken, error) {
	query := `
		SELECT token_hash, account_email, issued_at, expires_at, consumed
		FROM reset_tokens WHERE token_hash = $1
	`
	var token models.ResetToken
	err := r.db.Pool.QueryRow(ctx, query, tokenHash).Scan(
		&token.TokenHash, &token.AccountEmail,
		&token.IssuedAt, &token.ExpiresAt, &token.Consumed,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &token, nil
}

// Consume burns the token and installs the new credential hash in one
// transaction. The CAS on the consumed flag picks a single winner under
// concurrency; if either statement touches no row the whole transaction
// rolls back and ErrNotFound is returned, leaving both token and credential
// as they were.
func (r *ResetTokenRepository) Consume(ctx context.Context, tokenHash, passwordHash string, changedAt time.Time) error {
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		tokenQuery := `
			UPDATE reset_tokens
			SET consumed = TRUE
			WHERE token_hash = $1 AND consumed = FALSE
		`
		tag, err := tx.Exec(ctx, tokenQuery, tokenHash)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}

		accountQuery := `
			UPDATE accounts
			SET password_hash = $2, password_changed_at = $3, updated_at = $3
			WHERE email = (SELECT account_email FROM reset_tokens WHERE token_hash = $1)
		`
		tag, err = tx.Exec(ctx, accountQuery, tokenHash, passwordHash, changedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return nil
	})
	return database.MapPostgresError(err)
}
