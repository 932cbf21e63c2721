package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/scarif/internal/database"
	"github.com/BradenHooton/scarif/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

// rowScanner supports both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var lockedUntil, passwordChangedAt *time.Time

	err := scanner.Scan(
		&account.Email, &account.PasswordHash, &account.FailedAttempts,
		&lockedUntil, &passwordChangedAt,
		&account.TOTPSecret, &account.TOTPNonce,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	account.LockedUntil = lockedUntil
	account.PasswordChangedAt = passwordChangedAt

	return &account, nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `
		SELECT email, password_hash, failed_attempts, locked_until, password_changed_at, totp_secret, totp_nonce, created_at, updated_at
		FROM accounts WHERE email = $1
	`
	return scanAccountRow(r.pool.QueryRow(ctx, query, email))
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query := `
		INSERT INTO accounts (email, password_hash)
		VALUES ($1, $2)
		RETURNING email, password_hash, failed_attempts, locked_until, password_changed_at, totp_secret, totp_nonce, created_at, updated_at
	`
	return scanAccountRow(r.pool.QueryRow(ctx, query, account.Email, account.PasswordHash))
}

func (r *AccountRepository) UpdateLoginState(ctx context.Context, email string, failedAttempts int, lockedUntil *time.Time) error {
	query := `
		UPDATE accounts
		SET failed_attempts = $2, locked_until = $3, updated_at = now()
		WHERE email = $1
	`
	tag, err := r.pool.Exec(ctx, query, email, failedAttempts, lockedUntil)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) UpdateTOTP(ctx context.Context, email string, secret, nonce []byte) error {
	query := `
		UPDATE accounts
		SET totp_secret = $2, totp_nonce = $3, updated_at = now()
		WHERE email = $1
	`
	tag, err := r.pool.Exec(ctx, query, email, secret, nonce)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
