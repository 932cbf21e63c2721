package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/scarif/internal/models"
	"github.com/BradenHooton/scarif/pkg/auth"
)

// accountPasswords is the slice of the account repository the credential
// store needs.
type accountPasswords interface {
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
}

// BcryptCredentialStore verifies account passwords against the account
// repository. Hash comparison never leaves this type.
type BcryptCredentialStore struct {
	accounts accountPasswords
}

func NewBcryptCredentialStore(accounts accountPasswords) *BcryptCredentialStore {
	return &BcryptCredentialStore{accounts: accounts}
}

// Verify reports whether password matches the account's stored hash. An
// unknown account verifies false without error; the caller decides how to
// surface that.
func (s *BcryptCredentialStore) Verify(ctx context.Context, email, password string) (bool, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load account: %w", err)
	}

	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return false, nil
	}
	return true, nil
}
