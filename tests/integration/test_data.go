package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/scarif/internal/models"
	pkgauth "github.com/BradenHooton/scarif/pkg/auth"
)

// TestAccount generates unique test account credentials using timestamp
func TestAccount(suffix string) (email, password string) {
	ts := time.Now().UnixNano()
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	password = "Correct-Horse-9-Battery"
	return
}

// SeedAccount creates an account with a bcrypt hash of the given password
func (ts *TestServer) SeedAccount(ctx context.Context, email, password string) (*models.Account, error) {
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := ts.Clock.Now()
	return ts.Accounts.Create(ctx, &models.Account{
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}
