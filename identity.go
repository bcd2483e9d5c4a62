package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const minPasswordLength = 6

// LocalIdentityProvider keeps accounts in the application database with
// bcrypt password hashes.
type LocalIdentityProvider struct {
	DB  DB
	now func() time.Time
}

func NewLocalIdentityProvider(db DB) *LocalIdentityProvider {
	return &LocalIdentityProvider{DB: db, now: time.Now}
}

// dummyHash keeps the missing-account path as slow as a wrong password.
var dummyHash, _ = hashPassword("not-a-real-password")

func (p *LocalIdentityProvider) SignInWithPassword(ctx context.Context, email, password string) (*Account, error) {
	acct, err := p.DB.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if acct == nil {
		comparePassword(dummyHash, password)
		return nil, fmt.Errorf("%w: no account for email", ErrInvalidCredentials)
	}
	if !comparePassword(acct.PasswordHash, password) {
		return nil, fmt.Errorf("%w: password mismatch", ErrInvalidCredentials)
	}
	return acct, nil
}

func (p *LocalIdentityProvider) SignUp(ctx context.Context, email, password, username string) (*Account, error) {
	if len(password) < minPasswordLength {
		return nil, &ProviderError{Message: fmt.Sprintf("Password should be at least %d characters.", minPasswordLength)}
	}
	hashed, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	acct := &Account{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: hashed,
		CreatedAt:    p.now().UTC(),
	}
	if err := p.DB.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return nil, &ProviderError{Message: "User already registered"}
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return acct, nil
}

// FindEmailsByUsername serves the resolver from the same account table.
func (p *LocalIdentityProvider) FindEmailsByUsername(ctx context.Context, username string) ([]string, error) {
	return p.DB.FindEmailsByUsername(ctx, username)
}
