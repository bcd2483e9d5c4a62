package main

import (
	"context"
	"fmt"
	"strings"
)

// UserDirectory looks up account emails by username.
type UserDirectory interface {
	FindEmailsByUsername(ctx context.Context, username string) ([]string, error)
}

// CredentialResolver turns login credentials into the email the identity
// provider expects.
type CredentialResolver struct {
	Directory UserDirectory
}

func validateLogin(c Credentials) error {
	if (c.Email == "" && c.Username == "") || c.Password == "" {
		return validationError("Email or username and password are required")
	}
	return nil
}

// Resolve returns c.Email when present, otherwise the single email registered
// for c.Username. Lookup failures and ambiguous matches are reported as
// ErrInvalidCredentials so callers cannot tell them apart from a bad password.
func (r *CredentialResolver) Resolve(ctx context.Context, c Credentials) (string, error) {
	if err := validateLogin(c); err != nil {
		return "", err
	}
	if c.Email != "" {
		return c.Email, nil
	}
	emails, err := r.Directory.FindEmailsByUsername(ctx, c.Username)
	if err != nil {
		return "", fmt.Errorf("%w: username lookup: %v", ErrInvalidCredentials, err)
	}
	switch len(emails) {
	case 1:
		if strings.TrimSpace(emails[0]) == "" {
			return "", fmt.Errorf("%w: empty email on record", ErrInvalidCredentials)
		}
		return emails[0], nil
	case 0:
		return "", fmt.Errorf("%w: unknown username", ErrInvalidCredentials)
	default:
		return "", fmt.Errorf("%w: %d accounts share username", ErrInvalidCredentials, len(emails))
	}
}
