package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// IdentityProvider is the service of record for account credentials.
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Account, error)
	SignUp(ctx context.Context, email, password, username string) (*Account, error)
}

// AuthService runs the login and registration flows.
type AuthService struct {
	Provider IdentityProvider
	Resolver *CredentialResolver
	Tokens   *TokenIssuer
	Log      *zap.Logger
}

// Login verifies credentials and issues a token. All failures past input
// validation collapse into ErrInvalidCredentials; the cause is only logged.
func (s *AuthService) Login(ctx context.Context, c Credentials) (*Session, error) {
	if err := validateLogin(c); err != nil {
		return nil, err
	}
	email, err := s.Resolver.Resolve(ctx, c)
	if err != nil {
		return nil, s.loginFailure(c, err)
	}
	acct, err := s.Provider.SignInWithPassword(ctx, email, c.Password)
	if err != nil {
		return nil, s.loginFailure(c, err)
	}
	if acct == nil {
		return nil, s.loginFailure(c, errors.New("provider returned no account"))
	}
	token, err := s.Tokens.Issue(acct.Claims())
	if err != nil {
		return nil, s.loginFailure(c, err)
	}
	return &Session{Token: token, User: acct}, nil
}

func (s *AuthService) loginFailure(c Credentials, cause error) error {
	s.Log.Warn("login rejected",
		zap.Bool("by_username", c.Email == ""),
		zap.Error(cause),
	)
	if errors.Is(cause, ErrInvalidCredentials) {
		return cause
	}
	return fmt.Errorf("%w: %v", ErrInvalidCredentials, cause)
}

// Register creates an account with username metadata and issues a token.
func (s *AuthService) Register(ctx context.Context, c Credentials) (*Session, error) {
	if c.Email == "" || c.Password == "" || c.Username == "" {
		return nil, validationError("Email, password, and username are required")
	}
	acct, err := s.Provider.SignUp(ctx, c.Email, c.Password, c.Username)
	if err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: sign up: %v", ErrUpstream, err)
	}
	if acct == nil {
		return nil, fmt.Errorf("%w: provider returned no account", ErrUpstream)
	}
	token, err := s.Tokens.Issue(acct.Claims())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return &Session{Token: token, User: acct}, nil
}
