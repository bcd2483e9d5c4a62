package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	gotrue "github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
	postgrest "github.com/supabase-community/postgrest-go"
)

// SupabaseIdentityProvider talks to a Supabase project: GoTrue for
// credentials and PostgREST for the public users table.
type SupabaseIdentityProvider struct {
	auth gotrue.Client
	rest *postgrest.Client
}

// NewSupabaseIdentityProvider builds both clients against baseURL. A nil
// client gets a 10s timeout.
func NewSupabaseIdentityProvider(baseURL, apiKey string, client *http.Client) *SupabaseIdentityProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	base := strings.TrimRight(baseURL, "/")

	auth := gotrue.New("", apiKey).
		WithCustomGoTrueURL(base + "/auth/v1").
		WithClient(*client)

	rest := postgrest.NewClient(base+"/rest/v1", "public", map[string]string{
		"apikey":        apiKey,
		"Authorization": "Bearer " + apiKey,
	})
	if client.Transport != nil {
		rest.Transport.Parent = client.Transport
	}

	return &SupabaseIdentityProvider{auth: auth, rest: rest}
}

func accountFromUser(u *types.User) *Account {
	acct := &Account{ID: u.ID.String(), Email: u.Email, CreatedAt: u.CreatedAt}
	if name, ok := u.UserMetadata["username"].(string); ok {
		acct.Username = name
	}
	return acct
}

func (p *SupabaseIdentityProvider) SignInWithPassword(ctx context.Context, email, password string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := p.auth.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, providerError(err)
	}
	if resp.User.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: token response without user", ErrInvalidCredentials)
	}
	return accountFromUser(&resp.User), nil
}

func (p *SupabaseIdentityProvider) SignUp(ctx context.Context, email, password, username string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Signup copies the session user into the embedded user when
	// autoconfirm is on, so resp.User covers both response shapes.
	resp, err := p.auth.Signup(types.SignupRequest{
		Email:    email,
		Password: password,
		Data:     map[string]interface{}{"username": username},
	})
	if err != nil {
		return nil, providerError(err)
	}
	if resp.User.ID == uuid.Nil {
		return nil, errors.New("signup response without user")
	}
	return accountFromUser(&resp.User), nil
}

// FindEmailsByUsername queries the public users table. At most two rows are
// requested since the resolver only needs to know whether the match is unique.
func (p *SupabaseIdentityProvider) FindEmailsByUsername(ctx context.Context, username string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []struct {
		Email string `json:"email"`
	}
	_, err := p.rest.From("users").
		Select("email", "", false).
		Eq("username", username).
		Limit(2, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("users lookup: %w", err)
	}
	emails := make([]string, 0, len(rows))
	for _, r := range rows {
		emails = append(emails, r.Email)
	}
	return emails, nil
}

// gotrue-go reports non-2xx replies as "response status code N: <body>".
var gotrueStatus = regexp.MustCompile(`(?s)^response status code (\d{3})(?:: (.*))?$`)

// gotrueError covers both the OAuth style and the newer msg style bodies.
type gotrueError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e gotrueError) text() string {
	for _, s := range []string{e.Msg, e.ErrorDescription, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// providerError turns a 4xx GoTrue reply into a *ProviderError carrying the
// provider's message. Transport failures and 5xx replies stay plain errors.
func providerError(err error) error {
	m := gotrueStatus.FindStringSubmatch(err.Error())
	if m == nil {
		return fmt.Errorf("gotrue: %w", err)
	}
	status, convErr := strconv.Atoi(m[1])
	if convErr != nil || status < 400 || status >= 500 {
		return fmt.Errorf("gotrue: provider returned %s", m[1])
	}
	var ge gotrueError
	_ = json.Unmarshal([]byte(m[2]), &ge)
	msg := ge.text()
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &ProviderError{Status: status, Message: msg}
}
