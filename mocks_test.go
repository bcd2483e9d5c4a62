package main

import (
	"context"
	"testing"
	"time"

	"github.com/example/gitfav/internal/metrics"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) SignInWithPassword(ctx context.Context, email, password string) (*Account, error) {
	args := m.Called(ctx, email, password)
	acct, _ := args.Get(0).(*Account)
	return acct, args.Error(1)
}

func (m *mockProvider) SignUp(ctx context.Context, email, password, username string) (*Account, error) {
	args := m.Called(ctx, email, password, username)
	acct, _ := args.Get(0).(*Account)
	return acct, args.Error(1)
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) FindEmailsByUsername(ctx context.Context, username string) ([]string, error) {
	args := m.Called(ctx, username)
	emails, _ := args.Get(0).([]string)
	return emails, args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) InsertFavorite(ctx context.Context, f *FavoriteRepo) (*FavoriteRepo, error) {
	args := m.Called(ctx, f)
	saved, _ := args.Get(0).(*FavoriteRepo)
	return saved, args.Error(1)
}

func (m *mockStore) ListFavorites(ctx context.Context, userID string) ([]*FavoriteRepo, error) {
	args := m.Called(ctx, userID)
	repos, _ := args.Get(0).([]*FavoriteRepo)
	return repos, args.Error(1)
}

var testSecret = []byte("test-secret")

// fixedClock returns a clock pinned to t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type testEnv struct {
	app       *App
	router    *mux.Router
	provider  *mockProvider
	directory *mockDirectory
	store     FavoritesStore
}

// newTestEnv builds an App around mocks. store may be nil, in which case an
// in-memory DB is used.
func newTestEnv(t *testing.T, store FavoritesStore) *testEnv {
	t.Helper()
	log := zap.NewNop()
	provider := &mockProvider{}
	directory := &mockDirectory{}
	tokens := NewTokenIssuer(testSecret)

	mem := NewMemoryDB()
	if store == nil {
		store = mem
	}
	app := &App{
		DB:        mem,
		Favorites: store,
		Tokens:    tokens,
		Auth: &AuthService{
			Provider: provider,
			Resolver: &CredentialResolver{Directory: directory},
			Tokens:   tokens,
			Log:      log,
		},
		Log:            log,
		Metrics:        metrics.NewCollector(prometheus.NewRegistry()),
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	return &testEnv{
		app:       app,
		router:    app.Router(nil),
		provider:  provider,
		directory: directory,
		store:     store,
	}
}
