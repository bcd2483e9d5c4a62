package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func doJSON(t *testing.T, env *testEnv, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func issue(t *testing.T, env *testEnv, c Claims) string {
	t.Helper()
	tok, err := env.app.Tokens.Issue(c)
	require.NoError(t, err)
	return tok
}

func TestLoginMissingFieldsReturns400WithoutCalls(t *testing.T) {
	bodies := []map[string]string{
		{"password": "pw"},
		{"email": "a@b.com"},
		{"username": "alice"},
		{"email": "", "username": "", "password": "pw"},
	}
	for _, body := range bodies {
		env := newTestEnv(t, nil)
		rr := doJSON(t, env, http.MethodPost, "/users/login", "", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "body %v", body)
		env.provider.AssertNumberOfCalls(t, "SignInWithPassword", 0)
		env.directory.AssertNumberOfCalls(t, "FindEmailsByUsername", 0)
	}
}

func TestLoginMalformedJSON(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := doJSON(t, env, http.MethodPost, "/users/login", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeBody(t, rr)["error_code"])
}

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t, nil)
	acct := &Account{ID: "id-1", Email: "alice@example.com", Username: "alice"}
	env.directory.On("FindEmailsByUsername", mock.Anything, "alice").Return([]string{"alice@example.com"}, nil)
	env.provider.On("SignInWithPassword", mock.Anything, "alice@example.com", "pw").Return(acct, nil)

	rr := doJSON(t, env, http.MethodPost, "/users/login", "", map[string]string{"username": "alice", "password": "pw"})
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "Login successful", body["message"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "id-1", user["id"])
	assert.NotContains(t, user, "PasswordHash")

	claims, err := env.app.Tokens.Verify(body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, acct.Claims(), claims)
	env.provider.AssertNotCalled(t, "SignInWithPassword", mock.Anything, "alice", mock.Anything)
}

func TestLoginUnknownUsernameLooksLikeWrongPassword(t *testing.T) {
	unknown := newTestEnv(t, nil)
	unknown.directory.On("FindEmailsByUsername", mock.Anything, "ghost").Return([]string{}, nil)
	rrUnknown := doJSON(t, unknown, http.MethodPost, "/users/login", "", map[string]string{"username": "ghost", "password": "pw"})

	wrong := newTestEnv(t, nil)
	wrong.directory.On("FindEmailsByUsername", mock.Anything, "alice").Return([]string{"alice@example.com"}, nil)
	wrong.provider.On("SignInWithPassword", mock.Anything, "alice@example.com", "nope").
		Return(nil, &ProviderError{Status: 400, Message: "Invalid login credentials"})
	rrWrong := doJSON(t, wrong, http.MethodPost, "/users/login", "", map[string]string{"username": "alice", "password": "nope"})

	assert.Equal(t, http.StatusUnauthorized, rrUnknown.Code)
	assert.Equal(t, http.StatusUnauthorized, rrWrong.Code)
	assert.Equal(t, rrWrong.Body.String(), rrUnknown.Body.String())
	assert.Equal(t, invalidCredentialsMessage, decodeBody(t, rrUnknown)["error"])
}

func TestRegisterEndpoint(t *testing.T) {
	for _, path := range []string{"/users/registerUser", "/users/register"} {
		t.Run(path, func(t *testing.T) {
			env := newTestEnv(t, nil)
			acct := &Account{ID: "id-9", Email: "c@x.com", Username: "carol"}
			env.provider.On("SignUp", mock.Anything, "c@x.com", "secret1", "carol").Return(acct, nil)

			rr := doJSON(t, env, http.MethodPost, path, "", map[string]string{"email": "c@x.com", "username": "carol", "password": "secret1"})
			require.Equal(t, http.StatusCreated, rr.Code)
			body := decodeBody(t, rr)
			assert.Equal(t, "User registered successfully", body["message"])
			assert.NotEmpty(t, body["token"])
		})
	}
}

func TestRegisterEndpointErrors(t *testing.T) {
	t.Run("missing username", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rr := doJSON(t, env, http.MethodPost, "/users/registerUser", "", map[string]string{"email": "c@x.com", "password": "secret1"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		env.provider.AssertNumberOfCalls(t, "SignUp", 0)
	})
	t.Run("provider rejection", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.provider.On("SignUp", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, &ProviderError{Message: "User already registered"})
		rr := doJSON(t, env, http.MethodPost, "/users/registerUser", "", map[string]string{"email": "c@x.com", "username": "carol", "password": "secret1"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "User already registered", decodeBody(t, rr)["error"])
	})
	t.Run("provider outage", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.provider.On("SignUp", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("pq: connection refused"))
		rr := doJSON(t, env, http.MethodPost, "/users/registerUser", "", map[string]string{"email": "c@x.com", "username": "carol", "password": "secret1"})
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "pq:")
	})
}

func TestGate(t *testing.T) {
	env := newTestEnv(t, nil)
	expired := NewTokenIssuer(testSecret)
	expired.now = fixedClock(time.Now().Add(-30 * 24 * time.Hour))
	stale, err := expired.Issue(Claims{ID: "1", Email: "a@b.com", Username: "alice"})
	require.NoError(t, err)
	foreign, err := NewTokenIssuer([]byte("elsewhere")).Issue(Claims{ID: "1"})
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"bare scheme", "Bearer", http.StatusUnauthorized},
		{"basic auth", "Basic dXNlcjpwdw==", http.StatusUnauthorized},
		{"expired", "Bearer " + stale, http.StatusForbidden},
		{"wrong secret", "Bearer " + foreign, http.StatusForbidden},
		{"garbage", "Bearer abc.def.ghi", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users/favorites", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			env.router.ServeHTTP(rr, req)
			assert.Equal(t, tc.want, rr.Code)
		})
	}
}

func TestGateRoundTripIdentity(t *testing.T) {
	env := newTestEnv(t, nil)
	want := Claims{ID: "1", Email: "a@b.com", Username: "alice"}

	var got Claims
	h := env.app.RequireToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ClaimsFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, env, want))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, want, got)

	rr := doJSON(t, env, http.MethodGet, "/users/me", issue(t, env, want), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	user := decodeBody(t, rr)["user"].(map[string]interface{})
	assert.Equal(t, "1", user["id"])
	assert.Equal(t, "a@b.com", user["email"])
	assert.Equal(t, "alice", user["username"])
}

func TestFavoriteRepoMissingLinkDoesNotInsert(t *testing.T) {
	store := &mockStore{}
	env := newTestEnv(t, store)
	tok := issue(t, env, Claims{ID: "u1"})

	rr := doJSON(t, env, http.MethodPost, "/users/favoriteRepo", tok, map[string]interface{}{"name": "gitfav"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	store.AssertNotCalled(t, "InsertFavorite", mock.Anything, mock.Anything)

	rr = doJSON(t, env, http.MethodPost, "/users/favoriteRepo", tok, map[string]interface{}{"link": "https://github.com/x/y"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	store.AssertNumberOfCalls(t, "InsertFavorite", 0)
}

func TestFavoriteRepoOwnerComesFromToken(t *testing.T) {
	store := &mockStore{}
	env := newTestEnv(t, store)
	store.On("InsertFavorite", mock.Anything, mock.MatchedBy(func(f *FavoriteRepo) bool {
		return f.UserID == "u1" && f.StarCount == 0 && f.Name == "gitfav"
	})).Return(&FavoriteRepo{ID: 7, Name: "gitfav", Link: "https://github.com/x/gitfav", UserID: "u1"}, nil).Once()

	rr := doJSON(t, env, http.MethodPost, "/users/favoriteRepo", issue(t, env, Claims{ID: "u1"}), map[string]interface{}{
		"name":    "gitfav",
		"link":    "https://github.com/x/gitfav",
		"userId":  "someone-else",
		"user_id": "someone-else",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "Repo added to favorites", body["message"])
	assert.Equal(t, "u1", body["repo"].(map[string]interface{})["user_id"])
	store.AssertExpectations(t)
}

func TestFavoriteRepoStoreFailure(t *testing.T) {
	store := &mockStore{}
	env := newTestEnv(t, store)
	store.On("InsertFavorite", mock.Anything, mock.Anything).Return(nil, errors.New("disk full"))

	rr := doJSON(t, env, http.MethodPost, "/users/favoriteRepo", issue(t, env, Claims{ID: "u1"}), map[string]interface{}{
		"name": "gitfav",
		"link": "https://github.com/x/gitfav",
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "disk full")
}

func TestFavoritesScopedAndNewestFirst(t *testing.T) {
	env := newTestEnv(t, nil)
	mem := env.store.(*MemDB)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	insert := func(at time.Time, user, name string) {
		mem.now = fixedClock(at)
		_, err := mem.InsertFavorite(ctx, &FavoriteRepo{Name: name, Link: "https://github.com/x/" + name, UserID: user})
		require.NoError(t, err)
	}
	insert(base, "u1", "t1")
	insert(base.Add(time.Minute), "u2", "other")
	insert(base.Add(2*time.Minute), "u1", "t2")
	insert(base.Add(3*time.Minute), "u1", "t3")

	rr := doJSON(t, env, http.MethodGet, "/users/favorites", issue(t, env, Claims{ID: "u1"}), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Message string          `json:"message"`
		Repos   []*FavoriteRepo `json:"repos"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Repos, 3)
	var names []string
	for _, r := range body.Repos {
		assert.Equal(t, "u1", r.UserID)
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"t3", "t2", "t1"}, names)
}

func TestFavoritesEmptyListIsArray(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := doJSON(t, env, http.MethodGet, "/users/favorites", issue(t, env, Claims{ID: "nobody"}), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"repos":[]`)
}

func TestFavoritesStoreFailure(t *testing.T) {
	store := &mockStore{}
	env := newTestEnv(t, store)
	store.On("ListFavorites", mock.Anything, "u1").Return(nil, errors.New("timeout"))

	rr := doJSON(t, env, http.MethodGet, "/users/favorites", issue(t, env, Claims{ID: "u1"}), nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/users/favoriteRepo", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	req = httptest.NewRequest(http.MethodOptions, "/users/login", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryReturns500(t *testing.T) {
	env := newTestEnv(t, nil)
	h := env.app.Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeBody(t, rr)["error_code"])
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	for path, want := range map[string]string{
		"/":       "BackEnd up and running",
		"/health": `{"status":"ok"}`,
		"/ready":  `{"ready":true}`,
	} {
		rr := doJSON(t, env, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Contains(t, rr.Body.String(), want, path)
	}
	rr := doJSON(t, env, http.MethodGet, "/health", "", nil)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}
