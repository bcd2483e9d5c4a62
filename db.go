package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrAccountExists is returned by CreateAccount when the email is taken.
var ErrAccountExists = errors.New("account already exists")

// FavoritesStore persists favorite repositories per user.
type FavoritesStore interface {
	InsertFavorite(ctx context.Context, f *FavoriteRepo) (*FavoriteRepo, error)
	// ListFavorites returns the user's favorites, newest first.
	ListFavorites(ctx context.Context, userID string) ([]*FavoriteRepo, error)
}

// DB interface for database operations
type DB interface {
	Init() error
	// Account operations
	CreateAccount(ctx context.Context, a *Account) error
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	FindEmailsByUsername(ctx context.Context, username string) ([]string, error)
	// Favorite operations
	FavoritesStore
}

// Memory DB
type MemDB struct {
	mu        sync.RWMutex
	accounts  map[string]*Account
	favorites []*FavoriteRepo
	seq       int64
	now       func() time.Time
}

func NewMemoryDB() *MemDB {
	return &MemDB{accounts: map[string]*Account{}, seq: 1, now: time.Now}
}

func (m *MemDB) Init() error { return nil }

func (m *MemDB) CreateAccount(_ context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(a.Email)
	if _, ok := m.accounts[key]; ok {
		return ErrAccountExists
	}
	cp := *a
	m.accounts[key] = &cp
	return nil
}

func (m *MemDB) GetAccountByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.accounts[strings.ToLower(email)]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (m *MemDB) FindEmailsByUsername(_ context.Context, username string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var emails []string
	for _, a := range m.accounts {
		if a.Username == username {
			emails = append(emails, a.Email)
		}
	}
	return emails, nil
}

func (m *MemDB) InsertFavorite(_ context.Context, f *FavoriteRepo) (*FavoriteRepo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *f
	cp.ID = m.seq
	cp.CreatedAt = m.now().UTC()
	m.seq++
	m.favorites = append(m.favorites, &cp)
	out := cp
	return &out, nil
}

func (m *MemDB) ListFavorites(_ context.Context, userID string) ([]*FavoriteRepo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*FavoriteRepo{}
	for _, f := range m.favorites {
		if f.UserID == userID {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// SQLite DB
type SQLiteDB struct {
	db *sql.DB
}

// sqliteTime is fixed width so created_at sorts lexically.
const sqliteTime = "2006-01-02 15:04:05.000000000"

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteDB{db: d}
	if err := s.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDB) Init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS accounts (id TEXT PRIMARY KEY, email TEXT NOT NULL UNIQUE COLLATE NOCASE, username TEXT NOT NULL, password TEXT NOT NULL, created_at TEXT NOT NULL);`,
		`CREATE INDEX IF NOT EXISTS accounts_username_idx ON accounts(username);`,
		`CREATE TABLE IF NOT EXISTS favorite_repos (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, description TEXT, star_count INTEGER NOT NULL DEFAULT 0, link TEXT NOT NULL, language TEXT, user_id TEXT NOT NULL, created_at TEXT NOT NULL);`,
		`CREATE INDEX IF NOT EXISTS favorite_repos_user_idx ON favorite_repos(user_id, created_at);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteDB) CreateAccount(ctx context.Context, a *Account) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO accounts(id,email,username,password,created_at) VALUES(?,?,?,?,?)`,
		a.ID, a.Email, a.Username, a.PasswordHash, a.CreatedAt.UTC().Format(sqliteTime))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrAccountExists
		}
		return err
	}
	return nil
}

func (s *SQLiteDB) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,email,username,password,created_at FROM accounts WHERE email = ?`, email)
	var a Account
	var created string
	if err := row.Scan(&a.ID, &a.Email, &a.Username, &a.PasswordHash, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	createdAt, err := parseSQLiteTime(created)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = createdAt
	return &a, nil
}

func (s *SQLiteDB) FindEmailsByUsername(ctx context.Context, username string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT email FROM accounts WHERE username = ?`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var emails []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

func (s *SQLiteDB) InsertFavorite(ctx context.Context, f *FavoriteRepo) (*FavoriteRepo, error) {
	created := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO favorite_repos(name,description,star_count,link,language,user_id,created_at) VALUES(?,?,?,?,?,?,?)`,
		f.Name, nullString(f.Description), f.StarCount, f.Link, nullString(f.Language), f.UserID, created.Format(sqliteTime))
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("favorite id: %w", err)
	}
	out := *f
	out.ID = id
	out.CreatedAt = created
	return &out, nil
}

func (s *SQLiteDB) ListFavorites(ctx context.Context, userID string) ([]*FavoriteRepo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name,description,star_count,link,language,user_id,created_at FROM favorite_repos WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*FavoriteRepo{}
	for rows.Next() {
		var f FavoriteRepo
		var desc, lang sql.NullString
		var created string
		if err := rows.Scan(&f.ID, &f.Name, &desc, &f.StarCount, &f.Link, &lang, &f.UserID, &created); err != nil {
			return nil, err
		}
		f.Description = stringPtr(desc)
		f.Language = stringPtr(lang)
		if f.CreatedAt, err = parseSQLiteTime(created); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

func parseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTime, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("created_at %q: %w", s, err)
	}
	return t, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// lifecycle helpers
func (m *MemDB) close() error { return nil }
func (m *MemDB) ping() bool   { return true }

func (s *SQLiteDB) close() error { return s.db.Close() }
func (s *SQLiteDB) ping() bool   { return s.db.Ping() == nil }
