package main

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

type PostgresDB struct {
	db *sql.DB
}

func NewPostgresDB(dsn string) (*PostgresDB, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	p := &PostgresDB{db: d}
	if err := p.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresDB) Init() error {
	// rely on migrations to create tables; just verify connectivity
	if err := p.db.Ping(); err != nil {
		return err
	}
	return nil
}

const pgUniqueViolation = "23505"

func (p *PostgresDB) CreateAccount(ctx context.Context, a *Account) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO accounts(id,email,username,password,created_at) VALUES($1,$2,$3,$4,$5)`,
		a.ID, a.Email, a.Username, a.PasswordHash, a.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return ErrAccountExists
		}
		return err
	}
	return nil
}

func (p *PostgresDB) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id,email,username,password,created_at FROM accounts WHERE lower(email) = lower($1)`, email)
	var a Account
	if err := row.Scan(&a.ID, &a.Email, &a.Username, &a.PasswordHash, &a.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (p *PostgresDB) FindEmailsByUsername(ctx context.Context, username string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT email FROM accounts WHERE username = $1`, username)
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

func (p *PostgresDB) InsertFavorite(ctx context.Context, f *FavoriteRepo) (*FavoriteRepo, error) {
	out := *f
	err := p.db.QueryRowContext(ctx, `INSERT INTO favorite_repos(name,description,star_count,link,language,user_id) VALUES($1,$2,$3,$4,$5,$6) RETURNING id, created_at`,
		f.Name, nullString(f.Description), f.StarCount, f.Link, nullString(f.Language), f.UserID).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *PostgresDB) ListFavorites(ctx context.Context, userID string) ([]*FavoriteRepo, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id,name,description,star_count,link,language,user_id,created_at FROM favorite_repos WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*FavoriteRepo{}
	for rows.Next() {
		var f FavoriteRepo
		var desc, lang sql.NullString
		if err := rows.Scan(&f.ID, &f.Name, &desc, &f.StarCount, &f.Link, &lang, &f.UserID, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Description = stringPtr(desc)
		f.Language = stringPtr(lang)
		out = append(out, &f)
	}
	return out, rows.Err()
}

func (p *PostgresDB) close() error { return p.db.Close() }
func (p *PostgresDB) ping() bool   { return p.db.Ping() == nil }
