package main

import "time"

// Credentials is the body accepted by the login and registration endpoints.
type Credentials struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Claims is the identity carried inside a bearer token.
type Claims struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Account is the identity provider's record of a user.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Claims returns the token claims derived from the account.
func (a *Account) Claims() Claims {
	return Claims{ID: a.ID, Email: a.Email, Username: a.Username}
}

// FavoriteRepo is a repository saved by a user
type FavoriteRepo struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	StarCount   int       `json:"star_count"`
	Link        string    `json:"link"`
	Language    *string   `json:"language"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session is returned after a successful login or registration.
type Session struct {
	Token string
	User  *Account
}
