package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ErrBodyTooLarge
		}
		return validationError("Invalid request body")
	}
	return nil
}

func (a *App) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var c Credentials
	if err := decodeJSON(w, r, &c); err != nil {
		a.writeServiceError(w, err, "")
		return
	}
	sess, err := a.Auth.Login(r.Context(), c)
	a.Metrics.RecordAuthAttempt("login", err == nil)
	if err != nil {
		a.writeServiceError(w, err, "Login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Login successful",
		"user":    sess.User,
		"token":   sess.Token,
	})
}

func (a *App) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var c Credentials
	if err := decodeJSON(w, r, &c); err != nil {
		a.writeServiceError(w, err, "")
		return
	}
	sess, err := a.Auth.Register(r.Context(), c)
	a.Metrics.RecordAuthAttempt("register", err == nil)
	if err != nil {
		a.writeServiceError(w, err, "Internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully",
		"user":    sess.User,
		"token":   sess.Token,
	})
}

type favoriteRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	StarCount   *int    `json:"starCount"`
	Link        string  `json:"link"`
	Language    *string `json:"language"`
}

func (a *App) HandleFavoriteRepo(w http.ResponseWriter, r *http.Request) {
	userID, err := verifiedUserID(r)
	if err != nil {
		a.writeServiceError(w, err, "")
		return
	}
	var in favoriteRequest
	if err := decodeJSON(w, r, &in); err != nil {
		a.writeServiceError(w, err, "")
		return
	}
	if in.Name == "" || in.Link == "" {
		a.writeServiceError(w, validationError("name and link are required"), "")
		return
	}

	fav := &FavoriteRepo{
		Name:        in.Name,
		Description: in.Description,
		Link:        in.Link,
		Language:    in.Language,
		UserID:      userID,
	}
	if in.StarCount != nil {
		fav.StarCount = *in.StarCount
	}

	saved, err := a.Favorites.InsertFavorite(r.Context(), fav)
	if err != nil {
		a.Log.Error("insert favorite", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Server error adding favorite repo")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Repo added to favorites",
		"repo":    saved,
	})
}

func (a *App) HandleFavorites(w http.ResponseWriter, r *http.Request) {
	userID, err := verifiedUserID(r)
	if err != nil {
		a.writeServiceError(w, err, "")
		return
	}
	repos, err := a.Favorites.ListFavorites(r.Context(), userID)
	if err != nil {
		a.Log.Error("list favorites", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch favorite repositories")
		return
	}
	if repos == nil {
		repos = []*FavoriteRepo{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Favorite repositories retrieved successfully",
		"repos":   repos,
	})
}
