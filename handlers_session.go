package main

import (
	"net/http"
)

// HandleMe reports the identity carried by the caller's token.
// GET /users/me
func (a *App) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		a.writeServiceError(w, ErrUnauthenticated, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Token is valid",
		"user":    claims,
	})
}

func (a *App) HandleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("BackEnd up and running"))
}

func (a *App) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) HandleReady(w http.ResponseWriter, r *http.Request) {
	if p, ok := a.DB.(interface{ ping() bool }); ok && !p.ping() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}
