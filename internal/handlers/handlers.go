// Package handlers exposes the HTTP and WebSocket surface: auth, connection
// profile CRUD, key helpers, and the terminal bridge endpoint.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/gluk-w/webterm/internal/auth"
	"github.com/gluk-w/webterm/internal/bridge"
	"github.com/gluk-w/webterm/internal/crypto"
	"github.com/gluk-w/webterm/internal/profile"
)

// Handler carries the handler dependencies, wired once in main.
type Handler struct {
	db       *gorm.DB
	crypt    *crypto.Service
	profiles *profile.Store
	sessions *auth.SessionStore
	bridge   *bridge.Bridge

	connectTimeout time.Duration
}

func New(db *gorm.DB, crypt *crypto.Service, profiles *profile.Store, sessions *auth.SessionStore, b *bridge.Bridge, connectTimeout time.Duration) *Handler {
	return &Handler{
		db:             db,
		crypt:          crypt,
		profiles:       profiles,
		sessions:       sessions,
		bridge:         b,
		connectTimeout: connectTimeout,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
