package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/coder/websocket"

	"github.com/gluk-w/webterm/internal/bridge"
	"github.com/gluk-w/webterm/internal/middleware"
	"github.com/gluk-w/webterm/internal/profile"
)

// WebSocket close codes for failures after the upgrade.
const (
	wsCloseNotFound    websocket.StatusCode = 4004
	wsCloseForbidden   websocket.StatusCode = 4403
	wsCloseServerError websocket.StatusCode = 4500
)

// Terminal upgrades the request to a WebSocket and runs a full terminal
// session against the referenced connection.
//
// Query parameters:
//   - connection_id: required, the stored connection to open.
//   - auth_method: optional override ("password" or "key") of the
//     connection's declared method.
func (h *Handler) Terminal(w http.ResponseWriter, r *http.Request) {
	// Validate the id before touching the socket or the store so bad
	// requests fail with a plain HTTP status.
	rawID := r.URL.Query().Get("connection_id")
	if rawID == "" {
		writeError(w, http.StatusBadRequest, "connection_id is required")
		return
	}
	id, err := strconv.Atoi(rawID)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid connection ID")
		return
	}

	user := middleware.GetUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	authHint := r.URL.Query().Get("auth_method")

	clientConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("[terminal] websocket accept failed: %v", err)
		return
	}
	defer clientConn.CloseNow()

	ctx := r.Context()

	p, err := h.profiles.Resolve(ctx, uint(id), user.ID)
	switch {
	case errors.Is(err, profile.ErrNotFound):
		clientConn.Close(wsCloseNotFound, "Connection not found")
		return
	case errors.Is(err, profile.ErrForbidden):
		clientConn.Close(wsCloseForbidden, "Access denied")
		return
	case err != nil:
		log.Printf("[terminal] resolve connection %d: %v", id, err)
		clientConn.Close(wsCloseServerError, "Failed to load connection")
		return
	}

	h.bridge.Run(ctx, bridge.NewWSTransport(clientConn), p, authHint, h.profiles)
}
