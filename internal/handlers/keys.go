package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gluk-w/webterm/internal/bridge"
	"github.com/gluk-w/webterm/internal/middleware"
	"github.com/gluk-w/webterm/internal/profile"
	"github.com/gluk-w/webterm/internal/sshkeys"
)

func (h *Handler) GenerateKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type string `json:"type"`
		Bits int    `json:"bits"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch body.Type {
	case "", sshkeys.KeyTypeED25519, sshkeys.KeyTypeRSA:
	default:
		writeError(w, http.StatusBadRequest, "Key type must be 'ed25519' or 'rsa'")
		return
	}

	publicKey, privateKey, err := sshkeys.GenerateKeyPair(body.Type, body.Bits)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Key generation failed")
		return
	}

	fingerprint, err := sshkeys.Fingerprint(privateKey, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Key generation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"private_key": string(privateKey),
		"public_key":  string(publicKey),
		"fingerprint": fingerprint,
	})
}

func (h *Handler) FingerprintKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content    string `json:"content"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Content == "" {
		writeError(w, http.StatusBadRequest, "Key content is required")
		return
	}

	fingerprint, err := sshkeys.Fingerprint([]byte(body.Content), body.Passphrase)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unparseable key: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"fingerprint": fingerprint})
}

// installKeyCmd appends stdin to authorized_keys, creating ~/.ssh with the
// permissions sshd insists on.
const installKeyCmd = "mkdir -p ~/.ssh && chmod 700 ~/.ssh && cat >> ~/.ssh/authorized_keys && chmod 600 ~/.ssh/authorized_keys"

// InstallKey pushes a public key into the remote host's authorized_keys,
// connecting with the same candidate machinery terminal sessions use.
func (h *Handler) InstallKey(w http.ResponseWriter, r *http.Request) {
	id, err := connectionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid connection ID")
		return
	}

	user := middleware.GetUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var body struct {
		PublicKey  string `json:"public_key"`
		AuthMethod string `json:"auth_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	publicKey := strings.TrimSpace(body.PublicKey)
	if publicKey == "" || strings.ContainsAny(publicKey, "\n\r") {
		writeError(w, http.StatusBadRequest, "A single-line public key is required")
		return
	}

	p, err := h.profiles.Resolve(r.Context(), id, user.ID)
	switch {
	case errors.Is(err, profile.ErrNotFound):
		writeError(w, http.StatusNotFound, "Connection not found")
		return
	case errors.Is(err, profile.ErrForbidden):
		writeError(w, http.StatusForbidden, "Access denied")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	client, err := bridge.Connect(r.Context(), p, body.AuthMethod, h.profiles, h.connectTimeout)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("SSH connection failed: %v", err))
		return
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to open SSH session")
		return
	}
	defer session.Close()

	session.Stdin = bytes.NewBufferString(publicKey + "\n")
	if err := session.Run(installKeyCmd); err != nil {
		log.Printf("[keys] install on connection %d failed: %v", id, err)
		writeError(w, http.StatusBadGateway, "Failed to install key on remote host")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "installed"})
}
