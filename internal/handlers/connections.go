package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gluk-w/webterm/internal/crypto"
	"github.com/gluk-w/webterm/internal/database"
	"github.com/gluk-w/webterm/internal/middleware"
	"github.com/gluk-w/webterm/internal/sshkeys"
)

// connectionKeyInput is one key in a create/update request. Content and
// FilePath are mutually exclusive; Content wins when both are set.
type connectionKeyInput struct {
	Content    string `json:"content"`
	FilePath   string `json:"file_path"`
	Passphrase string `json:"passphrase"`
	IsPrimary  bool   `json:"is_primary"`
}

type connectionInput struct {
	Name       string               `json:"name"`
	Host       string               `json:"host"`
	Port       int                  `json:"port"`
	Username   string               `json:"username"`
	AuthMethod string               `json:"auth_method"`
	Password   string               `json:"password"`
	Keys       []connectionKeyInput `json:"keys"`
}

type keyResponse struct {
	ID          string `json:"id"`
	SourceKind  string `json:"source_kind"`
	FilePath    string `json:"file_path,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	IsPrimary   bool   `json:"is_primary"`
	SortOrder   int    `json:"sort_order"`
}

// connectionResponse is a Connection with secrets masked for display.
type connectionResponse struct {
	ID         uint          `json:"id"`
	Name       string        `json:"name"`
	Host       string        `json:"host"`
	Port       int           `json:"port"`
	Username   string        `json:"username"`
	AuthMethod string        `json:"auth_method"`
	Password   string        `json:"password,omitempty"`
	Keys       []keyResponse `json:"keys"`
	CreatedAt  string        `json:"created_at"`
	UpdatedAt  string        `json:"updated_at"`
}

func toConnectionResponse(conn *database.Connection) connectionResponse {
	resp := connectionResponse{
		ID:         conn.ID,
		Name:       conn.Name,
		Host:       conn.Host,
		Port:       conn.Port,
		Username:   conn.Username,
		AuthMethod: conn.AuthMethod,
		Password:   crypto.Mask(conn.Password),
		Keys:       make([]keyResponse, 0, len(conn.SSHKeys)),
		CreatedAt:  conn.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		UpdatedAt:  conn.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	for _, k := range conn.SSHKeys {
		resp.Keys = append(resp.Keys, keyResponse{
			ID:          k.ID,
			SourceKind:  k.SourceKind,
			FilePath:    k.FilePath,
			Fingerprint: k.Fingerprint,
			IsPrimary:   k.IsPrimary,
			SortOrder:   k.SortOrder,
		})
	}
	return resp
}

// connectionID parses the {id} route parameter.
func connectionID(r *http.Request) (uint, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, errors.New("invalid connection id")
	}
	return uint(id), nil
}

// loadOwnedConnection fetches a connection scoped to the requesting user.
func (h *Handler) loadOwnedConnection(r *http.Request, id uint) (*database.Connection, int, string) {
	user := middleware.GetUser(r)
	if user == nil {
		return nil, http.StatusUnauthorized, "Authentication required"
	}

	var conn database.Connection
	err := h.db.Preload("SSHKeys", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order, created_at")
	}).First(&conn, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, http.StatusNotFound, "Connection not found"
	}
	if err != nil {
		return nil, http.StatusInternalServerError, "Database error"
	}
	if conn.UserID != user.ID {
		return nil, http.StatusForbidden, "Access denied"
	}
	return &conn, 0, ""
}

func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var conns []database.Connection
	err := h.db.Preload("SSHKeys", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order, created_at")
	}).Where("user_id = ?", user.ID).Order("name").Find(&conns).Error
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	resp := make([]connectionResponse, len(conns))
	for i := range conns {
		resp[i] = toConnectionResponse(&conns[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetConnection(w http.ResponseWriter, r *http.Request) {
	id, err := connectionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid connection ID")
		return
	}

	conn, status, detail := h.loadOwnedConnection(r, id)
	if conn == nil {
		writeError(w, status, detail)
		return
	}
	writeJSON(w, http.StatusOK, toConnectionResponse(conn))
}

func (h *Handler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var body connectionInput
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Name == "" || body.Host == "" || body.Username == "" {
		writeError(w, http.StatusBadRequest, "Name, host and username are required")
		return
	}

	method := body.AuthMethod
	if method == "" {
		if len(body.Keys) > 0 {
			method = "key"
		} else {
			method = "password"
		}
	}
	if method != "password" && method != "key" {
		writeError(w, http.StatusBadRequest, "Auth method must be 'password' or 'key'")
		return
	}

	port := body.Port
	if port == 0 {
		port = 22
	}

	encPassword, err := h.crypt.Encrypt(body.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encrypt password")
		return
	}

	conn := &database.Connection{
		UserID:     user.ID,
		Name:       body.Name,
		Host:       body.Host,
		Port:       port,
		Username:   body.Username,
		AuthMethod: method,
		Password:   encPassword,
	}

	keys, err := h.buildKeyRows(body.Keys)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encrypt key material")
		return
	}
	conn.SSHKeys = keys

	if err := h.db.Create(conn).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create connection")
		return
	}
	writeJSON(w, http.StatusCreated, toConnectionResponse(conn))
}

func (h *Handler) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	id, err := connectionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid connection ID")
		return
	}

	conn, status, detail := h.loadOwnedConnection(r, id)
	if conn == nil {
		writeError(w, status, detail)
		return
	}

	// Pointer fields distinguish "absent" from "set to empty": an omitted
	// password keeps the stored secret, an empty one clears it.
	var body struct {
		Name       *string               `json:"name"`
		Host       *string               `json:"host"`
		Port       *int                  `json:"port"`
		Username   *string               `json:"username"`
		AuthMethod *string               `json:"auth_method"`
		Password   *string               `json:"password"`
		Keys       *[]connectionKeyInput `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if body.Name != nil {
		conn.Name = *body.Name
	}
	if body.Host != nil {
		conn.Host = *body.Host
	}
	if body.Port != nil && *body.Port > 0 {
		conn.Port = *body.Port
	}
	if body.Username != nil {
		conn.Username = *body.Username
	}
	if body.AuthMethod != nil {
		if *body.AuthMethod != "password" && *body.AuthMethod != "key" {
			writeError(w, http.StatusBadRequest, "Auth method must be 'password' or 'key'")
			return
		}
		conn.AuthMethod = *body.AuthMethod
	}
	if body.Password != nil {
		enc, err := h.crypt.Encrypt(*body.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to encrypt password")
			return
		}
		conn.Password = enc
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if body.Keys != nil {
			if err := tx.Where("connection_id = ?", conn.ID).Delete(&database.SSHKey{}).Error; err != nil {
				return err
			}
			keys, err := h.buildKeyRows(*body.Keys)
			if err != nil {
				return err
			}
			for i := range keys {
				keys[i].ConnectionID = conn.ID
			}
			conn.SSHKeys = keys
			if len(keys) > 0 {
				if err := tx.Create(&keys).Error; err != nil {
					return err
				}
			}
		}
		return tx.Omit("SSHKeys").Save(conn).Error
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update connection")
		return
	}

	writeJSON(w, http.StatusOK, toConnectionResponse(conn))
}

func (h *Handler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	id, err := connectionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid connection ID")
		return
	}

	conn, status, detail := h.loadOwnedConnection(r, id)
	if conn == nil {
		writeError(w, status, detail)
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("connection_id = ?", conn.ID).Delete(&database.SSHKey{}).Error; err != nil {
			return err
		}
		return tx.Delete(&database.Connection{}, conn.ID).Error
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete connection")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// buildKeyRows turns key inputs into SSHKey rows with encrypted secrets and
// display fingerprints. Entries with neither content nor a file path are
// dropped.
func (h *Handler) buildKeyRows(inputs []connectionKeyInput) ([]database.SSHKey, error) {
	var keys []database.SSHKey
	for i, in := range inputs {
		key := database.SSHKey{
			ID:        uuid.New().String(),
			IsPrimary: in.IsPrimary,
			SortOrder: i,
		}
		switch {
		case in.Content != "":
			key.SourceKind = database.KeySourceUploaded
			enc, err := h.crypt.Encrypt(in.Content)
			if err != nil {
				return nil, err
			}
			key.Content = enc
			if fp, err := sshkeys.Fingerprint([]byte(in.Content), in.Passphrase); err == nil {
				key.Fingerprint = fp
			}
		case in.FilePath != "":
			key.SourceKind = database.KeySourceFile
			key.FilePath = in.FilePath
		default:
			continue
		}

		enc, err := h.crypt.Encrypt(in.Passphrase)
		if err != nil {
			return nil, err
		}
		key.Passphrase = enc
		keys = append(keys, key)
	}
	return keys, nil
}
