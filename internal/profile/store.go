// Package profile resolves stored connection profiles for terminal
// sessions. It is the only component that reads connection rows on behalf
// of the session bridge; secrets stay encrypted in the resolved profile and
// are decrypted item-by-item through the injected crypto service.
package profile

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/gluk-w/webterm/internal/crypto"
	"github.com/gluk-w/webterm/internal/database"
)

var (
	// ErrNotFound means no connection with the given id exists.
	ErrNotFound = errors.New("connection not found")
	// ErrForbidden means the connection belongs to a different user.
	ErrForbidden = errors.New("connection access denied")
)

// KeyMaterial is one private key attached to a profile. Content and
// Passphrase are still encrypted; callers decrypt them per key so one
// undecryptable key cannot poison the rest.
type KeyMaterial struct {
	ID          string
	SourceKind  string // database.KeySourceUploaded or database.KeySourceFile
	Content     string // encrypted
	FilePath    string
	Passphrase  string // encrypted
	Fingerprint string
	IsPrimary   bool
}

// Profile is a resolved connection profile. It is immutable for the
// lifetime of a session; concurrent sessions each get their own copy.
type Profile struct {
	ID         uint
	Name       string
	Host       string
	Port       int
	Username   string
	AuthMethod string // "password" or "key"
	Password   string // encrypted

	// Legacy single-key fields, used only when Keys is empty.
	PrivateKeyContent string // encrypted
	PrivateKeyPath    string
	Passphrase        string // encrypted

	Keys []KeyMaterial
}

// Store fetches and maps connection rows. Safe for concurrent use.
type Store struct {
	db    *gorm.DB
	crypt *crypto.Service
}

func NewStore(db *gorm.DB, crypt *crypto.Service) *Store {
	return &Store{db: db, crypt: crypt}
}

// Decrypt exposes the single decrypt path to consumers of resolved
// profiles (the candidate builder).
func (s *Store) Decrypt(ciphertext string) (string, error) {
	return s.crypt.Decrypt(ciphertext)
}

// Resolve fetches the connection with the given id, scoped to userID.
// Returns ErrNotFound or ErrForbidden accordingly.
func (s *Store) Resolve(ctx context.Context, id uint, userID uint) (*Profile, error) {
	var conn database.Connection
	err := s.db.WithContext(ctx).
		Preload("SSHKeys", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order, created_at")
		}).
		First(&conn, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load connection %d: %w", id, err)
	}

	if conn.UserID != userID {
		return nil, ErrForbidden
	}

	p := &Profile{
		ID:                conn.ID,
		Name:              conn.Name,
		Host:              conn.Host,
		Port:              conn.Port,
		Username:          conn.Username,
		AuthMethod:        conn.AuthMethod,
		Password:          conn.Password,
		PrivateKeyContent: conn.PrivateKeyContent,
		PrivateKeyPath:    conn.PrivateKeyPath,
		Passphrase:        conn.Passphrase,
	}
	for _, k := range conn.SSHKeys {
		p.Keys = append(p.Keys, KeyMaterial{
			ID:          k.ID,
			SourceKind:  k.SourceKind,
			Content:     k.Content,
			FilePath:    k.FilePath,
			Passphrase:  k.Passphrase,
			Fingerprint: k.Fingerprint,
			IsPrimary:   k.IsPrimary,
		})
	}
	return p, nil
}
