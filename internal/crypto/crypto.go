// Package crypto provides the secret-encryption service used for connection
// profiles. There is exactly one decrypt path in the system: this service.
package crypto

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fernet/fernet-go"
)

const keyFileName = "fernet.key"

// ErrDecrypt is returned when a ciphertext cannot be verified and decrypted.
var ErrDecrypt = errors.New("decrypt: invalid token")

// Service encrypts and decrypts profile secrets with a fernet key kept in
// the data directory. Construct once in main and pass by reference; Service
// is safe for concurrent use.
type Service struct {
	key *fernet.Key
}

// NewService loads the fernet key from dataPath, generating and persisting
// a new one on first run.
func NewService(dataPath string) (*Service, error) {
	if err := os.MkdirAll(dataPath, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	keyPath := filepath.Join(dataPath, keyFileName)

	data, err := os.ReadFile(keyPath)
	if err == nil {
		key, err := fernet.DecodeKey(string(data))
		if err != nil {
			return nil, fmt.Errorf("decode fernet key %s: %w", keyPath, err)
		}
		return &Service{key: key}, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read fernet key: %w", err)
	}

	var key fernet.Key
	if err := key.Generate(); err != nil {
		return nil, fmt.Errorf("generate fernet key: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(key.Encode()), 0600); err != nil {
		return nil, fmt.Errorf("save fernet key: %w", err)
	}
	return &Service{key: &key}, nil
}

// Encrypt returns the fernet token for plaintext. Empty input encrypts to
// an empty string so optional secrets stay empty at rest.
func (s *Service) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	tok, err := fernet.EncryptAndSign([]byte(plaintext), s.key)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	return string(tok), nil
}

// Decrypt verifies and decrypts a fernet token. Empty ciphertext yields an
// empty plaintext. Tokens never expire; profiles live indefinitely.
func (s *Service) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	msg := fernet.VerifyAndDecrypt([]byte(ciphertext), 0*time.Second, []*fernet.Key{s.key})
	if msg == nil {
		return "", ErrDecrypt
	}
	return string(msg), nil
}

// Mask returns a display-safe form of a secret.
func Mask(value string) string {
	if value == "" {
		return ""
	}
	if len(value) > 4 {
		return "****" + value[len(value)-4:]
	}
	return "****"
}
