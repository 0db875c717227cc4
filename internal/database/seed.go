package database

import (
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/gluk-w/webterm/internal/crypto"
	"github.com/gluk-w/webterm/internal/logutil"
	"github.com/gluk-w/webterm/internal/sshkeys"
)

// seedFile is the on-disk YAML shape for pre-provisioned connections.
type seedFile struct {
	Connections []seedConnection `yaml:"connections"`
}

type seedConnection struct {
	Name       string    `yaml:"name"`
	Host       string    `yaml:"host"`
	Port       int       `yaml:"port"`
	Username   string    `yaml:"username"`
	AuthMethod string    `yaml:"auth_method"`
	Password   string    `yaml:"password"`
	Keys       []seedKey `yaml:"keys"`
}

type seedKey struct {
	Content    string `yaml:"content"`
	FilePath   string `yaml:"file_path"`
	Passphrase string `yaml:"passphrase"`
	IsPrimary  bool   `yaml:"is_primary"`
}

// ImportSeed loads connections from a YAML file and inserts any that the
// owner does not already have, encrypting secrets on the way in. Existing
// connections (matched by name) are left untouched, so the import is
// idempotent across restarts.
func ImportSeed(db *gorm.DB, crypt *crypto.Service, path string, ownerID uint) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	imported := 0
	for _, sc := range seed.Connections {
		if sc.Name == "" || sc.Host == "" || sc.Username == "" {
			log.Printf("[seed] skipping entry with missing name/host/username")
			continue
		}

		var count int64
		db.Model(&Connection{}).Where("user_id = ? AND name = ?", ownerID, sc.Name).Count(&count)
		if count > 0 {
			continue
		}

		conn, err := buildSeedConnection(crypt, sc, ownerID)
		if err != nil {
			log.Printf("[seed] skipping %s: %v", logutil.SanitizeForLog(sc.Name), err)
			continue
		}

		if err := db.Create(conn).Error; err != nil {
			return fmt.Errorf("create seeded connection %s: %w", sc.Name, err)
		}
		imported++
	}

	if imported > 0 {
		log.Printf("[seed] imported %d connection(s) from %s", imported, path)
	}
	return nil
}

func buildSeedConnection(crypt *crypto.Service, sc seedConnection, ownerID uint) (*Connection, error) {
	method := sc.AuthMethod
	if method == "" {
		if len(sc.Keys) > 0 {
			method = "key"
		} else {
			method = "password"
		}
	}

	port := sc.Port
	if port == 0 {
		port = 22
	}

	encPassword, err := crypt.Encrypt(sc.Password)
	if err != nil {
		return nil, fmt.Errorf("encrypt password: %w", err)
	}

	conn := &Connection{
		UserID:     ownerID,
		Name:       sc.Name,
		Host:       sc.Host,
		Port:       port,
		Username:   sc.Username,
		AuthMethod: method,
		Password:   encPassword,
	}

	for i, sk := range sc.Keys {
		key := SSHKey{
			ID:        uuid.New().String(),
			IsPrimary: sk.IsPrimary,
			SortOrder: i,
		}
		switch {
		case sk.Content != "":
			key.SourceKind = KeySourceUploaded
			key.Content, err = crypt.Encrypt(sk.Content)
			if err != nil {
				return nil, fmt.Errorf("encrypt key content: %w", err)
			}
			if fp, err := sshkeys.Fingerprint([]byte(sk.Content), sk.Passphrase); err == nil {
				key.Fingerprint = fp
			}
		case sk.FilePath != "":
			key.SourceKind = KeySourceFile
			key.FilePath = sk.FilePath
		default:
			continue
		}
		key.Passphrase, err = crypt.Encrypt(sk.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("encrypt key passphrase: %w", err)
		}
		conn.SSHKeys = append(conn.SSHKeys, key)
	}

	return conn, nil
}
