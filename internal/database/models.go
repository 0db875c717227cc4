package database

import "time"

// Connection is a stored profile describing how to reach and authenticate
// to a remote host. Secret columns hold fernet tokens, never plaintext.
type Connection struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uint   `gorm:"not null;index" json:"-"`
	Name       string `gorm:"not null" json:"name"`
	Host       string `gorm:"not null" json:"host"`
	Port       int    `gorm:"not null;default:22" json:"port"`
	Username   string `gorm:"not null" json:"username"`
	AuthMethod string `gorm:"not null;default:password" json:"auth_method"` // "password" or "key"
	Password   string `json:"-"`                                            // encrypted

	// Legacy single-key columns, kept for rows created before multi-key
	// support. New rows use the SSHKeys association instead.
	PrivateKeyPath    string `json:"-"`
	PrivateKeyContent string `json:"-"` // encrypted
	Passphrase        string `json:"-"` // encrypted
	KeyFingerprint    string `json:"key_fingerprint,omitempty"`

	SSHKeys []SSHKey `gorm:"foreignKey:ConnectionID;constraint:OnDelete:CASCADE" json:"ssh_keys,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Key source kinds.
const (
	KeySourceUploaded = "uploaded" // Content holds the (encrypted) key material
	KeySourceFile     = "file"     // FilePath points at a key on local disk
)

// SSHKey is one private key attached to a connection. A connection may carry
// several; IsPrimary is a sort hint, not a uniqueness constraint.
type SSHKey struct {
	ID           string `gorm:"primaryKey;size:36" json:"id"`
	ConnectionID uint   `gorm:"not null;index" json:"-"`
	SourceKind   string `gorm:"not null;default:uploaded" json:"source_kind"`
	Content      string `json:"-"` // encrypted
	FilePath     string `json:"file_path,omitempty"`
	Passphrase   string `json:"-"` // encrypted
	Fingerprint  string `json:"fingerprint,omitempty"`
	IsPrimary    bool   `json:"is_primary"`
	SortOrder    int    `gorm:"not null;default:0" json:"sort_order"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null;size:64" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"not null;default:user" json:"role"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
