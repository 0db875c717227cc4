package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/gluk-w/webterm/internal/crypto"
	"github.com/gluk-w/webterm/internal/sshkeys"
)

func seedTestEnv(t *testing.T) (*gorm.DB, *crypto.Service) {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { Close(db) })

	crypt, err := crypto.NewService(dir)
	if err != nil {
		t.Fatalf("crypto service: %v", err)
	}
	return db, crypt
}

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	return path
}

func TestImportSeedCreatesEncryptedConnections(t *testing.T) {
	db, crypt := seedTestEnv(t)

	_, priv, err := sshkeys.GenerateKeyPair(sshkeys.KeyTypeED25519, 0)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	path := writeSeedFile(t, `
connections:
  - name: web-1
    host: 10.0.0.1
    username: root
    password: topsecret
  - name: web-2
    host: 10.0.0.2
    port: 2222
    username: deploy
    keys:
      - content: |
`+indent(string(priv), "          ")+`
        is_primary: true
`)

	if err := ImportSeed(db, crypt, path, 7); err != nil {
		t.Fatalf("ImportSeed: %v", err)
	}

	var conns []Connection
	if err := db.Preload("SSHKeys").Order("name").Find(&conns).Error; err != nil {
		t.Fatalf("load connections: %v", err)
	}
	if len(conns) != 2 {
		t.Fatalf("got %d connections, want 2", len(conns))
	}

	pw := conns[0]
	if pw.UserID != 7 || pw.AuthMethod != "password" || pw.Port != 22 {
		t.Errorf("password connection = %+v", pw)
	}
	if pw.Password == "topsecret" || pw.Password == "" {
		t.Error("password not encrypted at rest")
	}
	if got, err := crypt.Decrypt(pw.Password); err != nil || got != "topsecret" {
		t.Errorf("decrypted password = %q, %v", got, err)
	}

	keyed := conns[1]
	if keyed.AuthMethod != "key" || keyed.Port != 2222 {
		t.Errorf("key connection = %+v", keyed)
	}
	if len(keyed.SSHKeys) != 1 {
		t.Fatalf("got %d keys, want 1", len(keyed.SSHKeys))
	}
	k := keyed.SSHKeys[0]
	if !k.IsPrimary || k.SourceKind != KeySourceUploaded {
		t.Errorf("key = %+v", k)
	}
	if k.Fingerprint == "" {
		t.Error("fingerprint not computed for uploaded key")
	}
	if got, err := crypt.Decrypt(k.Content); err != nil || got == "" {
		t.Errorf("key content not decryptable: %v", err)
	}
}

func TestImportSeedIsIdempotent(t *testing.T) {
	db, crypt := seedTestEnv(t)

	path := writeSeedFile(t, `
connections:
  - name: only-one
    host: h
    username: u
    password: p
`)

	if err := ImportSeed(db, crypt, path, 1); err != nil {
		t.Fatalf("first import: %v", err)
	}
	if err := ImportSeed(db, crypt, path, 1); err != nil {
		t.Fatalf("second import: %v", err)
	}

	var count int64
	db.Model(&Connection{}).Count(&count)
	if count != 1 {
		t.Errorf("got %d connections after two imports, want 1", count)
	}
}

func TestImportSeedSkipsIncompleteEntries(t *testing.T) {
	db, crypt := seedTestEnv(t)

	path := writeSeedFile(t, `
connections:
  - name: no-host
    username: u
  - name: good
    host: h
    username: u
    password: p
`)

	if err := ImportSeed(db, crypt, path, 1); err != nil {
		t.Fatalf("ImportSeed: %v", err)
	}

	var conns []Connection
	db.Find(&conns)
	if len(conns) != 1 || conns[0].Name != "good" {
		t.Errorf("connections = %+v, want just 'good'", conns)
	}
}

// indent prefixes every line so key material can be embedded in a YAML
// block scalar.
func indent(s, prefix string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		b.WriteString(prefix)
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
