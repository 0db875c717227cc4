package bridge

import (
	"errors"
	"log"
	"os"
	"sort"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/gluk-w/webterm/internal/database"
	"github.com/gluk-w/webterm/internal/logutil"
	"github.com/gluk-w/webterm/internal/profile"
	"github.com/gluk-w/webterm/internal/sshkeys"
)

// Candidate-builder failure taxonomy. All three are terminal configuration
// errors: the session reports them to the client and never starts connecting.
var (
	ErrNoCredentialConfigured = errors.New("no password configured for this connection")
	ErrNoUsableKey            = errors.New("no valid SSH keys found")
	ErrNoAuthMethodConfigured = errors.New("no authentication method configured")
)

// Decrypter is the single decrypt path for profile secrets, implemented by
// the profile store.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// Candidate is one concrete, decrypted authentication option. Key material
// is kept as raw bytes rather than a parsed signer so that an unparseable
// key fails at the connection attempt, mirroring how an unusable key would
// fail, instead of being silently dropped here.
type Candidate struct {
	Password   string
	PrivateKey []byte
	Passphrase string

	// KeyID identifies the source key for logging. Empty for passwords
	// and legacy single-key material.
	KeyID string
}

// authMethod converts the candidate into an ssh.AuthMethod. Key parse
// errors surface as connection-attempt failures.
func (c Candidate) authMethod() (ssh.AuthMethod, error) {
	if c.PrivateKey == nil {
		return ssh.Password(c.Password), nil
	}
	signer, err := sshkeys.ParseSigner(c.PrivateKey, c.Passphrase)
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

// BuildCandidates derives the ordered authentication candidates for a
// session from a resolved profile and the client's optional auth-method
// hint. It returns the candidates and the effective method ("password" or
// "key"), or one of the taxonomy errors when nothing usable exists.
func BuildCandidates(p *profile.Profile, hint string, dec Decrypter) ([]Candidate, string, error) {
	// The hint wins when it names an available method; otherwise the
	// profile's declared method applies.
	usePassword := hint == "password" || (hint != "key" && p.AuthMethod == "password")
	useKey := hint == "key" || (hint != "password" && p.AuthMethod == "key")

	if usePassword {
		password, err := dec.Decrypt(p.Password)
		if err != nil {
			log.Printf("[bridge] connection %d: password decrypt failed: %v", p.ID, err)
			password = ""
		}
		if password == "" {
			return nil, "", ErrNoCredentialConfigured
		}
		return []Candidate{{Password: password}}, "password", nil
	}

	if useKey {
		candidates := buildKeyCandidates(p, dec)
		if len(candidates) == 0 {
			return nil, "", ErrNoUsableKey
		}
		return candidates, "key", nil
	}

	return nil, "", ErrNoAuthMethodConfigured
}

// buildKeyCandidates gathers key candidates from the new-style key list,
// falling back to the legacy single-key columns. Keys that fail to load are
// skipped individually.
func buildKeyCandidates(p *profile.Profile, dec Decrypter) []Candidate {
	if len(p.Keys) > 0 {
		keys := make([]profile.KeyMaterial, len(p.Keys))
		copy(keys, p.Keys)
		// Primary-first is a sort hint: multiple primaries are legal and
		// keep their stored order among themselves.
		sort.SliceStable(keys, func(i, j int) bool {
			return keys[i].IsPrimary && !keys[j].IsPrimary
		})

		var candidates []Candidate
		for _, key := range keys {
			cand, ok := loadKeyMaterial(p.ID, key, dec)
			if ok {
				candidates = append(candidates, cand)
			}
		}
		return candidates
	}

	// Legacy: single inline key, then single key file path.
	if p.PrivateKeyContent != "" {
		passphrase, err := dec.Decrypt(p.Passphrase)
		if err != nil {
			log.Printf("[bridge] connection %d: legacy passphrase decrypt failed: %v", p.ID, err)
			return nil
		}
		content, err := dec.Decrypt(p.PrivateKeyContent)
		if err != nil {
			log.Printf("[bridge] connection %d: legacy key decrypt failed: %v", p.ID, err)
			return nil
		}
		return []Candidate{{
			PrivateKey: sshkeys.Normalize(ensureTrailingNewline(content), passphrase),
			Passphrase: passphrase,
		}}
	}

	if p.PrivateKeyPath != "" {
		passphrase, err := dec.Decrypt(p.Passphrase)
		if err != nil {
			log.Printf("[bridge] connection %d: legacy passphrase decrypt failed: %v", p.ID, err)
			return nil
		}
		content, err := os.ReadFile(p.PrivateKeyPath)
		if err != nil {
			log.Printf("[bridge] connection %d: read key file %s: %v",
				p.ID, logutil.SanitizeForLog(p.PrivateKeyPath), err)
			return nil
		}
		return []Candidate{{
			PrivateKey: sshkeys.Normalize(content, passphrase),
			Passphrase: passphrase,
		}}
	}

	return nil
}

// loadKeyMaterial decrypts and normalizes a single key. A false return
// means the key is skipped; it never aborts the other keys.
func loadKeyMaterial(connID uint, key profile.KeyMaterial, dec Decrypter) (Candidate, bool) {
	passphrase, err := dec.Decrypt(key.Passphrase)
	if err != nil {
		log.Printf("[bridge] connection %d: key %s passphrase decrypt failed: %v", connID, key.ID, err)
		return Candidate{}, false
	}

	var content []byte
	switch key.SourceKind {
	case database.KeySourceUploaded:
		plain, err := dec.Decrypt(key.Content)
		if err != nil {
			log.Printf("[bridge] connection %d: key %s decrypt failed: %v", connID, key.ID, err)
			return Candidate{}, false
		}
		if plain == "" {
			return Candidate{}, false
		}
		content = ensureTrailingNewline(plain)
	case database.KeySourceFile:
		if key.FilePath == "" {
			return Candidate{}, false
		}
		content, err = os.ReadFile(key.FilePath)
		if err != nil {
			log.Printf("[bridge] connection %d: key %s read %s: %v",
				connID, key.ID, logutil.SanitizeForLog(key.FilePath), err)
			return Candidate{}, false
		}
	default:
		return Candidate{}, false
	}

	return Candidate{
		PrivateKey: sshkeys.Normalize(content, passphrase),
		Passphrase: passphrase,
		KeyID:      key.ID,
	}, true
}

// PEM parsers are picky about the final newline of uploaded key material.
func ensureTrailingNewline(content string) []byte {
	content = strings.TrimSpace(content)
	return []byte(content + "\n")
}
