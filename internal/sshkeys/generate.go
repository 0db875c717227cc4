package sshkeys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// Supported key types for GenerateKeyPair.
const (
	KeyTypeED25519 = "ed25519"
	KeyTypeRSA     = "rsa"
)

// DefaultRSABits is the modulus size used when an RSA key is requested
// without an explicit size.
const DefaultRSABits = 4096

// GenerateKeyPair creates a new key pair of the given type and returns the
// OpenSSH-format public key and the PEM-encoded private key.
func GenerateKeyPair(keyType string, rsaBits int) (publicKey, privateKeyPEM []byte, err error) {
	switch keyType {
	case KeyTypeED25519, "":
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, nil, fmt.Errorf("generate ed25519 key: %w", err)
		}
		privBytes, err := x509.MarshalPKCS8PrivateKey(priv)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal private key: %w", err)
		}
		privateKeyPEM = pem.EncodeToMemory(&pem.Block{
			Type:  "PRIVATE KEY",
			Bytes: privBytes,
		})
		sshPub, err := ssh.NewPublicKey(pub)
		if err != nil {
			return nil, nil, fmt.Errorf("create ssh public key: %w", err)
		}
		return ssh.MarshalAuthorizedKey(sshPub), privateKeyPEM, nil

	case KeyTypeRSA:
		if rsaBits == 0 {
			rsaBits = DefaultRSABits
		}
		priv, err := rsa.GenerateKey(rand.Reader, rsaBits)
		if err != nil {
			return nil, nil, fmt.Errorf("generate rsa key: %w", err)
		}
		privateKeyPEM = pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(priv),
		})
		sshPub, err := ssh.NewPublicKey(&priv.PublicKey)
		if err != nil {
			return nil, nil, fmt.Errorf("create ssh public key: %w", err)
		}
		return ssh.MarshalAuthorizedKey(sshPub), privateKeyPEM, nil
	}

	return nil, nil, fmt.Errorf("unsupported key type %q", keyType)
}
