package sshkeys

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log"
	"strings"

	"golang.org/x/crypto/ssh"
)

const pkcs8Header = "BEGIN PRIVATE KEY"

// Normalize converts a generic PKCS8 PEM private key ("BEGIN PRIVATE KEY")
// into the RSA-specific PKCS1 encoding ("BEGIN RSA PRIVATE KEY") when the
// underlying key is RSA. Keys already in a usable encoding are returned
// unchanged, as is anything that fails to parse; in that case a warning is
// logged and the connection attempt reports the real failure.
func Normalize(keyPEM []byte, passphrase string) []byte {
	if !strings.Contains(string(keyPEM), pkcs8Header) {
		return keyPEM
	}

	var (
		raw interface{}
		err error
	)
	if passphrase != "" {
		raw, err = ssh.ParseRawPrivateKeyWithPassphrase(keyPEM, []byte(passphrase))
	} else {
		raw, err = ssh.ParseRawPrivateKey(keyPEM)
	}
	if err != nil {
		log.Printf("[sshkeys] could not normalize private key: %v", err)
		return keyPEM
	}

	rsaKey, ok := raw.(*rsa.PrivateKey)
	if !ok {
		// Non-RSA keys have no PKCS1 form; the PKCS8 encoding is fine.
		return keyPEM
	}

	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(rsaKey),
	})
}

// ParseSigner parses private key material into an ssh.Signer, using the
// passphrase when the key is encrypted.
func ParseSigner(keyPEM []byte, passphrase string) (ssh.Signer, error) {
	if passphrase != "" {
		signer, err := ssh.ParsePrivateKeyWithPassphrase(keyPEM, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("parse private key with passphrase: %w", err)
		}
		return signer, nil
	}
	signer, err := ssh.ParsePrivateKey(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return signer, nil
}

// Fingerprint returns the SHA256 fingerprint of the public half of the
// given private key material.
func Fingerprint(keyPEM []byte, passphrase string) (string, error) {
	signer, err := ParseSigner(keyPEM, passphrase)
	if err != nil {
		return "", err
	}
	return ssh.FingerprintSHA256(signer.PublicKey()), nil
}
