package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrKeyNotFound indicates no key is registered under the requested kid.
var ErrKeyNotFound = errors.New("key not found")

// KeyProvider supplies the signing key and per-kid verification keys.
type KeyProvider interface {
	GetSigningKey() (*rsa.PrivateKey, error)
	GetVerificationKey(kid string) (*rsa.PublicKey, error)
}

// FileKeyProvider loads RSA keys from PEM files in a directory. The file name
// (without extension) becomes the kid; the first private key found signs.
type FileKeyProvider struct {
	keys       map[string]*rsa.PublicKey
	signingKey *rsa.PrivateKey
	signingKID string
}

// NewFileKeyProvider reads every PEM file in keyDir.
func NewFileKeyProvider(keyDir string) (*FileKeyProvider, error) {
	files, err := os.ReadDir(keyDir)
	if err != nil {
		return nil, fmt.Errorf("read key directory: %w", err)
	}

	provider := &FileKeyProvider{keys: make(map[string]*rsa.PublicKey)}

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		path := filepath.Join(keyDir, file.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read key file %s: %w", path, err)
		}

		block, _ := pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("decode PEM block from %s", path)
		}

		kid := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))

		if key, err := parsePrivateKey(block.Bytes); err == nil {
			if provider.signingKey == nil {
				provider.signingKey = key
				provider.signingKID = kid
			}
			provider.keys[kid] = &key.PublicKey
			continue
		}

		if key, err := parsePublicKey(block.Bytes); err == nil {
			provider.keys[kid] = key
			continue
		}

		return nil, fmt.Errorf("parse key from file %s", path)
	}

	if provider.signingKey == nil {
		return nil, errors.New("no private key found for signing")
	}

	return provider, nil
}

func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("not an RSA private key")
	}
	return rsaKey, nil
}

func parsePublicKey(der []byte) (*rsa.PublicKey, error) {
	if key, err := x509.ParsePKCS1PublicKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return rsaKey, nil
}

// SigningKID returns the kid associated with the active signing key.
func (p *FileKeyProvider) SigningKID() string {
	return p.signingKID
}

// GetSigningKey returns the private key used for signing tokens.
func (p *FileKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	return p.signingKey, nil
}

// GetVerificationKey returns the public key registered under kid.
func (p *FileKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	key, ok := p.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return key, nil
}

// EphemeralKeyProvider generates a throwaway RSA key pair in memory. Meant
// for tests and local development; every restart invalidates outstanding
// tokens.
type EphemeralKeyProvider struct {
	key *rsa.PrivateKey
	kid string
}

// NewEphemeralKeyProvider generates a 2048-bit key under the supplied kid.
func NewEphemeralKeyProvider(kid string) (*EphemeralKeyProvider, error) {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		kid = "ephemeral"
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}

	return &EphemeralKeyProvider{key: key, kid: kid}, nil
}

// SigningKID returns the kid associated with the generated key.
func (p *EphemeralKeyProvider) SigningKID() string {
	return p.kid
}

// GetSigningKey returns the generated private key.
func (p *EphemeralKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	return p.key, nil
}

// GetVerificationKey returns the generated public key when the kid matches.
func (p *EphemeralKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	if kid != p.kid {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return &p.key.PublicKey, nil
}
