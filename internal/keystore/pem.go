package keystore

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-jose/go-jose/v4"
)

const (
	pemTypeRSAPrivateKey = "RSA PRIVATE KEY"
	pemTypePublicKey     = "PUBLIC KEY"
)

func encodePrivateKey(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  pemTypeRSAPrivateKey,
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

func encodePublicKey(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemTypePublicKey, Bytes: der}), nil
}

func readPEM(path, what string) (*pem.Block, []byte, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is provided by the operator via flag or config
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s %s", ErrNotFound, what, path)
		}
		return nil, nil, fmt.Errorf("%w: failed to read %s %s: %w", ErrStorage, what, path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, nil, fmt.Errorf("%w: no PEM block in %s %s", ErrKeyFormat, what, path)
	}
	return block, data, nil
}

// LoadPrivateKey reads a PEM-encoded RSA private key from path.
// PKCS#1 and PKCS#8 encodings are accepted. The path does not have to be
// inside a Store's directory.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	block, _, err := readPEM(path, "private key")
	if err != nil {
		return nil, err
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse private key %s: %w", ErrKeyFormat, path, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: private key %s is %T, not RSA", ErrKeyFormat, path, parsed)
	}
	return key, nil
}

// LoadPublicKey reads a PEM-encoded RSA public key (PKIX or PKCS#1) from path.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	pub, _, err := ReadPublicKey(path)
	return pub, err
}

// ReadPublicKey is LoadPublicKey that also returns the file contents the key
// was parsed from.
func ReadPublicKey(path string) (*rsa.PublicKey, []byte, error) {
	block, data, err := readPEM(path, "public key")
	if err != nil {
		return nil, nil, err
	}

	if pub, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return pub, data, nil
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to parse public key %s: %w", ErrKeyFormat, path, err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("%w: public key %s is %T, not RSA", ErrKeyFormat, path, parsed)
	}
	return pub, data, nil
}

// Fingerprint returns the RFC 7638 JWK thumbprint (SHA-256, base64url) of pub.
func Fingerprint(pub crypto.PublicKey) (string, error) {
	jwk := jose.JSONWebKey{Key: pub}
	thumbprint, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("failed to compute key thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(thumbprint), nil
}
