package ticket

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrSigning is returned when the key cannot produce a signature.
var ErrSigning = errors.New("ticket signing failed")

// Sign returns the standard base64 encoding of key's signature over the
// SHA-512 digest of data.
//
// For *rsa.PrivateKey the scheme is RSASSA-PKCS1-v1_5, which is
// deterministic: the same key and data always give the same signature.
// Other crypto.Signer implementations (ECDSA for instance) are accepted but
// their signatures differ from call to call.
func Sign(key crypto.Signer, data string) (string, error) {
	if key == nil {
		return "", fmt.Errorf("%w: no signing key", ErrSigning)
	}
	if rsaKey, ok := key.(*rsa.PrivateKey); ok {
		if rsaKey == nil {
			return "", fmt.Errorf("%w: no signing key", ErrSigning)
		}
		if err := rsaKey.Validate(); err != nil {
			return "", fmt.Errorf("%w: %w", ErrSigning, err)
		}
	}

	digest := sha512.Sum512([]byte(data))
	sig, err := key.Sign(rand.Reader, digest[:], crypto.SHA512)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSigning, err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}
