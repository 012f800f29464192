package ticket

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"encoding/base64"
	"strings"
	"sync"
	"testing"
)

var (
	testKeyOnce sync.Once
	testRSAKey  *rsa.PrivateKey
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testRSAKey = key
	})
	return testRSAKey
}

// verifyTicket checks the trailing sig field of a ticket the way the
// verifying proxy does and returns the signed part.
func verifyTicket(t *testing.T, pub *rsa.PublicKey, tkt string) string {
	t.Helper()
	sep := Delimiter + FieldSignature + "="
	idx := strings.LastIndex(tkt, sep)
	if idx < 0 {
		t.Fatalf("ticket has no sig field: %s", tkt)
	}

	data, encoded := tkt[:idx], tkt[idx+len(sep):]
	if err := verify(pub, data, encoded); err != nil {
		t.Fatalf("signature does not verify: %v", err)
	}
	return data
}

func verify(pub *rsa.PublicKey, data, encoded string) error {
	sig, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return err
	}
	digest := sha512.Sum512([]byte(data))
	return rsa.VerifyPKCS1v15(pub, crypto.SHA512, digest[:], sig)
}
