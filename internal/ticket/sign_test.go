package ticket

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
	"testing"
)

func TestSign_VerifiesAgainstPublicKey(t *testing.T) {
	key := testKey(t)
	data := "uid=alice;validuntil=1700000000"

	sig, err := Sign(key, data)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if strings.Contains(sig, Delimiter) {
		t.Errorf("signature %q contains %q", sig, Delimiter)
	}
	if err := verify(&key.PublicKey, data, sig); err != nil {
		t.Errorf("verify() error = %v", err)
	}
}

func TestSign_RejectsAlteredData(t *testing.T) {
	key := testKey(t)
	data := "uid=alice;validuntil=1700000000"

	sig, err := Sign(key, data)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	for i := range data {
		altered := []byte(data)
		altered[i] ^= 0x01
		if verify(&key.PublicKey, string(altered), sig) == nil {
			t.Errorf("signature still verifies with byte %d flipped", i)
		}
	}
}

func TestSign_Deterministic(t *testing.T) {
	key := testKey(t)
	data := "uid=bob;validuntil=1700000100;tokens=admin,user;foo=bar"

	first, err := Sign(key, data)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	second, err := Sign(key, data)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if first != second {
		t.Errorf("Sign() not deterministic: %q != %q", first, second)
	}

	raw, err := base64.StdEncoding.DecodeString(first)
	if err != nil {
		t.Fatalf("signature is not standard base64: %v", err)
	}
	if len(raw) != key.Size() {
		t.Errorf("signature length = %d, want %d", len(raw), key.Size())
	}
}

func TestSign_UnusableKey(t *testing.T) {
	var nilRSA *rsa.PrivateKey
	corrupt := &rsa.PrivateKey{PublicKey: rsa.PublicKey{N: big.NewInt(0), E: 65537}}

	tests := []struct {
		name string
		sign func() (string, error)
	}{
		{"nil signer", func() (string, error) { return Sign(nil, "uid=a;validuntil=1") }},
		{"nil rsa key", func() (string, error) { return Sign(nilRSA, "uid=a;validuntil=1") }},
		{"corrupt rsa key", func() (string, error) { return Sign(corrupt, "uid=a;validuntil=1") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.sign(); !errors.Is(err, ErrSigning) {
				t.Errorf("Sign() error = %v, want ErrSigning", err)
			}
		})
	}
}

func TestSign_ECDSA(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	data := "uid=alice;validuntil=1700000000"

	sig, err := Sign(key, data)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if strings.Contains(sig, Delimiter) {
		t.Fatalf("signature %q contains %q", sig, Delimiter)
	}

	raw, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		t.Fatalf("signature is not standard base64: %v", err)
	}
	digest := sha512.Sum512([]byte(data))
	if !ecdsa.VerifyASN1(&key.PublicKey, digest[:], raw) {
		t.Error("ECDSA signature does not verify")
	}
}
