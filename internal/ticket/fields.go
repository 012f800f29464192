// Package ticket encodes and signs public-key authentication tickets.
//
// A ticket is a ';'-separated list of name=value fields in a fixed order,
// followed by a base64 signature over everything before it:
//
//	uid=alice;validuntil=1700000000;tokens=admin;sig=MEUCIQ...
//
// The verifying proxy checks the signature over the exact byte string, so
// field order and omission rules here are part of the wire contract.
package ticket

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"k8s.io/utils/ptr"
)

// Delimiter separates fields in a ticket.
const Delimiter = ";"

// Field names, in wire order.
const (
	FieldUID         = "uid"
	FieldValidUntil  = "validuntil"
	FieldClientIP    = "cip"
	FieldTokens      = "tokens"
	FieldGracePeriod = "graceperiod"
	FieldUserData    = "udata"
	FieldSignature   = "sig"
)

var reserved = map[string]bool{
	FieldUID:         true,
	FieldValidUntil:  true,
	FieldClientIP:    true,
	FieldTokens:      true,
	FieldGracePeriod: true,
	FieldUserData:    true,
	FieldSignature:   true,
}

// ErrInvalidField is returned for field values that would corrupt the
// encoded ticket, and for a missing uid or expiry.
var ErrInvalidField = errors.New("invalid ticket field")

// Fields holds the attributes of one ticket.
//
// Optional attributes are pointers: nil means absent. A present string
// attribute with an empty value is omitted as well, since the format has no
// representation for an empty value. GracePeriod is emitted whenever it is
// non-nil and must be earlier than ValidUntil.
type Fields struct {
	UID        string
	ValidUntil int64

	ClientIP    *string
	Tokens      *string
	GracePeriod *int64
	UserData    *string

	// Extra fields are appended after udata in insertion order.
	Extra *orderedmap.OrderedMap[string, string]
}

// NewExtra returns an empty extra-field map for Fields.Extra.
func NewExtra() *orderedmap.OrderedMap[string, string] {
	return orderedmap.New[string, string]()
}

// Encode returns the canonical field string for f, without signature.
func Encode(f Fields) (string, error) {
	if f.UID == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidField, FieldUID)
	}
	if f.ValidUntil <= 0 {
		return "", fmt.Errorf("%w: %s must be a positive timestamp", ErrInvalidField, FieldValidUntil)
	}
	if f.GracePeriod != nil && *f.GracePeriod >= f.ValidUntil {
		return "", fmt.Errorf("%w: %s %d is not before %s %d",
			ErrInvalidField, FieldGracePeriod, *f.GracePeriod, FieldValidUntil, f.ValidUntil)
	}

	var b strings.Builder
	add := func(name, value string) error {
		if value == "" {
			return nil
		}
		if strings.Contains(value, Delimiter) {
			return fmt.Errorf("%w: %s value contains %q", ErrInvalidField, name, Delimiter)
		}
		if b.Len() > 0 {
			b.WriteString(Delimiter)
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(value)
		return nil
	}

	if err := add(FieldUID, f.UID); err != nil {
		return "", err
	}
	if err := add(FieldValidUntil, strconv.FormatInt(f.ValidUntil, 10)); err != nil {
		return "", err
	}
	if err := add(FieldClientIP, ptr.Deref(f.ClientIP, "")); err != nil {
		return "", err
	}
	if err := add(FieldTokens, ptr.Deref(f.Tokens, "")); err != nil {
		return "", err
	}
	if f.GracePeriod != nil {
		if err := add(FieldGracePeriod, strconv.FormatInt(*f.GracePeriod, 10)); err != nil {
			return "", err
		}
	}
	if err := add(FieldUserData, ptr.Deref(f.UserData, "")); err != nil {
		return "", err
	}

	if f.Extra != nil {
		for pair := f.Extra.Oldest(); pair != nil; pair = pair.Next() {
			if err := validExtraName(pair.Key); err != nil {
				return "", err
			}
			if err := add(pair.Key, pair.Value); err != nil {
				return "", err
			}
		}
	}

	return b.String(), nil
}

func validExtraName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: extra field name is empty", ErrInvalidField)
	case strings.ContainsAny(name, Delimiter+"="):
		return fmt.Errorf("%w: extra field name %q contains %q or %q", ErrInvalidField, name, Delimiter, "=")
	case reserved[name]:
		return fmt.Errorf("%w: extra field name %q is reserved", ErrInvalidField, name)
	}
	return nil
}
