package ticket

import (
	"crypto"
	"fmt"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
	"k8s.io/utils/ptr"
)

// Issue encodes f, signs it with key and returns the ticket with its
// trailing sig field.
func Issue(key crypto.Signer, f Fields) (string, error) {
	data, err := Encode(f)
	if err != nil {
		return "", err
	}
	sig, err := Sign(key, data)
	if err != nil {
		return "", err
	}
	return data + Delimiter + FieldSignature + "=" + sig, nil
}

// Request describes a ticket relative to the moment it is issued.
// Nil optional attributes are left out of the ticket.
type Request struct {
	UID string

	// Valid is how long the ticket stays valid, at least one second.
	// Sub-second parts are dropped.
	Valid time.Duration

	// Grace, when set, becomes the absolute graceperiod timestamp and must be
	// shorter than Valid. Zero is a real value and yields graceperiod equal
	// to the issue time.
	Grace *time.Duration

	ClientIP *string
	Tokens   *string
	UserData *string
	Extra    *orderedmap.OrderedMap[string, string]
}

// Issuer signs tickets with one key. It holds no mutable state and is safe
// for concurrent use.
type Issuer struct {
	key    crypto.Signer
	window Window
	logger *zap.Logger
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithWindow sets the clock used for expiry and grace timestamps.
func WithWindow(w Window) IssuerOption {
	return func(i *Issuer) {
		i.window = w
	}
}

// WithLogger sets the issuer's logger.
func WithLogger(l *zap.Logger) IssuerOption {
	return func(i *Issuer) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewIssuer returns an Issuer signing with key.
func NewIssuer(key crypto.Signer, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		key:    key,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue builds Fields from req against the issuer's clock and signs them.
func (i *Issuer) Issue(req Request) (string, error) {
	if seconds(req.Valid) <= 0 {
		return "", fmt.Errorf("%w: validity %s is less than one second", ErrInvalidField, req.Valid)
	}
	if req.Grace != nil {
		if *req.Grace < 0 {
			return "", fmt.Errorf("%w: grace period %s is negative", ErrInvalidField, *req.Grace)
		}
		if seconds(*req.Grace) >= seconds(req.Valid) {
			return "", fmt.Errorf("%w: grace period %s must be shorter than validity %s", ErrInvalidField, *req.Grace, req.Valid)
		}
	}

	f := Fields{
		UID:        req.UID,
		ValidUntil: i.window.TimestampAfter(seconds(req.Valid)),
		ClientIP:   req.ClientIP,
		Tokens:     req.Tokens,
		UserData:   req.UserData,
		Extra:      req.Extra,
	}
	if req.Grace != nil {
		f.GracePeriod = ptr.To(i.window.TimestampAfter(seconds(*req.Grace)))
	}

	t, err := Issue(i.key, f)
	if err != nil {
		return "", err
	}

	i.logger.Debug("issued ticket",
		zap.String("uid", f.UID),
		zap.Int64("validuntil", f.ValidUntil))
	return t, nil
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
