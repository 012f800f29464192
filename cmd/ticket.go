package cmd

import (
	"crypto/rsa"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/utils/ptr"

	"github.com/aussie/pubtkt/internal/keystore"
	"github.com/aussie/pubtkt/internal/ticket"
)

var ticketCmd = &cobra.Command{
	Use:   "ticket",
	Short: "Issue signed tickets",
	Long: `Commands for issuing mod_auth_pubtkt tickets.

Tickets are signed with the private key from the key directory (see
'pubtkt keys create'), or with the key given by --key.

Examples:
  pubtkt ticket generate --uid alice
  pubtkt ticket generate --uid bob --tokens admin,user --valid 1h
  pubtkt ticket bench -n 200 --interval 5ms`,
}

func init() {
	rootCmd.AddCommand(ticketCmd)
}

// ticketFlags are the request flags shared by "generate" and "bench".
type ticketFlags struct {
	uid      string
	key      string
	tokens   string
	clientIP string
	userData string
	valid    time.Duration
	grace    time.Duration
	extra    []string
}

func (f *ticketFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.key, "key", "k", "", "private key file (default: the configured key directory's private key)")
	fs.StringVarP(&f.tokens, "tokens", "t", "", "comma-separated tokens")
	fs.StringVar(&f.clientIP, "ip", "", "client IP address the ticket is bound to")
	fs.StringVar(&f.userData, "udata", "", "user data")
	fs.DurationVar(&f.valid, "valid", 0, "validity period (default: ticket.valid from config)")
	fs.DurationVar(&f.grace, "grace", 0, "grace period before expiry; 0 omits it (default: ticket.grace from config)")
	fs.StringArrayVarP(&f.extra, "extra", "e", nil, "extra field as name=value, repeatable")
}

// request builds the ticket request, filling unset durations from config.
func (f *ticketFlags) request(fs *pflag.FlagSet) (ticket.Request, error) {
	req := ticket.Request{UID: f.uid}

	valid := f.valid
	if !fs.Changed("valid") {
		d, err := appConfig.Ticket.ValidDuration()
		if err != nil {
			return req, err
		}
		valid = d
	}
	if valid < time.Second {
		return req, fmt.Errorf("%w: --valid %s must be at least 1s", ticket.ErrInvalidField, valid)
	}
	req.Valid = valid

	grace := f.grace
	if !fs.Changed("grace") {
		d, err := appConfig.Ticket.GraceDuration()
		if err != nil {
			return req, err
		}
		grace = d
	}
	switch {
	case grace < 0:
		return req, fmt.Errorf("%w: --grace %s must not be negative", ticket.ErrInvalidField, grace)
	case grace > 0 && grace.Truncate(time.Second) >= valid.Truncate(time.Second):
		return req, fmt.Errorf("%w: --grace %s must be shorter than --valid %s", ticket.ErrInvalidField, grace, valid)
	case grace > 0:
		req.Grace = ptr.To(grace)
	}

	if fs.Changed("tokens") {
		req.Tokens = ptr.To(f.tokens)
	}
	if fs.Changed("ip") {
		req.ClientIP = ptr.To(f.clientIP)
	}
	if fs.Changed("udata") {
		req.UserData = ptr.To(f.userData)
	}

	if len(f.extra) > 0 {
		req.Extra = ticket.NewExtra()
		for _, kv := range f.extra {
			name, value, ok := strings.Cut(kv, "=")
			if !ok {
				return req, fmt.Errorf("invalid --extra %q: expected name=value", kv)
			}
			if _, dup := req.Extra.Set(name, value); dup {
				return req, fmt.Errorf("%w: duplicate --extra %q", ticket.ErrInvalidField, name)
			}
		}
	}

	return req, nil
}

// keyPath is --key, or the configured private key path when unset.
func (f *ticketFlags) keyPath() string {
	if f.key != "" {
		return f.key
	}
	return appConfig.Keys.PrivateKeyPath()
}

func (f *ticketFlags) loadKey() (*rsa.PrivateKey, error) {
	key, err := keystore.LoadPrivateKey(f.keyPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}
	return key, nil
}
