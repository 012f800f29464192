package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/spf13/cobra"

	"github.com/aussie/pubtkt/internal/keystore"
)

var keysShowFormat string

var keysShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the signing key pair",
	Long: `Show the key file locations, the public key fingerprint and the public
key itself.

The fingerprint is the RFC 7638 JWK thumbprint (SHA-256, base64url) of the
public key. JSON output also carries the public key as a JWK.

Examples:
  pubtkt keys show
  pubtkt keys show --format json`,
	Args: cobra.NoArgs,
	RunE: runKeysShow,
}

func init() {
	keysCmd.AddCommand(keysShowCmd)
	keysShowCmd.Flags().StringVarP(&keysShowFormat, "format", "f", "text", "Output format: text, json")
}

// keyPairInfo is the JSON form of "keys show".
type keyPairInfo struct {
	Dir               string          `json:"dir"`
	PrivateKeyPath    string          `json:"privateKeyPath"`
	PrivateKeyPresent bool            `json:"privateKeyPresent"`
	PublicKeyPath     string          `json:"publicKeyPath"`
	Bits              int             `json:"bits"`
	Fingerprint       string          `json:"fingerprint"`
	PublicKeyPEM      string          `json:"publicKeyPem"`
	JWK               json.RawMessage `json:"jwk"`
}

func runKeysShow(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(keysShowFormat)
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid output format: %s (use 'text' or 'json')", keysShowFormat)
	}

	store := newStore()

	pub, pemBytes, err := keystore.ReadPublicKey(store.PublicKeyPath())
	if errors.Is(err, keystore.ErrNotFound) {
		return fmt.Errorf("%w\nRun 'pubtkt keys create' first", err)
	}
	if err != nil {
		return err
	}

	fingerprint, err := keystore.Fingerprint(pub)
	if err != nil {
		return err
	}

	_, statErr := os.Stat(store.PrivateKeyPath())

	info := keyPairInfo{
		Dir:               store.Dir(),
		PrivateKeyPath:    store.PrivateKeyPath(),
		PrivateKeyPresent: statErr == nil,
		PublicKeyPath:     store.PublicKeyPath(),
		Bits:              pub.N.BitLen(),
		Fingerprint:       fingerprint,
		PublicKeyPEM:      string(pemBytes),
	}

	if format == "json" {
		jwk, err := jose.JSONWebKey{
			Key:       pub,
			KeyID:     fingerprint,
			Algorithm: string(jose.RS512),
			Use:       "sig",
		}.MarshalJSON()
		if err != nil {
			return fmt.Errorf("failed to encode JWK: %w", err)
		}
		info.JWK = jwk

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	writeKeyPairInfo(cmd.OutOrStdout(), info)
	return nil
}

func writeKeyPairInfo(w io.Writer, info keyPairInfo) {
	private := "present"
	if !info.PrivateKeyPresent {
		private = "missing"
	}

	fmt.Fprintf(w, "Key directory: %s\n", info.Dir)
	fmt.Fprintf(w, "Private key:   %s (%s)\n", info.PrivateKeyPath, private)
	fmt.Fprintf(w, "Public key:    %s\n", info.PublicKeyPath)
	fmt.Fprintf(w, "Key size:      %d bits\n", info.Bits)
	fmt.Fprintf(w, "Fingerprint:   %s\n", info.Fingerprint)
	fmt.Fprintln(w)
	fmt.Fprint(w, info.PublicKeyPEM)
}
