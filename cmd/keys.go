package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aussie/pubtkt/internal/keystore"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the ticket signing key pair",
	Long: `Commands for managing the RSA key pair that signs tickets.

The private key stays in the key directory; distribute the public key to
every proxy that verifies tickets.

Examples:
  pubtkt keys create
  pubtkt keys create --key-dir /srv/pubtkt/keys
  pubtkt keys show --format json`,
}

func init() {
	rootCmd.AddCommand(keysCmd)
}

// newStore returns the key store described by the loaded configuration.
func newStore() *keystore.Store {
	return keystore.New(appConfig.Keys.Dir,
		keystore.WithFileNames(appConfig.Keys.PrivateKeyFile, appConfig.Keys.PublicKeyFile),
		keystore.WithKeyBits(appConfig.Keys.Bits),
		keystore.WithLogger(appLogger),
	)
}
