package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the signing key pair if it does not exist",
	Long: `Create the RSA signing key pair in the configured key directory.

The command is idempotent: an existing key pair is left untouched, and when
several processes run it at once exactly one of them generates the keys.
The key directory itself is created if missing, but its parent must exist.

Examples:
  pubtkt keys create
  pubtkt keys create --key-dir /etc/pubtkt/keys`,
	Args: cobra.NoArgs,
	RunE: runKeysCreate,
}

func init() {
	keysCmd.AddCommand(keysCreateCmd)
}

func runKeysCreate(cmd *cobra.Command, args []string) error {
	store := newStore()

	created, err := store.EnsureKeyPair(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to create key pair: %w", err)
	}

	out := cmd.OutOrStdout()
	if created {
		fmt.Fprintf(out, "Key pair created in %s\n", store.Dir())
	} else {
		fmt.Fprintf(out, "Key pair already exists in %s\n", store.Dir())
	}
	fmt.Fprintf(out, "  Private key: %s\n", store.PrivateKeyPath())
	fmt.Fprintf(out, "  Public key:  %s\n", store.PublicKeyPath())

	return nil
}
