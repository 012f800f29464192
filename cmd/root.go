package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aussie/pubtkt/internal/config"
	"github.com/aussie/pubtkt/internal/logger"
)

var (
	configFile string
	keyDirFlag string
	logLevel   string
	envFile    string

	// Set by loadRuntime before any subcommand runs.
	appConfig *config.Config
	appLogger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "pubtkt",
	Short: "pubtkt - issue signed mod_auth_pubtkt tickets",
	Long: `pubtkt issues signed authentication tickets in the mod_auth_pubtkt
format and manages the RSA key pair used to sign them.

A ticket is printed to stdout and nothing else is; logs go to stderr, so the
output can be captured directly into a cookie.

Configuration is read from ~/.pubtktrc, then ./.pubtktrc, then the file
given with --config. PUBTKT_* environment variables and flags override it.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadRuntime,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = appLogger.Sync()
	},
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file merged over ~/.pubtktrc and ./.pubtktrc")
	rootCmd.PersistentFlags().StringVar(&keyDirFlag, "key-dir", "", "key directory (overrides keys.dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load PUBTKT_* variables from this file first")
}

func loadRuntime(cmd *cobra.Command, args []string) error {
	if envFile != "" {
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}
	}

	cfg, err := config.LoadWithFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if keyDirFlag != "" {
		cfg.Keys.Dir = keyDirFlag
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log, err := logger.New(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	appConfig = cfg
	appLogger = log
	return nil
}
