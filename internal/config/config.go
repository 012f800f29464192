package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/aussie/pubtkt/internal/keystore"
)

// Environment variables that override file configuration.
const (
	EnvKeyDir   = "PUBTKT_KEY_DIR"
	EnvLogLevel = "PUBTKT_LOG_LEVEL"
	EnvLogEnv   = "PUBTKT_LOG_ENV"
)

// KeysConfig locates the issuer key pair.
type KeysConfig struct {
	// Dir is the key directory. It is created, non-recursively, by
	// "pubtkt keys create".
	Dir string `toml:"dir"`

	PrivateKeyFile string `toml:"private_key_file,omitempty"`
	PublicKeyFile  string `toml:"public_key_file,omitempty"`

	// Bits is the RSA modulus size for newly generated keys.
	Bits int `toml:"bits,omitempty"`
}

// PrivateKeyPath returns the full path of the private key file.
func (k *KeysConfig) PrivateKeyPath() string {
	return filepath.Join(k.Dir, k.PrivateKeyFile)
}

// PublicKeyPath returns the full path of the public key file.
func (k *KeysConfig) PublicKeyPath() string {
	return filepath.Join(k.Dir, k.PublicKeyFile)
}

// TicketConfig holds issuance defaults.
type TicketConfig struct {
	// Valid is the ticket lifetime (e.g., "30s"), at least one second.
	Valid string `toml:"valid,omitempty"`

	// Grace is the grace window (e.g., "10s"), shorter than Valid. Empty
	// or "0" means no graceperiod field.
	Grace string `toml:"grace,omitempty"`
}

// ValidDuration parses Valid.
func (t *TicketConfig) ValidDuration() (time.Duration, error) {
	return parseDuration("ticket.valid", t.Valid)
}

// GraceDuration parses Grace.
func (t *TicketConfig) GraceDuration() (time.Duration, error) {
	return parseDuration("ticket.grace", t.Grace)
}

// LogConfig selects the logger build.
type LogConfig struct {
	Env   string `toml:"env,omitempty"`
	Level string `toml:"level,omitempty"`
}

// Config represents the pubtkt configuration
type Config struct {
	Keys   KeysConfig   `toml:"keys"`
	Ticket TicketConfig `toml:"ticket"`
	Log    LogConfig    `toml:"log"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Keys: KeysConfig{
			Dir:            keystore.DefaultDir,
			PrivateKeyFile: keystore.DefaultPrivateKeyFile,
			PublicKeyFile:  keystore.DefaultPublicKeyFile,
			Bits:           keystore.DefaultKeyBits,
		},
		Ticket: TicketConfig{
			Valid: "30s",
			Grace: "10s",
		},
		Log: LogConfig{
			Env:   "dev",
			Level: "info",
		},
	}
}

// Load loads configuration from files, with the following precedence:
// 1. Local .pubtktrc file (in current directory)
// 2. Global ~/.pubtktrc file
// 3. Default values
// Environment overrides are applied last.
func Load() (*Config, error) {
	return LoadWithFile("")
}

// LoadWithFile is Load with path, when non-empty, merged on top of the
// global and local files. Unlike those, path must exist.
func LoadWithFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Try global config first (lower precedence)
	globalPath, err := GlobalConfigPath()
	if err == nil {
		if err := mergeFile(cfg, globalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	// Try local config (higher precedence, overwrites global)
	if err := mergeFile(cfg, LocalConfigPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if path != "" {
		if err := mergeFile(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// LocalConfigPath returns the path to the local config file
func LocalConfigPath() string {
	return ".pubtktrc"
}

// GlobalConfigPath returns the path to the global config file
func GlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, ".pubtktrc"), nil
}

// LoadFromFile loads configuration from a specific file on top of the
// defaults, then applies environment overrides.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := mergeFile(cfg, path); err != nil {
		return nil, err
	}

	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// LoadEnvFile loads KEY=value pairs from path into the process environment.
// Variables that are already set keep their values.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from PUBTKT_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvKeyDir); v != "" {
		c.Keys.Dir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvLogEnv); v != "" {
		c.Log.Env = v
	}
}

// Validate checks values that would otherwise fail later at issuance time.
func (c *Config) Validate() error {
	if c.Keys.Dir == "" {
		return fmt.Errorf("keys.dir must not be empty")
	}
	if c.Keys.PrivateKeyFile == "" || c.Keys.PublicKeyFile == "" {
		return fmt.Errorf("keys.private_key_file and keys.public_key_file must not be empty")
	}
	if c.Keys.PrivateKeyFile == c.Keys.PublicKeyFile {
		return fmt.Errorf("keys.private_key_file and keys.public_key_file must differ")
	}
	if c.Keys.Bits < keystore.MinKeyBits {
		return fmt.Errorf("keys.bits must be at least %d, got %d", keystore.MinKeyBits, c.Keys.Bits)
	}
	valid, err := c.Ticket.ValidDuration()
	if err != nil {
		return err
	}
	if valid < time.Second {
		return fmt.Errorf("ticket.valid must be at least 1s, got %q", c.Ticket.Valid)
	}
	grace, err := c.Ticket.GraceDuration()
	if err != nil {
		return err
	}
	// Tickets carry whole seconds.
	if grace > 0 && grace.Truncate(time.Second) >= valid.Truncate(time.Second) {
		return fmt.Errorf("ticket.grace %q must be shorter than ticket.valid %q", c.Ticket.Grace, c.Ticket.Valid)
	}
	return nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func parseDuration(name, value string) (time.Duration, error) {
	if value == "" || value == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", name, value)
	}
	return d, nil
}
