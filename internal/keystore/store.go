// Package keystore manages the ticket issuer's RSA key pair on disk.
//
// The key pair is created at most once per directory. Creation is safe
// against concurrent setup runs: a file lock next to the key directory
// serializes generators, and each key file is staged next to the directory
// and published with a hard link, so an existing file is never replaced and
// a partially written file is never visible inside the key directory.
package keystore

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

const (
	// DefaultDir is the conventional key directory.
	DefaultDir = "/etc/pubtkt/keys"

	// DefaultPrivateKeyFile is the private key file name inside the key directory.
	DefaultPrivateKeyFile = "privkey.pem"

	// DefaultPublicKeyFile is the public key file name inside the key directory.
	DefaultPublicKeyFile = "pubkey.pem"

	// DefaultKeyBits is the RSA modulus size for generated keys.
	DefaultKeyBits = 4096

	// MinKeyBits is the smallest modulus accepted by WithKeyBits.
	MinKeyBits = 2048

	// FileMode is applied to both key files: owner and group read, nothing else.
	FileMode fs.FileMode = 0440

	dirMode fs.FileMode = 0750

	lockTimeout = 10 * time.Second
	lockRetry   = 100 * time.Millisecond
)

// Store owns one key directory holding a private and a public key file.
type Store struct {
	dir         string
	privateFile string
	publicFile  string
	bits        int
	logger      *zap.Logger

	generate func(bits int) (*rsa.PrivateKey, error)
}

// Option configures a Store.
type Option func(*Store)

// WithFileNames overrides the key file names. Empty names keep the defaults.
func WithFileNames(privateFile, publicFile string) Option {
	return func(s *Store) {
		if privateFile != "" {
			s.privateFile = privateFile
		}
		if publicFile != "" {
			s.publicFile = publicFile
		}
	}
}

// WithKeyBits sets the RSA modulus size for generated keys.
// Values below MinKeyBits are ignored.
func WithKeyBits(bits int) Option {
	return func(s *Store) {
		if bits >= MinKeyBits {
			s.bits = bits
		}
	}
}

// WithLogger sets the logger used for key lifecycle events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a Store for dir. An empty dir means DefaultDir.
func New(dir string, opts ...Option) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	s := &Store{
		dir:         filepath.Clean(dir),
		privateFile: DefaultPrivateKeyFile,
		publicFile:  DefaultPublicKeyFile,
		bits:        DefaultKeyBits,
		logger:      zap.NewNop(),
		generate:    generateKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the key directory.
func (s *Store) Dir() string {
	return s.dir
}

// PrivateKeyPath returns the path of the private key file.
func (s *Store) PrivateKeyPath() string {
	return filepath.Join(s.dir, s.privateFile)
}

// PublicKeyPath returns the path of the public key file.
func (s *Store) PublicKeyPath() string {
	return filepath.Join(s.dir, s.publicFile)
}

// lockPath is a sibling of the key directory so the directory itself only
// ever holds the two key files.
func (s *Store) lockPath() string {
	return s.dir + ".lock"
}

// tempPattern names staging files, siblings of the key directory on the
// same filesystem so they can be hard linked into it.
func (s *Store) tempPattern() string {
	return filepath.Base(s.dir) + ".tmp-*"
}

// EnsureKeyPair creates the key pair unless both files already exist.
// It reports whether any key file was written.
//
// A private key without its public key is completed by deriving the public
// key. A public key without its private key is an ErrStorage: generating a
// new private key would silently invalidate the published public key.
func (s *Store) EnsureKeyPair(ctx context.Context) (bool, error) {
	privPath, pubPath := s.PrivateKeyPath(), s.PublicKeyPath()

	havePriv, havePub, err := s.present()
	if err != nil {
		return false, err
	}
	if havePriv && havePub {
		s.logger.Debug("key pair already present", zap.String("dir", s.dir))
		return false, nil
	}

	// Mkdir, not MkdirAll: a missing parent is an operator error.
	if err := os.Mkdir(s.dir, dirMode); err != nil && !errors.Is(err, fs.ErrExist) {
		return false, fmt.Errorf("%w: failed to create key directory %s: %w", ErrStorage, s.dir, err)
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	// Another process may have finished while we waited for the lock.
	havePriv, havePub, err = s.present()
	if err != nil {
		return false, err
	}
	s.removeStaleTemp()

	switch {
	case havePriv && havePub:
		s.logger.Debug("key pair created concurrently", zap.String("dir", s.dir))
		return false, nil

	case havePub:
		return false, fmt.Errorf("%w: public key %s exists without private key %s", ErrStorage, pubPath, privPath)

	case havePriv:
		written, err := s.completeFromPrivateKey()
		if err != nil {
			return false, err
		}
		s.logger.Info("derived missing public key", zap.String("path", pubPath))
		return written, nil
	}

	start := time.Now()
	key, err := s.generate(s.bits)
	if err != nil {
		return false, fmt.Errorf("failed to generate %d-bit RSA key: %w", s.bits, err)
	}
	s.logger.Debug("generated RSA key",
		zap.Int("bits", s.bits),
		zap.Duration("elapsed", time.Since(start)))

	kept, err := s.publish(privPath, encodePrivateKey(key))
	if err != nil {
		return false, err
	}
	if kept {
		// Written by something that does not take the lock. The public key
		// has to match whatever private key is on disk, not the one we made.
		s.logger.Warn("private key appeared during generation, keeping it", zap.String("path", privPath))
		return s.completeFromPrivateKey()
	}

	if _, err := s.publishPublicKey(&key.PublicKey); err != nil {
		return false, err
	}

	s.logger.Info("created key pair",
		zap.String("private_key", privPath),
		zap.String("public_key", pubPath),
		zap.Int("bits", s.bits))
	return true, nil
}

// completeFromPrivateKey publishes the public key derived from the private
// key on disk.
func (s *Store) completeFromPrivateKey() (bool, error) {
	key, err := LoadPrivateKey(s.PrivateKeyPath())
	if err != nil {
		return false, fmt.Errorf("failed to complete key pair: %w", err)
	}
	return s.publishPublicKey(&key.PublicKey)
}

// publishPublicKey publishes pub and reports whether it was written. A public
// key file that already exists must match pub.
func (s *Store) publishPublicKey(pub *rsa.PublicKey) (bool, error) {
	pubPEM, err := encodePublicKey(pub)
	if err != nil {
		return false, err
	}
	kept, err := s.publish(s.PublicKeyPath(), pubPEM)
	if err != nil {
		return false, err
	}
	if !kept {
		return true, nil
	}

	existing, err := LoadPublicKey(s.PublicKeyPath())
	if err != nil {
		return false, fmt.Errorf("%w: public key %s appeared during creation: %w", ErrStorage, s.PublicKeyPath(), err)
	}
	if !existing.Equal(pub) {
		return false, fmt.Errorf("%w: public key %s does not match private key %s", ErrStorage, s.PublicKeyPath(), s.PrivateKeyPath())
	}
	return false, nil
}

func (s *Store) present() (priv, pub bool, err error) {
	if priv, err = fileExists(s.PrivateKeyPath()); err != nil {
		return false, false, err
	}
	if pub, err = fileExists(s.PublicKeyPath()); err != nil {
		return false, false, err
	}
	return priv, pub, nil
}

func (s *Store) lock(ctx context.Context) (func(), error) {
	fileLock := flock.New(s.lockPath())
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(lockCtx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to acquire lock %s: %w", ErrStorage, s.lockPath(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: failed to acquire lock %s: timeout after %v", ErrStorage, s.lockPath(), lockTimeout)
	}
	return func() { _ = fileLock.Unlock() }, nil
}

// publish stages data next to the key directory, applies FileMode and links
// it to path. The link fails rather than replacing an existing file; an
// existing file is left untouched and reported as kept.
func (s *Store) publish(path string, data []byte) (kept bool, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(s.dir), s.tempPattern())
	if err != nil {
		return false, fmt.Errorf("%w: failed to create temp file for %s: %w", ErrStorage, path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return false, fmt.Errorf("%w: failed to write %s: %w", ErrStorage, path, err)
	}
	if err := tmp.Sync(); err != nil {
		return false, fmt.Errorf("%w: failed to sync %s: %w", ErrStorage, path, err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("%w: failed to close %s: %w", ErrStorage, path, err)
	}
	if err := os.Chmod(tmpPath, FileMode); err != nil {
		return false, fmt.Errorf("%w: failed to set permissions on %s: %w", ErrStorage, path, err)
	}

	if err := os.Link(tmpPath, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return true, nil
		}
		return false, fmt.Errorf("%w: failed to publish %s: %w", ErrStorage, path, err)
	}
	return false, nil
}

// removeStaleTemp deletes staging files left by an interrupted run, next to
// the key directory and inside it. Callers hold the lock.
func (s *Store) removeStaleTemp() {
	patterns := []string{
		filepath.Join(filepath.Dir(s.dir), s.tempPattern()),
		filepath.Join(s.dir, ".tmp-*"),
	}
	for _, pattern := range patterns {
		matches, _ := filepath.Glob(pattern)
		for _, m := range matches {
			if err := os.Remove(m); err == nil {
				s.logger.Info("removed stale temp file", zap.String("path", m))
			}
		}
	}
}

func generateKey(bits int) (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, bits)
}

func fileExists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("%w: failed to stat %s: %w", ErrStorage, path, err)
	}
}
