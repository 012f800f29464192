package keystore

import "errors"

var (
	// ErrStorage reports a failure to create, write, lock or chmod key storage.
	ErrStorage = errors.New("key storage error")

	// ErrNotFound reports that a referenced key file does not exist.
	ErrNotFound = errors.New("key file not found")

	// ErrKeyFormat reports key material that cannot be parsed.
	ErrKeyFormat = errors.New("invalid key format")
)
