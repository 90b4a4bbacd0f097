// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrValidation indicates malformed or missing input (bad date format, empty field).
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the requested account does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a uniqueness violation (email already registered).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized indicates failed authentication. It is deliberately the
	// only outcome for unknown email, wrong password, and masked internal
	// errors alike, so callers cannot tell which occurred.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrEncrypt indicates a field could not be encrypted.
	ErrEncrypt = errors.New("encryption failed")

	// ErrDecrypt indicates ciphertext could not be recovered: malformed input,
	// wrong key, or failed authentication (tampering). The plaintext is
	// unrecoverable; the value is not "empty".
	ErrDecrypt = errors.New("decryption failed")

	// ErrStore indicates a persistence failure; the failed call left no
	// partial state behind.
	ErrStore = errors.New("store failure")
)
