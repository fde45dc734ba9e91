// Package common defines shared constants and sentinel errors used across
// the store, its storage backends and the command-line tool. Callers should
// use errors.Is to match these values.
package common

import "errors"

var (
	// Storage-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")

	// Store-level errors.
	ErrCorruptState = errors.New("corrupt state")
	ErrIDCollision  = errors.New("id collision")

	// Query / input errors.
	ErrorIncorrectQuery = errors.New("query item must be name=value")

	// Encryption errors (wrong passphrase or tampered value).
	ErrDecrypt = errors.New("unable to decrypt value")
)
