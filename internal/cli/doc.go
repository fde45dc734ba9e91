// Package cli implements the interactive kmdb shell: it opens the
// configured storage backend, wraps it in a document store and runs a
// read–eval–print loop over the store operations.
package cli
