package store

import "errors"

// ErrNotFound is returned by Read when the path does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the contract over the hierarchical file store that holds the
// assistant's durable state. The session repository is expressed purely in
// terms of this interface so it can sit on top of any vault-like backend.
type Store interface {
	Read(path string) ([]byte, error)
	Write(path string, data []byte) error
	Exists(path string) bool
	Delete(path string) error
	Copy(path, newPath string) error
	CreateDir(path string) error
	// List returns the paths of all regular files under prefix,
	// relative to the store root.
	List(prefix string) ([]string, error)
}
