package store

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrEmbedderNotConfigured is returned by Process when no embedder has
// been registered via SetEmbedder.
var ErrEmbedderNotConfigured = errors.New("embedder not set, call SetEmbedder first")

// ConfigError reports an invalid store configuration detected at
// construction time. Construction aborts before any engine call.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid store config: %s: %s", e.Field, e.Reason)
}

// StorageError wraps an engine failure with the attempted operation and
// its identifying context. Every operation surfaces engine failures this
// way except DeleteVector, which downgrades them to a false return.
type StorageError struct {
	Op         string
	Collection string
	ID         string
	Err        error
}

func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s failed for %q in collection %q: %v", e.Op, e.ID, e.Collection, e.Err)
	}
	return fmt.Sprintf("%s failed in collection %q: %v", e.Op, e.Collection, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (s *Store) storageErr(op, id string, err error) error {
	return &StorageError{Op: op, Collection: s.collection, ID: id, Err: err}
}
