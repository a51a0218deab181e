// Package blob stores uploaded note payloads under opaque keys.
package blob

import (
	"context"
	"errors"
	"io"
	"strings"
)

var (
	// ErrNotFound is returned by Open when no object exists under the key.
	ErrNotFound = errors.New("blob not found")
	// ErrExists is returned by Put when the key is taken. r is left unread.
	ErrExists = errors.New("blob already exists")
)

// Store is the payload area behind the note service. Keys are flat names
// without path separators. Put never replaces an existing blob.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

func validKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return errors.New("invalid blob key")
	}
	return nil
}
