// Package storage keeps uploaded binaries (profile pictures, handout PDFs)
// outside the database. Records store only the key; URL turns a key into
// something a client can fetch.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/rs/xid"
)

// Key prefixes, one per kind of attachment.
const (
	ProfilePicsPrefix = "profile_pics"
	HandoutsPrefix    = "handouts"
)

// ErrInvalidKey is returned for keys that are empty or escape the store root.
var ErrInvalidKey = errors.New("storage: invalid key")

// Store is the attachment backend. Implementations: DiskStore, MinioStore.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// NewKey returns a fresh key under prefix, e.g. "profile_pics/<xid>.png".
// Client file names are never used in keys.
func NewKey(prefix, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return prefix + "/" + xid.New().String() + strings.ToLower(ext)
}

// cleanKey normalizes key to a relative slash path and rejects traversal.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
