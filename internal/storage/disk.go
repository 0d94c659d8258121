package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore writes attachments under a base directory. The server exposes
// that directory at URLPrefix.
type DiskStore struct {
	basePath  string
	urlPrefix string
}

var _ Store = (*DiskStore)(nil)

// NewDiskStore creates basePath if missing. urlPrefix defaults to "/media".
func NewDiskStore(basePath, urlPrefix string) (*DiskStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating media dir: %w", err)
	}
	if urlPrefix == "" {
		urlPrefix = "/media"
	}
	return &DiskStore{basePath: basePath, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// BasePath is the directory files are written to.
func (d *DiskStore) BasePath() string {
	return d.basePath
}

// Put writes r to a temporary file next to the target and renames it into
// place, so readers never see a partial file.
func (d *DiskStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	target, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("storage: creating dir for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".incoming-*")
	if err != nil {
		return fmt.Errorf("storage: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	written, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("storage: writing %s: %w", key, err)
	}
	if size >= 0 && written != size {
		return fmt.Errorf("storage: writing %s: got %d bytes, want %d", key, written, size)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("storage: moving %s into place: %w", key, err)
	}
	return nil
}

// Delete removes the file for key. A missing file is not an error.
func (d *DiskStore) Delete(ctx context.Context, key string) error {
	target, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: deleting %s: %w", key, err)
	}
	return nil
}

// URL returns the public path for key, e.g. "/media/handouts/x.pdf".
func (d *DiskStore) URL(ctx context.Context, key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return d.urlPrefix + "/" + (&url.URL{Path: cleaned}).EscapedPath(), nil
}

func (d *DiskStore) path(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.basePath, filepath.FromSlash(cleaned)), nil
}
