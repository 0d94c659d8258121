package storage

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDiskStore(t *testing.T) *DiskStore {
	t.Helper()
	store, err := NewDiskStore(filepath.Join(t.TempDir(), "media"), "")
	require.NoError(t, err)
	return store
}

func TestNewKey(t *testing.T) {
	k1 := NewKey(ProfilePicsPrefix, ".PNG")
	k2 := NewKey(ProfilePicsPrefix, "png")

	assert.True(t, strings.HasPrefix(k1, "profile_pics/"))
	assert.True(t, strings.HasSuffix(k1, ".png"))
	assert.True(t, strings.HasSuffix(k2, ".png"))
	assert.NotEqual(t, k1, k2)
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"handouts/a.pdf", "handouts/a.pdf", false},
		{"handouts//a.pdf", "handouts/a.pdf", false},
		{"handouts/../default.jpg", "default.jpg", false},
		{`profile_pics\x.png`, "profile_pics/x.png", false},
		{"", "", true},
		{"/etc/passwd", "", true},
		{"../secret", "", true},
		{"a/../../secret", "", true},
		{"..", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := cleanKey(tt.key)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidKey), "err = %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =========================================================================
// DISK STORE
// =========================================================================

func TestDiskStore_PutURLDelete(t *testing.T) {
	store := newTestDiskStore(t)
	ctx := context.Background()
	body := []byte("%PDF-1.4 fake")

	require.NoError(t, store.Put(ctx, "handouts/doc.pdf", bytes.NewReader(body), int64(len(body)), "application/pdf"))

	onDisk, err := os.ReadFile(filepath.Join(store.BasePath(), "handouts", "doc.pdf"))
	require.NoError(t, err)
	assert.Equal(t, body, onDisk)

	u, err := store.URL(ctx, "handouts/doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/media/handouts/doc.pdf", u)

	require.NoError(t, store.Delete(ctx, "handouts/doc.pdf"))
	_, err = os.Stat(filepath.Join(store.BasePath(), "handouts", "doc.pdf"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	assert.NoError(t, store.Delete(ctx, "handouts/doc.pdf"), "deleting twice is fine")
}

func TestDiskStore_ShortWriteLeavesNothing(t *testing.T) {
	store := newTestDiskStore(t)

	err := store.Put(context.Background(), "handouts/short.pdf", strings.NewReader("abc"), 10, "application/pdf")
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(store.BasePath(), "handouts"))
	require.NoError(t, err)
	assert.Empty(t, entries, "no target or temp file should remain")
}

func TestDiskStore_RejectsTraversal(t *testing.T) {
	store := newTestDiskStore(t)
	ctx := context.Background()

	err := store.Put(ctx, "../escape.txt", strings.NewReader("x"), 1, "text/plain")
	assert.True(t, errors.Is(err, ErrInvalidKey))

	_, err = os.Stat(filepath.Join(filepath.Dir(store.BasePath()), "escape.txt"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = store.URL(ctx, "/abs")
	assert.True(t, errors.Is(err, ErrInvalidKey))
}

func TestDiskStore_URLEscapes(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "/files/")
	require.NoError(t, err)

	u, err := store.URL(context.Background(), "profile_pics/a b.png")
	require.NoError(t, err)
	assert.Equal(t, "/files/profile_pics/a%20b.png", u)
}

func TestNewDiskStore_RequiresPath(t *testing.T) {
	_, err := NewDiskStore("  ", "")
	assert.Error(t, err)
}

// =========================================================================
// MINIO STORE
// =========================================================================

// Presigning is computed locally when the region is known, so no server is
// needed for this test.
func TestMinioStore_URLIsPresigned(t *testing.T) {
	store, err := newMinioStore(MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "blog",
		Region:    "us-east-1",
	})
	require.NoError(t, err)

	raw, err := store.URL(context.Background(), "handouts/doc.pdf")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/blog/handouts/doc.pdf", u.Path)
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))

	_, err = store.URL(context.Background(), "../nope")
	assert.True(t, errors.Is(err, ErrInvalidKey))
}
