package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/form/formtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pdfUpload(title string, pages int) HandoutUpload {
	doc := formtest.PDF(pages)
	return HandoutUpload{
		Title:    title,
		File:     bytes.NewReader(doc),
		Size:     int64(len(doc)),
		Filename: `C:\notes\` + title + ".pdf",
	}
}

func TestHandoutUpload(t *testing.T) {
	repo := newMemRepo()
	store := newMemStore()
	alice := addUser(t, repo, "alice")
	svc := NewHandoutService(repo, repo, store, 1<<20, testLogger())

	result, err := svc.Upload(context.Background(), alice.ID, pdfUpload("week1", 2))
	require.NoError(t, err)
	assert.Equal(t, "/handouts/upload", result.Redirect)

	h := result.Handout
	assert.Equal(t, "week1", h.Title)
	assert.Equal(t, 2, h.Pages)
	assert.Equal(t, "week1.pdf", h.OriginalName)
	assert.Equal(t, alice.ID, h.UploaderID)
	assert.Equal(t, "/media/"+h.File, h.URL)

	keys := store.keys("handouts/")
	require.Len(t, keys, 1)
	assert.Equal(t, h.File, keys[0])
}

func TestHandoutUpload_Rejects(t *testing.T) {
	text := []byte("plain notes")

	tests := []struct {
		name      string
		requester string
		in        HandoutUpload
		want      error
		wantField string
	}{
		{"anonymous", "", pdfUpload("t", 1), apperror.ErrUnauthorized, ""},
		{"unknown account", "ghostuserid", pdfUpload("t", 1), apperror.ErrUnauthorized, ""},
		{"no title", "alice", pdfUpload("", 1), apperror.ErrValidation, "title"},
		{"no file", "alice", HandoutUpload{Title: "t"}, apperror.ErrValidation, "file"},
		{"not a pdf", "alice", HandoutUpload{Title: "t", File: bytes.NewReader(text), Size: int64(len(text))}, apperror.ErrValidation, "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			store := newMemStore()
			svc := NewHandoutService(repo, repo, store, 1<<20, testLogger())

			requester := tt.requester
			if requester == "alice" {
				requester = addUser(t, repo, "alice").ID
			}

			_, err := svc.Upload(context.Background(), requester, tt.in)
			require.True(t, errors.Is(err, tt.want), "got %v", err)
			if tt.wantField != "" {
				assert.Contains(t, fieldErrors(t, err), tt.wantField)
			}
			assert.Empty(t, store.keys(""))
			assert.Empty(t, store.deleted, "nothing is written before the requester and form check out")

			list, err := svc.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestHandoutUpload_TooLarge(t *testing.T) {
	repo := newMemRepo()
	alice := addUser(t, repo, "alice")
	svc := NewHandoutService(repo, repo, newMemStore(), 64, testLogger())

	_, err := svc.Upload(context.Background(), alice.ID, pdfUpload("big", 3))
	assert.Contains(t, fieldErrors(t, err), "file")
}

func TestHandoutUpload_RecordFailureRemovesFile(t *testing.T) {
	repo := newMemRepo()
	repo.createHandoutErr = errors.New("disk full")
	alice := addUser(t, repo, "alice")
	store := newMemStore()
	svc := NewHandoutService(repo, repo, store, 1<<20, testLogger())

	_, err := svc.Upload(context.Background(), alice.ID, pdfUpload("lost", 1))
	require.Error(t, err)
	assert.Empty(t, store.keys("handouts/"))
	assert.Len(t, store.deleted, 1)
}

func TestHandoutList_UploadOrder(t *testing.T) {
	repo := newMemRepo()
	alice := addUser(t, repo, "alice")
	bob := addUser(t, repo, "bob")
	svc := NewHandoutService(repo, repo, newMemStore(), 1<<20, testLogger())
	ctx := context.Background()

	for _, up := range []struct {
		by    string
		title string
	}{{alice.ID, "first"}, {bob.ID, "second"}, {alice.ID, "third"}} {
		_, err := svc.Upload(ctx, up.by, pdfUpload(up.title, 1))
		require.NoError(t, err)
	}

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "first", list[0].Title)
	assert.Equal(t, "second", list[1].Title)
	assert.Equal(t, "third", list[2].Title)
	for _, item := range list {
		assert.NotEmpty(t, item.URL)
	}
}

func TestHandoutGet(t *testing.T) {
	repo := newMemRepo()
	alice := addUser(t, repo, "alice")
	svc := NewHandoutService(repo, repo, newMemStore(), 1<<20, testLogger())
	ctx := context.Background()

	result, err := svc.Upload(ctx, alice.ID, pdfUpload("week1", 3))
	require.NoError(t, err)

	item, err := svc.Get(ctx, result.Handout.ID)
	require.NoError(t, err)
	assert.Equal(t, "week1", item.Title)
	assert.Equal(t, 3, item.Pages)
	assert.Equal(t, "/media/"+item.File, item.URL)

	_, err = svc.Get(ctx, "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)
}
