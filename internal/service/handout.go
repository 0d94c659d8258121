package service

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/sakif/blog/internal/form"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/repository"
	"github.com/sakif/blog/internal/storage"
)

const maxHandoutTitleLength = 100

// HandoutUpload is a submitted handout form.
type HandoutUpload struct {
	Title       string
	Description string
	File        form.File
	Size        int64
	Filename    string
}

// HandoutItem is a handout plus a URL the client can download it from.
type HandoutItem struct {
	model.Handout
	URL string `json:"url"`
}

// UploadResult is returned after a successful handout upload.
type UploadResult struct {
	Handout  *HandoutItem `json:"handout"`
	Redirect string       `json:"redirect"`
}

// HandoutService stores PDF handouts. The collection is shared: any signed-in
// user can add to it and everyone sees the whole list.
type HandoutService struct {
	repo     repository.HandoutRepository
	users    repository.UserRepository
	store    storage.Store
	maxBytes int64
	logger   *slog.Logger
}

func NewHandoutService(repo repository.HandoutRepository, users repository.UserRepository, store storage.Store, maxBytes int64, logger *slog.Logger) *HandoutService {
	return &HandoutService{
		repo:     repo,
		users:    users,
		store:    store,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Upload validates and stores a PDF, then records it.
func (s *HandoutService) Upload(ctx context.Context, requesterID string, in HandoutUpload) (*UploadResult, error) {
	requester, err := loadRequester(ctx, s.users, requesterID)
	if err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	errs := form.Errors{}
	switch {
	case in.Title == "":
		errs.Add("title", "This field is required.")
	case utf8.RuneCountInString(in.Title) > maxHandoutTitleLength:
		errs.Add("title", "Ensure this value has at most 100 characters.")
	}

	var upload *form.Upload
	if in.File == nil {
		errs.Add("file", "This field is required.")
	} else {
		up, err := form.CheckPDF(in.File, in.Size, s.maxBytes)
		if err != nil {
			errs.Add("file", err.Error())
		}
		upload = up
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}

	key := storage.NewKey(storage.HandoutsPrefix, upload.Ext)
	if err := s.store.Put(ctx, key, in.File, upload.Size, upload.ContentType); err != nil {
		return nil, fmt.Errorf("storing handout: %w", err)
	}

	h := &model.Handout{
		Title:        in.Title,
		Description:  in.Description,
		File:         key,
		OriginalName: path.Base(strings.ReplaceAll(in.Filename, "\\", "/")),
		Size:         upload.Size,
		Pages:        upload.Pages,
		UploaderID:   requester.ID,
	}
	if err := s.repo.CreateHandout(ctx, h); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned handout file",
				slog.String("key", key),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("recording handout: %w", err)
	}

	s.logger.Info("handout uploaded",
		slog.String("id", h.ID),
		slog.String("by", requester.Username),
		slog.Int("pages", h.Pages),
		slog.Int64("size", h.Size),
	)

	return &UploadResult{
		Handout:  s.item(ctx, *h),
		Redirect: "/handouts/upload",
	}, nil
}

// List returns every handout in the order they were uploaded.
func (s *HandoutService) List(ctx context.Context) ([]HandoutItem, error) {
	handouts, err := s.repo.ListHandouts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing handouts: %w", err)
	}

	items := make([]HandoutItem, 0, len(handouts))
	for _, h := range handouts {
		items = append(items, *s.item(ctx, h))
	}
	return items, nil
}

// Get returns one handout with its download URL.
func (s *HandoutService) Get(ctx context.Context, id string) (*HandoutItem, error) {
	h, err := s.repo.GetHandout(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.item(ctx, *h), nil
}

func (s *HandoutService) item(ctx context.Context, h model.Handout) *HandoutItem {
	url, err := s.store.URL(ctx, h.File)
	if err != nil {
		s.logger.Warn("cannot resolve handout URL",
			slog.String("id", h.ID),
			slog.String("error", err.Error()),
		)
	}
	return &HandoutItem{Handout: h, URL: url}
}
