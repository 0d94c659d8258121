// Package repository declares the persistence contracts the service layer
// depends on. internal/repository/sqlite provides the implementation; tests
// provide in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/blog/internal/model"
)

// ListOptions controls paging and filtering of list queries.
// An empty AuthorID means "all authors".
type ListOptions struct {
	Limit    int
	Offset   int
	AuthorID string
}

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	List(ctx context.Context, opts ListOptions) ([]model.Post, error)
	Count(ctx context.Context, authorID string) (int, error)
	Update(ctx context.Context, post *model.Post) error
	Delete(ctx context.Context, id string) error
}

type UserRepository interface {
	// CreateUser inserts the user together with its profile row.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// UsernameTaken reports whether another user (not excludeID) owns username.
	UsernameTaken(ctx context.Context, username, excludeID string) (bool, error)
	// Upsert creates or refreshes a GitHub-linked user keyed by GitHubID.
	Upsert(ctx context.Context, user *model.User) error
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	// UpdateAccount writes both rows atomically: either both change or neither.
	UpdateAccount(ctx context.Context, user *model.User, profile *model.Profile) error
}

type HandoutRepository interface {
	CreateHandout(ctx context.Context, h *model.Handout) error
	GetHandout(ctx context.Context, id string) (*model.Handout, error)
	ListHandouts(ctx context.Context) ([]model.Handout, error)
}
