// Package service holds the business rules of the blog.
//
// LAYERING:
//
//	Handler (HTTP)  → parses requests, writes JSON
//	Service (rules) → validates input, checks ownership, paginates
//	Repository      → SQL
//
// Services take plain values and the requester's user ID ("" for anonymous)
// and return domain values or apperror errors. They never see *http.Request,
// so every rule here is testable with in-memory fakes (see *_test.go).
//
// AUTHORIZATION:
// Every write path calls auth.Authorize on the stored record BEFORE it
// writes anything. The record's owner comes from storage, never from input.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/auth"
	"github.com/sakif/blog/internal/form"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/repository"
)

const (
	// PageSize is the number of posts on every listing page.
	PageSize = 10

	// LastPage asks List/ListByUser for the final page, whatever its number.
	LastPage = -1
)

// PostPage is one page of a post listing. Pages are numbered from 1.
type PostPage struct {
	Posts       []model.Post `json:"posts"`
	Page        int          `json:"page"`
	PageSize    int          `json:"pageSize"`
	Total       int          `json:"total"`
	TotalPages  int          `json:"totalPages"`
	HasNext     bool         `json:"hasNext"`
	HasPrevious bool         `json:"hasPrevious"`
	Username    string       `json:"username,omitempty"` // set by ListByUser
}

// Redirect tells the client where to go after a successful write.
type Redirect struct {
	To string `json:"redirect"`
}

// PostService implements the post catalog: listing, reading and the
// owner-only write operations.
type PostService struct {
	posts  repository.PostRepository
	users  repository.UserRepository
	logger *slog.Logger
}

func NewPostService(posts repository.PostRepository, users repository.UserRepository, logger *slog.Logger) *PostService {
	return &PostService{
		posts:  posts,
		users:  users,
		logger: logger,
	}
}

// List returns page of all posts, newest first.
func (s *PostService) List(ctx context.Context, page int) (*PostPage, error) {
	return s.paginate(ctx, "", page)
}

// ListByUser returns page of the posts written by username, newest first.
// An unknown username is NotFound, even when asking for page 1.
func (s *PostService) ListByUser(ctx context.Context, username string, page int) (*PostPage, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}

	result, err := s.paginate(ctx, user.ID, page)
	if err != nil {
		return nil, err
	}
	result.Username = user.Username
	return result, nil
}

// paginate resolves page against the current count and fetches one slice.
//
// An empty catalog still has page 1 (with no posts). Any page below 1 or
// past the last page is NotFound.
func (s *PostService) paginate(ctx context.Context, authorID string, page int) (*PostPage, error) {
	total, err := s.posts.Count(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("counting posts: %w", err)
	}

	totalPages := (total + PageSize - 1) / PageSize
	if totalPages == 0 {
		totalPages = 1
	}

	if page == LastPage {
		page = totalPages
	}
	if page < 1 || page > totalPages {
		return nil, apperror.NotFound("page", strconv.Itoa(page))
	}

	posts, err := s.posts.List(ctx, repository.ListOptions{
		Limit:    PageSize,
		Offset:   (page - 1) * PageSize,
		AuthorID: authorID,
	})
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	if posts == nil {
		posts = []model.Post{}
	}

	return &PostPage{
		Posts:       posts,
		Page:        page,
		PageSize:    PageSize,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}, nil
}

// Get returns one post or NotFound.
func (s *PostService) Get(ctx context.Context, id string) (*model.Post, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.NotFound("post", id)
	}
	return s.posts.GetByID(ctx, id)
}

// Create publishes a post by the requester. The author is always the
// requester and the date is always now; neither can be supplied.
func (s *PostService) Create(ctx context.Context, requesterID string, in form.PostInput) (*model.Post, error) {
	author, err := loadRequester(ctx, s.users, requesterID)
	if err != nil {
		return nil, err
	}

	in.Normalize()
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}

	post := &model.Post{
		Title:    in.Title,
		Content:  in.Content,
		AuthorID: author.ID,
		Author:   author.Username,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		s.logger.Error("failed to create post",
			slog.String("author", author.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.String("id", post.ID),
		slog.String("author", author.Username),
	)
	return post, nil
}

// Update overwrites title and content of a post the requester wrote.
//
// Check order: Unauthorized (anonymous), NotFound, Forbidden (not the
// author), then field validation. Author and date never change.
func (s *PostService) Update(ctx context.Context, requesterID, id string, in form.PostInput) (*model.Post, error) {
	post, err := s.ownedPost(ctx, requesterID, id)
	if err != nil {
		return nil, err
	}

	in.Normalize()
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}

	post.Title = in.Title
	post.Content = in.Content
	if err := s.posts.Update(ctx, post); err != nil {
		return nil, fmt.Errorf("updating post %s: %w", id, err)
	}

	s.logger.Info("post updated", slog.String("id", post.ID))
	return post, nil
}

// Delete removes a post the requester wrote and sends them to the catalog.
func (s *PostService) Delete(ctx context.Context, requesterID, id string) (*Redirect, error) {
	post, err := s.ownedPost(ctx, requesterID, id)
	if err != nil {
		return nil, err
	}

	if err := s.posts.Delete(ctx, post.ID); err != nil {
		return nil, fmt.Errorf("deleting post %s: %w", id, err)
	}

	s.logger.Info("post deleted", slog.String("id", post.ID), slog.String("by", requesterID))
	return &Redirect{To: "/"}, nil
}

// ownedPost loads id and runs the ownership guard on the stored record.
func (s *PostService) ownedPost(ctx context.Context, requesterID, id string) (*model.Post, error) {
	if requesterID == "" {
		return nil, unauthorized()
	}

	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := auth.Authorize(requesterID, post); err != nil {
		s.logger.Warn("post change refused",
			slog.String("post", post.ID),
			slog.String("requester", requesterID),
		)
		return nil, err
	}
	return post, nil
}

// loadRequester resolves a session user ID to a stored user. A token for a
// deleted account counts as anonymous.
func loadRequester(ctx context.Context, users repository.UserRepository, requesterID string) (*model.User, error) {
	if requesterID == "" {
		return nil, unauthorized()
	}
	user, err := users.GetUserByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, unauthorized()
		}
		return nil, fmt.Errorf("loading requester %s: %w", requesterID, err)
	}
	return user, nil
}

func unauthorized() error { return apperror.Unauthorized("login required") }
