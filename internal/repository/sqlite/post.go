package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/repository"
)

var _ repository.PostRepository = (*DB)(nil)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// postColumns selects a post joined with its author's username.
const postColumns = `p.id, p.title, p.content, p.date_posted, p.author_id, u.username, p.updated_at`

func scanPost(s scanner, p *model.Post) error {
	return s.Scan(&p.ID, &p.Title, &p.Content, &p.DatePosted, &p.AuthorID, &p.Author, &p.UpdatedAt)
}

// Create inserts a post. The ID is always generated here; DatePosted defaults
// to now unless the caller already set it.
func (db *DB) Create(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()

	now := time.Now().UTC()
	if post.DatePosted.IsZero() {
		post.DatePosted = now
	}
	post.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO posts (id, title, content, date_posted, author_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.Title,
		post.Content,
		post.DatePosted,
		post.AuthorID,
		post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating post: %w", err)
	}

	return nil
}

// GetByID retrieves a single post with its author's username.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Post, error) {
	var post model.Post

	err := scanPost(db.conn.QueryRowContext(ctx,
		`SELECT `+postColumns+`
		 FROM posts p JOIN users u ON u.id = p.author_id
		 WHERE p.id = ?`,
		id,
	), &post)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}

	return &post, nil
}

// List returns posts newest first. Ties on date_posted fall back to the
// (time-ordered) xid so paging is stable.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + postColumns + `
		 FROM posts p JOIN users u ON u.id = p.author_id`
	args := make([]any, 0, 3)
	if opts.AuthorID != "" {
		query += ` WHERE p.author_id = ?`
		args = append(args, opts.AuthorID)
	}
	query += ` ORDER BY p.date_posted DESC, p.id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0, limit)
	for rows.Next() {
		var p model.Post
		if err := scanPost(rows, &p); err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}

	return posts, nil
}

// Count returns the number of posts, optionally restricted to one author.
func (db *DB) Count(ctx context.Context, authorID string) (int, error) {
	query := `SELECT COUNT(*) FROM posts`
	args := []any{}
	if authorID != "" {
		query += ` WHERE author_id = ?`
		args = append(args, authorID)
	}

	var n int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting posts: %w", err)
	}
	return n, nil
}

// Update overwrites title and content. Author and date_posted are immutable.
func (db *DB) Update(ctx context.Context, post *model.Post) error {
	post.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE posts
		 SET title = ?, content = ?, updated_at = ?
		 WHERE id = ?`,
		post.Title,
		post.Content,
		post.UpdatedAt,
		post.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating post %s: %w", post.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("post", post.ID)
	}

	return nil
}

// Delete removes a post by its ID.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("post", id)
	}

	return nil
}
