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

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, password_hash, github_id, date_joined, updated_at`

func scanUser(s scanner, u *model.User) error {
	var githubID sql.NullInt64
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &githubID, &u.DateJoined, &u.UpdatedAt); err != nil {
		return err
	}
	u.GitHubID = nil
	if githubID.Valid {
		id := githubID.Int64
		u.GitHubID = &id
	}
	return nil
}

// CreateUser inserts a user and its default profile in one transaction.
// A taken username (or GitHub ID) yields apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning user transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertUser(ctx, tx, user); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing user %s: %w", user.Username, err)
	}
	return nil
}

func insertUser(ctx context.Context, tx *sql.Tx, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.DateJoined = now
	user.UpdatedAt = now

	var githubID any
	if user.GitHubID != nil {
		githubID = *user.GitHubID
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, github_id, date_joined, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		githubID,
		user.DateJoined,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Username, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO profiles (user_id, image, updated_at) VALUES (?, ?, ?)`,
		user.ID, model.DefaultProfileImage, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting profile for user %s: %w", user.ID, err)
	}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	), &u)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return &u, nil
}

// GetByUsername retrieves a user by exact username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username,
	), &u)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlite: getting user by username %s: %w", username, err)
	}
	return &u, nil
}

// UsernameTaken reports whether a user other than excludeID already has username.
func (db *DB) UsernameTaken(ctx context.Context, username, excludeID string) (bool, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = ? AND id <> ?`,
		username, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking username %s: %w", username, err)
	}
	return count > 0, nil
}

// Upsert inserts or refreshes a GitHub-linked user.
//
// An existing row (matched on github_id) keeps its ID, username and password;
// only the email is refreshed from GitHub. A new row gets a profile too.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	if user.GitHubID == nil {
		return fmt.Errorf("sqlite: upsert requires a GitHub ID")
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning upsert transaction: %w", err)
	}
	defer tx.Rollback()

	var existing model.User
	err = scanUser(tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE github_id = ?`, *user.GitHubID,
	), &existing)

	switch {
	case err == nil:
		existing.Email = user.Email
		existing.UpdatedAt = time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET email = ?, updated_at = ? WHERE id = ?`,
			existing.Email, existing.UpdatedAt, existing.ID,
		); err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", existing.ID, err)
		}
		*user = existing
	case errors.Is(err, sql.ErrNoRows):
		if err := insertUser(ctx, tx, user); err != nil {
			return err
		}
	default:
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", *user.GitHubID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing upsert: %w", err)
	}
	return nil
}
