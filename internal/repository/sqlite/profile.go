package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/repository"
)

var _ repository.ProfileRepository = (*DB)(nil)

// GetProfile returns the profile row for userID.
func (db *DB) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var p model.Profile
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id, image, updated_at FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.Image, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("profile", userID)
		}
		return nil, fmt.Errorf("sqlite: getting profile %s: %w", userID, err)
	}
	return &p, nil
}

// UpdateAccount writes the user's username/email and the profile image in a
// single transaction. The profile must belong to the user.
func (db *DB) UpdateAccount(ctx context.Context, user *model.User, profile *model.Profile) error {
	if profile.UserID != user.ID {
		return fmt.Errorf("sqlite: profile %s does not belong to user %s", profile.UserID, user.ID)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning account transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET username = ?, email = ?, updated_at = ? WHERE id = ?`,
		user.Username, user.Email, now, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	} else if n == 0 {
		return apperror.NotFound("user", user.ID)
	}

	result, err = tx.ExecContext(ctx,
		`UPDATE profiles SET image = ?, updated_at = ? WHERE user_id = ?`,
		profile.Image, now, profile.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile %s: %w", profile.UserID, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	} else if n == 0 {
		return apperror.NotFound("profile", profile.UserID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing account update: %w", err)
	}

	user.UpdatedAt = now
	profile.UpdatedAt = now
	return nil
}
