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

var _ repository.HandoutRepository = (*DB)(nil)

const handoutColumns = `id, title, description, file, original_name, size, pages, uploader_id, uploaded_at`

func scanHandout(s scanner, h *model.Handout) error {
	var uploader sql.NullString
	if err := s.Scan(&h.ID, &h.Title, &h.Description, &h.File, &h.OriginalName,
		&h.Size, &h.Pages, &uploader, &h.UploadedAt); err != nil {
		return err
	}
	h.UploaderID = uploader.String
	return nil
}

// CreateHandout inserts a handout record. The file itself must already be stored.
func (db *DB) CreateHandout(ctx context.Context, h *model.Handout) error {
	h.ID = xid.New().String()
	h.UploadedAt = time.Now().UTC()

	var uploader any
	if h.UploaderID != "" {
		uploader = h.UploaderID
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO handouts (`+handoutColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.Title, h.Description, h.File, h.OriginalName,
		h.Size, h.Pages, uploader, h.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating handout: %w", err)
	}
	return nil
}

// GetHandout retrieves one handout by ID.
func (db *DB) GetHandout(ctx context.Context, id string) (*model.Handout, error) {
	var h model.Handout
	err := scanHandout(db.conn.QueryRowContext(ctx,
		`SELECT `+handoutColumns+` FROM handouts WHERE id = ?`, id,
	), &h)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("handout", id)
		}
		return nil, fmt.Errorf("sqlite: getting handout %s: %w", id, err)
	}
	return &h, nil
}

// ListHandouts returns every handout in insertion order. There is no owner
// filter: handouts are visible to everyone.
func (db *DB) ListHandouts(ctx context.Context) ([]model.Handout, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+handoutColumns+` FROM handouts ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing handouts: %w", err)
	}
	defer rows.Close()

	handouts := []model.Handout{}
	for rows.Next() {
		var h model.Handout
		if err := scanHandout(rows, &h); err != nil {
			return nil, fmt.Errorf("sqlite: scanning handout row: %w", err)
		}
		handouts = append(handouts, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating handouts: %w", err)
	}
	return handouts, nil
}
