package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExportRecord is one row of a user's export history.
type ExportRecord struct {
	ID         uuid.UUID `json:"id"`
	UserID     string    `json:"user_id"`
	Mode       string    `json:"mode"`
	Format     string    `json:"format"`
	Filename   string    `json:"filename"`
	ArchiveKey string    `json:"archive_key,omitempty"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

// InsertExport records a completed export and prunes history beyond keep
// rows per user. keep <= 0 disables pruning.
func (s *Store) InsertExport(ctx context.Context, rec ExportRecord, keep int) (ExportRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO export_history (id, user_id, mode, format, filename, archive_key, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, rec.ID, rec.UserID, rec.Mode, rec.Format, rec.Filename, rec.ArchiveKey, rec.SizeBytes)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		return ExportRecord{}, fmt.Errorf("insert export record: %w", err)
	}

	if keep > 0 {
		_, err := s.pool.Exec(ctx, `
			DELETE FROM export_history
			WHERE user_id = $1 AND id NOT IN (
				SELECT id FROM export_history
				WHERE user_id = $1
				ORDER BY created_at DESC
				LIMIT $2
			)
		`, rec.UserID, keep)
		if err != nil {
			return ExportRecord{}, fmt.Errorf("prune export history: %w", err)
		}
	}
	return rec, nil
}

// ListExports returns a user's export history, newest first.
func (s *Store) ListExports(ctx context.Context, userID string, limit int) ([]ExportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, mode, format, filename, archive_key, size_bytes, created_at
		FROM export_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list export history: %w", err)
	}
	defer rows.Close()

	var records []ExportRecord
	for rows.Next() {
		var rec ExportRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Mode, &rec.Format, &rec.Filename, &rec.ArchiveKey, &rec.SizeBytes, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan export record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
