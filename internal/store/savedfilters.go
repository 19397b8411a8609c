package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/teamlens/teamlens/internal/filter"
)

// ErrDuplicateName is returned when a preset name collides with another of
// the same user's presets.
var ErrDuplicateName = errors.New("store: duplicate saved filter name")

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// SavedFilter is a named filter preset. Shared presets are readable by every
// user; private ones only by their owner.
type SavedFilter struct {
	ID        uuid.UUID    `json:"id"`
	UserID    string       `json:"user_id"`
	Name      string       `json:"name"`
	State     filter.State `json:"state"`
	Shared    bool         `json:"shared"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// CreateSavedFilter inserts a preset and returns it with generated fields.
func (s *Store) CreateSavedFilter(ctx context.Context, userID, name string, state filter.State, shared bool) (SavedFilter, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return SavedFilter{}, fmt.Errorf("saved filter name must not be empty")
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return SavedFilter{}, fmt.Errorf("encode filter state: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO saved_filters (id, user_id, name, state, shared)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, name, state, shared, created_at, updated_at
	`, uuid.New(), userID, name, payload, shared)
	sf, err := scanSavedFilter(row)
	if isUniqueViolation(err) {
		return SavedFilter{}, ErrDuplicateName
	}
	return sf, err
}

// ListSavedFilters returns the caller's own presets plus shared ones, newest
// first.
func (s *Store) ListSavedFilters(ctx context.Context, userID string) ([]SavedFilter, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, name, state, shared, created_at, updated_at
		FROM saved_filters
		WHERE user_id = $1 OR shared
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list saved filters: %w", err)
	}
	defer rows.Close()

	var filters []SavedFilter
	for rows.Next() {
		sf, err := scanSavedFilter(rows)
		if err != nil {
			return nil, err
		}
		filters = append(filters, sf)
	}
	return filters, rows.Err()
}

// GetSavedFilter fetches one preset visible to userID.
func (s *Store) GetSavedFilter(ctx context.Context, id uuid.UUID, userID string) (SavedFilter, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, state, shared, created_at, updated_at
		FROM saved_filters
		WHERE id = $1 AND (user_id = $2 OR shared)
	`, id, userID)
	sf, err := scanSavedFilter(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return SavedFilter{}, ErrNotFound
	}
	return sf, err
}

// UpdateSavedFilter replaces a preset's name, state, and sharing flag. Only
// the owner may update.
func (s *Store) UpdateSavedFilter(ctx context.Context, id uuid.UUID, userID, name string, state filter.State, shared bool) (SavedFilter, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return SavedFilter{}, fmt.Errorf("saved filter name must not be empty")
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return SavedFilter{}, fmt.Errorf("encode filter state: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE saved_filters
		SET name = $3, state = $4, shared = $5, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, name, state, shared, created_at, updated_at
	`, id, userID, name, payload, shared)
	sf, err := scanSavedFilter(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return SavedFilter{}, ErrNotFound
	case isUniqueViolation(err):
		return SavedFilter{}, ErrDuplicateName
	}
	return sf, err
}

// DeleteSavedFilter removes an owned preset.
func (s *Store) DeleteSavedFilter(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM saved_filters WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete saved filter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSavedFilter(row pgx.Row) (SavedFilter, error) {
	var (
		sf      SavedFilter
		payload []byte
	)
	if err := row.Scan(&sf.ID, &sf.UserID, &sf.Name, &payload, &sf.Shared, &sf.CreatedAt, &sf.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SavedFilter{}, err
		}
		return SavedFilter{}, fmt.Errorf("scan saved filter: %w", err)
	}
	if err := json.Unmarshal(payload, &sf.State); err != nil {
		return SavedFilter{}, fmt.Errorf("decode filter state: %w", err)
	}
	return sf, nil
}
