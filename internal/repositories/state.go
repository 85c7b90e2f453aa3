package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/hatchly/internal/models"
)

// StateRepository implements [models.StateStore] on the state table.
type StateRepository struct {
	db *sql.DB
}

// NewStateRepository creates a new StateRepository with the given database connection
func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Get returns the value stored under key and whether it exists.
func (r *StateRepository) Get(key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read state %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts key, last write wins.
func (r *StateRepository) Set(key, value string) error {
	query := `
		INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := r.db.Exec(query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write state %s: %w", key, err)
	}
	return nil
}

// Delete removes keys. Missing keys are ignored.
func (r *StateRepository) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	query := fmt.Sprintf("DELETE FROM state WHERE key IN (%s)", placeholders)
	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}

var _ models.StateStore = (*StateRepository)(nil)
