package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/hatchly/internal/models"
	"github.com/desertthunder/hatchly/internal/shared"
)

// ExportRunRepository persists completed history exports.
type ExportRunRepository struct {
	db *sql.DB
}

// NewExportRunRepository creates a new ExportRunRepository with the given database connection
func NewExportRunRepository(db *sql.DB) *ExportRunRepository {
	return &ExportRunRepository{db: db}
}

// Create inserts run, assigning an ID when it has none.
func (r *ExportRunRepository) Create(run *models.ExportRun) error {
	if run.ID == "" {
		run.ID = shared.GenerateID()
	}
	if run.Format == "" || run.OutputDir == "" {
		return fmt.Errorf("validation failed: %w: format and output dir are required", shared.ErrInvalidInput)
	}

	query := `
		INSERT INTO export_runs (id, format, output_dir, prawns, records, failed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.Exec(query, run.ID, run.Format, run.OutputDir, run.Prawns, run.Records, run.Failed, run.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert export run: %w", err)
	}
	return nil
}

// Get retrieves an export run by ID.
func (r *ExportRunRepository) Get(id string) (*models.ExportRun, error) {
	query := `
		SELECT id, format, output_dir, prawns, records, failed, created_at
		FROM export_runs
		WHERE id = ?
	`
	run, err := r.scan(r.db.QueryRow(query, id))
	if err != nil {
		return nil, notFound(err, "export run")
	}
	return run, nil
}

// Recent returns up to limit runs, newest first.
func (r *ExportRunRepository) Recent(limit int) ([]*models.ExportRun, error) {
	query := `
		SELECT id, format, output_dir, prawns, records, failed, created_at
		FROM export_runs
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list export runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ExportRun
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan export run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *ExportRunRepository) scan(s scanner) (*models.ExportRun, error) {
	var run models.ExportRun
	if err := s.Scan(&run.ID, &run.Format, &run.OutputDir, &run.Prawns, &run.Records, &run.Failed, &run.CreatedAt); err != nil {
		return nil, err
	}
	return &run, nil
}
