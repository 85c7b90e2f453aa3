package tasks

import (
	"context"

	"github.com/desertthunder/hatchly/internal/models"
)

// HistorySource is the part of the backend an export reads from.
type HistorySource interface {
	ListPrawns(ctx context.Context, userID int64) ([]models.Prawn, error)
	ListPredictionRecords(ctx context.Context, userID, prawnID int64) ([]models.PredictionRecord, error)
}

// RunRecorder stores a summary of each completed export (repositories.ExportRunRepository).
type RunRecorder interface {
	Create(run *models.ExportRun) error
}

// PrawnExportResult is the outcome of exporting one prawn.
type PrawnExportResult struct {
	PrawnID   int64
	PrawnName string
	Records   int
	Success   bool
	Files     []string
	Error     error
}

// ExportResult summarizes a history export.
type ExportResult struct {
	TotalPrawns       int
	SuccessfulExports int
	FailedExports     int
	TotalRecords      int
	OutputDirectory   string
	ManifestPath      string
	Results           []PrawnExportResult
	Run               *models.ExportRun
}

func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
