package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPrawns Phase = iota
	FetchHistory
	ExportHistory
	WriteManifest
)

func (p Phase) String() string {
	switch p {
	case FetchPrawns:
		return "fetch_prawns"
	case FetchHistory:
		return "fetch_history"
	case ExportHistory:
		return "export_history"
	case WriteManifest:
		return "write_manifest"
	default:
		return ""
	}
}

func fetchingPrawnsUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPrawns,
		Step:    1,
		Total:   1,
		Message: "Fetching prawns...",
	}
}

func foundPrawnsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPrawns,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d prawns", count),
		Data:    count,
	}
}

func fetchingHistoryUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchHistory,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching predictions: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportHistory,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportHistory,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}

func manifestUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteManifest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Manifest written to %s", path),
		Data:    path,
	}
}
