package tasks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/hatchly/internal/formatter"
	"github.com/desertthunder/hatchly/internal/models"
	"github.com/desertthunder/hatchly/internal/shared"
)

// Formats lists the supported export formats.
var Formats = []string{"json", "csv", "markdown", "txt"}

// ExportOpts contains configuration for history exports.
type ExportOpts struct {
	Format       string  // Export format: json, csv, markdown, txt
	OutputDir    string  // Base output directory (default: hatchly_export_{epoch})
	NumWorkers   int     // Concurrent workers (default: 4)
	RateLimit    float64 // Backend requests per second (default: 5)
	ImageBaseURL string  // When set, markdown exports download each prawn's latest image from here
	HTTPClient   *http.Client
}

// historyJob is one prawn's history waiting to be written.
type historyJob struct {
	history *models.PrawnHistory
}

// HistoryExporter exports prediction history from the backend to files.
type HistoryExporter struct {
	source HistorySource
	runs   RunRecorder
	logger *log.Logger
	now    func() time.Time
}

// NewHistoryExporter creates an exporter reading from source. runs may be nil.
func NewHistoryExporter(source HistorySource, runs RunRecorder, logger *log.Logger) *HistoryExporter {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &HistoryExporter{source: source, runs: runs, logger: logger, now: time.Now}
}

func normalizeFormat(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "", "json":
		return "json", nil
	case "md":
		return "markdown", nil
	case "text":
		return "txt", nil
	case "csv", "markdown", "txt":
		return f, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q (want one of %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
}

// Export writes the prediction history of every prawn owned by userID.
//
// Backend reads are paced by the rate limit and files are written by a worker pool. Per-prawn
// failures are collected in the result; the returned error is reserved for failures of the
// export as a whole.
func (e *HistoryExporter) Export(ctx context.Context, prog chan<- ProgressUpdate, userID int64, opts ExportOpts) (*ExportResult, error) {
	if e.source == nil {
		return nil, fmt.Errorf("%w: history source not initialized", shared.ErrServiceUnavailable)
	}

	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	opts.Format = format

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("hatchly_export_%d", e.now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	sendProgress(prog, fetchingPrawnsUpdate())
	prawns, err := e.source.ListPrawns(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prawns: %w", err)
	}
	sendProgress(prog, foundPrawnsUpdate(len(prawns)))

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &ExportResult{
		TotalPrawns:     len(prawns),
		OutputDirectory: opts.OutputDir,
		Results:         make([]PrawnExportResult, 0, len(prawns)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan historyJob, len(prawns))
	results := make(chan PrawnExportResult, len(prawns))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)

		for i, p := range prawns {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			sendProgress(prog, fetchingHistoryUpdate(i+1, len(prawns), p.Name))
			records, err := e.source.ListPredictionRecords(ctx, userID, p.ID)
			if err != nil {
				results <- PrawnExportResult{
					PrawnID:   p.ID,
					PrawnName: p.Name,
					Error:     fmt.Errorf("failed to fetch predictions: %w", err),
				}
				continue
			}

			jobs <- historyJob{history: &models.PrawnHistory{Prawn: p, Records: records}}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			result.TotalRecords += res.Records
			sendProgress(prog, exportCompletedUpdate(completed, len(prawns), res.PrawnName, len(res.Files)))
		} else {
			result.FailedExports++
			e.logger.Warn("prawn export failed", "prawn_id", res.PrawnID, "error", res.Error)
			sendProgress(prog, exportFailedUpdate(completed, len(prawns), res.PrawnName, res.Error))
		}
	}

	sort.Slice(result.Results, func(i, j int) bool { return result.Results[i].PrawnID < result.Results[j].PrawnID })

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("export cancelled after %d of %d prawns: %w", completed, len(prawns), err)
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(e.manifest(result, opts.Format), manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	sendProgress(prog, manifestUpdate(manifestPath))

	result.Run = &models.ExportRun{
		Format:    opts.Format,
		OutputDir: opts.OutputDir,
		Prawns:    result.SuccessfulExports,
		Records:   result.TotalRecords,
		Failed:    result.FailedExports,
		CreatedAt: e.now(),
	}
	if e.runs != nil {
		if err := e.runs.Create(result.Run); err != nil {
			e.logger.Warn("failed to record export run", "error", err)
		}
	}

	e.logger.Info("history export finished", "dir", opts.OutputDir, "format", opts.Format,
		"prawns", result.SuccessfulExports, "failed", result.FailedExports, "records", result.TotalRecords)
	return result, nil
}

func (e *HistoryExporter) manifest(result *ExportResult, format string) *formatter.Manifest {
	m := &formatter.Manifest{
		ExportedAt:      e.now().UTC(),
		Format:          format,
		OutputDirectory: result.OutputDirectory,
		TotalPrawns:     result.TotalPrawns,
		Successful:      result.SuccessfulExports,
		Failed:          result.FailedExports,
		Prawns:          make([]formatter.ManifestEntry, 0, len(result.Results)),
	}
	for _, res := range result.Results {
		entry := formatter.ManifestEntry{
			PrawnID:   res.PrawnID,
			PrawnName: res.PrawnName,
			Records:   res.Records,
			Success:   res.Success,
			Files:     res.Files,
		}
		if res.Error != nil {
			entry.Error = res.Error.Error()
		}
		m.Prawns = append(m.Prawns, entry)
	}
	return m
}

// exportWorker writes histories from the jobs channel.
func (e *HistoryExporter) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan historyJob,
	results chan<- PrawnExportResult,
	opts ExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		results <- e.exportHistory(ctx, job.history, opts)
	}
}

// exportHistory writes a single prawn's history in the requested format.
func (e *HistoryExporter) exportHistory(ctx context.Context, h *models.PrawnHistory, opts ExportOpts) PrawnExportResult {
	result := PrawnExportResult{
		PrawnID:   h.Prawn.ID,
		PrawnName: h.Prawn.Name,
		Records:   len(h.Records),
		Files:     []string{},
	}
	base := filepath.Join(opts.OutputDir, formatter.BaseName(h.Prawn))

	switch opts.Format {
	case "csv":
		res, err := formatter.WriteCSVExport(h, base)
		if err != nil {
			result.Error = fmt.Errorf("CSV export failed: %w", err)
			return result
		}
		result.Files = []string{res.PredictionsFile, res.MetadataFile}

	case "markdown":
		image := formatter.ImageSource{Client: opts.HTTPClient}
		if opts.ImageBaseURL != "" && len(h.Records) > 0 {
			if path := latestImage(h.Records); path != "" {
				image.URL = staticURL(opts.ImageBaseURL, path)
			}
		}

		warn := func(err error) {
			e.logger.Warn("failed to download latest image", "prawn_id", h.Prawn.ID, "error", err)
		}
		res, err := formatter.WriteMarkdownExport(ctx, h, base, image, warn)
		if err != nil {
			result.Error = fmt.Errorf("markdown export failed: %w", err)
			return result
		}
		result.Files = res.Files

	case "txt":
		path, err := formatter.WriteTextExport(h, base+"_predictions.txt")
		if err != nil {
			result.Error = fmt.Errorf("text export failed: %w", err)
			return result
		}
		result.Files = []string{path}

	default:
		path, err := formatter.WriteJSONExport(h, base+".json")
		if err != nil {
			result.Error = err
			return result
		}
		result.Files = []string{path}
	}

	result.Success = true
	return result
}

// latestImage returns the image path of the newest record that has one.
func latestImage(records []models.PredictionRecord) string {
	var (
		path   string
		newest time.Time
	)
	for _, r := range records {
		if r.ImagePath == "" || strings.HasPrefix(r.ImagePath, "data:") {
			continue
		}
		t, _ := shared.ParseTimestamp(r.CreatedAt)
		if path == "" || t.After(newest) {
			path, newest = r.ImagePath, t
		}
	}
	return path
}

// staticURL resolves an image path against base. The backend stores upload paths relative to
// its static root, so "uploads/x.jpg" is served from "/static/uploads/x.jpg".
func staticURL(base, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	path = strings.TrimLeft(path, "/")
	if !strings.HasPrefix(path, "static/") {
		path = "static/" + path
	}
	return strings.TrimRight(base, "/") + "/" + path
}
