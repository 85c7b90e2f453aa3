package main

import (
	"context"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/hatchly/internal/models"
	"github.com/desertthunder/hatchly/internal/services"
	"github.com/desertthunder/hatchly/internal/shared"
	"github.com/desertthunder/hatchly/internal/tasks"
)

// HistoryList prints the prediction history of the selected prawn.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.session(ctx); err != nil {
		return err
	}
	prawn, err := r.selectPrawn(ctx, cmd.Int64("prawn"))
	if err != nil {
		return err
	}

	records, err := r.app.PredictionHistory(ctx)
	if err != nil {
		return err
	}

	since := cmd.String("since")
	if since != "" {
		from, err := shared.ParseFlexibleDate(since)
		if err != nil {
			return err
		}
		records = recordsSince(records, from)
		since = shared.FormatDate(from)
	}

	if cmd.Bool("json") {
		return r.writeJSON(records, cmd.Bool("pretty"))
	}
	if len(records) == 0 {
		if since != "" {
			return r.writePlain("No predictions for %s since %s.\n", prawn.Name, since)
		}
		return r.writePlain("No predictions for %s yet.\n", prawn.Name)
	}

	r.writePlain("Predictions for %s (#%d)\n", prawn.Name, prawn.ID)
	rows := make([][]string, len(records))
	for i, rec := range records {
		day := "-"
		if rec.CurrentDay != nil {
			day = strconv.Itoa(*rec.CurrentDay)
		}
		rows[i] = []string{
			strconv.FormatInt(rec.ID, 10),
			shared.FormatTimestamp(rec.CreatedAt),
			strconv.Itoa(rec.PredictedDays),
			strconv.FormatFloat(rec.Confidence, 'f', 1, 64) + "%",
			day,
		}
	}
	return r.writeTable([]string{"ID", "Date", "Days", "Confidence", "Day"}, rows)
}

// recordsSince keeps records created on or after from. Records with unreadable dates are dropped.
func recordsSince(records []models.PredictionRecord, from time.Time) []models.PredictionRecord {
	kept := make([]models.PredictionRecord, 0, len(records))
	for _, rec := range records {
		t, err := shared.ParseTimestamp(rec.CreatedAt)
		if err != nil || t.IsZero() || t.Before(from) {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

// HistoryDelete deletes a prediction record.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.session(ctx); err != nil {
		return err
	}
	if _, err := r.selectPrawn(ctx, cmd.Int64("prawn")); err != nil {
		return err
	}

	if err := r.app.DeleteRecord(ctx, cmd.Int64("id")); err != nil {
		return err
	}
	return r.writePlain("✓ Prediction #%d deleted\n", cmd.Int64("id"))
}

// HistoryExport writes the prediction history of every prawn to files.
func (r *Runner) HistoryExport(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.session(ctx)
	if err != nil {
		return err
	}

	opts := tasks.ExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate-limit"),
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = r.config.Export.Workers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = r.config.Export.RateLimit
	}
	if cmd.Bool("images") {
		opts.ImageBaseURL = r.config.Server.BaseURL
		opts.HTTPClient = services.HTTPClient(r.backend)
	}

	r.writePlain("Exporting prediction history for %s\n", sess.Email)
	r.writePlain("Format: %s\n\n", opts.Format)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progressCh {
			switch update.Phase {
			case tasks.FetchPrawns:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.FetchHistory, tasks.ExportHistory:
				r.writePlain("   [%d/%d] %s\n", update.Step, update.Total, update.Message)
			case tasks.WriteManifest:
				r.writePlain("\n📝 %s\n", update.Message)
			}
		}
	}()

	result, err := r.exporter.Export(ctx, progressCh, sess.UserID, opts)
	close(progressCh)
	<-printed

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete!")
	r.writePlain("Prawns: %d/%d exported\n", result.SuccessfulExports, result.TotalPrawns)
	r.writePlain("Predictions: %d\n", result.TotalRecords)
	r.writePlain("Output: %s\n", result.OutputDirectory)
	r.writePlain("Manifest: %s\n", result.ManifestPath)

	if result.FailedExports > 0 {
		r.writePlainln("Failed (%d):", result.FailedExports)
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  ✗ %s: %v\n", res.PrawnName, res.Error)
			}
		}
	}
	return nil
}

// HistoryRuns lists the exports performed from this machine.
func (r *Runner) HistoryRuns(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}

	lister, ok := r.runs.(interface {
		Recent(limit int) ([]*models.ExportRun, error)
	})
	if !ok {
		return r.writePlain("Export runs are not recorded.\n")
	}

	runs, err := lister.Recent(cmd.Int("limit"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(runs, cmd.Bool("pretty"))
	}
	if len(runs) == 0 {
		return r.writePlain("No exports yet. Run 'hatchly history export'.\n")
	}

	rows := make([][]string, len(runs))
	for i, run := range runs {
		rows[i] = []string{
			run.CreatedAt.Local().Format(time.DateTime),
			run.Format,
			strconv.Itoa(run.Prawns),
			strconv.Itoa(run.Records),
			strconv.Itoa(run.Failed),
			run.OutputDir,
		}
	}
	return r.writeTable([]string{"When", "Format", "Prawns", "Predictions", "Failed", "Output"}, rows)
}

// Dashboard prints the dashboard summary.
func (r *Runner) Dashboard(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.session(ctx)
	if err != nil {
		return err
	}

	summary, err := r.app.Dashboard(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(summary, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Dashboard for " + sess.Email)
	r.writePlain("Prawns: %d\n", summary.TotalPrawns)
	r.writePlain("Predictions: %d\n", summary.TotalPredictions)
	r.writePlain("Upcoming hatches: %d\n", summary.UpcomingCount)

	if len(summary.UpcomingHatches) > 0 {
		rows := make([][]string, len(summary.UpcomingHatches))
		for i, h := range summary.UpcomingHatches {
			location := h.LocationName
			if location == "" {
				location = "No location"
			}
			rows[i] = []string{h.PrawnName, location, strconv.Itoa(h.DaysUntilHatch), shared.FormatTimestamp(h.PredictedAt)}
		}
		r.writePlain("\n")
		r.writeTable([]string{"Prawn", "Location", "Days", "Predicted"}, rows)
	}

	if len(summary.LatestPredictions) > 0 {
		r.writePlainln("Latest predictions:")
		for _, rec := range summary.LatestPredictions {
			r.writePlain("  • %s: %d days (%.1f%%) %s\n", rec.PrawnName, rec.PredictedDays, rec.Confidence, shared.FormatTimestamp(rec.CreatedAt))
		}
	}
	return nil
}
