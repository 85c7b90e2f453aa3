// Package tasks runs long operations against the Hatchly backend with real-time progress reporting.
//
// # History Export
//
// [HistoryExporter.Export] writes every prawn's prediction history to disk:
//
//   - Lists the user's prawns
//   - Fetches each prawn's predictions, paced by a rate limiter
//   - Hands each history to a worker pool that writes json, csv, markdown or txt files
//   - Writes export_manifest.json summarizing successes and failures
//   - Records the run through an optional [RunRecorder]
//
// A failure for one prawn is recorded in the result and does not stop the export.
//
// # Progress Reporting
//
// Operations accept a send-only [ProgressUpdate] channel, which may be nil. Sends use select
// with default so a slow reader never blocks the export.
package tasks
