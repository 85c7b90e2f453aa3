// package formatter renders prediction history to CSV, Markdown, plain text and JSON
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/desertthunder/hatchly/internal/models"
	"github.com/desertthunder/hatchly/internal/shared"
)

// MarshalJSON encodes v, indented when pretty is set.
func MarshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

func currentDay(day *int) string {
	if day == nil {
		return ""
	}
	return strconv.Itoa(*day)
}

// ExportToCSV converts a PrawnHistory to CSV with columns: ID, Date, Predicted Days, Confidence, Current Day, Image
func ExportToCSV(history *models.PrawnHistory) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Date", "Predicted Days", "Confidence", "Current Day", "Image"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range history.Records {
		record := []string{
			strconv.FormatInt(r.ID, 10),
			r.CreatedAt,
			strconv.Itoa(r.PredictedDays),
			strconv.FormatFloat(r.Confidence, 'f', 1, 64),
			currentDay(r.CurrentDay),
			r.ImagePath,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a PrawnHistory to Markdown with an optional image of the latest prediction
func ExportToMarkdown(history *models.PrawnHistory, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", history.Prawn.Name)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Latest](%s)\n\n", imageFilename)
	}

	fmt.Fprintf(&buf, "**Location**: %s\n", history.Prawn.LocationLabel())
	fmt.Fprintf(&buf, "**Predictions**: %d\n\n", len(history.Records))

	buf.WriteString("## Predictions\n\n")
	if len(history.Records) == 0 {
		buf.WriteString("No predictions yet.\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| Date | Days until hatch | Confidence | Day |\n")
	buf.WriteString("|------|------------------|------------|-----|\n")
	for _, r := range history.Records {
		day := currentDay(r.CurrentDay)
		if day != "" {
			day = fmt.Sprintf("%s/%d", day, models.IncubationCycleLength)
		}
		fmt.Fprintf(&buf, "| %s | %d | %.1f%% | %s |\n", shared.FormatTimestamp(r.CreatedAt), r.PredictedDays, r.Confidence, day)
	}

	return buf.Bytes(), nil
}

// ExportToText converts a PrawnHistory to plain text
func ExportToText(history *models.PrawnHistory) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Prawn: %s\n", history.Prawn.Name)
	fmt.Fprintf(&buf, "Location: %s\n", history.Prawn.LocationLabel())
	fmt.Fprintf(&buf, "Predictions: %d\n\n", len(history.Records))

	for i, r := range history.Records {
		fmt.Fprintf(&buf, "%d. %s - %d days (%.1f%%)\n", i+1, shared.FormatTimestamp(r.CreatedAt), r.PredictedDays, r.Confidence)
	}

	return buf.Bytes(), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes.
//
// client may be nil, in which case a client with a 30 second timeout is used.
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// ToMetadataJSON generates a JSON representation of the prawn without its history
func ToMetadataJSON(prawn models.Prawn) ([]byte, error) {
	return MarshalJSON(prawn, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	PredictionsFile string
	MetadataFile    string
}

// WriteCSVExport exports a prawn's history to CSV with an accompanying metadata JSON file.
//
// Creates {base}_predictions.csv and {base}_prawn.json.
func WriteCSVExport(history *models.PrawnHistory, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = BaseName(history.Prawn)
	}

	csvData, err := ExportToCSV(history)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	predictionsFile := baseFilepath + "_predictions.csv"
	if err := os.WriteFile(predictionsFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(history.Prawn)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_prawn.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		PredictionsFile: predictionsFile,
		MetadataFile:    metadataFile,
	}, nil
}

// ImageSource locates the image a markdown export downloads next to its README.
type ImageSource struct {
	URL    string
	Client *http.Client // nil uses a default client
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory   string
	Files       []string
	LatestImage string
}

// WriteMarkdownExport exports a prawn's history to a dedicated directory.
//
// image is optional; when its URL is set the latest prediction image is downloaded next to the
// README. A failed download is reported through warn and does not fail the export.
func WriteMarkdownExport(ctx context.Context, history *models.PrawnHistory, outputDir string, image ImageSource, warn func(error)) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = BaseName(history.Prawn)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var imageFilename string
	if image.URL != "" {
		if path, err := saveImage(ctx, outputDir, image); err != nil {
			if warn != nil {
				warn(err)
			}
		} else {
			imageFilename = filepath.Base(path)
			result.LatestImage = path
			result.Files = append(result.Files, path)
		}
	}

	mdData, err := ExportToMarkdown(history, imageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

func saveImage(ctx context.Context, dir string, image ImageSource) (string, error) {
	data, err := DownloadImage(ctx, image.Client, image.URL)
	if err != nil {
		return "", err
	}

	ext := ".jpg"
	if ct := http.DetectContentType(data); ct == "image/png" {
		ext = ".png"
	}
	path := filepath.Join(dir, "latest"+ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return path, nil
}

// WriteTextExport exports a prawn's history to plain text.
//
// Defaults to {base}_predictions.txt as the filename.
func WriteTextExport(history *models.PrawnHistory, path string) (string, error) {
	if path == "" {
		path = BaseName(history.Prawn) + "_predictions.txt"
	}

	textData, err := ExportToText(history)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

// WriteJSONExport writes the prawn and its history as a single JSON document.
func WriteJSONExport(history *models.PrawnHistory, path string) (string, error) {
	if path == "" {
		path = BaseName(history.Prawn) + ".json"
	}

	data, err := MarshalJSON(history, true)
	if err != nil {
		return "", fmt.Errorf("JSON marshal failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("JSON write failed: %w", err)
	}
	return path, nil
}

// BaseName is a filesystem-safe name for a prawn's export files: its ID plus a slug of its name.
func BaseName(p models.Prawn) string {
	slug := make([]rune, 0, len(p.Name))
	dash := false
	for _, r := range p.Name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			slug = append(slug, r)
			dash = false
		case r >= 'A' && r <= 'Z':
			slug = append(slug, r+('a'-'A'))
			dash = false
		case !dash && len(slug) > 0:
			slug = append(slug, '-')
			dash = true
		}
	}
	s := string(slug)
	for len(s) > 0 && s[len(s)-1] == '-' {
		s = s[:len(s)-1]
	}
	if s == "" {
		return fmt.Sprintf("prawn_%d", p.ID)
	}
	return fmt.Sprintf("prawn_%d_%s", p.ID, s)
}

// ManifestEntry is one prawn in an export manifest.
type ManifestEntry struct {
	PrawnID   int64    `json:"prawn_id"`
	PrawnName string   `json:"prawn_name"`
	Records   int      `json:"records"`
	Success   bool     `json:"success"`
	Error     string   `json:"error,omitempty"`
	Files     []string `json:"files,omitempty"`
}

// Manifest summarizes a history export.
type Manifest struct {
	ExportedAt      time.Time       `json:"exported_at"`
	Format          string          `json:"format"`
	OutputDirectory string          `json:"output_directory"`
	TotalPrawns     int             `json:"total_prawns"`
	Successful      int             `json:"successful_exports"`
	Failed          int             `json:"failed_exports"`
	Prawns          []ManifestEntry `json:"prawns"`
}

// WriteManifest writes m as indented JSON to path.
func WriteManifest(m *Manifest, path string) error {
	data, err := MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
