// package models defines the data model for the Hatchly client
package models

import (
	"fmt"
	"strings"
	"time"
)

// Persisted state keys.
const (
	KeyUserID             = "hatchly_current_user_id"
	KeyUserEmail          = "hatchly_current_user"
	KeyUserName           = "hatchly_user_name"
	KeyCurrentView        = "hatchly_current_page"
	KeySelectedPrawn      = "hatchly_selected_prawn"
	KeyCapturedImage      = "hatchly_captured_image"
	KeyImageSource        = "hatchly_image_source"
	KeyPredictionImageID  = "hatchly_prediction_image_id"
	KeyPredictionDays     = "hatchly_prediction_days"
	KeyPredictionConf     = "hatchly_prediction_confidence"
	KeyPredictionDay      = "hatchly_prediction_current_day"
	KeySessionCookies     = "hatchly_session_cookies"
	IncubationCycleLength = 21
)

// SessionKeys are purged on logout and on an authentication failure.
var SessionKeys = []string{
	KeyUserID, KeyUserEmail, KeyUserName, KeyCurrentView, KeySelectedPrawn,
	KeyCapturedImage, KeyImageSource, KeySessionCookies,
	KeyPredictionImageID, KeyPredictionDays, KeyPredictionConf, KeyPredictionDay,
}

// ImageKeys hold the last captured image.
var ImageKeys = []string{KeyCapturedImage, KeyImageSource}

// PredictionKeys hold the last prediction result.
var PredictionKeys = []string{KeyPredictionImageID, KeyPredictionDays, KeyPredictionConf, KeyPredictionDay}

// StateStore is a string key-value store that survives restarts.
//
// Writes are last-write-wins with no transactional grouping.
type StateStore interface {
	Get(key string) (string, bool, error) // Get returns the value and whether the key exists
	Set(key, value string) error          // Set stores value under key, replacing any previous value
	Delete(keys ...string) error          // Delete removes the keys; missing keys are not an error
}

// Session is the authenticated identity held by the client.
type Session struct {
	UserID        int64  `json:"user_id"`
	Email         string `json:"email"`
	DisplayName   string `json:"name"`
	Authenticated bool   `json:"-"`
}

// Prawn is a registered prawn record.
type Prawn struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	LocationID   int64  `json:"location_id"`
	LocationName string `json:"location_name"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// LocationLabel returns the location name or a placeholder for unassigned prawns.
func (p Prawn) LocationLabel() string {
	if strings.TrimSpace(p.LocationName) == "" {
		return "No location"
	}
	return p.LocationName
}

// Location is a hatchery location.
type Location struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ImageSource tags where a [CapturedImage] came from.
type ImageSource string

const (
	SourceCamera ImageSource = "camera"
	SourceUpload ImageSource = "upload"
)

// Valid reports whether s is a known source.
func (s ImageSource) Valid() bool {
	return s == SourceCamera || s == SourceUpload
}

// CapturedImage is an encoded image (a data URL) awaiting prediction.
type CapturedImage struct {
	ID         string      `json:"id"`
	Data       string      `json:"data"`
	Source     ImageSource `json:"source"`
	CapturedAt time.Time   `json:"captured_at"`
}

// PredictionResult is the backend's answer for one captured image.
type PredictionResult struct {
	ImageID        string  `json:"image_id"`
	DaysUntilHatch int     `json:"days_until_hatch"`
	Confidence     float64 `json:"confidence"`
	CurrentDay     *int    `json:"current_day,omitempty"`
}

// HatchDate returns the expected hatch date counted from now.
func (r PredictionResult) HatchDate(now time.Time) time.Time {
	return now.AddDate(0, 0, r.DaysUntilHatch)
}

// Summary formats the result for display.
func (r PredictionResult) Summary() string {
	s := fmt.Sprintf("%d days until hatch (%.1f%% confidence)", r.DaysUntilHatch, r.Confidence)
	if r.CurrentDay != nil {
		s += fmt.Sprintf(", day %d of %d", *r.CurrentDay, IncubationCycleLength)
	}
	return s
}

// PredictionRecord is a saved prediction in a prawn's history.
type PredictionRecord struct {
	ID            int64   `json:"id"`
	PrawnID       int64   `json:"prawn_id"`
	PrawnName     string  `json:"prawn_name,omitempty"`
	ImagePath     string  `json:"image_path"`
	PredictedDays int     `json:"predicted_days"`
	Confidence    float64 `json:"confidence"`
	CurrentDay    *int    `json:"current_day,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// PredictionRecordInput is the payload for saving a prediction to history.
type PredictionRecordInput struct {
	UserID        int64   `json:"user_id"`
	PrawnID       int64   `json:"prawn_id"`
	PrawnName     string  `json:"prawn_name"`
	ImageData     string  `json:"image_path"`
	PredictedDays int     `json:"predicted_days"`
	Confidence    float64 `json:"confidence"`
	CurrentDay    *int    `json:"current_day"`
}

// UpcomingHatch is a dashboard entry for a prawn expected to hatch soon.
type UpcomingHatch struct {
	PrawnID        int64  `json:"prawn_id"`
	PrawnName      string `json:"prawn_name"`
	LocationName   string `json:"location_name"`
	DaysUntilHatch int    `json:"days_until_hatch"`
	PredictedAt    string `json:"predicted_at"`
}

// DashboardSummary aggregates counters for the dashboard view.
type DashboardSummary struct {
	TotalPrawns       int                `json:"total_prawns"`
	TotalPredictions  int                `json:"total_predictions"`
	UpcomingCount     int                `json:"upcoming_count"`
	UpcomingHatches   []UpcomingHatch    `json:"upcoming_hatches"`
	LatestPredictions []PredictionRecord `json:"latest_predictions"`
	Prawns            []Prawn            `json:"prawns"`
}

// CameraStatus reports whether the networked camera is reachable.
type CameraStatus struct {
	Online    bool   `json:"camera_online"`
	StreamURL string `json:"camera_url"`
}

// PrawnHistory is a prawn with its full prediction history, used for exports.
type PrawnHistory struct {
	Prawn   Prawn              `json:"prawn"`
	Records []PredictionRecord `json:"predictions"`
}

// ExportRun records one history export performed by the client.
type ExportRun struct {
	ID        string    `json:"id"`
	Format    string    `json:"format"`
	OutputDir string    `json:"output_dir"`
	Prawns    int       `json:"prawns"`
	Records   int       `json:"records"`
	Failed    int       `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
}
