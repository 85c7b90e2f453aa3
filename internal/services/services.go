package services

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/hatchly/internal/models"
	"github.com/desertthunder/hatchly/internal/shared"
)

// AuthAPI covers login, signup and the session probe.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*models.Session, error)
	Signup(ctx context.Context, name, email, password string) (*models.Session, error)

	// ProbeSession reports whether the backend still recognizes the current session.
	// A transport failure is returned as an error wrapping [shared.ErrServiceUnavailable].
	ProbeSession(ctx context.Context) (bool, error)

	Logout(ctx context.Context) error
	ChangePassword(ctx context.Context, userID int64, current, next string) error
}

// PrawnAPI covers the prawns owned by a user.
type PrawnAPI interface {
	ListPrawns(ctx context.Context, userID int64) ([]models.Prawn, error)
	SavePrawn(ctx context.Context, userID int64, name string, locationID int64) (*models.Prawn, error)
	DeletePrawn(ctx context.Context, userID, prawnID int64, password string) error
	RenamePrawn(ctx context.Context, prawnID int64, name string) error
	TransferPrawn(ctx context.Context, prawnID, locationID int64) error
}

// LocationAPI covers hatchery locations.
type LocationAPI interface {
	ListLocations(ctx context.Context) ([]models.Location, error)
	SaveLocation(ctx context.Context, name string) (*models.Location, error)
	RenameLocation(ctx context.Context, locationID int64, name string) error
	DeleteLocation(ctx context.Context, locationID int64) error
}

// PredictionAPI covers inference and prediction history.
type PredictionAPI interface {
	// Predict submits an encoded image. Inference failures are returned as [*PredictionError].
	Predict(ctx context.Context, imageData string) (*models.PredictionResult, error)
	SavePredictionRecord(ctx context.Context, in models.PredictionRecordInput) error
	ListPredictionRecords(ctx context.Context, userID, prawnID int64) ([]models.PredictionRecord, error)
	DeletePredictionRecord(ctx context.Context, recordID int64) error
	DashboardSummary(ctx context.Context, userID int64) (*models.DashboardSummary, error)
}

// CameraAPI covers the networked camera proxied by the backend.
type CameraAPI interface {
	CameraStatus(ctx context.Context) (*models.CameraStatus, error)
	// CaptureFrame requests a single still and returns it as an encoded image.
	CaptureFrame(ctx context.Context) (string, error)
	// OpenCameraStream opens the continuous feed. The caller must close it.
	OpenCameraStream(ctx context.Context) (io.ReadCloser, error)
}

// Backend is every operation the client consumes from the Hatchly backend.
type Backend interface {
	AuthAPI
	PrawnAPI
	LocationAPI
	PredictionAPI
	CameraAPI
}

// HTTPClient returns the client b sends its requests through, or nil when b is not HTTP backed.
//
// Fetches outside the JSON API, such as export images, use it to share cookies and middleware.
func HTTPClient(b Backend) *http.Client {
	switch b := b.(type) {
	case *HatchlyService:
		return b.Client()
	case *CachingBackend:
		return HTTPClient(b.Backend)
	}
	return nil
}

// RejectedError is a business-rule failure reported by the backend with success:false.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (status %d)", shared.ErrRejected, e.StatusCode)
	}
	return fmt.Sprintf("%v: %s", shared.ErrRejected, e.Message)
}

func (e *RejectedError) Unwrap() error {
	return shared.ErrRejected
}

// PredictionError is an inference failure.
//
// NoSubjectDetected is set when the backend could not find eggs in the image.
type PredictionError struct {
	Message           string
	NoSubjectDetected bool
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("%v: %s", shared.ErrPredictionFailed, e.Message)
}

func (e *PredictionError) Unwrap() error {
	return shared.ErrPredictionFailed
}

// envelope is the status part every JSON response carries.
type envelope struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	Error           string `json:"error"`
	NoPrawnDetected bool   `json:"no_prawn_detected"`
}

func (e envelope) reason() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}
