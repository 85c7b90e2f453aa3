package shared

import (
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrAuthFailed         = fmt.Errorf("authentication failed")
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrRejected           = fmt.Errorf("request rejected")
	ErrPredictionFailed   = fmt.Errorf("prediction failed")

	// Workflow errors
	ErrNoSelection          = fmt.Errorf("no prawn selected")
	ErrNoImage              = fmt.Errorf("no image captured")
	ErrBusy                 = fmt.Errorf("operation already in progress")
	ErrReassignmentRequired = fmt.Errorf("location still has prawns assigned")
	ErrCameraUnavailable    = fmt.Errorf("camera unavailable")
	ErrRemoteCameraOffline  = fmt.Errorf("remote camera offline")
	ErrInvalidCaptureAction = fmt.Errorf("invalid capture action")
	ErrCaptureCancelled     = fmt.Errorf("capture cancelled")
	ErrUnsupportedImageType = fmt.Errorf("unsupported image type")
	ErrImageTooLarge        = fmt.Errorf("image too large")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// ValidationError collects client-side field errors.
//
// Validation errors never reach the network layer.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns an empty [ValidationError].
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

// Add records a message for field.
func (v *ValidationError) Add(field, message string) {
	v.Fields[field] = message
}

// Has reports whether field has an error.
func (v *ValidationError) Has(field string) bool {
	_, ok := v.Fields[field]
	return ok
}

// OrNil returns nil when no field failed so callers can return it directly.
func (v *ValidationError) OrNil() error {
	if v == nil || len(v.Fields) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	names := make([]string, 0, len(v.Fields))
	for name := range v.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %s", name, v.Fields[name])
	}
	return fmt.Sprintf("%v: %s", ErrInvalidInput, strings.Join(parts, "; "))
}

func (v *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
