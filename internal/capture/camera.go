package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/hatchly/internal/models"
	"github.com/desertthunder/hatchly/internal/shared"
)

// MaxUploadSize is the largest image accepted for prediction.
const MaxUploadSize = 16 << 20

var allowedExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}

// LocalCamera is a camera device on this machine.
type LocalCamera interface {
	// Open acquires the device. The returned [Stream] must be stopped to release it.
	Open(ctx context.Context) (Stream, error)
}

// Stream is an acquired local camera.
type Stream interface {
	Snapshot(ctx context.Context) ([]byte, error)
	Stop()
}

// RemoteCamera is the networked camera proxied by the backend.
type RemoteCamera interface {
	CameraStatus(ctx context.Context) (*models.CameraStatus, error)
	CaptureFrame(ctx context.Context) (string, error)
	OpenCameraStream(ctx context.Context) (io.ReadCloser, error)
}

// ExecCamera is a [LocalCamera] that runs a capture command for every snapshot.
//
// The command must write one encoded frame to stdout, e.g. "fswebcam --no-banner -q -".
type ExecCamera struct {
	args    []string
	timeout time.Duration
}

// NewExecCamera splits command on whitespace. Snapshots are bounded by timeout.
func NewExecCamera(command string, timeout time.Duration) (*ExecCamera, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no capture command configured", shared.ErrCameraUnavailable)
	}
	return &ExecCamera{args: args, timeout: timeout}, nil
}

// Open checks that the capture command is installed.
func (c *ExecCamera) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := exec.LookPath(c.args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrCameraUnavailable, err)
	}
	return &execStream{path: path, args: c.args[1:], timeout: c.timeout}, nil
}

type execStream struct {
	path    string
	args    []string
	timeout time.Duration

	mu      sync.Mutex
	stopped bool
}

func (s *execStream) Snapshot(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return nil, fmt.Errorf("%w: stream stopped", shared.ErrCameraUnavailable)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.path, s.args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %w: %s", shared.ErrCameraUnavailable, err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: capture command produced no output", shared.ErrCameraUnavailable)
	}
	return stdout.Bytes(), nil
}

func (s *execStream) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

// EncodeDataURL sniffs the media type of data and returns it as a base64 data URL.
func EncodeDataURL(data []byte) (string, error) {
	mediaType := http.DetectContentType(data)
	if !strings.HasPrefix(mediaType, "image/") {
		return "", fmt.Errorf("%w: %s", shared.ErrUnsupportedImageType, mediaType)
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// DecodeDataURL returns the raw bytes and media type of a data URL.
func DecodeDataURL(dataURL string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, "", fmt.Errorf("%w: not a base64 data url", shared.ErrInvalidInput)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}
	mediaType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	return data, mediaType, nil
}

// NewImage wraps an encoded image with a fresh ID.
func NewImage(data string, source models.ImageSource) *models.CapturedImage {
	return &models.CapturedImage{
		ID:         shared.GenerateID(),
		Data:       data,
		Source:     source,
		CapturedAt: time.Now(),
	}
}

// FromFile loads an image from disk for upload. Only png, jpg, jpeg and gif up to [MaxUploadSize] are accepted.
func FromFile(path string) (*models.CapturedImage, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("%w: %q", shared.ErrUnsupportedImageType, ext)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if info.Size() > MaxUploadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", shared.ErrImageTooLarge, info.Size(), MaxUploadSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	encoded, err := EncodeDataURL(data)
	if err != nil {
		return nil, err
	}
	return NewImage(encoded, models.SourceUpload), nil
}
