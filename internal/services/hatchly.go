package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/desertthunder/hatchly/internal/models"
	"github.com/desertthunder/hatchly/internal/shared"
)

const defaultBaseURL string = "http://127.0.0.1:5000"

// maxResponseSize bounds JSON bodies. Captured frames are base64 images, hence the headroom.
const maxResponseSize = 32 << 20

// HatchlyService implements [Backend] against the Hatchly JSON API.
type HatchlyService struct {
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	base        http.RoundTripper
	middlewares []Middleware
}

// NewHatchlyService creates a client for the backend at baseURL.
//
// The client is copied so registering middleware never mutates the caller's [http.Client].
func NewHatchlyService(baseURL string, client *http.Client) *HatchlyService {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	c := *client
	base := c.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	return &HatchlyService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &c,
		base:       base,
	}
}

// BaseURL returns the backend address requests are sent to.
func (s *HatchlyService) BaseURL() string {
	return s.baseURL
}

// Client returns the HTTP client requests go through, with every registered [Middleware].
func (s *HatchlyService) Client() *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpClient
}

// Use adds [Middleware] to the request chain, applied in the order it's added.
func (s *HatchlyService) Use(middleware ...Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middlewares = append(s.middlewares, middleware...)
	s.httpClient.Transport = Chain(s.base, s.middlewares...)
}

// doRequest sends the request and returns the raw body and status.
//
// A 401 from any route is returned as [shared.ErrNotAuthenticated]. Transport failures wrap
// [shared.ErrServiceUnavailable].
func (s *HatchlyService) doRequest(ctx context.Context, method, endpoint string, query url.Values, body any) ([]byte, int, error) {
	resp, err := s.send(ctx, method, endpoint, query, body)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: failed to read response: %w", shared.ErrServiceUnavailable, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, resp.StatusCode, fmt.Errorf("%w: %s %s", shared.ErrNotAuthenticated, method, endpoint)
	}

	return data, resp.StatusCode, nil
}

func (s *HatchlyService) send(ctx context.Context, method, endpoint string, query url.Values, body any) (*http.Response, error) {
	fullURL := s.baseURL + endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, err)
	}
	return resp, nil
}

// call performs a request whose response carries a success envelope and decodes it into result.
//
// success:false becomes a [*RejectedError] carrying the backend's message.
func (s *HatchlyService) call(ctx context.Context, method, endpoint string, query url.Values, body, result any) error {
	data, status, err := s.doRequest(ctx, method, endpoint, query, body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %s %s: status %d: failed to decode response: %w", shared.ErrAPIRequest, method, endpoint, status, err)
	}

	if !env.Success {
		return &RejectedError{StatusCode: status, Message: env.reason()}
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("%w: %s %s: failed to decode response: %w", shared.ErrAPIRequest, method, endpoint, err)
		}
	}
	return nil
}

func userQuery(userID int64) url.Values {
	return url.Values{"user_id": {strconv.FormatInt(userID, 10)}}
}

// Login authenticates with email and password. Bad credentials wrap [shared.ErrInvalidCredentials].
func (s *HatchlyService) Login(ctx context.Context, email, password string) (*models.Session, error) {
	var session models.Session
	body := map[string]string{"email": email, "password": password}
	if err := s.call(ctx, http.MethodPost, "/api/login", nil, body, &session); err != nil {
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			return nil, fmt.Errorf("%w: %w", shared.ErrInvalidCredentials, err)
		}
		return nil, err
	}
	session.Authenticated = true
	return &session, nil
}

// Signup registers a new account and starts a session for it.
func (s *HatchlyService) Signup(ctx context.Context, name, email, password string) (*models.Session, error) {
	var session models.Session
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := s.call(ctx, http.MethodPost, "/api/signup", nil, body, &session); err != nil {
		return nil, err
	}
	session.Authenticated = true
	return &session, nil
}

// ProbeSession asks the backend whether the session cookie is still valid.
func (s *HatchlyService) ProbeSession(ctx context.Context) (bool, error) {
	data, status, err := s.doRequest(ctx, http.MethodGet, "/api/check_session", nil, nil)
	if err != nil {
		return false, err
	}

	var probe struct {
		Valid bool `json:"valid"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false, fmt.Errorf("%w: check_session: status %d: %w", shared.ErrAPIRequest, status, err)
	}
	return probe.Valid, nil
}

// Logout ends the backend session and forgets the local cookies.
func (s *HatchlyService) Logout(ctx context.Context) error {
	defer s.clearCookies()
	_, _, err := s.doRequest(ctx, http.MethodPost, "/api/logout", nil, nil)
	return err
}

func (s *HatchlyService) clearCookies() {
	if jar, ok := s.httpClient.Jar.(interface{ Clear() error }); ok {
		_ = jar.Clear()
	}
}

// ChangePassword replaces the account password.
func (s *HatchlyService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	body := map[string]any{"user_id": userID, "current_password": current, "new_password": next}
	return s.call(ctx, http.MethodPost, "/api/change_password", nil, body, nil)
}

func (s *HatchlyService) ListPrawns(ctx context.Context, userID int64) ([]models.Prawn, error) {
	var resp struct {
		Prawns []models.Prawn `json:"prawns"`
	}
	if err := s.call(ctx, http.MethodGet, "/api/get_prawns", userQuery(userID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Prawns, nil
}

func (s *HatchlyService) SavePrawn(ctx context.Context, userID int64, name string, locationID int64) (*models.Prawn, error) {
	var resp struct {
		Prawn models.Prawn `json:"prawn"`
	}
	body := map[string]any{"user_id": userID, "name": name, "location_id": locationID}
	if err := s.call(ctx, http.MethodPost, "/api/save_prawn", nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp.Prawn, nil
}

// DeletePrawn removes a prawn. The backend re-checks the account password.
func (s *HatchlyService) DeletePrawn(ctx context.Context, userID, prawnID int64, password string) error {
	body := map[string]any{"user_id": userID, "prawn_id": prawnID, "password": password}
	return s.call(ctx, http.MethodPost, "/api/delete_prawn", nil, body, nil)
}

func (s *HatchlyService) RenamePrawn(ctx context.Context, prawnID int64, name string) error {
	body := map[string]any{"prawn_id": prawnID, "name": name}
	return s.call(ctx, http.MethodPost, "/api/rename_prawn", nil, body, nil)
}

func (s *HatchlyService) TransferPrawn(ctx context.Context, prawnID, locationID int64) error {
	body := map[string]any{"prawn_id": prawnID, "location_id": locationID}
	return s.call(ctx, http.MethodPost, "/api/transfer_prawn", nil, body, nil)
}

func (s *HatchlyService) ListLocations(ctx context.Context) ([]models.Location, error) {
	var resp struct {
		Locations []models.Location `json:"locations"`
	}
	if err := s.call(ctx, http.MethodGet, "/api/get_locations", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Locations, nil
}

func (s *HatchlyService) SaveLocation(ctx context.Context, name string) (*models.Location, error) {
	var resp struct {
		Location models.Location `json:"location"`
	}
	if err := s.call(ctx, http.MethodPost, "/api/save_location", nil, map[string]string{"name": name}, &resp); err != nil {
		return nil, err
	}
	return &resp.Location, nil
}

func (s *HatchlyService) RenameLocation(ctx context.Context, locationID int64, name string) error {
	body := map[string]any{"location_id": locationID, "name": name}
	return s.call(ctx, http.MethodPost, "/api/rename_location", nil, body, nil)
}

func (s *HatchlyService) DeleteLocation(ctx context.Context, locationID int64) error {
	return s.call(ctx, http.MethodPost, "/api/delete_location", nil, map[string]any{"location_id": locationID}, nil)
}

// Predict submits an encoded image for a hatch prediction.
//
// The backend answers inference failures with a 4xx/5xx status and success:false, so the
// envelope is decoded regardless of status.
func (s *HatchlyService) Predict(ctx context.Context, imageData string) (*models.PredictionResult, error) {
	data, status, err := s.doRequest(ctx, http.MethodPost, "/api/predict", nil, map[string]string{"image": imageData})
	if err != nil {
		return nil, err
	}

	var resp struct {
		envelope
		DaysUntilHatch int     `json:"days_until_hatch"`
		Confidence     float64 `json:"confidence"`
		CurrentDay     *int    `json:"current_day"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: predict: status %d: %w", shared.ErrAPIRequest, status, err)
	}

	if !resp.Success {
		msg := resp.reason()
		if msg == "" {
			msg = fmt.Sprintf("status %d", status)
		}
		return nil, &PredictionError{Message: msg, NoSubjectDetected: resp.NoPrawnDetected}
	}

	return &models.PredictionResult{
		DaysUntilHatch: resp.DaysUntilHatch,
		Confidence:     resp.Confidence,
		CurrentDay:     resp.CurrentDay,
	}, nil
}

func (s *HatchlyService) SavePredictionRecord(ctx context.Context, in models.PredictionRecordInput) error {
	return s.call(ctx, http.MethodPost, "/api/save_prediction", nil, in, nil)
}

func (s *HatchlyService) ListPredictionRecords(ctx context.Context, userID, prawnID int64) ([]models.PredictionRecord, error) {
	query := userQuery(userID)
	query.Set("prawn_id", strconv.FormatInt(prawnID, 10))

	var resp struct {
		Predictions []models.PredictionRecord `json:"predictions"`
	}
	if err := s.call(ctx, http.MethodGet, "/api/get_predictions", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Predictions, nil
}

func (s *HatchlyService) DeletePredictionRecord(ctx context.Context, recordID int64) error {
	return s.call(ctx, http.MethodPost, "/api/delete_prediction", nil, map[string]any{"prediction_id": recordID}, nil)
}

// DashboardSummary fetches every dashboard counter in a single request.
func (s *HatchlyService) DashboardSummary(ctx context.Context, userID int64) (*models.DashboardSummary, error) {
	var summary models.DashboardSummary
	if err := s.call(ctx, http.MethodGet, "/api/dashboard_summary", userQuery(userID), nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// CameraStatus probes the networked camera. An unreachable camera is reported as offline, not as an error.
func (s *HatchlyService) CameraStatus(ctx context.Context) (*models.CameraStatus, error) {
	data, status, err := s.doRequest(ctx, http.MethodGet, "/api/camera/status", nil, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		envelope
		models.CameraStatus
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: camera status: status %d: %w", shared.ErrAPIRequest, status, err)
	}

	cs := resp.CameraStatus
	if !resp.Success {
		cs.Online = false
	}
	if cs.StreamURL != "" && strings.HasPrefix(cs.StreamURL, "/") {
		cs.StreamURL = s.baseURL + cs.StreamURL
	}
	return &cs, nil
}

// CaptureFrame requests a single still from the networked camera.
func (s *HatchlyService) CaptureFrame(ctx context.Context) (string, error) {
	var resp struct {
		Image string `json:"image"`
	}
	if err := s.call(ctx, http.MethodGet, "/api/camera/capture", nil, nil, &resp); err != nil {
		return "", err
	}
	if resp.Image == "" {
		return "", &RejectedError{StatusCode: http.StatusOK, Message: "camera returned an empty frame"}
	}
	return toDataURL(resp.Image), nil
}

// OpenCameraStream opens the proxied MJPEG feed.
func (s *HatchlyService) OpenCameraStream(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.send(ctx, http.MethodGet, "/api/camera/stream", nil, nil)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: camera stream", shared.ErrNotAuthenticated)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		var env envelope
		_ = json.Unmarshal(data, &env)
		return nil, &RejectedError{StatusCode: resp.StatusCode, Message: env.reason()}
	}
	return resp.Body, nil
}

// toDataURL prefixes a bare base64 jpeg with its media type.
func toDataURL(image string) string {
	if strings.HasPrefix(image, "data:") {
		return image
	}
	return "data:image/jpeg;base64," + image
}

var _ Backend = (*HatchlyService)(nil)
