package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/hatchly/internal/capture"
	"github.com/desertthunder/hatchly/internal/models"
	"github.com/desertthunder/hatchly/internal/services"
	"github.com/desertthunder/hatchly/internal/shared"
	tu "github.com/desertthunder/hatchly/internal/testing"
)

var pngFrame = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

// fakeBackend is an in-memory Hatchly backend.
type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	session  models.Session
	loginErr error
	probe    bool
	probeErr error

	prawns    []models.Prawn
	locations []models.Location
	records   []models.PredictionRecord
	nextID    int64

	predictResult *models.PredictionResult
	predictErr    error
	predictGate   chan struct{}
	predictStart  chan struct{}

	recordsGate  chan struct{}
	recordsStart chan struct{}

	saveRecordErr     error
	dashboardErr      error
	changePasswordErr error
	saved             []models.PredictionRecordInput
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		calls:   map[string]int{},
		session: models.Session{UserID: 7, Email: "ana@example.com", DisplayName: "Ana"},
		probe:   true,
		locations: []models.Location{
			{ID: 1, Name: "Tank A"},
			{ID: 2, Name: "Tank B"},
		},
		prawns: []models.Prawn{
			{ID: 10, Name: "Pink", LocationID: 1, LocationName: "Tank A"},
			{ID: 11, Name: "Blue", LocationID: 2, LocationName: "Tank B"},
		},
		nextID: 100,
	}
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeBackend) Login(_ context.Context, email, _ string) (*models.Session, error) {
	f.record("Login")
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	s := f.session
	s.Authenticated = true
	return &s, nil
}

func (f *fakeBackend) Signup(_ context.Context, name, email, _ string) (*models.Session, error) {
	f.record("Signup")
	return &models.Session{UserID: 8, Email: email, DisplayName: name, Authenticated: true}, nil
}

func (f *fakeBackend) ProbeSession(context.Context) (bool, error) {
	f.record("ProbeSession")
	return f.probe, f.probeErr
}

func (f *fakeBackend) Logout(context.Context) error {
	f.record("Logout")
	return nil
}

func (f *fakeBackend) ChangePassword(context.Context, int64, string, string) error {
	f.record("ChangePassword")
	return f.changePasswordErr
}

func (f *fakeBackend) ListPrawns(context.Context, int64) ([]models.Prawn, error) {
	f.record("ListPrawns")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Prawn(nil), f.prawns...), nil
}

func (f *fakeBackend) SavePrawn(_ context.Context, _ int64, name string, locationID int64) (*models.Prawn, error) {
	f.record("SavePrawn")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p := models.Prawn{ID: f.nextID, Name: name, LocationID: locationID}
	f.prawns = append(f.prawns, p)
	return &p, nil
}

func (f *fakeBackend) DeletePrawn(_ context.Context, _ int64, prawnID int64, password string) error {
	f.record("DeletePrawn")
	if password != "secret1" {
		return rejected("Incorrect password")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.prawns[:0]
	for _, p := range f.prawns {
		if p.ID != prawnID {
			kept = append(kept, p)
		}
	}
	f.prawns = kept
	return nil
}

func (f *fakeBackend) RenamePrawn(_ context.Context, prawnID int64, name string) error {
	f.record("RenamePrawn")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.prawns {
		if f.prawns[i].ID == prawnID {
			f.prawns[i].Name = name
		}
	}
	return nil
}

func (f *fakeBackend) TransferPrawn(_ context.Context, prawnID, locationID int64) error {
	f.record("TransferPrawn")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.prawns {
		if f.prawns[i].ID == prawnID {
			f.prawns[i].LocationID = locationID
			f.prawns[i].LocationName = f.locationNameLocked(locationID)
		}
	}
	return nil
}

func (f *fakeBackend) locationNameLocked(id int64) string {
	for _, l := range f.locations {
		if l.ID == id {
			return l.Name
		}
	}
	return ""
}

func (f *fakeBackend) ListLocations(context.Context) ([]models.Location, error) {
	f.record("ListLocations")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Location(nil), f.locations...), nil
}

func (f *fakeBackend) SaveLocation(_ context.Context, name string) (*models.Location, error) {
	f.record("SaveLocation")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	l := models.Location{ID: f.nextID, Name: name}
	f.locations = append(f.locations, l)
	return &l, nil
}

func (f *fakeBackend) RenameLocation(_ context.Context, id int64, name string) error {
	f.record("RenameLocation")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.locations {
		if f.locations[i].ID == id {
			f.locations[i].Name = name
		}
	}
	return nil
}

func (f *fakeBackend) DeleteLocation(_ context.Context, id int64) error {
	f.record("DeleteLocation")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.prawns {
		if p.LocationID == id {
			return rejected("Location has prawns")
		}
	}
	kept := f.locations[:0]
	for _, l := range f.locations {
		if l.ID != id {
			kept = append(kept, l)
		}
	}
	f.locations = kept
	return nil
}

func (f *fakeBackend) Predict(context.Context, string) (*models.PredictionResult, error) {
	f.record("Predict")
	if f.predictStart != nil {
		f.predictStart <- struct{}{}
	}
	if f.predictGate != nil {
		<-f.predictGate
	}
	if f.predictErr != nil {
		return nil, f.predictErr
	}
	r := *f.predictResult
	return &r, nil
}

func (f *fakeBackend) SavePredictionRecord(_ context.Context, in models.PredictionRecordInput) error {
	f.record("SavePredictionRecord")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, in)
	return f.saveRecordErr
}

func (f *fakeBackend) ListPredictionRecords(context.Context, int64, int64) ([]models.PredictionRecord, error) {
	f.record("ListPredictionRecords")
	if f.recordsStart != nil {
		f.recordsStart <- struct{}{}
	}
	if f.recordsGate != nil {
		<-f.recordsGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PredictionRecord(nil), f.records...), nil
}

func (f *fakeBackend) DeletePredictionRecord(_ context.Context, id int64) error {
	f.record("DeletePredictionRecord")
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.records[:0]
	for _, r := range f.records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	f.records = kept
	return nil
}

func (f *fakeBackend) DashboardSummary(context.Context, int64) (*models.DashboardSummary, error) {
	f.record("DashboardSummary")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dashboardErr != nil {
		return nil, f.dashboardErr
	}
	return &models.DashboardSummary{TotalPrawns: len(f.prawns), Prawns: append([]models.Prawn(nil), f.prawns...)}, nil
}

func (f *fakeBackend) CameraStatus(context.Context) (*models.CameraStatus, error) {
	return nil, fmt.Errorf("%w: no camera", shared.ErrServiceUnavailable)
}

func (f *fakeBackend) CaptureFrame(context.Context) (string, error) {
	return "", errors.New("no camera")
}

func (f *fakeBackend) OpenCameraStream(context.Context) (io.ReadCloser, error) {
	return nil, errors.New("no camera")
}

var _ services.Backend = (*fakeBackend)(nil)

func rejected(msg string) error {
	return &services.RejectedError{StatusCode: 200, Message: msg}
}

// fakeCamera is a local camera whose streams record whether they were stopped.
type fakeCamera struct {
	mu      sync.Mutex
	streams []*fakeStream
}

func (c *fakeCamera) Open(context.Context) (capture.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &fakeStream{}
	c.streams = append(c.streams, s)
	return s, nil
}

func (c *fakeCamera) open() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.streams {
		if !s.isStopped() {
			n++
		}
	}
	return n
}

type fakeStream struct {
	mu      sync.Mutex
	stopped bool
}

func (s *fakeStream) Snapshot(context.Context) ([]byte, error) { return pngFrame, nil }

func (s *fakeStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func (s *fakeStream) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// notices collects everything delivered to the notifier.
type notices struct {
	mu   sync.Mutex
	list []Notice
}

func (n *notices) Notify(notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.list = append(n.list, notice)
}

func (n *notices) all() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.list...)
}

func (n *notices) titled(title string) []Notice {
	var out []Notice
	for _, notice := range n.all() {
		if notice.Title == title {
			out = append(out, notice)
		}
	}
	return out
}

// clock is a manual time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testApp struct {
	*App
	backend *fakeBackend
	store   *tu.MemoryStore
	camera  *fakeCamera
	notices *notices
	clock   *clock
}

func newTestApp(t *testing.T, backend *fakeBackend) *testApp {
	t.Helper()
	if backend == nil {
		backend = newFakeBackend()
	}

	ta := &testApp{
		backend: backend,
		store:   tu.NewMemoryStore(),
		camera:  &fakeCamera{},
		notices: &notices{},
		clock:   newClock(),
	}
	ta.App = New(Options{
		Backend:  backend,
		Store:    ta.store,
		Camera:   capture.NewController(ta.camera, nil, nil),
		Notifier: ta.notices,
		Now:      ta.clock.Now,
	})
	return ta
}

// login signs in and fails the test on error.
func (ta *testApp) login(t *testing.T) {
	t.Helper()
	if err := ta.Login(context.Background(), "ana@example.com", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}
}

// selectPrawn signs in and selects the first prawn.
func (ta *testApp) selectPrawn(t *testing.T) models.Prawn {
	t.Helper()
	ta.login(t)
	p := ta.backend.prawns[0]
	if err := ta.SelectPrawn(context.Background(), p); err != nil {
		t.Fatalf("select prawn: %v", err)
	}
	return p
}

func cameraImage(t *testing.T) *models.CapturedImage {
	t.Helper()
	data, err := capture.EncodeDataURL(pngFrame)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return capture.NewImage(data, models.SourceCamera)
}
