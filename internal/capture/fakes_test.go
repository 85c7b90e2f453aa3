package capture

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/desertthunder/hatchly/internal/models"
)

var pngFrame = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

// handles tracks every camera handle across both sources.
type handles struct {
	mu        sync.Mutex
	active    int
	maxActive int
}

func (h *handles) acquire() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active++
	if h.active > h.maxActive {
		h.maxActive = h.active
	}
}

func (h *handles) release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active--
}

func (h *handles) counts() (active, max int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active, h.maxActive
}

type fakeLocal struct {
	h       *handles
	openErr error
	snapErr error
	gate    chan struct{}

	mu    sync.Mutex
	opens int
}

func (f *fakeLocal) Open(ctx context.Context) (Stream, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.opens++
	f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.h.acquire()
	return &fakeStream{h: f.h, err: f.snapErr}, nil
}

type fakeStream struct {
	h       *handles
	err     error
	once    sync.Once
	stopped bool
}

func (s *fakeStream) Snapshot(context.Context) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return pngFrame, nil
}

func (s *fakeStream) Stop() {
	s.once.Do(func() {
		s.stopped = true
		s.h.release()
	})
}

type fakeRemote struct {
	h         *handles
	offline   bool
	statusErr error
	frameErr  error
	streamErr error
	// offlineAfter flips the camera offline after this many status probes when > 0.
	offlineAfter int

	mu          sync.Mutex
	statusCalls int
	streams     int
}

func (f *fakeRemote) CameraStatus(context.Context) (*models.CameraStatus, error) {
	f.mu.Lock()
	f.statusCalls++
	calls := f.statusCalls
	f.mu.Unlock()

	if f.statusErr != nil {
		return nil, f.statusErr
	}
	online := !f.offline
	if f.offlineAfter > 0 && calls > f.offlineAfter {
		online = false
	}
	return &models.CameraStatus{Online: online, StreamURL: "http://cam.test/video_feed"}, nil
}

func (f *fakeRemote) CaptureFrame(context.Context) (string, error) {
	if f.frameErr != nil {
		return "", f.frameErr
	}
	return "data:image/jpeg;base64,QUJD", nil
}

func (f *fakeRemote) OpenCameraStream(context.Context) (io.ReadCloser, error) {
	f.mu.Lock()
	f.streams++
	f.mu.Unlock()
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	f.h.acquire()
	return &fakeFeed{h: f.h}, nil
}

type fakeFeed struct {
	h    *handles
	once sync.Once
}

func (f *fakeFeed) Read([]byte) (int, error) { return 0, io.EOF }

func (f *fakeFeed) Close() error {
	f.once.Do(f.h.release)
	return nil
}

var errDenied = errors.New("permission denied")

type recorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *recorder) observe(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.statuses))
	for i, s := range r.statuses {
		out[i] = s.State
	}
	return out
}

func (r *recorder) last() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[len(r.statuses)-1]
}

func newTestController(t *testing.T, local *fakeLocal, remote *fakeRemote) (*Controller, *recorder) {
	t.Helper()
	var rc RemoteCamera
	if remote != nil {
		rc = remote
	}
	c := NewController(local, rc, nil)
	rec := &recorder{}
	c.Observe(rec.observe)
	return c, rec
}
