package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/hatchly/internal/models"
	"github.com/desertthunder/hatchly/internal/shared"
)

// Source identifies which camera feeds the controller.
type Source string

const (
	SourceNone   Source = ""
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Status is a snapshot of the controller delivered to observers.
//
// Err is set on the transition that surfaced a failure.
type Status struct {
	State     State
	Source    Source
	StreamURL string
	Image     *models.CapturedImage
	Err       error
}

// Controller drives the capture [State] machine over a local and an optional remote camera.
type Controller struct {
	local  LocalCamera
	remote RemoteCamera
	logger *log.Logger

	mu        sync.Mutex
	state     State
	source    Source
	stream    Stream
	feed      io.ReadCloser
	streamURL string
	image     *models.CapturedImage
	epoch     uint64
	observers []func(Status)
}

// NewController creates a controller in [Placeholder]. remote may be nil when no networked camera exists.
func NewController(local LocalCamera, remote RemoteCamera, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Controller{local: local, remote: remote, logger: logger}
}

// Observe registers fn to receive every transition.
func (c *Controller) Observe(fn func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Status returns the current snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot(nil)
}

// HasRemote reports whether a networked camera is configured.
func (c *Controller) HasRemote() bool {
	return c.remote != nil
}

func (c *Controller) snapshot(err error) Status {
	return Status{State: c.state, Source: c.source, StreamURL: c.streamURL, Image: c.image, Err: err}
}

// apply moves the machine along e. Callers hold mu.
func (c *Controller) apply(e Event) error {
	next, ok := Next(c.state, e)
	if !ok {
		return fmt.Errorf("%w: %s in %s", shared.ErrInvalidCaptureAction, e, c.state)
	}
	c.logger.Debug("capture transition", "from", c.state, "event", e, "to", next)
	c.state = next
	return nil
}

// detach takes the live handles out of the controller so they can be released without the lock.
func (c *Controller) detach() func() {
	stream, feed := c.stream, c.feed
	c.stream, c.feed, c.streamURL = nil, nil, ""
	return func() {
		if stream != nil {
			stream.Stop()
		}
		if feed != nil {
			feed.Close()
		}
	}
}

func (c *Controller) notify(s Status) {
	c.mu.Lock()
	observers := append([]func(Status){}, c.observers...)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

// begin tears down the current source and enters Loading for src. It returns the new epoch.
func (c *Controller) begin(src Source) uint64 {
	c.mu.Lock()
	release := c.detach()
	_ = c.apply(EventAcquire)
	c.epoch++
	epoch := c.epoch
	c.source = src
	c.image = nil
	s := c.snapshot(nil)
	c.mu.Unlock()

	release()
	c.notify(s)
	return epoch
}

// UseLocal switches to the local camera, releasing any previous source first.
func (c *Controller) UseLocal(ctx context.Context) error {
	epoch := c.begin(SourceLocal)

	stream, err := c.openLocal(ctx)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		if stream != nil {
			stream.Stop()
		}
		return shared.ErrCaptureCancelled
	}

	if err != nil {
		_ = c.apply(EventAcquireFailed)
		c.source = SourceNone
		err = fmt.Errorf("%w: %w", shared.ErrCameraUnavailable, err)
		s := c.snapshot(err)
		c.mu.Unlock()

		c.logger.Warn("local camera unavailable", "error", err)
		c.notify(s)
		return err
	}

	c.stream = stream
	_ = c.apply(EventLocalReady)
	s := c.snapshot(nil)
	c.mu.Unlock()

	c.notify(s)
	return nil
}

func (c *Controller) openLocal(ctx context.Context) (Stream, error) {
	if c.local == nil {
		return nil, errors.New("no local camera configured")
	}
	return c.local.Open(ctx)
}

// UseRemote switches to the networked camera.
//
// The camera is probed first. When it is offline the current source is left untouched. When
// the stream fails to open after a successful probe the controller falls back to the local camera.
func (c *Controller) UseRemote(ctx context.Context) error {
	if c.remote == nil {
		return fmt.Errorf("%w: no remote camera configured", shared.ErrCameraUnavailable)
	}

	c.mu.Lock()
	before := c.epoch
	c.mu.Unlock()

	status, err := c.remote.CameraStatus(ctx)
	if err == nil && !status.Online {
		err = shared.ErrRemoteCameraOffline
	} else if err != nil {
		err = fmt.Errorf("%w: %w", shared.ErrRemoteCameraOffline, err)
	}

	c.mu.Lock()
	if c.epoch != before {
		c.mu.Unlock()
		return shared.ErrCaptureCancelled
	}
	if err != nil {
		s := c.snapshot(err)
		c.mu.Unlock()

		c.logger.Warn("remote camera offline", "error", err)
		c.notify(s)
		return err
	}
	c.mu.Unlock()

	epoch := c.begin(SourceRemote)
	feed, err := c.remote.OpenCameraStream(ctx)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		if feed != nil {
			feed.Close()
		}
		return shared.ErrCaptureCancelled
	}

	if err != nil {
		c.mu.Unlock()
		return c.fallback(ctx, fmt.Errorf("remote stream failed: %w", err))
	}

	c.feed = feed
	c.streamURL = status.StreamURL
	_ = c.apply(EventRemoteReady)
	s := c.snapshot(nil)
	c.mu.Unlock()

	c.notify(s)
	return nil
}

// fallback reports cause and switches to the local camera.
func (c *Controller) fallback(ctx context.Context, cause error) error {
	c.mu.Lock()
	release := c.detach()
	_ = c.apply(EventStreamFailed)
	c.source = SourceLocal
	s := c.snapshot(cause)
	c.mu.Unlock()

	release()
	c.logger.Warn("falling back to local camera", "error", cause)
	c.notify(s)
	return c.UseLocal(ctx)
}

// Capture acts on the capture control.
//
// While live it takes a still and moves to [Captured]. In Captured a second call confirms the
// image: the controller returns to [Placeholder] and hands the image back with confirmed set.
func (c *Controller) Capture(ctx context.Context) (img *models.CapturedImage, confirmed bool, err error) {
	c.mu.Lock()
	state, epoch := c.state, c.epoch
	switch state {
	case Captured:
		img = c.image
		c.image = nil
		c.source = SourceNone
		_ = c.apply(EventConfirm)
		s := c.snapshot(nil)
		c.mu.Unlock()

		c.notify(s)
		return img, true, nil
	case LiveLocal:
		stream := c.stream
		c.mu.Unlock()
		img, err = c.captureLocal(ctx, stream, epoch)
		return img, false, err
	case LiveRemote:
		c.mu.Unlock()
		img, err = c.captureRemote(ctx, epoch)
		return img, false, err
	default:
		c.mu.Unlock()
		return nil, false, fmt.Errorf("%w: nothing to capture in %s", shared.ErrInvalidCaptureAction, state)
	}
}

func (c *Controller) captureLocal(ctx context.Context, stream Stream, epoch uint64) (*models.CapturedImage, error) {
	raw, err := stream.Snapshot(ctx)

	var data string
	if err == nil {
		data, err = EncodeDataURL(raw)
	}
	if err != nil {
		return nil, c.snapshotFailed(epoch, err)
	}

	return c.captured(epoch, NewImage(data, models.SourceCamera))
}

// captureRemote re-probes the camera before requesting a frame and falls back to the local camera if it went offline.
func (c *Controller) captureRemote(ctx context.Context, epoch uint64) (*models.CapturedImage, error) {
	status, err := c.remote.CameraStatus(ctx)
	if err != nil || !status.Online {
		if !c.current(epoch) {
			return nil, shared.ErrCaptureCancelled
		}
		if err == nil {
			err = shared.ErrRemoteCameraOffline
		}
		if ferr := c.fallback(ctx, fmt.Errorf("remote camera went offline: %w", err)); ferr != nil {
			return nil, ferr
		}
		return nil, fmt.Errorf("%w: switched to local camera", shared.ErrRemoteCameraOffline)
	}

	frame, err := c.remote.CaptureFrame(ctx)
	if err != nil {
		return nil, c.snapshotFailed(epoch, err)
	}
	return c.captured(epoch, NewImage(frame, models.SourceCamera))
}

func (c *Controller) current(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch == epoch
}

func (c *Controller) snapshotFailed(epoch uint64, err error) error {
	c.mu.Lock()
	if c.epoch != epoch || !c.state.Live() {
		c.mu.Unlock()
		return shared.ErrCaptureCancelled
	}
	_ = c.apply(EventSnapshotFailed)
	s := c.snapshot(err)
	c.mu.Unlock()

	c.logger.Warn("capture failed", "source", s.Source, "error", err)
	c.notify(s)
	return err
}

// captured stores img and releases the live source.
func (c *Controller) captured(epoch uint64, img *models.CapturedImage) (*models.CapturedImage, error) {
	c.mu.Lock()
	if c.epoch != epoch || !c.state.Live() {
		c.mu.Unlock()
		return nil, shared.ErrCaptureCancelled
	}
	release := c.detach()
	_ = c.apply(EventSnapshot)
	c.image = img
	s := c.snapshot(nil)
	c.mu.Unlock()

	release()
	c.notify(s)
	return img, nil
}

// Retry discards the captured image and reacquires the source that produced it.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Captured {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: nothing to retry in %s", shared.ErrInvalidCaptureAction, state)
	}
	source := c.source
	c.mu.Unlock()

	if source == SourceRemote {
		err := c.UseRemote(ctx)
		if errors.Is(err, shared.ErrRemoteCameraOffline) {
			return c.UseLocal(ctx)
		}
		return err
	}
	return c.UseLocal(ctx)
}

// Reset tears down every source and returns to [Placeholder], cancelling any acquisition in flight.
func (c *Controller) Reset() {
	c.mu.Lock()
	release := c.detach()
	changed := c.state != Placeholder || c.image != nil
	_ = c.apply(EventReset)
	c.epoch++
	c.source = SourceNone
	c.image = nil
	s := c.snapshot(nil)
	c.mu.Unlock()

	release()
	if changed {
		c.notify(s)
	}
}
