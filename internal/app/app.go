package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/hatchly/internal/capture"
	"github.com/desertthunder/hatchly/internal/models"
	"github.com/desertthunder/hatchly/internal/services"
	"github.com/desertthunder/hatchly/internal/shared"
)

// Options configures an [App].
type Options struct {
	Backend  services.Backend
	Store    models.StateStore
	Camera   *capture.Controller
	Notifier Notifier
	Logger   *log.Logger

	// BackCooldown is the minimum spacing between accepted back navigations.
	BackCooldown time.Duration
	Now          func() time.Time
}

// App is the single owner of client state.
//
// The mutex guards in-memory state only and is never held across a backend or camera call.
type App struct {
	backend  services.Backend
	store    models.StateStore
	camera   *capture.Controller
	nav      *Navigator
	notifier Notifier
	logger   *log.Logger
	now      func() time.Time

	mu         sync.Mutex
	session    *models.Session
	selected   *models.Prawn
	image      *models.CapturedImage
	prediction *models.PredictionResult
	current    View
	generation uint64

	submitting      bool
	predictFailed   bool
	pickerRequested bool
	data            viewData
}

// viewData holds what the current view displays.
type viewData struct {
	prawns         []models.Prawn
	locationFilter int64
	locations      []models.Location
	dashboard      *models.DashboardSummary
	records        []models.PredictionRecord
	loading        bool
}

// New creates an App in the unauthenticated view. Call [App.Restore] to pick up a persisted session.
func New(opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{Logger: opts.Logger}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BackCooldown == 0 {
		opts.BackCooldown = 500 * time.Millisecond
	}
	if opts.Camera == nil {
		opts.Camera = capture.NewController(nil, nil, opts.Logger)
	}

	return &App{
		backend:  opts.Backend,
		store:    opts.Store,
		camera:   opts.Camera,
		nav:      NewNavigator(opts.BackCooldown, opts.Now),
		notifier: opts.Notifier,
		logger:   opts.Logger,
		now:      opts.Now,
		current:  ViewAuth,
	}
}

// Camera returns the capture controller driven by the capture view.
func (a *App) Camera() *capture.Controller {
	return a.camera
}

// Snapshot is a consistent copy of the state a presentation layer renders.
type Snapshot struct {
	View       View
	History    []View
	Session    *models.Session
	Selected   *models.Prawn
	Image      *models.CapturedImage
	Prediction *models.PredictionResult
	Capture    capture.Status

	// Prediction view controls.
	CanSubmit   bool
	CanRetry    bool
	CanTryAgain bool
	Submitting  bool

	// PickerRequested asks the image-selection view to reopen the file picker.
	PickerRequested bool

	Prawns         []models.Prawn
	AllPrawns      []models.Prawn
	LocationFilter int64
	Locations      []models.Location
	Dashboard      *models.DashboardSummary
	Records        []models.PredictionRecord
	Loading        bool
}

// Snapshot returns the current state.
func (a *App) Snapshot() Snapshot {
	a.mu.Lock()
	s := Snapshot{
		View:            a.current,
		Session:         clonePtr(a.session),
		Selected:        clonePtr(a.selected),
		Image:           clonePtr(a.image),
		Prediction:      clonePtr(a.prediction),
		CanSubmit:       a.image != nil && a.prediction == nil && !a.submitting && !a.predictFailed,
		CanRetry:        a.prediction != nil,
		CanTryAgain:     a.predictFailed,
		Submitting:      a.submitting,
		PickerRequested: a.pickerRequested,
		Prawns:          filterPrawns(a.data.prawns, a.data.locationFilter),
		AllPrawns:       append([]models.Prawn(nil), a.data.prawns...),
		LocationFilter:  a.data.locationFilter,
		Locations:       append([]models.Location(nil), a.data.locations...),
		Dashboard:       clonePtr(a.data.dashboard),
		Records:         append([]models.PredictionRecord(nil), a.data.records...),
		Loading:         a.data.loading,
	}
	a.mu.Unlock()

	s.History = a.nav.History()
	s.Capture = a.camera.Status()
	return s
}

// CurrentView returns the rendered view.
func (a *App) CurrentView() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// History returns the navigation stack, bottom first.
func (a *App) History() []View {
	return a.nav.History()
}

// Session returns a copy of the active session or nil.
func (a *App) Session() *models.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return clonePtr(a.session)
}

// Selected returns a copy of the selected prawn or nil.
func (a *App) Selected() *models.Prawn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return clonePtr(a.selected)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Show renders v and pushes it onto the history.
func (a *App) Show(ctx context.Context, v View) error {
	return a.show(ctx, v, true)
}

// ShowWithoutHistory renders v with the same side effects as [App.Show] but leaves the stack alone.
func (a *App) ShowWithoutHistory(ctx context.Context, v View) error {
	return a.show(ctx, v, false)
}

// Back returns to the previous view. Calls inside the cooldown are ignored.
func (a *App) Back(ctx context.Context) error {
	v, ok := a.nav.Back(ViewDashboard)
	if !ok {
		return nil
	}
	return a.ShowWithoutHistory(ctx, v)
}

func (a *App) show(ctx context.Context, v View, push bool) error {
	a.mu.Lock()
	authenticated := a.session != nil
	if !authenticated {
		v = ViewAuth
	}
	if v.needsSelection() && a.selected == nil {
		a.logger.Debug("no prawn selected, redirecting", "view", v)
		v = ViewSelectPrawn
	}

	if authenticated {
		if push {
			a.nav.Push(v)
		} else if top, _ := a.nav.Top(); top != v {
			a.nav.ReplaceTop(v)
		}
	}

	a.current = v
	a.generation++
	gen := a.generation
	a.data.loading = false

	var clearKeys []string
	switch v {
	case ViewCapture:
		a.image = nil
		a.prediction = nil
		a.predictFailed = false
		clearKeys = imageKeys()
	case ViewImageSelection:
		a.predictFailed = false
	}
	if v != ViewImageSelection {
		a.pickerRequested = false
	}
	a.mu.Unlock()

	a.camera.Reset()

	if authenticated && v != ViewAuth {
		a.persist(models.KeyCurrentView, string(v))
	}
	a.forget(clearKeys...)
	a.logger.Debug("show", "view", v, "push", push)

	switch v {
	case ViewDashboard:
		return a.loadDashboard(ctx, gen)
	case ViewSelectPrawn:
		if err := a.loadPrawns(ctx, gen); err != nil {
			return err
		}
		return a.loadLocations(ctx, gen)
	case ViewRegisterPrawn, ViewLocationSetup:
		return a.loadLocations(ctx, gen)
	case ViewImageSelection:
		return a.refreshSelected(ctx, gen)
	case ViewPredict:
		a.restoreImage()
	case ViewHistory:
		return a.loadHistory(ctx, gen)
	}
	return nil
}

// begin marks gen as loading and reports whether it is still the current generation.
func (a *App) begin(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generation != gen {
		return false
	}
	a.data.loading = true
	return true
}

// commit applies fn if gen is still current. Results for an abandoned view are dropped.
func (a *App) commit(gen uint64, fn func()) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generation != gen {
		return false
	}
	a.data.loading = false
	if fn != nil {
		fn()
	}
	return true
}

func (a *App) currentGeneration() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generation
}

func (a *App) userID() (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return 0, shared.ErrNotAuthenticated
	}
	return a.session.UserID, nil
}

func (a *App) notify(level Level, title, message string) {
	a.notifier.Notify(Notice{Level: level, Title: title, Message: message, At: a.now()})
}

// report converts err into a notice and returns it.
//
// Auth failures invalidate the session, whose own notice is the only one shown. Validation
// errors and cancellations are returned silently.
func (a *App) report(title string, err error) error {
	if err == nil {
		return nil
	}

	var rejected *services.RejectedError
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated):
		a.Invalidate()
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrCaptureCancelled),
		errors.Is(err, context.Canceled):
	case errors.Is(err, shared.ErrInvalidCredentials):
		a.notify(LevelError, title, "Invalid email or password")
	case errors.As(err, &rejected):
		a.notify(LevelWarning, title, rejected.Message)
	case errors.Is(err, shared.ErrServiceUnavailable):
		a.notify(LevelError, title, "Error connecting to server. Please try again.")
	default:
		a.notify(LevelError, title, err.Error())
	}

	a.logger.Warn(title, "error", err)
	return err
}

// Invalidate clears the session after the backend reported an authentication failure.
//
// It is safe to call for every failing request: only the call that finds a session clears it
// and shows the expiry notice.
func (a *App) Invalidate() {
	a.mu.Lock()
	had := a.session != nil
	if !had {
		a.mu.Unlock()
		return
	}
	a.clearLocked()
	a.mu.Unlock()

	a.purge()
	a.logger.Warn("session invalidated by backend")
	a.notify(LevelWarning, "Session expired", "Please log in again.")
	_ = a.show(context.Background(), ViewAuth, false)
}

// clearLocked drops all session state. Callers hold mu.
func (a *App) clearLocked() {
	a.session = nil
	a.selected = nil
	a.image = nil
	a.prediction = nil
	a.submitting = false
	a.predictFailed = false
	a.pickerRequested = false
	a.data = viewData{}
	a.nav.Clear()
}

// purge removes persisted session state and releases anything tied to it.
func (a *App) purge() {
	a.forget(models.SessionKeys...)
	a.camera.Reset()
	if f, ok := a.backend.(interface{ Flush() }); ok {
		f.Flush()
	}
}

func (a *App) String() string {
	s := a.Snapshot()
	return fmt.Sprintf("view=%s history=%v authenticated=%v", s.View, s.History, s.Session != nil)
}
