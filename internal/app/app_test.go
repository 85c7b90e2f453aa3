package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/desertthunder/hatchly/internal/capture"
	"github.com/desertthunder/hatchly/internal/models"
	"github.com/desertthunder/hatchly/internal/shared"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func TestShow(t *testing.T) {
	ctx := context.Background()

	t.Run("Unauthenticated Is Confined To Auth", func(t *testing.T) {
		ta := newTestApp(t, nil)
		require.NoError(t, ta.Show(ctx, ViewDashboard))

		assert.Equal(t, ViewAuth, ta.CurrentView())
		assert.Empty(t, ta.History())
		assert.Zero(t, ta.backend.count("DashboardSummary"))
		assert.Empty(t, ta.store.Value(models.KeyCurrentView))
	})

	t.Run("History Stack Invariant", func(t *testing.T) {
		ta := newTestApp(t, nil)
		ta.login(t)
		rng := rand.New(rand.NewSource(42))

		for i := range 300 {
			ta.clock.Advance(time.Second)
			switch op := rng.Intn(4); {
			case op == 0:
				require.NoError(t, ta.Back(ctx))
			case op == 1 && i%7 == 0:
				ta.mu.Lock()
				if ta.selected == nil {
					p := ta.backend.prawns[0]
					ta.selected = &p
				} else {
					ta.selected = nil
				}
				ta.mu.Unlock()
			default:
				v := Views[rng.Intn(len(Views))]
				if rng.Intn(2) == 0 {
					require.NoError(t, ta.Show(ctx, v))
				} else {
					require.NoError(t, ta.ShowWithoutHistory(ctx, v))
				}
			}

			history := ta.History()
			require.NotEmpty(t, history, "step %d", i)
			assert.Equal(t, ta.CurrentView(), history[len(history)-1], "step %d", i)
		}
	})

	t.Run("Duplicate Show Re-renders Without Push", func(t *testing.T) {
		ta := newTestApp(t, nil)
		ta.login(t)
		require.NoError(t, ta.Show(ctx, ViewDashboard))
		require.NoError(t, ta.Show(ctx, ViewDashboard))

		assert.Equal(t, []View{ViewDashboard}, ta.History())
		assert.Equal(t, 3, ta.backend.count("DashboardSummary"))
	})

	t.Run("History Requires Selection", func(t *testing.T) {
		ta := newTestApp(t, nil)
		ta.login(t)
		require.NoError(t, ta.Show(ctx, ViewHistory))

		assert.Equal(t, ViewSelectPrawn, ta.CurrentView())
		assert.Equal(t, []View{ViewDashboard, ViewSelectPrawn}, ta.History())
		assert.Zero(t, ta.backend.count("ListPredictionRecords"))
		assert.Empty(t, ta.Snapshot().Records)
	})

	t.Run("Persists Last View", func(t *testing.T) {
		ta := newTestApp(t, nil)
		ta.login(t)
		require.NoError(t, ta.Show(ctx, ViewLocationSetup))
		assert.Equal(t, string(ViewLocationSetup), ta.store.Value(models.KeyCurrentView))
	})

	t.Run("Back", func(t *testing.T) {
		ta := newTestApp(t, nil)
		ta.selectPrawn(t)
		require.NoError(t, ta.Show(ctx, ViewHistory))
		assert.Equal(t, []View{ViewDashboard, ViewImageSelection, ViewHistory}, ta.History())

		require.NoError(t, ta.Back(ctx))
		assert.Equal(t, ViewImageSelection, ta.CurrentView())

		require.NoError(t, ta.Back(ctx))
		assert.Equal(t, ViewImageSelection, ta.CurrentView(), "inside the cooldown")

		ta.clock.Advance(time.Second)
		require.NoError(t, ta.Back(ctx))
		assert.Equal(t, ViewDashboard, ta.CurrentView())

		ta.clock.Advance(time.Second)
		require.NoError(t, ta.Back(ctx))
		assert.Equal(t, ViewDashboard, ta.CurrentView())
		assert.Equal(t, []View{ViewDashboard}, ta.History())
	})

	t.Run("Leaving Capture Releases Camera", func(t *testing.T) {
		ta := newTestApp(t, nil)
		ta.selectPrawn(t)
		require.NoError(t, ta.Show(ctx, ViewCapture))
		require.NoError(t, ta.StartLocalCamera(ctx))
		assert.Equal(t, 1, ta.camera.open())
		assert.Equal(t, capture.LiveLocal, ta.Snapshot().Capture.State)

		require.NoError(t, ta.Show(ctx, ViewDashboard))
		assert.Zero(t, ta.camera.open())
		assert.Equal(t, capture.Placeholder, ta.Snapshot().Capture.State)
	})

	t.Run("Fresh Capture Clears Stale Image", func(t *testing.T) {
		ta := newTestApp(t, nil)
		ta.selectPrawn(t)
		ta.backend.predictResult = &models.PredictionResult{DaysUntilHatch: 3, Confidence: 80}

		require.NoError(t, ta.UseImage(ctx, cameraImage(t)))
		_, err := ta.Submit(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, ta.store.Value(models.KeyCapturedImage))
		require.NotEmpty(t, ta.store.Value(models.KeyPredictionDays))

		require.NoError(t, ta.Show(ctx, ViewCapture))
		snap := ta.Snapshot()
		assert.Nil(t, snap.Image)
		assert.Nil(t, snap.Prediction)
		for _, key := range imageKeys() {
			_, ok, _ := ta.store.Get(key)
			assert.False(t, ok, key)
		}
	})

	t.Run("Stale Load Is Discarded", func(t *testing.T) {
		backend := newFakeBackend()
		backend.records = []models.PredictionRecord{{ID: 1, PrawnID: 10, PredictedDays: 4}}
		backend.recordsStart = make(chan struct{})
		backend.recordsGate = make(chan struct{})
		ta := newTestApp(t, backend)
		ta.selectPrawn(t)

		done := make(chan error, 1)
		go func() { done <- ta.Show(ctx, ViewHistory) }()
		<-backend.recordsStart

		require.NoError(t, ta.Show(ctx, ViewDashboard))
		close(backend.recordsGate)
		require.NoError(t, <-done)

		snap := ta.Snapshot()
		assert.Equal(t, ViewDashboard, snap.View)
		assert.Empty(t, snap.Records)
		assert.False(t, snap.Loading)
	})
}

func TestSession(t *testing.T) {
	ctx := context.Background()

	persisted := func(ta *testApp) {
		ta.store.Set(models.KeyUserID, "7")
		ta.store.Set(models.KeyUserEmail, "ana@example.com")
		ta.store.Set(models.KeyUserName, "Ana")
	}

	t.Run("Restore Without Identity", func(t *testing.T) {
		ta := newTestApp(t, nil)
		require.NoError(t, ta.Restore(ctx))

		assert.Equal(t, ViewAuth, ta.CurrentView())
		assert.Nil(t, ta.Session())
		assert.Zero(t, ta.backend.count("ProbeSession"))
	})

	t.Run("Restore Fails Open", func(t *testing.T) {
		backend := newFakeBackend()
		backend.probeErr = fmt.Errorf("%w: connection refused", shared.ErrServiceUnavailable)
		ta := newTestApp(t, backend)
		persisted(ta)

		require.NoError(t, ta.Restore(ctx))

		sess := ta.Session()
		require.NotNil(t, sess)
		assert.Equal(t, int64(7), sess.UserID)
		assert.True(t, sess.Authenticated)
		assert.Equal(t, ViewDashboard, ta.CurrentView())
		assert.Equal(t, []View{ViewDashboard}, ta.History())
		assert.Equal(t, "7", ta.store.Value(models.KeyUserID))
	})

	t.Run("Restore Fails Open When Offline", func(t *testing.T) {
		backend := newFakeBackend()
		backend.probeErr = fmt.Errorf("%w: connection refused", shared.ErrServiceUnavailable)
		backend.dashboardErr = fmt.Errorf("%w: connection refused", shared.ErrServiceUnavailable)
		ta := newTestApp(t, backend)
		persisted(ta)

		require.NoError(t, ta.Restore(ctx))

		require.NotNil(t, ta.Session())
		assert.Equal(t, ViewDashboard, ta.CurrentView())
		assert.Equal(t, 1, backend.count("DashboardSummary"))
		assert.Len(t, ta.notices.titled("Load dashboard"), 1)
	})

	t.Run("Restore Purges Invalid Session", func(t *testing.T) {
		for name, setup := range map[string]func(*fakeBackend){
			"valid false": func(b *fakeBackend) { b.probe = false },
			"401":         func(b *fakeBackend) { b.probeErr = shared.ErrNotAuthenticated },
		} {
			t.Run(name, func(t *testing.T) {
				backend := newFakeBackend()
				setup(backend)
				ta := newTestApp(t, backend)
				persisted(ta)
				ta.store.Set(models.KeySelectedPrawn, `{"id":10,"name":"Pink"}`)

				require.NoError(t, ta.Restore(ctx))

				assert.Nil(t, ta.Session())
				assert.Equal(t, ViewAuth, ta.CurrentView())
				assert.Empty(t, ta.store.Keys())
			})
		}
	})

	t.Run("Restore Last View And Selection", func(t *testing.T) {
		ta := newTestApp(t, nil)
		persisted(ta)
		ta.store.Set(models.KeySelectedPrawn, `{"id":10,"name":"Pink","location_id":1}`)
		ta.store.Set(models.KeyCurrentView, string(ViewHistory))

		require.NoError(t, ta.Restore(ctx))

		assert.Equal(t, ViewHistory, ta.CurrentView())
		assert.Equal(t, []View{ViewDashboard, ViewHistory}, ta.History())
		require.NotNil(t, ta.Selected())
		assert.Equal(t, int64(10), ta.Selected().ID)
		assert.Equal(t, 1, ta.backend.count("ListPredictionRecords"))
	})

	t.Run("Restore Prediction For Matching Image", func(t *testing.T) {
		ta := newTestApp(t, nil)
		persisted(ta)
		ta.store.Set(models.KeySelectedPrawn, `{"id":10,"name":"Pink"}`)
		ta.store.Set(models.KeyCurrentView, string(ViewPredict))
		ta.store.Set(models.KeyCapturedImage, `{"id":"img-1","data":"data:image/png;base64,AA=="}`)
		ta.store.Set(models.KeyImageSource, "camera")
		ta.store.Set(models.KeyPredictionImageID, "img-1")
		ta.store.Set(models.KeyPredictionDays, "6")
		ta.store.Set(models.KeyPredictionConf, "88.5")

		require.NoError(t, ta.Restore(ctx))

		snap := ta.Snapshot()
		assert.Equal(t, ViewPredict, snap.View)
		require.NotNil(t, snap.Image)
		assert.Equal(t, models.SourceCamera, snap.Image.Source)
		require.NotNil(t, snap.Prediction)
		assert.Equal(t, 6, snap.Prediction.DaysUntilHatch)
		assert.True(t, snap.CanRetry)
		assert.False(t, snap.CanSubmit)
		assert.Zero(t, ta.backend.count("Predict"))
	})

	t.Run("Login And Logout", func(t *testing.T) {
		ta := newTestApp(t, nil)
		ta.login(t)

		sess := ta.Session()
		require.NotNil(t, sess)
		assert.Equal(t, int64(7), sess.UserID)
		assert.Equal(t, []View{ViewDashboard}, ta.History())
		assert.Equal(t, ViewDashboard, ta.CurrentView())
		assert.Equal(t, "7", ta.store.Value(models.KeyUserID))
		assert.Len(t, ta.notices.titled("Signed in"), 1)

		ta.SelectPrawn(ctx, ta.backend.prawns[0])
		require.NoError(t, ta.Logout(ctx))

		assert.Nil(t, ta.Session())
		assert.Nil(t, ta.Selected())
		assert.Empty(t, ta.History())
		assert.Equal(t, ViewAuth, ta.CurrentView())
		assert.Empty(t, ta.store.Keys())
		assert.Equal(t, 1, ta.backend.count("Logout"))
	})

	t.Run("Login Validation Never Reaches Backend", func(t *testing.T) {
		ta := newTestApp(t, nil)
		err := ta.Login(ctx, "not-an-email", "")

		var verr *shared.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.Has("email"))
		assert.True(t, verr.Has("password"))
		assert.Zero(t, ta.backend.count("Login"))
		assert.Empty(t, ta.notices.all())
	})

	t.Run("Login Failure Leaves State Alone", func(t *testing.T) {
		backend := newFakeBackend()
		backend.loginErr = fmt.Errorf("%w: bad password", shared.ErrInvalidCredentials)
		ta := newTestApp(t, backend)

		err := ta.Login(ctx, "ana@example.com", "wrong-password")
		require.ErrorIs(t, err, shared.ErrInvalidCredentials)
		assert.Nil(t, ta.Session())
		assert.Equal(t, ViewAuth, ta.CurrentView())
		require.Len(t, ta.notices.all(), 1)
		assert.Equal(t, LevelError, ta.notices.all()[0].Level)
	})

	t.Run("Signup", func(t *testing.T) {
		ta := newTestApp(t, nil)
		require.NoError(t, ta.Signup(ctx, "Bo", "bo@example.com", "secret1"))

		sess := ta.Session()
		require.NotNil(t, sess)
		assert.Equal(t, "Bo", sess.DisplayName)
		assert.Equal(t, ViewDashboard, ta.CurrentView())
	})

	t.Run("Invalidate Once", func(t *testing.T) {
		ta := newTestApp(t, nil)
		ta.selectPrawn(t)

		ta.Invalidate()
		ta.Invalidate()

		assert.Nil(t, ta.Session())
		assert.Nil(t, ta.Selected())
		assert.Equal(t, ViewAuth, ta.CurrentView())
		assert.Len(t, ta.notices.titled("Session expired"), 1)
	})

	t.Run("ChangePassword", func(t *testing.T) {
		t.Run("Validation", func(t *testing.T) {
			ta := newTestApp(t, nil)
			ta.login(t)
			err := ta.ChangePassword(ctx, "secret1", "short", "other")

			var verr *shared.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Has("new_password"))
			assert.True(t, verr.Has("confirm_password"))
			assert.Zero(t, ta.backend.count("ChangePassword"))
		})

		t.Run("Incorrect Current Password", func(t *testing.T) {
			backend := newFakeBackend()
			backend.changePasswordErr = rejected("Current password is incorrect")
			ta := newTestApp(t, backend)
			ta.login(t)
			require.NoError(t, ta.Show(ctx, ViewChangePassword))

			err := ta.ChangePassword(ctx, "wrong1", "secret2", "secret2")

			var verr *shared.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Has("current_password"))
			assert.Equal(t, ViewChangePassword, ta.CurrentView())
		})

		t.Run("Success", func(t *testing.T) {
			ta := newTestApp(t, nil)
			ta.login(t)
			require.NoError(t, ta.Show(ctx, ViewChangePassword))

			require.NoError(t, ta.ChangePassword(ctx, "secret1", "secret2", "secret2"))
			assert.Equal(t, ViewDashboard, ta.CurrentView())
			assert.Equal(t, []View{ViewDashboard}, ta.History())
			assert.Len(t, ta.notices.titled("Password changed"), 1)

			require.NoError(t, ta.Back(ctx))
			assert.Equal(t, ViewDashboard, ta.CurrentView())
		})
	})
}

func TestReport(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level Level
		quiet bool
	}{
		{name: "rejected", err: rejected("Prawn name already exists"), level: LevelWarning},
		{name: "transport", err: fmt.Errorf("%w: timeout", shared.ErrServiceUnavailable), level: LevelError},
		{name: "camera", err: fmt.Errorf("%w: denied", shared.ErrCameraUnavailable), level: LevelError},
		{name: "validation", err: shared.ValidateName("name", ""), quiet: true},
		{name: "cancelled", err: shared.ErrCaptureCancelled, quiet: true},
		{name: "context", err: context.Canceled, quiet: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t, nil)
			err := ta.report("op", tt.err)
			assert.True(t, errors.Is(err, tt.err))

			if tt.quiet {
				assert.Empty(t, ta.notices.all())
				return
			}
			require.Len(t, ta.notices.all(), 1)
			assert.Equal(t, tt.level, ta.notices.all()[0].Level)
		})
	}
}
