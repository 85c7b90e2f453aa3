package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/hatchly/internal/models"
	"github.com/desertthunder/hatchly/internal/services"
	"github.com/desertthunder/hatchly/internal/shared"
)

// Restore resumes a persisted session.
//
// With no remembered identity the auth view is shown. Otherwise the backend is probed: an
// invalid session is purged, while a probe that fails in transit is trusted so that a
// connectivity blip never logs the user out.
func (a *App) Restore(ctx context.Context) error {
	sess := a.persistedSession()
	if sess == nil {
		return a.ShowWithoutHistory(ctx, ViewAuth)
	}

	valid, err := a.backend.ProbeSession(ctx)
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated):
		valid = false
	case err != nil:
		a.logger.Warn("session probe failed, trusting persisted session", "user_id", sess.UserID, "error", err)
		valid = true
	}

	if !valid {
		a.logger.Info("persisted session is no longer valid", "user_id", sess.UserID)
		a.purge()
		return a.ShowWithoutHistory(ctx, ViewAuth)
	}

	selected := a.persistedPrawn()

	a.mu.Lock()
	a.session = sess
	a.selected = selected
	a.mu.Unlock()
	a.restoreImage()

	last := ViewDashboard
	if raw, ok := a.lookup(models.KeyCurrentView); ok {
		if v, ok := ParseView(raw); ok && v != ViewAuth {
			last = v
		}
	}

	a.logger.Info("session restored", "user_id", sess.UserID, "view", last)
	a.nav.Reset(ViewDashboard)
	if last == ViewDashboard {
		err = a.ShowWithoutHistory(ctx, ViewDashboard)
	} else {
		err = a.Show(ctx, last)
	}

	// A view that failed to load has already produced a notice; the session itself stands.
	if err != nil && a.Session() != nil {
		a.logger.Warn("restored view failed to load", "view", last, "error", err)
		return nil
	}
	return err
}

// Login authenticates and shows the dashboard with a fresh history.
func (a *App) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if err := shared.ValidateLogin(email, password); err != nil {
		return err
	}

	sess, err := a.backend.Login(ctx, email, password)
	if err != nil {
		return a.report("Login failed", err)
	}
	if sess.Email == "" {
		sess.Email = email
	}
	return a.start(ctx, sess)
}

// Signup registers an account and signs in to it.
func (a *App) Signup(ctx context.Context, name, email, password string) error {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if err := shared.ValidateSignup(name, email, password); err != nil {
		return err
	}

	sess, err := a.backend.Signup(ctx, name, email, password)
	if err != nil {
		return a.report("Signup failed", err)
	}
	if sess.UserID == 0 {
		a.logger.Debug("signup returned no user id, signing in")
		if sess, err = a.backend.Login(ctx, email, password); err != nil {
			return a.report("Signup failed", err)
		}
	}
	if sess.Email == "" {
		sess.Email = email
	}
	if sess.DisplayName == "" {
		sess.DisplayName = name
	}
	return a.start(ctx, sess)
}

// start adopts sess, dropping anything left from a previous user.
func (a *App) start(ctx context.Context, sess *models.Session) error {
	sess.Authenticated = true

	a.mu.Lock()
	a.clearLocked()
	a.session = sess
	a.mu.Unlock()

	a.forget(selectionKeys()...)
	a.persistSession(sess)
	a.nav.Reset(ViewDashboard)

	a.logger.Info("signed in", "user_id", sess.UserID, "email", sess.Email)
	a.notify(LevelSuccess, "Signed in", fmt.Sprintf("Welcome, %s", displayName(sess)))
	return a.ShowWithoutHistory(ctx, ViewDashboard)
}

func displayName(s *models.Session) string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Email
}

// Logout ends the session. The backend call is best-effort; local state is always cleared.
func (a *App) Logout(ctx context.Context) error {
	if err := a.backend.Logout(ctx); err != nil {
		a.logger.Warn("logout request failed", "error", err)
	}

	a.mu.Lock()
	a.clearLocked()
	a.mu.Unlock()

	a.purge()
	a.logger.Info("signed out")
	return a.ShowWithoutHistory(ctx, ViewAuth)
}

// ChangePassword validates locally, then asks the backend to replace the password.
//
// A backend complaint about the current password comes back as a field error on current_password.
func (a *App) ChangePassword(ctx context.Context, current, next, confirm string) error {
	if err := shared.ValidatePasswordChange(current, next, confirm); err != nil {
		return err
	}
	userID, err := a.userID()
	if err != nil {
		return a.report("Change password", err)
	}

	if err := a.backend.ChangePassword(ctx, userID, current, next); err != nil {
		var rejected *services.RejectedError
		if errors.As(err, &rejected) && strings.Contains(strings.ToLower(rejected.Message), "incorrect") {
			v := shared.NewValidationError()
			v.Add("current_password", "Current password is incorrect")
			return v
		}
		return a.report("Change password", err)
	}

	a.notify(LevelSuccess, "Password changed", "Your password was updated.")
	a.nav.Reset(ViewDashboard)
	return a.ShowWithoutHistory(ctx, ViewDashboard)
}

// SelectPrawn makes p the current prawn and opens the image source view.
func (a *App) SelectPrawn(ctx context.Context, p models.Prawn) error {
	if _, err := a.userID(); err != nil {
		return a.report("Select prawn", err)
	}

	a.mu.Lock()
	changed := a.selected == nil || a.selected.ID != p.ID
	a.selected = &p
	if changed {
		a.image = nil
		a.prediction = nil
		a.predictFailed = false
	}
	a.mu.Unlock()

	a.persistJSON(models.KeySelectedPrawn, p)
	if changed {
		a.forget(imageKeys()...)
	}
	a.logger.Debug("prawn selected", "prawn_id", p.ID, "name", p.Name)
	return a.Show(ctx, ViewImageSelection)
}

// SelectPrawnByID selects one of the user's prawns by ID.
func (a *App) SelectPrawnByID(ctx context.Context, id int64) error {
	prawns, err := a.prawns(ctx)
	if err != nil {
		return a.report("Select prawn", err)
	}
	for _, p := range prawns {
		if p.ID == id {
			return a.SelectPrawn(ctx, p)
		}
	}
	return fmt.Errorf("%w: prawn %d not found", shared.ErrInvalidArgument, id)
}

// refreshSelected reloads the selected prawn so a rename or transfer shows up.
func (a *App) refreshSelected(ctx context.Context, gen uint64) error {
	a.mu.Lock()
	selected := clonePtr(a.selected)
	a.mu.Unlock()
	if selected == nil || !a.begin(gen) {
		return nil
	}

	prawns, err := a.prawns(ctx)
	if err != nil {
		a.commit(gen, nil)
		return a.report("Load prawn", err)
	}

	for _, p := range prawns {
		if p.ID != selected.ID {
			continue
		}
		if a.commit(gen, func() {
			a.data.prawns = prawns
			a.selected = &p
		}) {
			a.persistJSON(models.KeySelectedPrawn, p)
		}
		return nil
	}

	a.logger.Warn("selected prawn no longer exists", "prawn_id", selected.ID)
	a.commit(gen, func() { a.data.prawns = prawns })
	return nil
}
