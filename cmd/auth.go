package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// AuthLogin signs in and persists the session for later commands.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}

	email, err := r.flagOrPrompt(cmd, "email", "Email")
	if err != nil {
		return err
	}
	password, err := r.flagOrPrompt(cmd, "password", "Password")
	if err != nil {
		return err
	}

	r.logger.Info("signing in", "email", email)
	if err := r.app.Login(ctx, email, password); err != nil {
		return err
	}

	sess := r.app.Session()
	return r.writePlain("✓ Signed in as %s (%s)\n", sess.DisplayName, sess.Email)
}

// AuthSignup creates an account and signs in to it.
func (r *Runner) AuthSignup(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}

	name, err := r.flagOrPrompt(cmd, "name", "Name")
	if err != nil {
		return err
	}
	email, err := r.flagOrPrompt(cmd, "email", "Email")
	if err != nil {
		return err
	}
	password, err := r.flagOrPrompt(cmd, "password", "Password")
	if err != nil {
		return err
	}

	if err := r.app.Signup(ctx, name, email, password); err != nil {
		return err
	}

	sess := r.app.Session()
	return r.writePlain("✓ Account created, signed in as %s (%s)\n", sess.DisplayName, sess.Email)
}

// AuthLogout ends the session. Local state is cleared even when the backend cannot be reached.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}
	if err := r.app.Restore(ctx); err != nil {
		return err
	}
	if r.app.Session() == nil {
		return r.writePlain("Not signed in\n")
	}

	if err := r.app.Logout(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Signed out\n")
}

// AuthStatus shows the restored session, checking it with the backend.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}
	if err := r.app.Restore(ctx); err != nil {
		return err
	}

	sess := r.app.Session()
	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"authenticated": sess != nil,
			"session":       sess,
			"selected":      r.app.Selected(),
			"view":          r.app.CurrentView(),
		}, cmd.Bool("pretty"))
	}

	if sess == nil {
		return r.writePlain("✗ Not signed in\n")
	}

	r.writePlainHeader("Session")
	r.writePlain("User:     %s (#%d)\n", sess.DisplayName, sess.UserID)
	r.writePlain("Email:    %s\n", sess.Email)
	if p := r.app.Selected(); p != nil {
		r.writePlain("Selected: %s (#%d, %s)\n", p.Name, p.ID, p.LocationLabel())
	}
	r.writePlain("View:     %s\n", r.app.CurrentView().Title())
	return nil
}

// AuthPassword changes the account password.
func (r *Runner) AuthPassword(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.session(ctx); err != nil {
		return err
	}

	current, err := r.flagOrPrompt(cmd, "current", "Current password")
	if err != nil {
		return err
	}
	next, err := r.flagOrPrompt(cmd, "new", "New password")
	if err != nil {
		return err
	}
	confirm, err := r.flagOrPrompt(cmd, "confirm", "Confirm new password")
	if err != nil {
		return err
	}

	if err := r.app.ChangePassword(ctx, current, next, confirm); err != nil {
		return fmt.Errorf("password not changed: %w", err)
	}
	return r.writePlain("✓ Password changed\n")
}
