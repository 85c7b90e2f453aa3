package main

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/hatchly/internal/shared"
	"github.com/desertthunder/hatchly/internal/ui"
)

// TUI launches the interactive terminal UI.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if r.app != nil {
		return fmt.Errorf("%w: TUI must own the app notifier", shared.ErrServiceUnavailable)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	if path := r.config.Log.File; path != "" {
		fileLogger, err := shared.NewFileLogger(path)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Log.Level))
		r.SetLogger(fileLogger)
	} else {
		r.SetLogger(log.New(io.Discard))
	}

	notifier := ui.NewNotifier(0)
	r.notifier = notifier
	if err := r.connect(); err != nil {
		return err
	}

	model := ui.NewModel(ctx, r.app, notifier, r.exporter)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
