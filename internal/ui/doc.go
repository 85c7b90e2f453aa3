// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI is a presentation layer over [app.App]: every key press becomes an App operation run as a
// [tea.Cmd], and every render reads a fresh [app.Snapshot]. The view stack, session and capture
// state all live in the App, so the TUI and the CLI commands share one state machine.
//
// Notices reach the TUI through a [Notifier] channel and capture transitions through
// [capture.Controller.Observe], both drained by commands that re-arm themselves the way progress
// updates are drained during a history export.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) with contextual help displayed
// via charmbracelet/bubbles/help. esc is the back button.
package ui
