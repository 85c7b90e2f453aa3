package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/hatchly/internal/app"
	"github.com/desertthunder/hatchly/internal/capture"
	"github.com/desertthunder/hatchly/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgActionDone MsgKind = iota
	MsgNotice
	MsgCaptureStatus
	MsgProgressUpdate
	MsgExportComplete
)

// actionDoneMsg is the constructor for [MsgActionDone]. err has already been reported by the App.
func actionDoneMsg(err error) Msg {
	return Msg{kind: MsgActionDone, data: err}
}

// noticeMsg is the constructor for [MsgNotice]
func noticeMsg(n app.Notice) Msg {
	return Msg{kind: MsgNotice, data: n}
}

// captureStatusMsg is the constructor for [MsgCaptureStatus]
func captureStatusMsg(s capture.Status) Msg {
	return Msg{kind: MsgCaptureStatus, data: s}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// exportCompleteMsg is the constructor for [MsgExportComplete]
func exportCompleteMsg(result *tasks.ExportResult, err error) Msg {
	return Msg{
		kind: MsgExportComplete,
		data: struct {
			result *tasks.ExportResult
			err    error
		}{result, err},
	}
}
