package app

import (
	"time"

	"github.com/charmbracelet/log"
)

// Level is the severity of a [Notice].
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a transient user-visible message.
type Notice struct {
	Level   Level
	Title   string
	Message string
	At      time.Time
}

// Notifier delivers notices to the user.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier writes notices to a logger, used by the CLI.
type LogNotifier struct {
	Logger *log.Logger
}

func (l LogNotifier) Notify(n Notice) {
	switch n.Level {
	case LevelError:
		l.Logger.Error(n.Title, "message", n.Message)
	case LevelWarning:
		l.Logger.Warn(n.Title, "message", n.Message)
	default:
		l.Logger.Info(n.Title, "message", n.Message)
	}
}
