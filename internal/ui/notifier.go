package ui

import "github.com/desertthunder/hatchly/internal/app"

// Notifier is an [app.Notifier] that queues notices for the TUI.
//
// Notify never blocks: when the queue is full the notice is dropped.
type Notifier struct {
	ch chan app.Notice
}

func NewNotifier(size int) *Notifier {
	if size <= 0 {
		size = 16
	}
	return &Notifier{ch: make(chan app.Notice, size)}
}

func (n *Notifier) Notify(notice app.Notice) {
	select {
	case n.ch <- notice:
	default:
	}
}
