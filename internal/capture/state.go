package capture

import "fmt"

// State is a capture controller state.
type State int

const (
	Placeholder State = iota // no stream
	Loading                  // a source is being acquired
	LiveLocal                // local camera active
	LiveRemote               // networked camera active
	Captured                 // still image awaiting confirmation
)

func (s State) String() string {
	switch s {
	case Placeholder:
		return "placeholder"
	case Loading:
		return "loading"
	case LiveLocal:
		return "live-local"
	case LiveRemote:
		return "live-remote"
	case Captured:
		return "captured"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Live reports whether a camera feed is active.
func (s State) Live() bool {
	return s == LiveLocal || s == LiveRemote
}

// Event is an input to the state machine.
type Event int

const (
	EventAcquire        Event = iota // start acquiring a source
	EventLocalReady                  // local camera opened
	EventRemoteReady                 // remote stream opened
	EventAcquireFailed               // the source could not be opened
	EventSnapshot                    // a frame was captured
	EventSnapshotFailed              // capturing a frame failed
	EventStreamFailed                // the remote stream dropped, fall back to local
	EventConfirm                     // the captured image was accepted
	EventRetry                       // discard the captured image and go live again
	EventReset                       // tear everything down
)

func (e Event) String() string {
	names := [...]string{"acquire", "local-ready", "remote-ready", "acquire-failed", "snapshot",
		"snapshot-failed", "stream-failed", "confirm", "retry", "reset"}
	if int(e) < 0 || int(e) >= len(names) {
		return fmt.Sprintf("event(%d)", int(e))
	}
	return names[e]
}

type transition struct {
	from State
	on   Event
}

var transitions = map[transition]State{
	{Placeholder, EventAcquire}:       Loading,
	{LiveLocal, EventAcquire}:         Loading,
	{LiveRemote, EventAcquire}:        Loading,
	{Captured, EventAcquire}:          Loading,
	{Loading, EventAcquire}:           Loading,
	{Loading, EventLocalReady}:        LiveLocal,
	{Loading, EventRemoteReady}:       LiveRemote,
	{Loading, EventAcquireFailed}:     Placeholder,
	{LiveLocal, EventSnapshot}:        Captured,
	{LiveRemote, EventSnapshot}:       Captured,
	{LiveLocal, EventSnapshotFailed}:  LiveLocal,
	{LiveRemote, EventSnapshotFailed}: LiveRemote,
	{Loading, EventStreamFailed}:      Loading,
	{LiveRemote, EventStreamFailed}:   Loading,
	{Captured, EventConfirm}:          Placeholder,
	{Captured, EventRetry}:            Loading,
}

// Next returns the state reached from s on e. ok is false when e is not valid in s.
//
// [EventReset] is valid in every state.
func Next(s State, e Event) (next State, ok bool) {
	if e == EventReset {
		return Placeholder, true
	}
	next, ok = transitions[transition{s, e}]
	if !ok {
		return s, false
	}
	return next, true
}
