package app

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Navigator is the in-app view stack.
//
// Back is debounced by a token bucket that admits one back per cooldown.
type Navigator struct {
	mu      sync.Mutex
	history []View
	limiter *rate.Limiter
	now     func() time.Time
}

// NewNavigator creates an empty stack whose Back accepts one call per cooldown.
func NewNavigator(cooldown time.Duration, now func() time.Time) *Navigator {
	if now == nil {
		now = time.Now
	}
	limit := rate.Inf
	if cooldown > 0 {
		limit = rate.Every(cooldown)
	}
	return &Navigator{limiter: rate.NewLimiter(limit, 1), now: now}
}

// Push adds v unless it is already on top.
func (n *Navigator) Push(v View) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.history) > 0 && n.history[len(n.history)-1] == v {
		return
	}
	n.history = append(n.history, v)
}

// ReplaceTop swaps the top entry for v, pushing when the stack is empty.
func (n *Navigator) ReplaceTop(v View) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.history) == 0 {
		n.history = []View{v}
		return
	}
	n.history[len(n.history)-1] = v
}

// Reset leaves root as the only entry.
func (n *Navigator) Reset(root View) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.history = []View{root}
}

// Clear empties the stack.
func (n *Navigator) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.history = nil
}

// Back pops the stack and returns the view to render.
//
// ok is false when the call falls inside the cooldown or the stack is empty. With a single
// entry left the stack becomes [root] and root is returned instead of popping further.
func (n *Navigator) Back(root View) (View, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.history) == 0 {
		return "", false
	}
	if !n.limiter.AllowN(n.now(), 1) {
		return "", false
	}

	if len(n.history) == 1 {
		n.history[0] = root
		return root, true
	}

	n.history = n.history[:len(n.history)-1]
	return n.history[len(n.history)-1], true
}

// Top returns the current entry.
func (n *Navigator) Top() (View, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.history) == 0 {
		return "", false
	}
	return n.history[len(n.history)-1], true
}

// History returns a copy of the stack, bottom first.
func (n *Navigator) History() []View {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]View(nil), n.history...)
}

func (n *Navigator) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.history)
}
