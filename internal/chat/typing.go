package chat

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultTypingQuiet is how long local typing may stay flagged without new
// input before a stopped signal is forced.
const DefaultTypingQuiet = 2 * time.Second

// LocalTyping debounces the local participant's typing state. It emits
// exactly one started signal on the not-typing to typing edge, a stopped
// signal when the input empties, and a stopped signal after a quiet period
// so the remote side never sees a permanently typing participant.
type LocalTyping struct {
	mu     sync.Mutex
	typing bool
	quiet  time.Duration
	timer  *time.Timer
	send   func(isTyping bool)
}

// NewLocalTyping creates a signal that reports transitions through send.
// A non-positive quiet duration falls back to DefaultTypingQuiet.
func NewLocalTyping(quiet time.Duration, send func(isTyping bool)) *LocalTyping {
	if quiet <= 0 {
		quiet = DefaultTypingQuiet
	}
	return &LocalTyping{quiet: quiet, send: send}
}

// InputChanged recomputes the typing flag from the current input text and
// emits a signal only on genuine transitions.
func (t *LocalTyping) InputChanged(text string) {
	isTyping := strings.TrimSpace(text) != ""

	t.mu.Lock()
	switch {
	case isTyping && !t.typing:
		t.typing = true
		t.resetTimerLocked()
		t.mu.Unlock()
		t.send(true)
	case !isTyping && t.typing:
		t.typing = false
		t.stopTimerLocked()
		t.mu.Unlock()
		t.send(false)
	case isTyping:
		t.resetTimerLocked()
		t.mu.Unlock()
	default:
		t.mu.Unlock()
	}
}

// Stop cancels the quiet timer and, if still flagged typing, emits a final
// stopped signal. Called when the input is submitted or the host shuts down.
func (t *LocalTyping) Stop() {
	t.mu.Lock()
	t.stopTimerLocked()
	wasTyping := t.typing
	t.typing = false
	t.mu.Unlock()

	if wasTyping {
		t.send(false)
	}
}

func (t *LocalTyping) resetTimerLocked() {
	t.stopTimerLocked()
	t.timer = time.AfterFunc(t.quiet, t.quietElapsed)
}

func (t *LocalTyping) stopTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *LocalTyping) quietElapsed() {
	t.mu.Lock()
	if !t.typing {
		t.mu.Unlock()
		return
	}
	t.typing = false
	t.timer = nil
	t.mu.Unlock()

	t.send(false)
}

// RemoteTyping tracks which other participants are currently typing.
type RemoteTyping struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewRemoteTyping creates an empty membership set.
func NewRemoteTyping() *RemoteTyping {
	return &RemoteTyping{ids: make(map[string]struct{})}
}

// Set adds or removes a participant from the typing set.
func (r *RemoteTyping) Set(id string, isTyping bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if isTyping {
		r.ids[id] = struct{}{}
		return
	}
	delete(r.ids, id)
}

// Remove drops a participant, used when they leave the session.
func (r *RemoteTyping) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ids, id)
}

// Active returns the currently typing participants in stable order.
func (r *RemoteTyping) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Any reports whether anyone is typing.
func (r *RemoteTyping) Any() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids) > 0
}
