package clientstate

import (
	"sort"
	"sync"
)

// TypingRoster tracks who is typing in one conversation, keyed by the
// originator's connection id. Repeated start events are idempotent; stop for
// an absent id is a no-op. The server never relays an originator's own
// events back, so the roster only ever holds peers.
type TypingRoster struct {
	mu     sync.Mutex
	byConn map[string]string // connection id -> display name
}

func NewTypingRoster() *TypingRoster {
	return &TypingRoster{byConn: make(map[string]string)}
}

func (t *TypingRoster) Start(connID, name string) {
	if connID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byConn[connID] = name
}

func (t *TypingRoster) Stop(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byConn, connID)
}

// Active returns the display names currently typing, sorted for stable
// rendering.
func (t *TypingRoster) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.byConn))
	for _, name := range t.byConn {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
