package chat

import (
	"sort"
	"sync"
)

// ConnManager is the presence registry: identity -> active session, at most
// one entry per identity. A later handshake from the same identity displaces
// the previous session; Register returns it so the caller can close it.
// Multi-device presence is not distinguished, the API is kept to
// register/unregister/lookup/snapshot so a (identity, connID) keyed table
// can replace the slot without touching callers.
type ConnManager struct {
	mu     sync.RWMutex
	byUser map[string]*Client
}

func NewConnManager() *ConnManager {
	return &ConnManager{byUser: make(map[string]*Client)}
}

// Register inserts or overwrites the identity's slot.
func (m *ConnManager) Register(c *Client) (displaced *Client) {
	if c == nil || c.UserID == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.byUser[c.UserID]
	m.byUser[c.UserID] = c
	if prev == c {
		return nil
	}
	return prev
}

// Unregister removes the identity's slot, but only if it still holds this
// session: a displaced connection disconnecting later must not knock out its
// replacement.
func (m *ConnManager) Unregister(c *Client) bool {
	if c == nil || c.UserID == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.byUser[c.UserID]; ok && cur == c {
		delete(m.byUser, c.UserID)
		return true
	}
	return false
}

func (m *ConnManager) Lookup(userID string) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byUser[userID]
	return c, ok
}

// Snapshot returns the online identity roster, sorted for stable broadcasts.
func (m *ConnManager) Snapshot() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.byUser))
	for user := range m.byUser {
		out = append(out, user)
	}
	sort.Strings(out)
	return out
}

// All returns every active session.
func (m *ConnManager) All() []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Client, 0, len(m.byUser))
	for _, c := range m.byUser {
		out = append(out, c)
	}
	return out
}
