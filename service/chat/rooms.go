package chat

import "sync"

// Rooms tracks per-connection conversation subscriptions plus the reverse
// index the fan-out path reads. Purely process-local; nothing here persists.
type Rooms struct {
	mu     sync.RWMutex
	byRoom map[string]map[*Client]struct{}
	byConn map[*Client]map[string]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		byRoom: make(map[string]map[*Client]struct{}),
		byConn: make(map[*Client]map[string]struct{}),
	}
}

// Join subscribes the connection to roomID. Idempotent.
func (r *Rooms) Join(c *Client, roomID string) {
	if c == nil || roomID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byRoom[roomID] == nil {
		r.byRoom[roomID] = make(map[*Client]struct{})
	}
	r.byRoom[roomID][c] = struct{}{}

	if r.byConn[c] == nil {
		r.byConn[c] = make(map[string]struct{})
	}
	r.byConn[c][roomID] = struct{}{}
}

// Leave unsubscribes. Idempotent; no-op if absent.
func (r *Rooms) Leave(c *Client, roomID string) {
	if c == nil || roomID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(c, roomID)
}

// LeaveAll drops every subscription of a disconnecting session.
func (r *Rooms) LeaveAll(c *Client) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for roomID := range r.byConn[c] {
		r.leaveLocked(c, roomID)
	}
	delete(r.byConn, c)
}

func (r *Rooms) leaveLocked(c *Client, roomID string) {
	if mm := r.byRoom[roomID]; mm != nil {
		delete(mm, c)
		if len(mm) == 0 {
			delete(r.byRoom, roomID)
		}
	}
	if mm := r.byConn[c]; mm != nil {
		delete(mm, roomID)
	}
}

// Contains reports whether the connection is currently subscribed. Used to
// suppress in-app notifications for a participant already viewing the room.
func (r *Rooms) Contains(c *Client, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byConn[c][roomID]
	return ok
}

// Members returns the connections subscribed to roomID, minus except (nil to
// include everyone).
func (r *Rooms) Members(roomID string, except *Client) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mm := r.byRoom[roomID]
	out := make([]*Client, 0, len(mm))
	for c := range mm {
		if c == except {
			continue
		}
		out = append(out, c)
	}
	return out
}
