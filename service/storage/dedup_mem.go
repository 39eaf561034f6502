package storage

import (
	"context"
	"sync"
	"time"

	"roomify/tools/safe"
)

// MemDeduper is a single-process SendDeduper used when Redis is not
// configured, and by tests.
type MemDeduper struct {
	mu  sync.Mutex
	m   map[string]int64 // key -> expireUnix
	ttl time.Duration
}

func NewMemDeduper(ttl time.Duration) *MemDeduper {
	if ttl <= 0 {
		ttl = dedupTTL
	}
	mi := &MemDeduper{m: make(map[string]int64), ttl: ttl}
	safe.SafeGo(func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for range t.C {
			now := time.Now().Unix()
			mi.mu.Lock()
			for k, exp := range mi.m {
				if exp <= now {
					delete(mi.m, k)
				}
			}
			mi.mu.Unlock()
		}
	})
	return mi
}

func (mi *MemDeduper) SeenOnce(_ context.Context, senderID, tempID string) (bool, error) {
	if senderID == "" || tempID == "" {
		return false, nil
	}
	key := dedupKey(senderID, tempID)
	now := time.Now()
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if old, ok := mi.m[key]; ok && old > now.Unix() {
		return true, nil
	}
	mi.m[key] = now.Add(mi.ttl).Unix()
	return false, nil
}

func (mi *MemDeduper) Release(_ context.Context, senderID, tempID string) error {
	if senderID == "" || tempID == "" {
		return nil
	}
	mi.mu.Lock()
	defer mi.mu.Unlock()
	delete(mi.m, dedupKey(senderID, tempID))
	return nil
}
