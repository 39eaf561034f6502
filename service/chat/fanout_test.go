package chat

import (
	"testing"
	"time"
)

func TestBroadcastSameKeyPreservesOrder(t *testing.T) {
	f := NewFanout(4, 64)
	c := NewClient("conn-1", "alice", nil)

	const n = 50
	for i := 0; i < n; i++ {
		f.Broadcast("room-1", []*Client{c}, []byte{byte(i)})
	}

	for i := 0; i < n; i++ {
		select {
		case got := <-c.Send:
			if got[0] != byte(i) {
				t.Fatalf("frame %d arrived carrying %d, order inverted", i, got[0])
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("frame %d never arrived", i)
		}
	}
}

func TestBroadcastSkipsEmpty(t *testing.T) {
	f := NewFanout(2, 8)
	c := NewClient("conn-1", "alice", nil)

	f.Broadcast("room-1", nil, []byte("x"))
	f.Broadcast("room-1", []*Client{c}, nil)

	select {
	case payload := <-c.Send:
		t.Fatalf("unexpected frame %q", payload)
	case <-time.After(100 * time.Millisecond):
	}
}
