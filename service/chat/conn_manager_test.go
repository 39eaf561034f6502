package chat

import (
	"reflect"
	"testing"
)

func TestRegisterDisplacesPreviousSession(t *testing.T) {
	m := NewConnManager()

	c1 := NewClient("conn-1", "alice", nil)
	c2 := NewClient("conn-2", "alice", nil)

	if displaced := m.Register(c1); displaced != nil {
		t.Fatalf("first register displaced %v, want nil", displaced)
	}
	if displaced := m.Register(c2); displaced != c1 {
		t.Fatalf("second register displaced %v, want c1", displaced)
	}
	if got, ok := m.Lookup("alice"); !ok || got != c2 {
		t.Fatalf("lookup after displace = %v ok=%v, want c2", got, ok)
	}
}

func TestRegisterSameSessionTwice(t *testing.T) {
	m := NewConnManager()
	c := NewClient("conn-1", "alice", nil)
	m.Register(c)
	if displaced := m.Register(c); displaced != nil {
		t.Fatalf("re-register of same session displaced %v, want nil", displaced)
	}
}

func TestUnregisterOnlyRemovesOwnSlot(t *testing.T) {
	m := NewConnManager()

	c1 := NewClient("conn-1", "alice", nil)
	c2 := NewClient("conn-2", "alice", nil)
	m.Register(c1)
	m.Register(c2)

	// the displaced session disconnecting later must not knock out c2
	if m.Unregister(c1) {
		t.Fatal("unregister of displaced session removed the slot")
	}
	if got, ok := m.Lookup("alice"); !ok || got != c2 {
		t.Fatalf("lookup = %v ok=%v, want c2 still registered", got, ok)
	}

	if !m.Unregister(c2) {
		t.Fatal("unregister of current session returned false")
	}
	if _, ok := m.Lookup("alice"); ok {
		t.Fatal("alice still registered after unregister")
	}
}

func TestUnregisterNilAndAnonymous(t *testing.T) {
	m := NewConnManager()
	if m.Unregister(nil) {
		t.Fatal("unregister(nil) returned true")
	}
	if m.Unregister(NewClient("conn-1", "", nil)) {
		t.Fatal("unregister of anonymous client returned true")
	}
}

func TestSnapshotSorted(t *testing.T) {
	m := NewConnManager()
	for _, u := range []string{"carol", "alice", "bob"} {
		m.Register(NewClient("conn-"+u, u, nil))
	}
	want := []string{"alice", "bob", "carol"}
	if got := m.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("snapshot = %v, want %v", got, want)
	}
	if got := len(m.All()); got != 3 {
		t.Fatalf("All() returned %d sessions, want 3", got)
	}
}
