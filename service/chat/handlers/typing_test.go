package handlers

import (
	"testing"

	"roomify/service/chat"
	"roomify/tools/errs"
)

func TestTypingRelayedToPeersOnly(t *testing.T) {
	fs := newFakeStore()
	s := newTestServer(fs)

	alice := connect(s, "conn-a", "alice")
	bob := connect(s, "conn-b", "bob")
	s.Rooms().Join(alice, "d1")
	s.Rooms().Join(bob, "d1")

	if err := dispatch(t, s, alice, chat.EvTyping, chat.TypingPayload{
		ConversationID: "d1",
		Name:           "Alice",
	}); err != nil {
		t.Fatalf("typing: %v", err)
	}

	bobEv := drainEvents(t, bob)
	ut := bobEv[chat.EvUserTyping]
	if len(ut) != 1 {
		t.Fatalf("bob got %d userTyping frames, want 1", len(ut))
	}
	var p chat.TypingEventPayload
	if err := ut[0].Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// keyed by connection id so receivers can drop repeats
	if p.ID != alice.ConnID || p.Name != "Alice" || p.ConversationID != "d1" {
		t.Fatalf("userTyping payload = %+v", p)
	}

	// the originator never hears its own echo
	if len(drainEvents(t, alice)[chat.EvUserTyping]) != 0 {
		t.Fatal("originator received its own typing event")
	}
}

func TestStopTypingRelayed(t *testing.T) {
	fs := newFakeStore()
	s := newTestServer(fs)

	alice := connect(s, "conn-a", "alice")
	bob := connect(s, "conn-b", "bob")
	s.Rooms().Join(alice, "d1")
	s.Rooms().Join(bob, "d1")

	if err := dispatch(t, s, alice, chat.EvStopTyping, chat.TypingPayload{
		ConversationID: "d1",
		Name:           "Alice",
	}); err != nil {
		t.Fatalf("stopTyping: %v", err)
	}
	if len(drainEvents(t, bob)[chat.EvUserStoppedTyping]) != 1 {
		t.Fatal("bob got no userStoppedTyping")
	}
}

func TestTypingRequiresConversation(t *testing.T) {
	fs := newFakeStore()
	s := newTestServer(fs)
	alice := connect(s, "conn-a", "alice")

	err := dispatch(t, s, alice, chat.EvTyping, chat.TypingPayload{Name: "Alice"})
	wantCode(t, err, errs.ArgsError)
}
