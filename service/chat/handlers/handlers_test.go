package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"roomify/module/chat/model"
	"roomify/service/chat"
	"roomify/service/storage"
	"roomify/tools/errs"
)

func newTestServer(fs *fakeStore) *chat.Server {
	s := chat.NewServer(chat.ServerOptions{
		JwtSecret:     []byte("test-secret"),
		BroadcastRoom: "general",
		Store:         fs,
		Dedup:         storage.NewMemDeduper(time.Minute),
		FanWorkers:    1,
	})
	RegisterAll(s)
	return s
}

// connect registers a session directly with the presence registry; the
// websocket handshake is not part of handler behavior.
func connect(s *chat.Server, connID, userID string) *chat.Client {
	c := chat.NewClient(connID, userID, nil)
	s.ConnMgr().Register(c)
	return c
}

func dispatch(t *testing.T, s *chat.Server, c *chat.Client, event string, payload any) error {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return s.Disp().Dispatch(&chat.Context{S: s}, &chat.Frame{Event: event, Data: data}, c)
}

// drainEvents collects everything queued for the session, grouped by event.
// Fan-out runs on worker goroutines, so it waits for a quiet period.
func drainEvents(t *testing.T, c *chat.Client) map[string][]*chat.Frame {
	t.Helper()
	out := make(map[string][]*chat.Frame)
	for {
		select {
		case raw := <-c.Send:
			f, err := chat.ParseFrame(raw)
			if err != nil {
				t.Fatalf("bad outbound frame: %v", err)
			}
			out[f.Event] = append(out[f.Event], f)
		case <-time.After(200 * time.Millisecond):
			return out
		}
	}
}

func wantCode(t *testing.T, err error, code int) {
	t.Helper()
	ce := errs.Code(err)
	if ce == nil {
		t.Fatalf("error %v carries no code, want %d", err, code)
	}
	if ce.Code != code {
		t.Fatalf("error code = %d (%v), want %d", ce.Code, err, code)
	}
}

func seedDirect(fs *fakeStore) *model.Conversation {
	fs.addUser(&model.User{UserID: "alice", Name: "Alice"})
	fs.addUser(&model.User{UserID: "bob", Name: "Bob"})
	conv := &model.Conversation{
		ConversationID: "d1",
		Participants:   []string{"alice", "bob"},
		LastActivity:   time.Now(),
		CreateTime:     time.Now(),
	}
	fs.addConversation(conv)
	return conv
}

func TestSendToDirectConversation(t *testing.T) {
	fs := newFakeStore()
	seedDirect(fs)
	s := newTestServer(fs)

	alice := connect(s, "conn-a", "alice")
	s.Rooms().Join(alice, "d1")
	bob := connect(s, "conn-b", "bob") // online, not viewing d1

	err := dispatch(t, s, alice, chat.EvSendMessage, chat.SendMessagePayload{
		ConversationID: "d1",
		Content:        "hello",
		TempID:         "tmp-1",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	aliceEv := drainEvents(t, alice)
	nm := aliceEv[chat.EvNewMessage]
	if len(nm) != 1 {
		t.Fatalf("sender got %d newMessage frames, want 1", len(nm))
	}
	var view model.MessageView
	if err := nm[0].Decode(&view); err != nil {
		t.Fatalf("decode newMessage: %v", err)
	}
	if view.TempID != "tmp-1" {
		t.Fatalf("tempId = %q, want echo of tmp-1", view.TempID)
	}
	if view.Content != "hello" || view.Sender.ID != "alice" || view.Sender.Name != "Alice" {
		t.Fatalf("populated view = %+v", view)
	}
	// bob is online, so the message is acknowledged as delivered
	if view.Status != model.StatusDelivered {
		t.Fatalf("status = %q, want delivered", view.Status)
	}
	if len(aliceEv[chat.EvConversationUpdated]) != 1 {
		t.Fatal("sender got no conversation_updated")
	}

	bobEv := drainEvents(t, bob)
	if len(bobEv[chat.EvNewMessage]) != 0 {
		t.Fatal("bob is not in the room but got newMessage")
	}
	if len(bobEv[chat.EvInAppNotification]) != 1 {
		t.Fatal("bob is online elsewhere but got no inAppNotification")
	}
	var notif chat.InAppNotificationPayload
	if err := bobEv[chat.EvInAppNotification][0].Decode(&notif); err != nil {
		t.Fatalf("decode notification: %v", err)
	}
	if notif.ConversationID != "d1" || notif.Sender.ID != "alice" {
		t.Fatalf("notification = %+v", notif)
	}
	if len(bobEv[chat.EvConversationUpdated]) != 1 {
		t.Fatal("bob got no conversation_updated")
	}

	if got := fs.unread("d1", "bob"); got != 1 {
		t.Fatalf("bob unread = %d, want 1", got)
	}
	if got := fs.unread("d1", "alice"); got != 0 {
		t.Fatalf("sender unread = %d, want 0", got)
	}
	if fs.lastMessageID("d1") != view.ID {
		t.Fatalf("last message pointer = %q, want %q", fs.lastMessageID("d1"), view.ID)
	}
}

func TestSendPeerOffline(t *testing.T) {
	fs := newFakeStore()
	seedDirect(fs)
	s := newTestServer(fs)

	alice := connect(s, "conn-a", "alice")
	s.Rooms().Join(alice, "d1")

	if err := dispatch(t, s, alice, chat.EvSendMessage, chat.SendMessagePayload{
		ConversationID: "d1",
		Content:        "anyone there",
		TempID:         "tmp-1",
	}); err != nil {
		t.Fatalf("send: %v", err)
	}

	aliceEv := drainEvents(t, alice)
	nm := aliceEv[chat.EvNewMessage]
	if len(nm) != 1 {
		t.Fatalf("sender got %d newMessage frames, want 1", len(nm))
	}
	var view model.MessageView
	if err := nm[0].Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Status != model.StatusSent {
		t.Fatalf("status with peer offline = %q, want sent", view.Status)
	}
	// counter still bumps; the notification waits for bob's next session
	if got := fs.unread("d1", "bob"); got != 1 {
		t.Fatalf("bob unread = %d, want 1", got)
	}
}

func TestSendPeerViewingRoomGetsNoNotification(t *testing.T) {
	fs := newFakeStore()
	seedDirect(fs)
	s := newTestServer(fs)

	alice := connect(s, "conn-a", "alice")
	bob := connect(s, "conn-b", "bob")
	s.Rooms().Join(alice, "d1")
	s.Rooms().Join(bob, "d1")

	if err := dispatch(t, s, alice, chat.EvSendMessage, chat.SendMessagePayload{
		ConversationID: "d1",
		Content:        "hi",
		TempID:         "tmp-1",
	}); err != nil {
		t.Fatalf("send: %v", err)
	}

	bobEv := drainEvents(t, bob)
	if len(bobEv[chat.EvNewMessage]) != 1 {
		t.Fatal("bob is in the room but got no newMessage")
	}
	if len(bobEv[chat.EvInAppNotification]) != 0 {
		t.Fatal("bob is viewing the room but still got inAppNotification")
	}
}

func TestSendRejectsNonParticipant(t *testing.T) {
	fs := newFakeStore()
	seedDirect(fs)
	fs.addUser(&model.User{UserID: "eve", Name: "Eve"})
	s := newTestServer(fs)

	eve := connect(s, "conn-e", "eve")

	err := dispatch(t, s, eve, chat.EvSendMessage, chat.SendMessagePayload{
		ConversationID: "d1",
		Content:        "let me in",
		TempID:         "tmp-1",
	})
	wantCode(t, err, errs.NotParticipantError)

	eveEv := drainEvents(t, eve)
	me := eveEv[chat.EvMessageError]
	if len(me) != 1 {
		t.Fatalf("eve got %d messageError frames, want 1", len(me))
	}
	var p chat.MessageErrorPayload
	if err := me[0].Decode(&p); err != nil {
		t.Fatalf("decode messageError: %v", err)
	}
	if p.TempID != "tmp-1" {
		t.Fatalf("messageError tempId = %q, want tmp-1", p.TempID)
	}
	if fs.messageCount() != 0 {
		t.Fatal("rejected send persisted a message")
	}
}

func TestSendUnknownConversation(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(&model.User{UserID: "alice", Name: "Alice"})
	s := newTestServer(fs)

	alice := connect(s, "conn-a", "alice")
	err := dispatch(t, s, alice, chat.EvSendMessage, chat.SendMessagePayload{
		ConversationID: "ghost",
		Content:        "hi",
		TempID:         "tmp-1",
	})
	wantCode(t, err, errs.ConversationNotFoundError)

	if len(drainEvents(t, alice)[chat.EvMessageError]) != 1 {
		t.Fatal("sender got no messageError for unknown conversation")
	}
}

func TestSendDuplicateTempIDDropped(t *testing.T) {
	fs := newFakeStore()
	seedDirect(fs)
	s := newTestServer(fs)

	alice := connect(s, "conn-a", "alice")
	s.Rooms().Join(alice, "d1")

	p := chat.SendMessagePayload{ConversationID: "d1", Content: "once", TempID: "tmp-1"}
	if err := dispatch(t, s, alice, chat.EvSendMessage, p); err != nil {
		t.Fatalf("first send: %v", err)
	}
	// resend after a client timeout carries the same tempId
	if err := dispatch(t, s, alice, chat.EvSendMessage, p); err != nil {
		t.Fatalf("duplicate send: %v", err)
	}

	if got := fs.messageCount(); got != 1 {
		t.Fatalf("stored messages = %d, want 1", got)
	}
	if got := fs.unread("d1", "bob"); got != 1 {
		t.Fatalf("bob unread after duplicate = %d, want 1", got)
	}
	if got := len(drainEvents(t, alice)[chat.EvNewMessage]); got != 1 {
		t.Fatalf("sender got %d newMessage frames, want 1", got)
	}
}

func TestSendRetryAfterPersistFailure(t *testing.T) {
	fs := newFakeStore()
	seedDirect(fs)
	fs.insertFailures = 1
	s := newTestServer(fs)

	alice := connect(s, "conn-a", "alice")
	s.Rooms().Join(alice, "d1")

	p := chat.SendMessagePayload{ConversationID: "d1", Content: "hello", TempID: "tmp-1"}
	if err := dispatch(t, s, alice, chat.EvSendMessage, p); err == nil {
		t.Fatal("send with failing persist succeeded")
	}
	if len(drainEvents(t, alice)[chat.EvMessageError]) != 1 {
		t.Fatal("sender got no messageError for failed persist")
	}

	// the failed persist must not burn the tempId: the retry goes through
	if err := dispatch(t, s, alice, chat.EvSendMessage, p); err != nil {
		t.Fatalf("retry after persist failure: %v", err)
	}
	if got := fs.messageCount(); got != 1 {
		t.Fatalf("stored messages after retry = %d, want 1", got)
	}
	nm := drainEvents(t, alice)[chat.EvNewMessage]
	if len(nm) != 1 {
		t.Fatalf("sender got %d newMessage frames after retry, want 1", len(nm))
	}
	var view model.MessageView
	if err := nm[0].Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.TempID != "tmp-1" {
		t.Fatalf("retry tempId = %q, want tmp-1", view.TempID)
	}
}

func TestSendToBroadcastConversation(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(&model.User{UserID: "alice", Name: "Alice"})
	fs.addUser(&model.User{UserID: "bob", Name: "Bob"})
	fs.addConversation(&model.Conversation{
		ConversationID: "general",
		IsBroadcast:    true,
		CreateTime:     time.Now(),
	})
	s := newTestServer(fs)

	alice := connect(s, "conn-a", "alice")
	bob := connect(s, "conn-b", "bob")
	s.Rooms().Join(alice, "general")
	s.Rooms().Join(bob, "general")

	if err := dispatch(t, s, alice, chat.EvSendMessage, chat.SendMessagePayload{
		ConversationID: "general",
		Content:        "hello all",
		TempID:         "tmp-1",
	}); err != nil {
		t.Fatalf("send: %v", err)
	}

	bobEv := drainEvents(t, bob)
	if len(bobEv[chat.EvNewMessage]) != 1 {
		t.Fatal("bob got no newMessage on the broadcast conversation")
	}
	// broadcast keeps no per-participant state
	if len(bobEv[chat.EvInAppNotification]) != 0 {
		t.Fatal("broadcast send produced an inAppNotification")
	}
	if got := fs.unread("general", "bob"); got != 0 {
		t.Fatalf("broadcast unread = %d, want 0", got)
	}
	var view model.MessageView
	if err := bobEv[chat.EvNewMessage][0].Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Status != model.StatusSent {
		t.Fatalf("broadcast status = %q, want sent", view.Status)
	}
}

func TestSendRejectsBadPayload(t *testing.T) {
	fs := newFakeStore()
	seedDirect(fs)
	s := newTestServer(fs)
	alice := connect(s, "conn-a", "alice")

	err := dispatch(t, s, alice, chat.EvSendMessage, chat.SendMessagePayload{
		ConversationID: "d1",
		Content:        "x",
		Type:           "video",
		TempID:         "tmp-1",
	})
	wantCode(t, err, errs.ArgsError)

	err = dispatch(t, s, alice, chat.EvSendMessage, chat.SendMessagePayload{
		ConversationID: "d1",
	})
	wantCode(t, err, errs.ArgsError)
}

func TestSendReplyPopulated(t *testing.T) {
	fs := newFakeStore()
	seedDirect(fs)
	fs.addMessage(&model.Message{
		MessageID:      "m0",
		ConversationID: "d1",
		SenderID:       "bob",
		Content:        "original",
		Type:           model.TypeText,
		Status:         model.StatusRead,
		CreateTime:     time.Now().Add(-time.Minute),
	})
	s := newTestServer(fs)

	alice := connect(s, "conn-a", "alice")
	s.Rooms().Join(alice, "d1")

	if err := dispatch(t, s, alice, chat.EvSendMessage, chat.SendMessagePayload{
		ConversationID: "d1",
		Content:        "replying",
		TempID:         "tmp-1",
		ReplyTo:        "m0",
	}); err != nil {
		t.Fatalf("send: %v", err)
	}

	nm := drainEvents(t, alice)[chat.EvNewMessage]
	if len(nm) != 1 {
		t.Fatalf("sender got %d newMessage frames, want 1", len(nm))
	}
	var view model.MessageView
	if err := nm[0].Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.ReplyTo == nil {
		t.Fatal("replyTo not populated")
	}
	if view.ReplyTo.ID != "m0" || view.ReplyTo.Sender.Name != "Bob" {
		t.Fatalf("replyTo view = %+v", view.ReplyTo)
	}
}
