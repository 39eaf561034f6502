package clientstate

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"roomify/module/chat/model"
)

// MessageList is the client-side view of one conversation: an ordered list
// of messages where a locally authored send appears immediately as a
// provisional entry and is later replaced, in place, by the server-confirmed
// record echoing the same temporary identifier.
type MessageList struct {
	mu       sync.Mutex
	ordered  []*model.MessageView
	byID     map[string]int // confirmed id -> position
	byTempID map[string]int // pending tempId -> position
	failed   map[string]struct{}
}

func NewMessageList() *MessageList {
	return &MessageList{
		byID:     make(map[string]int),
		byTempID: make(map[string]int),
		failed:   make(map[string]struct{}),
	}
}

// Load seeds the list from fetched history, dropping prior state.
func (l *MessageList) Load(msgs []*model.MessageView) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ordered = l.ordered[:0]
	l.byID = make(map[string]int)
	l.byTempID = make(map[string]int)
	l.failed = make(map[string]struct{})
	for _, m := range msgs {
		l.byID[m.ID] = len(l.ordered)
		l.ordered = append(l.ordered, m)
	}
}

// SendLocal inserts the provisional message for an outgoing send and returns
// it; its TempID goes out with the send request. The provisional entry is
// never part of the store; it lives only until Apply confirms it or the
// embedder marks it failed.
func (l *MessageList) SendLocal(sender model.UserRef, content, msgType string, replyTo *model.MessageView) *model.MessageView {
	tempID := uuid.NewString()
	prov := &model.MessageView{
		ID:        tempID,
		TempID:    tempID,
		Sender:    sender,
		Content:   content,
		Type:      msgType,
		Status:    model.StatusSent,
		ReplyTo:   replyTo,
		CreatedAt: time.Now(),
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byTempID[tempID] = len(l.ordered)
	l.ordered = append(l.ordered, prov)
	return prov
}

// Apply reconciles an incoming newMessage. A matching provisional entry is
// replaced exactly once, keeping its list position; otherwise the message is
// appended, unless the same confirmed id was already delivered (duplicate
// fan-out is dropped).
func (l *MessageList) Apply(msg *model.MessageView) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if msg.TempID != "" {
		if pos, ok := l.byTempID[msg.TempID]; ok {
			l.ordered[pos] = msg
			delete(l.byTempID, msg.TempID)
			delete(l.failed, msg.TempID)
			l.byID[msg.ID] = pos
			return
		}
	}
	if _, ok := l.byID[msg.ID]; ok {
		return
	}
	l.byID[msg.ID] = len(l.ordered)
	l.ordered = append(l.ordered, msg)
}

// ApplyEdit swaps the stored message for the edited copy, in place.
func (l *MessageList) ApplyEdit(msg *model.MessageView) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if pos, ok := l.byID[msg.ID]; ok {
		msg.TempID = ""
		l.ordered[pos] = msg
	}
}

// ApplyDelete removes the message with the given confirmed id.
func (l *MessageList) ApplyDelete(messageID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.byID[messageID]
	if !ok {
		return
	}
	l.ordered = append(l.ordered[:pos], l.ordered[pos+1:]...)
	delete(l.byID, messageID)
	l.reindexLocked()
}

// ApplyRead handles messages_read: everything not authored by the reader
// advances to read. Transitions stay monotonic; an already-read message is
// untouched.
func (l *MessageList) ApplyRead(readerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.ordered {
		if m.Sender.ID == readerID {
			continue
		}
		if model.StatusAdvances(m.Status, model.StatusRead) {
			m.Status = model.StatusRead
		}
	}
}

// Fail marks an unconfirmed send as failed; the provisional entry stays
// visible so the embedder can surface retry.
func (l *MessageList) Fail(tempID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byTempID[tempID]; ok {
		l.failed[tempID] = struct{}{}
	}
}

// Retry clears the failed mark and hands back the provisional message so
// the embedder can resend it under the same tempId (the server dedups).
func (l *MessageList) Retry(tempID string) (*model.MessageView, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.byTempID[tempID]
	if !ok {
		return nil, false
	}
	delete(l.failed, tempID)
	return l.ordered[pos], true
}

// Failed reports whether the tempId is marked failed.
func (l *MessageList) Failed(tempID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.failed[tempID]
	return ok
}

// Messages returns a copy of the current ordering.
func (l *MessageList) Messages() []*model.MessageView {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*model.MessageView, len(l.ordered))
	copy(out, l.ordered)
	return out
}

func (l *MessageList) reindexLocked() {
	for i, m := range l.ordered {
		if m.TempID != "" {
			if _, pending := l.byTempID[m.TempID]; pending {
				l.byTempID[m.TempID] = i
			}
		}
		if _, confirmed := l.byID[m.ID]; confirmed || m.TempID == "" {
			l.byID[m.ID] = i
		}
	}
}
