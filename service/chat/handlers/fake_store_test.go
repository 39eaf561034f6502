package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"roomify/module/chat/model"
	"roomify/service/chat"
)

// fakeStore is an in-memory chat.Store with the same observable semantics as
// the document models: filtered writes report matched/deleted, counters are
// per-participant, and missing documents map to chat.ErrNotFound.
type fakeStore struct {
	mu     sync.Mutex
	users  map[string]*model.User
	convs  map[string]*model.Conversation
	msgs   map[string]*model.Message
	msgSeq []string // insertion order, for Latest

	insertFailures     int    // next N InsertMessage calls fail
	afterMarkReadBulk  func() // runs after the bulk update, before the caller's next step
	beforeMessageWrite func() // runs before a filtered edit/delete write
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[string]*model.User),
		convs: make(map[string]*model.Conversation),
		msgs:  make(map[string]*model.Message),
	}
}

func (f *fakeStore) addUser(u *model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.UserID] = u
}

func (f *fakeStore) addConversation(c *model.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convs[c.ConversationID] = c
}

func (f *fakeStore) addMessage(m *model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs[m.MessageID] = m
	f.msgSeq = append(f.msgSeq, m.MessageID)
}

func (f *fakeStore) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func (f *fakeStore) unread(conversationID, userID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.convs[conversationID]
	if c == nil || c.Unread == nil {
		return 0
	}
	return c.Unread[userID]
}

func (f *fakeStore) messageStatus(messageID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m := f.msgs[messageID]; m != nil {
		return m.Status
	}
	return ""
}

func (f *fakeStore) lastMessageID(conversationID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c := f.convs[conversationID]; c != nil {
		return c.LastMessageID
	}
	return ""
}

func copyUser(u *model.User) *model.User {
	cp := *u
	return &cp
}

func copyConv(c *model.Conversation) *model.Conversation {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	if c.Unread != nil {
		cp.Unread = make(map[string]int64, len(c.Unread))
		for k, v := range c.Unread {
			cp.Unread[k] = v
		}
	}
	return &cp
}

func copyMsg(m *model.Message) *model.Message {
	cp := *m
	return &cp
}

func (f *fakeStore) GetUser(_ context.Context, userID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, chat.ErrNotFound
	}
	return copyUser(u), nil
}

func (f *fakeStore) GetUsers(_ context.Context, userIDs []string) ([]*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.User
	for _, id := range userIDs {
		if u, ok := f.users[id]; ok {
			out = append(out, copyUser(u))
		}
	}
	return out, nil
}

func (f *fakeStore) MarkOnline(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.Online = true
	}
	return nil
}

func (f *fakeStore) MarkOffline(_ context.Context, userID string, lastSeen time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.Online = false
		u.LastSeen = lastSeen
	}
	return nil
}

func (f *fakeStore) GetConversation(_ context.Context, conversationID string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[conversationID]
	if !ok {
		return nil, chat.ErrNotFound
	}
	return copyConv(c), nil
}

func (f *fakeStore) IncUnread(_ context.Context, conversationID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.convs[conversationID]; ok {
		if c.Unread == nil {
			c.Unread = make(map[string]int64)
		}
		c.Unread[userID]++
	}
	return nil
}

func (f *fakeStore) ResetUnread(_ context.Context, conversationID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.convs[conversationID]; ok {
		if c.Unread == nil {
			c.Unread = make(map[string]int64)
		}
		c.Unread[userID] = 0
	}
	return nil
}

func (f *fakeStore) SetLastMessage(_ context.Context, conversationID, messageID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.convs[conversationID]; ok {
		c.LastMessageID = messageID
		c.LastActivity = at
	}
	return nil
}

func (f *fakeStore) ClearLastMessage(_ context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.convs[conversationID]; ok {
		c.LastMessageID = ""
	}
	return nil
}

// removeRaw drops a message out of band, bypassing the sender filter.
func (f *fakeStore) removeRaw(messageID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.msgs, messageID)
	for i, id := range f.msgSeq {
		if id == messageID {
			f.msgSeq = append(f.msgSeq[:i], f.msgSeq[i+1:]...)
			break
		}
	}
}

func (f *fakeStore) InsertMessage(_ context.Context, msg *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertFailures > 0 {
		f.insertFailures--
		return errors.New("insert failed")
	}
	f.msgs[msg.MessageID] = copyMsg(msg)
	f.msgSeq = append(f.msgSeq, msg.MessageID)
	return nil
}

func (f *fakeStore) GetMessage(_ context.Context, messageID string) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.msgs[messageID]
	if !ok {
		return nil, chat.ErrNotFound
	}
	return copyMsg(m), nil
}

func (f *fakeStore) MarkDelivered(_ context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.msgs[messageID]; ok && m.Status == model.StatusSent {
		m.Status = model.StatusDelivered
	}
	return nil
}

func (f *fakeStore) MarkReadBulk(_ context.Context, conversationID, readerID string) (int64, error) {
	f.mu.Lock()
	var n int64
	for _, m := range f.msgs {
		if m.ConversationID == conversationID && m.SenderID != readerID && m.Status != model.StatusRead {
			m.Status = model.StatusRead
			n++
		}
	}
	hook := f.afterMarkReadBulk
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return n, nil
}

func (f *fakeStore) UpdateMessageContent(_ context.Context, messageID, senderID, content string) (bool, error) {
	if f.beforeMessageWrite != nil {
		f.beforeMessageWrite()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.msgs[messageID]
	if !ok || m.SenderID != senderID {
		return false, nil
	}
	m.Content = content
	m.Edited = true
	return true, nil
}

func (f *fakeStore) RemoveMessage(_ context.Context, messageID, senderID string) (bool, error) {
	if f.beforeMessageWrite != nil {
		f.beforeMessageWrite()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.msgs[messageID]
	if !ok || m.SenderID != senderID {
		return false, nil
	}
	delete(f.msgs, messageID)
	for i, id := range f.msgSeq {
		if id == messageID {
			f.msgSeq = append(f.msgSeq[:i], f.msgSeq[i+1:]...)
			break
		}
	}
	return true, nil
}

func (f *fakeStore) LatestMessage(_ context.Context, conversationID string) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.msgSeq) - 1; i >= 0; i-- {
		if m := f.msgs[f.msgSeq[i]]; m != nil && m.ConversationID == conversationID {
			return copyMsg(m), nil
		}
	}
	return nil, nil
}
