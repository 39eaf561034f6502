package clientstate

import (
	"sort"
	"sync"

	"roomify/module/chat/model"
)

// ConversationList mirrors the sidebar: conversations ordered by last
// activity, each carrying the caller's own unread count. conversation_updated
// pushes replace entries wholesale and re-sort the list.
type ConversationList struct {
	mu     sync.Mutex
	selfID string
	byID   map[string]*model.ConversationView
}

func NewConversationList(selfID string) *ConversationList {
	return &ConversationList{
		selfID: selfID,
		byID:   make(map[string]*model.ConversationView),
	}
}

func (cl *ConversationList) Load(convs []*model.ConversationView) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.byID = make(map[string]*model.ConversationView, len(convs))
	for _, c := range convs {
		cl.byID[c.ID] = c
	}
}

// Upsert applies a conversation_updated push.
func (cl *ConversationList) Upsert(conv *model.ConversationView) {
	if conv == nil {
		return
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.byID[conv.ID] = conv
}

// Remove applies conversation_deleted.
func (cl *ConversationList) Remove(conversationID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	delete(cl.byID, conversationID)
}

// UnreadFor returns the caller's own counter for one conversation.
func (cl *ConversationList) UnreadFor(conversationID string) int64 {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	c, ok := cl.byID[conversationID]
	if !ok || c.Unread == nil {
		return 0
	}
	return c.Unread[cl.selfID]
}

// Ordered returns the list most recently active first.
func (cl *ConversationList) Ordered() []*model.ConversationView {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	out := make([]*model.ConversationView, 0, len(cl.byID))
	for _, c := range cl.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}
