package model

import "time"

// Transport views: the populated shapes pushed over the websocket and
// returned by the REST boundary. Field names follow the client's wire
// contract (mongoose-style _id, camelCase).

type UserRef struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

func NewUserRef(u *User) UserRef {
	if u == nil {
		return UserRef{}
	}
	return UserRef{ID: u.UserID, Name: u.Name, Avatar: u.Avatar}
}

// MessageView is a message with sender/reply display fields populated.
// TempID is transport-only: echoed back unchanged on the confirming
// newMessage so the client can replace its provisional entry, never stored.
type MessageView struct {
	ID             string       `json:"_id"`
	ConversationID string       `json:"conversationId"`
	Sender         UserRef      `json:"sender"`
	Content        string       `json:"content"`
	Type           string       `json:"type"`
	Status         string       `json:"status"`
	ReplyTo        *MessageView `json:"replyTo,omitempty"`
	Edited         bool         `json:"edited"`
	CreatedAt      time.Time    `json:"createdAt"`
	TempID         string       `json:"tempId,omitempty"`
}

func NewMessageView(msg *Message, sender *User, reply *Message, replySender *User) *MessageView {
	if msg == nil {
		return nil
	}
	v := &MessageView{
		ID:             msg.MessageID,
		ConversationID: msg.ConversationID,
		Sender:         NewUserRef(sender),
		Content:        msg.Content,
		Type:           msg.Type,
		Status:         msg.Status,
		Edited:         msg.Edited,
		CreatedAt:      msg.CreateTime,
	}
	if v.Sender.ID == "" {
		v.Sender.ID = msg.SenderID
	}
	if reply != nil {
		v.ReplyTo = NewMessageView(reply, replySender, nil, nil)
	}
	return v
}

// ConversationView is the fully populated conversation object pushed to each
// participant's own connection (conversation_updated) and listed over REST.
type ConversationView struct {
	ID           string           `json:"_id"`
	IsBroadcast  bool             `json:"isBroadcast"`
	Participants []UserRef        `json:"participants"`
	LastMessage  *MessageView     `json:"lastMessage,omitempty"`
	Unread       map[string]int64 `json:"unread,omitempty"`
	UpdatedAt    time.Time        `json:"updatedAt"`
	CreatedAt    time.Time        `json:"createdAt"`
}

func NewConversationView(conv *Conversation, participants []*User, last *MessageView) *ConversationView {
	if conv == nil {
		return nil
	}
	refs := make([]UserRef, 0, len(participants))
	for _, p := range participants {
		refs = append(refs, NewUserRef(p))
	}
	return &ConversationView{
		ID:           conv.ConversationID,
		IsBroadcast:  conv.IsBroadcast,
		Participants: refs,
		LastMessage:  last,
		Unread:       conv.Unread,
		UpdatedAt:    conv.LastActivity,
		CreatedAt:    conv.CreateTime,
	}
}
