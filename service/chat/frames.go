package chat

import (
	"encoding/json"
	"fmt"

	"roomify/module/chat/model"
)

// The wire protocol is JSON event frames, both directions:
//
//	{"event": "<name>", "data": {...}}

// Inbound events (client -> server).
const (
	EvJoinConversation  = "join_conversation"
	EvLeaveConversation = "leave_conversation"
	EvSendMessage       = "sendMessage"
	EvEditMessage       = "editMessage"
	EvDeleteMessage     = "deleteMessage"
	EvTyping            = "typing"
	EvStopTyping        = "stopTyping"
	EvMarkRead          = "markConversationAsRead"
)

// Outbound events (server -> client).
const (
	EvOnlineUsers         = "getOnlineUsers"
	EvNewMessage          = "newMessage"
	EvMessageEdited       = "messageEdited"
	EvMessageDeleted      = "messageDeleted"
	EvUserTyping          = "userTyping"
	EvUserStoppedTyping   = "userStoppedTyping"
	EvConversationUpdated = "conversation_updated"
	EvConversationDeleted = "conversation_deleted"
	EvMessagesRead        = "messages_read"
	EvInAppNotification   = "inAppNotification"
	EvMessageError        = "messageError"
	EvError               = "error"
)

type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("unmarshal frame failed: %w", err)
	}
	if f.Event == "" {
		return nil, fmt.Errorf("frame has no event")
	}
	return &f, nil
}

// BuildFrame encodes an outbound event. Marshal errors are programming
// errors (all payload types are JSON-safe), so they surface as error return
// for the few callers that care.
func BuildFrame(event string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: payload})
}

func (f *Frame) Decode(into any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("frame %q has no data", f.Event)
	}
	return json.Unmarshal(f.Data, into)
}

// ---- inbound payloads ----

type RoomPayload struct {
	ConversationID string `json:"conversationId"`
}

type SendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	Type           string `json:"type"`
	TempID         string `json:"tempId"`
	ReplyTo        string `json:"replyTo,omitempty"`
}

type EditMessagePayload struct {
	MessageID  string `json:"messageId"`
	NewContent string `json:"newContent"`
}

type DeleteMessagePayload struct {
	MessageID string `json:"messageId"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	Name           string `json:"name"`
}

// ---- outbound payloads ----

type TypingEventPayload struct {
	ID             string `json:"id"` // originator connection id
	Name           string `json:"name"`
	ConversationID string `json:"conversationId"`
}

type MessageDeletedPayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

type MessagesReadPayload struct {
	ConversationID string `json:"conversationId"`
	ReaderID       string `json:"readerId"`
}

type InAppNotificationPayload struct {
	ConversationID string             `json:"conversationId"`
	Sender         model.UserRef      `json:"sender"`
	Message        *model.MessageView `json:"message"`
}

type ConversationDeletedPayload struct {
	ConversationID string `json:"conversationId"`
}

type ErrorPayload struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type MessageErrorPayload struct {
	TempID string `json:"tempId,omitempty"`
	Error  string `json:"error"`
}
