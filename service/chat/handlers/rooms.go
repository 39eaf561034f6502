package handlers

import (
	"encoding/json"

	"roomify/service/chat"
)

// roomID accepts either {"conversationId": "..."} or a bare JSON string,
// which is what older clients emit for join/leave.
func roomID(f *chat.Frame) string {
	var p chat.RoomPayload
	if err := f.Decode(&p); err == nil && p.ConversationID != "" {
		return p.ConversationID
	}
	var s string
	if err := json.Unmarshal(f.Data, &s); err == nil {
		return s
	}
	return ""
}

type JoinHandler struct{}

func (JoinHandler) Event() string { return chat.EvJoinConversation }

func (JoinHandler) Handle(ctx *chat.Context, f *chat.Frame, c *chat.Client) error {
	if id := roomID(f); id != "" {
		ctx.S.Rooms().Join(c, id)
	}
	return nil
}

type LeaveHandler struct{}

func (LeaveHandler) Event() string { return chat.EvLeaveConversation }

func (LeaveHandler) Handle(ctx *chat.Context, f *chat.Frame, c *chat.Client) error {
	if id := roomID(f); id != "" {
		ctx.S.Rooms().Leave(c, id)
	}
	return nil
}
