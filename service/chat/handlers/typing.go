package handlers

import (
	"roomify/service/chat"
	"roomify/tools/errs"
)

// Typing signals are ephemeral: no persistence, no ordering guarantee, and
// the originator never hears its own echo. Receivers keep a set keyed by the
// originator connection id, so repeats are no-ops on their side. Silence
// timeout is the emitting client's job.

type TypingHandler struct{}

func (TypingHandler) Event() string { return chat.EvTyping }

func (TypingHandler) Handle(ctx *chat.Context, f *chat.Frame, c *chat.Client) error {
	return relayTyping(ctx.S, f, c, chat.EvUserTyping)
}

type StopTypingHandler struct{}

func (StopTypingHandler) Event() string { return chat.EvStopTyping }

func (StopTypingHandler) Handle(ctx *chat.Context, f *chat.Frame, c *chat.Client) error {
	return relayTyping(ctx.S, f, c, chat.EvUserStoppedTyping)
}

func relayTyping(s *chat.Server, f *chat.Frame, c *chat.Client, outEvent string) error {
	var p chat.TypingPayload
	if err := f.Decode(&p); err != nil {
		return errs.ErrArgs.WrapMsg("typing payload", "err", err)
	}
	if p.ConversationID == "" {
		return errs.ErrArgs.WrapMsg("typing requires conversationId")
	}
	s.BroadcastRoom(p.ConversationID, c, outEvent, chat.TypingEventPayload{
		ID:             c.ConnID,
		Name:           p.Name,
		ConversationID: p.ConversationID,
	})
	return nil
}
