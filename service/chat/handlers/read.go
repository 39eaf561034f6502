package handlers

import (
	"context"

	"roomify/service/chat"
	"roomify/tools/errs"
)

// ReadHandler bulk-transitions the caller's unread messages to read, resets
// their counter and informs every participant. Idempotent: with nothing
// unread the store writes are no-ops and the pushes simply restate state.
type ReadHandler struct{}

func (ReadHandler) Event() string { return chat.EvMarkRead }

func (ReadHandler) Handle(ctx *chat.Context, f *chat.Frame, c *chat.Client) error {
	s := ctx.S

	id := roomID(f)
	if id == "" {
		return errs.ErrArgs.WrapMsg("markConversationAsRead requires conversationId")
	}

	bg := context.Background()

	conv, err := s.Store().GetConversation(bg, id)
	if err == chat.ErrNotFound {
		return errs.ErrConversationNotFound.WrapMsg("markRead", "conversationId", id)
	}
	if err != nil {
		return errs.WrapMsg(err, "load conversation")
	}
	if conv.IsBroadcast {
		// the broadcast channel keeps no per-participant read state
		return nil
	}
	if !conv.HasParticipant(c.UserID) {
		return errs.ErrNotParticipant.WrapMsg("markRead", "conversationId", id)
	}

	// serialize against concurrent sends into the same conversation so the
	// bulk transition and the counter reset observe the same message set
	mu := s.ConvLock(conv.ConversationID)
	mu.Lock()
	_, err = s.Store().MarkReadBulk(bg, conv.ConversationID, c.UserID)
	if err == nil {
		err = s.Store().ResetUnread(bg, conv.ConversationID, c.UserID)
	}
	mu.Unlock()
	if err != nil {
		return errs.WrapMsg(err, "mark read")
	}

	if err := s.PushConversationUpdate(bg, conv.ConversationID); err != nil {
		return errs.WrapMsg(err, "conversation push")
	}

	// live per-message tick updates for anyone with the chat open
	s.BroadcastRoom(conv.ConversationID, nil, chat.EvMessagesRead, chat.MessagesReadPayload{
		ConversationID: conv.ConversationID,
		ReaderID:       c.UserID,
	})
	return nil
}
