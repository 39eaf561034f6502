package handlers

import (
	"context"

	"roomify/logger"
	"roomify/service/chat"
	"roomify/tools/errs"
)

// Edit and delete are sender-only. The store call carries the sender filter,
// so the authorization check and the write are one operation; a rejected
// caller gets an explicit error event distinguishing not-found from
// not-authorized, and nothing is broadcast.

type EditHandler struct{}

func (EditHandler) Event() string { return chat.EvEditMessage }

func (EditHandler) Handle(ctx *chat.Context, f *chat.Frame, c *chat.Client) error {
	s := ctx.S

	var p chat.EditMessagePayload
	if err := f.Decode(&p); err != nil {
		return errs.ErrArgs.WrapMsg("editMessage payload", "err", err)
	}
	if p.MessageID == "" || p.NewContent == "" {
		return errs.ErrArgs.WrapMsg("editMessage requires messageId and newContent")
	}

	bg := context.Background()

	msg, err := s.Store().GetMessage(bg, p.MessageID)
	if err == chat.ErrNotFound {
		return errs.ErrMessageNotFound.WrapMsg("edit", "messageId", p.MessageID)
	}
	if err != nil {
		return errs.WrapMsg(err, "load message")
	}

	matched, err := s.Store().UpdateMessageContent(bg, p.MessageID, c.UserID, p.NewContent)
	if err != nil {
		return errs.WrapMsg(err, "persist edit")
	}
	if !matched {
		// no match and no document: the message was deleted between the
		// lookup and the filtered write
		if _, gerr := s.Store().GetMessage(bg, p.MessageID); gerr == chat.ErrNotFound {
			return errs.ErrMessageNotFound.WrapMsg("edit", "messageId", p.MessageID)
		}
		return errs.ErrNotSender.WrapMsg("edit", "messageId", p.MessageID)
	}

	msg.Content = p.NewContent
	msg.Edited = true
	view, err := s.PopulateMessage(bg, msg)
	if err != nil {
		return errs.WrapMsg(err, "populate message")
	}
	s.BroadcastRoom(msg.ConversationID, nil, chat.EvMessageEdited, view)
	return nil
}

type DeleteHandler struct{}

func (DeleteHandler) Event() string { return chat.EvDeleteMessage }

func (DeleteHandler) Handle(ctx *chat.Context, f *chat.Frame, c *chat.Client) error {
	s := ctx.S

	var p chat.DeleteMessagePayload
	if err := f.Decode(&p); err != nil {
		return errs.ErrArgs.WrapMsg("deleteMessage payload", "err", err)
	}
	if p.MessageID == "" {
		return errs.ErrArgs.WrapMsg("deleteMessage requires messageId")
	}

	bg := context.Background()

	msg, err := s.Store().GetMessage(bg, p.MessageID)
	if err == chat.ErrNotFound {
		return errs.ErrMessageNotFound.WrapMsg("delete", "messageId", p.MessageID)
	}
	if err != nil {
		return errs.WrapMsg(err, "load message")
	}

	deleted, err := s.Store().RemoveMessage(bg, p.MessageID, c.UserID)
	if err != nil {
		return errs.WrapMsg(err, "persist delete")
	}
	if !deleted {
		if _, gerr := s.Store().GetMessage(bg, p.MessageID); gerr == chat.ErrNotFound {
			return errs.ErrMessageNotFound.WrapMsg("delete", "messageId", p.MessageID)
		}
		return errs.ErrNotSender.WrapMsg("delete", "messageId", p.MessageID)
	}

	s.BroadcastRoom(msg.ConversationID, nil, chat.EvMessageDeleted, chat.MessageDeletedPayload{
		MessageID:      msg.MessageID,
		ConversationID: msg.ConversationID,
	})

	// unread counters are deliberately untouched; only the displayed
	// last-message pointer is recomputed when this delete removed it
	recomputeLastMessage(bg, s, msg.ConversationID, msg.MessageID)
	return nil
}

func recomputeLastMessage(bg context.Context, s *chat.Server, conversationID, deletedID string) {
	conv, err := s.Store().GetConversation(bg, conversationID)
	if err != nil || conv.LastMessageID != deletedID {
		return
	}
	latest, err := s.Store().LatestMessage(bg, conversationID)
	if err != nil {
		logger.Warnf("[delete] last-message recompute failed conv=%s err=%v", conversationID, err)
		return
	}
	if latest != nil {
		err = s.Store().SetLastMessage(bg, conversationID, latest.MessageID, latest.CreateTime)
	} else {
		err = s.Store().ClearLastMessage(bg, conversationID)
	}
	if err != nil {
		logger.Warnf("[delete] last-message update failed conv=%s err=%v", conversationID, err)
		return
	}
	if err := s.PushConversationUpdate(bg, conversationID); err != nil {
		logger.Warnf("[delete] conversation push failed conv=%s err=%v", conversationID, err)
	}
}
