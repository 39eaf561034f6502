package handlers

import (
	"context"
	"time"

	"roomify/logger"
	"roomify/module/chat/model"
	"roomify/service/chat"
	"roomify/tools/errs"
	"roomify/tools/ids"
)

// SendHandler is the message pipeline: persist, populate, fan out, bump
// unread counters, notify participants elsewhere in the app, push the
// updated conversation to each participant.
type SendHandler struct{}

func (SendHandler) Event() string { return chat.EvSendMessage }

func (SendHandler) Handle(ctx *chat.Context, f *chat.Frame, c *chat.Client) error {
	s := ctx.S

	var p chat.SendMessagePayload
	if err := f.Decode(&p); err != nil {
		return errs.ErrArgs.WrapMsg("sendMessage payload", "err", err)
	}
	if p.ConversationID == "" || p.Content == "" {
		return errs.ErrArgs.WrapMsg("sendMessage requires conversationId and content")
	}
	if p.Type == "" {
		p.Type = model.TypeText
	}
	if p.Type != model.TypeText && p.Type != model.TypeImage {
		return errs.ErrArgs.WrapMsg("unknown message type", "type", p.Type)
	}

	bg := context.Background()

	conv, err := s.Store().GetConversation(bg, p.ConversationID)
	if err == chat.ErrNotFound {
		sendFailed(s, c, p.TempID)
		return errs.ErrConversationNotFound.WrapMsg("send", "conversationId", p.ConversationID)
	}
	if err != nil {
		sendFailed(s, c, p.TempID)
		return errs.WrapMsg(err, "load conversation")
	}
	// the reserved broadcast conversation has no membership check
	if !conv.HasParticipant(c.UserID) {
		sendFailed(s, c, p.TempID)
		return errs.ErrNotParticipant.WrapMsg("send", "conversationId", p.ConversationID)
	}

	// duplicate resend of the same tempId: already persisted and fanned out,
	// swallow it
	if seen, derr := s.Dedup().SeenOnce(bg, c.UserID, p.TempID); derr != nil {
		logger.Warnf("[send] dedup check failed, proceeding: %v", derr)
	} else if seen {
		logger.Infof("[send] duplicate tempId dropped user=%s tempId=%s", c.UserID, p.TempID)
		return nil
	}

	msg := &model.Message{
		MessageID:      ids.GenerateString(),
		ConversationID: conv.ConversationID,
		SenderID:       c.UserID,
		Content:        p.Content,
		Type:           p.Type,
		Status:         model.StatusSent,
		ReplyTo:        p.ReplyTo,
		CreateTime:     time.Now(),
	}

	// persist and counter increments take the same per-conversation lock as
	// the read path's bulk update and reset, so an increment can never land
	// between those two steps and be wiped
	mu := s.ConvLock(conv.ConversationID)
	mu.Lock()

	// persistence failure aborts the whole operation: no partial fan-out
	if err := s.Store().InsertMessage(bg, msg); err != nil {
		mu.Unlock()
		// the claim must not survive a failed persist: the client retries
		// under the same tempId
		if rerr := s.Dedup().Release(bg, c.UserID, p.TempID); rerr != nil {
			logger.Warnf("[send] dedup release failed tempId=%s err=%v", p.TempID, rerr)
		}
		sendFailed(s, c, p.TempID)
		return errs.WrapMsg(err, "persist message")
	}

	if !conv.IsBroadcast {
		for _, participant := range conv.Participants {
			if participant == c.UserID {
				continue
			}
			// delivery acknowledgment: the two-party peer being online
			// advances sent -> delivered before the fan-out snapshot
			if _, online := s.ConnMgr().Lookup(participant); online {
				if err := s.Store().MarkDelivered(bg, msg.MessageID); err != nil {
					logger.Warnf("[send] mark delivered failed id=%s err=%v", msg.MessageID, err)
				} else {
					msg.Status = model.StatusDelivered
				}
			}
			// a sender's own messages never increment their own counter
			if err := s.Store().IncUnread(bg, conv.ConversationID, participant); err != nil {
				logger.Errorf("[send] unread inc failed conv=%s user=%s err=%v",
					conv.ConversationID, participant, err)
			}
		}
	}
	mu.Unlock()

	view, err := s.PopulateMessage(bg, msg)
	if err != nil {
		sendFailed(s, c, p.TempID)
		return errs.WrapMsg(err, "populate message")
	}
	// transport-only: echoed so the sender replaces its provisional entry
	view.TempID = p.TempID

	s.BroadcastRoom(conv.ConversationID, nil, chat.EvNewMessage, view)

	if !conv.IsBroadcast {
		for _, participant := range conv.Participants {
			if participant == c.UserID {
				continue
			}
			// connected but looking elsewhere in the app: out-of-band alert
			if peer, online := s.ConnMgr().Lookup(participant); online && !s.Rooms().Contains(peer, conv.ConversationID) {
				s.PushToUser(participant, chat.EvInAppNotification, chat.InAppNotificationPayload{
					ConversationID: conv.ConversationID,
					Sender:         view.Sender,
					Message:        view,
				})
			}
		}
	}

	if err := s.Store().SetLastMessage(bg, conv.ConversationID, msg.MessageID, msg.CreateTime); err != nil {
		logger.Errorf("[send] last-message update failed conv=%s err=%v", conv.ConversationID, err)
	}
	if err := s.PushConversationUpdate(bg, conv.ConversationID); err != nil {
		logger.Errorf("[send] conversation push failed conv=%s err=%v", conv.ConversationID, err)
	}
	return nil
}

// sendFailed reports a rejected send to the sender only.
func sendFailed(s *chat.Server, c *chat.Client, tempID string) {
	payload, err := chat.BuildFrame(chat.EvMessageError, chat.MessageErrorPayload{
		TempID: tempID,
		Error:  "Could not send message.",
	})
	if err != nil {
		return
	}
	c.Enqueue(payload)
}
