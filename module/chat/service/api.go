package service

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roomify/logger"
	midsec "roomify/middleware/security"
	"roomify/module/chat/model"
	"roomify/service/chat"
)

// Server is the REST boundary consumed by clients next to the websocket:
// conversation lifecycle and message history. Everything here authenticates
// with the same bearer credential as the handshake.
type Server struct {
	Rt *chat.Server // realtime layer, for populate + fan-out on delete

	conversations model.Conversation
	messages      model.Message
}

func NewServer(rt *chat.Server) *Server { return &Server{Rt: rt} }

func (s *Server) Register(r *gin.Engine, jwtSecret []byte) {
	v1 := r.Group("/api/v1")
	v1.GET("", func(c *gin.Context) {
		c.String(http.StatusOK, "Welcome to Roomify Chat API")
	})

	auth := v1.Group("", midsec.Middleware(jwtSecret))
	auth.POST("/conversations", s.CreateOrGetConversation)
	auth.GET("/conversations", s.ListConversations)
	auth.DELETE("/conversations/:id", s.DeleteConversation)
	auth.GET("/messages/:conversationId", s.GetMessages)
}

// CreateOrGetConversation starts or returns the two-party conversation with
// the given user. Idempotent: the same pair always lands on one document.
func (s *Server) CreateOrGetConversation(c *gin.Context) {
	currentUserID := c.GetString(midsec.CtxUserIDKey)

	var body struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "User ID is required."})
		return
	}
	if body.UserID == currentUserID {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Cannot start a conversation with yourself."})
		return
	}

	ctx := c.Request.Context()
	conv, err := s.conversations.GetOrCreateDirect(ctx, currentUserID, body.UserID)
	if err != nil {
		logger.Errorf("[api] get-or-create conversation: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server Error"})
		return
	}
	view, err := s.Rt.PopulateConversation(ctx, conv)
	if err != nil {
		logger.Errorf("[api] populate conversation: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server Error"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListConversations returns the caller's conversations, most recently active
// first, populated for the list view.
func (s *Server) ListConversations(c *gin.Context) {
	currentUserID := c.GetString(midsec.CtxUserIDKey)
	ctx := c.Request.Context()

	convs, err := s.conversations.ListFor(ctx, currentUserID)
	if err != nil {
		logger.Errorf("[api] list conversations: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server Error"})
		return
	}
	out := make([]*model.ConversationView, 0, len(convs))
	for _, conv := range convs {
		view, err := s.Rt.PopulateConversation(ctx, conv)
		if err != nil {
			logger.Errorf("[api] populate conversation %s: %v", conv.ConversationID, err)
			continue
		}
		out = append(out, view)
	}
	c.JSON(http.StatusOK, out)
}

// DeleteConversation removes the conversation and its messages, then fans
// out conversation_deleted so every participant's client state converges.
func (s *Server) DeleteConversation(c *gin.Context) {
	currentUserID := c.GetString(midsec.CtxUserIDKey)
	conversationID := c.Param("id")
	ctx := c.Request.Context()

	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Conversation not found"})
		return
	}
	if conv.IsBroadcast || !conv.HasParticipant(currentUserID) {
		c.JSON(http.StatusForbidden, gin.H{"message": "Not a participant"})
		return
	}

	if err := s.messages.RemoveByConversation(ctx, conversationID); err != nil {
		logger.Errorf("[api] cascade messages: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server Error"})
		return
	}
	if err := s.conversations.Delete(ctx, conversationID); err != nil {
		logger.Errorf("[api] delete conversation: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server Error"})
		return
	}

	for _, p := range conv.Participants {
		s.Rt.PushToUser(p, chat.EvConversationDeleted, chat.ConversationDeletedPayload{
			ConversationID: conversationID,
		})
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted"})
}

// GetMessages returns the conversation history in creation order, populated.
func (s *Server) GetMessages(c *gin.Context) {
	currentUserID := c.GetString(midsec.CtxUserIDKey)
	conversationID := c.Param("conversationId")
	ctx := c.Request.Context()

	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Conversation not found"})
		return
	}
	if !conv.HasParticipant(currentUserID) {
		c.JSON(http.StatusForbidden, gin.H{"message": "Not a participant"})
		return
	}

	msgs, err := s.messages.History(ctx, conversationID)
	if err != nil {
		logger.Errorf("[api] history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server Error"})
		return
	}
	out := make([]*model.MessageView, 0, len(msgs))
	for _, msg := range msgs {
		view, err := s.Rt.PopulateMessage(ctx, msg)
		if err != nil {
			logger.Errorf("[api] populate message %s: %v", msg.MessageID, err)
			continue
		}
		out = append(out, view)
	}
	c.JSON(http.StatusOK, out)
}
