package chat

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"roomify/module/chat/model"
)

// ErrNotFound is returned by Store lookups when the referenced document does
// not exist, regardless of backend.
var ErrNotFound = errors.New("not found")

// Store is the slice of the document store the realtime layer touches.
// Handlers are written against it; tests substitute an in-memory fake.
type Store interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	GetUsers(ctx context.Context, userIDs []string) ([]*model.User, error)
	MarkOnline(ctx context.Context, userID string) error
	MarkOffline(ctx context.Context, userID string, lastSeen time.Time) error

	GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error)
	IncUnread(ctx context.Context, conversationID, userID string) error
	ResetUnread(ctx context.Context, conversationID, userID string) error
	SetLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error
	ClearLastMessage(ctx context.Context, conversationID string) error

	InsertMessage(ctx context.Context, msg *model.Message) error
	GetMessage(ctx context.Context, messageID string) (*model.Message, error)
	MarkDelivered(ctx context.Context, messageID string) error
	MarkReadBulk(ctx context.Context, conversationID, readerID string) (int64, error)
	UpdateMessageContent(ctx context.Context, messageID, senderID, content string) (bool, error)
	RemoveMessage(ctx context.Context, messageID, senderID string) (bool, error)
	LatestMessage(ctx context.Context, conversationID string) (*model.Message, error)
}

// MongoStore delegates to the document models.
type MongoStore struct {
	users         model.User
	conversations model.Conversation
	messages      model.Message
}

func NewMongoStore() *MongoStore { return &MongoStore{} }

func mapNotFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func (s *MongoStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.users.Get(ctx, userID)
	return u, mapNotFound(err)
}

func (s *MongoStore) GetUsers(ctx context.Context, userIDs []string) ([]*model.User, error) {
	return s.users.GetByIDs(ctx, userIDs)
}

func (s *MongoStore) MarkOnline(ctx context.Context, userID string) error {
	return s.users.MarkOnline(ctx, userID)
}

func (s *MongoStore) MarkOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	return s.users.MarkOffline(ctx, userID, lastSeen)
}

func (s *MongoStore) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	c, err := s.conversations.Get(ctx, conversationID)
	return c, mapNotFound(err)
}

func (s *MongoStore) IncUnread(ctx context.Context, conversationID, userID string) error {
	return s.conversations.IncUnread(ctx, conversationID, userID)
}

func (s *MongoStore) ResetUnread(ctx context.Context, conversationID, userID string) error {
	return s.conversations.ResetUnread(ctx, conversationID, userID)
}

func (s *MongoStore) SetLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error {
	return s.conversations.SetLastMessage(ctx, conversationID, messageID, at)
}

func (s *MongoStore) ClearLastMessage(ctx context.Context, conversationID string) error {
	return s.conversations.ClearLastMessage(ctx, conversationID)
}

func (s *MongoStore) InsertMessage(ctx context.Context, msg *model.Message) error {
	return s.messages.Insert(ctx, msg)
}

func (s *MongoStore) GetMessage(ctx context.Context, messageID string) (*model.Message, error) {
	m, err := s.messages.Get(ctx, messageID)
	return m, mapNotFound(err)
}

func (s *MongoStore) MarkDelivered(ctx context.Context, messageID string) error {
	return s.messages.MarkDelivered(ctx, messageID)
}

func (s *MongoStore) MarkReadBulk(ctx context.Context, conversationID, readerID string) (int64, error) {
	return s.messages.MarkReadBulk(ctx, conversationID, readerID)
}

func (s *MongoStore) UpdateMessageContent(ctx context.Context, messageID, senderID, content string) (bool, error) {
	return s.messages.UpdateContent(ctx, messageID, senderID, content)
}

func (s *MongoStore) RemoveMessage(ctx context.Context, messageID, senderID string) (bool, error) {
	return s.messages.Remove(ctx, messageID, senderID)
}

func (s *MongoStore) LatestMessage(ctx context.Context, conversationID string) (*model.Message, error) {
	return s.messages.Latest(ctx, conversationID)
}
