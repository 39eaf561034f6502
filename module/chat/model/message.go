package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roomify/service/mgo"
)

const (
	TypeText  = "text"
	TypeImage = "image" // content is an opaque media-store reference URL

	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// statusRank orders delivery states; transitions only move up, never back.
var statusRank = map[string]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
}

// StatusAdvances reports whether moving from to next is a forward transition.
func StatusAdvances(from, next string) bool {
	return statusRank[next] > statusRank[from]
}

// Message belongs to exactly one conversation. CreateTime is immutable;
// Content/Edited change only through the sender's edit, Status only through
// the read-state path or delivery acknowledgment.
type Message struct {
	MessageID      string    `bson:"message_id" json:"_id"`
	ConversationID string    `bson:"conversation_id" json:"conversationId"`
	SenderID       string    `bson:"sender_id" json:"senderId"`
	Content        string    `bson:"content" json:"content"`
	Type           string    `bson:"type" json:"type"`
	Status         string    `bson:"status" json:"status"`
	ReplyTo        string    `bson:"reply_to,omitempty" json:"replyTo,omitempty"`
	Edited         bool      `bson:"edited" json:"edited"`
	CreateTime     time.Time `bson:"create_time" json:"createdAt"`
}

func (*Message) TableName() string { return "message" }

func (m *Message) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(m.TableName())
}

func (m *Message) Insert(ctx context.Context, msg *Message) error {
	_, err := m.Collection().InsertOne(ctx, msg)
	return err
}

func (m *Message) Get(ctx context.Context, messageID string) (*Message, error) {
	var out Message
	err := m.Collection().FindOne(ctx, bson.M{"message_id": messageID}).Decode(&out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns the conversation's messages in creation order.
func (m *Message) History(ctx context.Context, conversationID string) ([]*Message, error) {
	cur, err := m.Collection().Find(ctx,
		bson.M{"conversation_id": conversationID},
		options.Find().SetSort(bson.D{{Key: "create_time", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()
	var out []*Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkDelivered advances sent -> delivered. The status filter keeps the
// transition monotonic: a message already read is left alone.
func (m *Message) MarkDelivered(ctx context.Context, messageID string) error {
	_, err := m.Collection().UpdateOne(ctx,
		bson.M{"message_id": messageID, "status": StatusSent},
		bson.M{"$set": bson.M{"status": StatusDelivered}},
	)
	return err
}

// MarkReadBulk transitions every message in the conversation authored by
// someone other than reader, and not already read, to read. Returns the
// number of messages that actually changed (0 makes the caller's mark-read a
// no-op).
func (m *Message) MarkReadBulk(ctx context.Context, conversationID, readerID string) (int64, error) {
	res, err := m.Collection().UpdateMany(ctx,
		bson.M{
			"conversation_id": conversationID,
			"sender_id":       bson.M{"$ne": readerID},
			"status":          bson.M{"$ne": StatusRead},
		},
		bson.M{"$set": bson.M{"status": StatusRead}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// UpdateContent applies a sender's edit. The sender filter makes the
// authorization check and the write one atomic operation; matched=false with
// an existing message means the caller is not the sender.
func (m *Message) UpdateContent(ctx context.Context, messageID, senderID, content string) (matched bool, err error) {
	res, err := m.Collection().UpdateOne(ctx,
		bson.M{"message_id": messageID, "sender_id": senderID},
		bson.M{"$set": bson.M{"content": content, "edited": true}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// Remove deletes a message, sender-only by the same filtered-write rule.
func (m *Message) Remove(ctx context.Context, messageID, senderID string) (deleted bool, err error) {
	res, err := m.Collection().DeleteOne(ctx,
		bson.M{"message_id": messageID, "sender_id": senderID},
	)
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// Latest returns the newest message of the conversation, or nil if none
// survive. Used to recompute the last-message pointer after a delete.
func (m *Message) Latest(ctx context.Context, conversationID string) (*Message, error) {
	var out Message
	err := m.Collection().FindOne(ctx,
		bson.M{"conversation_id": conversationID},
		options.FindOne().SetSort(bson.D{{Key: "create_time", Value: -1}}),
	).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveByConversation cascades on conversation delete.
func (m *Message) RemoveByConversation(ctx context.Context, conversationID string) error {
	_, err := m.Collection().DeleteMany(ctx, bson.M{"conversation_id": conversationID})
	return err
}
