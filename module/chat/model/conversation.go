package model

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roomify/service/mgo"
	"roomify/tools/ids"
)

// Conversation is either a two-party record (participants holds exactly two
// user ids) or the single reserved broadcast conversation (is_broadcast,
// participants empty, membership implicit).
//
// Unread holds the per-participant counters. Entries are created lazily by
// the first $inc; the counter for a participant is only ever reset by
// ResetUnread (mark-as-read path). A sender's own messages never touch the
// sender's entry; that exclusion is the caller's contract, enforced in the
// message pipeline.
type Conversation struct {
	ConversationID string           `bson:"conversation_id" json:"_id"`
	IsBroadcast    bool             `bson:"is_broadcast" json:"isBroadcast"`
	Participants   []string         `bson:"participants" json:"participants"`
	LastMessageID  string           `bson:"last_message_id,omitempty" json:"lastMessageId,omitempty"`
	Unread         map[string]int64 `bson:"unread,omitempty" json:"unread,omitempty"`
	LastActivity   time.Time        `bson:"last_activity" json:"lastActivity"`
	CreateTime     time.Time        `bson:"create_time" json:"createdAt"`
}

func (*Conversation) TableName() string { return "conversation" }

func (c *Conversation) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(c.TableName())
}

// HasParticipant reports membership. The broadcast conversation has
// unbounded implicit participants.
func (c *Conversation) HasParticipant(userID string) bool {
	if c.IsBroadcast {
		return true
	}
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// GetOrCreateDirect returns the two-party conversation between a and b,
// creating it on first contact. The participant pair is stored sorted so the
// upsert filter is an exact array match and re-requests land on the same
// document regardless of argument order.
func (c *Conversation) GetOrCreateDirect(ctx context.Context, a, b string) (*Conversation, error) {
	pair := []string{a, b}
	sort.Strings(pair)

	now := time.Now()
	filter := bson.M{"is_broadcast": false, "participants": pair}
	update := bson.M{"$setOnInsert": bson.M{
		"conversation_id": ids.GenerateString(),
		"is_broadcast":    false,
		"participants":    pair,
		"last_activity":   now,
		"create_time":     now,
	}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var out Conversation
	if err := c.Collection().FindOneAndUpdate(ctx, filter, update, opts).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EnsureBroadcast creates the reserved broadcast conversation if absent.
func (c *Conversation) EnsureBroadcast(ctx context.Context, conversationID string) error {
	now := time.Now()
	_, err := c.Collection().UpdateOne(ctx,
		bson.M{"conversation_id": conversationID},
		bson.M{"$setOnInsert": bson.M{
			"conversation_id": conversationID,
			"is_broadcast":    true,
			"participants":    []string{},
			"last_activity":   now,
			"create_time":     now,
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (c *Conversation) Get(ctx context.Context, conversationID string) (*Conversation, error) {
	var out Conversation
	err := c.Collection().FindOne(ctx, bson.M{"conversation_id": conversationID}).Decode(&out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// IncUnread bumps one participant's counter by one. Single-document $inc so
// concurrent sends never lose an update.
func (c *Conversation) IncUnread(ctx context.Context, conversationID, userID string) error {
	_, err := c.Collection().UpdateOne(ctx,
		bson.M{"conversation_id": conversationID},
		bson.M{"$inc": bson.M{"unread." + userID: 1}},
	)
	return err
}

// ResetUnread zeroes one participant's counter.
func (c *Conversation) ResetUnread(ctx context.Context, conversationID, userID string) error {
	_, err := c.Collection().UpdateOne(ctx,
		bson.M{"conversation_id": conversationID},
		bson.M{"$set": bson.M{"unread." + userID: 0}},
	)
	return err
}

// SetLastMessage moves the denormalized last-message pointer and the
// activity timestamp that drives list ordering.
func (c *Conversation) SetLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error {
	_, err := c.Collection().UpdateOne(ctx,
		bson.M{"conversation_id": conversationID},
		bson.M{"$set": bson.M{"last_message_id": messageID, "last_activity": at}},
	)
	return err
}

// ClearLastMessage drops the pointer when the conversation has no surviving
// messages.
func (c *Conversation) ClearLastMessage(ctx context.Context, conversationID string) error {
	_, err := c.Collection().UpdateOne(ctx,
		bson.M{"conversation_id": conversationID},
		bson.M{"$unset": bson.M{"last_message_id": ""}},
	)
	return err
}

// ListFor returns the caller's conversations, most recently active first.
func (c *Conversation) ListFor(ctx context.Context, userID string) ([]*Conversation, error) {
	cur, err := c.Collection().Find(ctx,
		bson.M{"is_broadcast": false, "participants": userID},
		options.Find().SetSort(bson.D{{Key: "last_activity", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()
	var out []*Conversation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Conversation) Delete(ctx context.Context, conversationID string) error {
	_, err := c.Collection().DeleteOne(ctx, bson.M{"conversation_id": conversationID})
	return err
}
