package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roomify/service/mgo"
)

// User is the identity record as seen by the sync layer. Account CRUD lives
// in the profile service; this layer only reads display fields and owns the
// presence pair (online, last_seen).
type User struct {
	UserID   string    `bson:"user_id" json:"_id"`
	Name     string    `bson:"name" json:"name"`
	Avatar   string    `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Online   bool      `bson:"online" json:"online"`
	LastSeen time.Time `bson:"last_seen,omitempty" json:"lastSeen,omitempty"`
}

func (*User) TableName() string { return "user" }

func (u *User) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(u.TableName())
}

// MarkOnline flips the presence flag. Upsert keeps the sync layer working
// even if the profile service has not written the account document yet.
func (u *User) MarkOnline(ctx context.Context, userID string) error {
	_, err := u.Collection().UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"online": true}},
		options.Update().SetUpsert(true),
	)
	return err
}

// MarkOffline records the last-seen timestamp together with the flag.
func (u *User) MarkOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	_, err := u.Collection().UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"online": false, "last_seen": lastSeen}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (u *User) Get(ctx context.Context, userID string) (*User, error) {
	var out User
	err := u.Collection().FindOne(ctx, bson.M{"user_id": userID}).Decode(&out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetByIDs returns the users in no particular order; missing ids are skipped.
func (u *User) GetByIDs(ctx context.Context, userIDs []string) ([]*User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	cur, err := u.Collection().Find(ctx, bson.M{"user_id": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()
	var out []*User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
