package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"

	redis2 "roomify/service/storage/redis"
)

// Send idempotency: a client may resend a message carrying the same tempId
// after a timeout. The first accept claims (senderID, tempID) for dedupTTL;
// a duplicate resend is acked without a second persist or fan-out.

const dedupTTL = 5 * time.Minute

// SendDeduper claims send attempts exactly once per (sender, tempID).
// Release drops a claim whose send did not persist, so a retry under the
// same tempId is accepted.
type SendDeduper interface {
	SeenOnce(ctx context.Context, senderID, tempID string) (seen bool, err error)
	Release(ctx context.Context, senderID, tempID string) error
}

func dedupKey(senderID, tempID string) string {
	return "chat:dedup:" + senderID + ":" + tempID
}

type RedisDeduper struct{}

func NewRedisDeduper() *RedisDeduper { return &RedisDeduper{} }

// SeenOnce returns true if (senderID, tempID) was already claimed within the
// TTL window. The claim itself is atomic (SETNX).
func (d *RedisDeduper) SeenOnce(ctx context.Context, senderID, tempID string) (bool, error) {
	if senderID == "" || tempID == "" {
		// nothing to key on; treat as unseen so the send proceeds
		return false, nil
	}
	ok, err := redis2.GetRedis().SetNX(ctx, dedupKey(senderID, tempID), "1", dedupTTL).Result()
	if err != nil {
		return false, errors.Wrap(err, "dedup setnx")
	}
	return !ok, nil
}

func (d *RedisDeduper) Release(ctx context.Context, senderID, tempID string) error {
	if senderID == "" || tempID == "" {
		return nil
	}
	if err := redis2.GetRedis().Del(ctx, dedupKey(senderID, tempID)).Err(); err != nil {
		return errors.Wrap(err, "dedup del")
	}
	return nil
}
