package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// feedbackModeStore flags users who have started /feedback so their
// next message is stored as feedback instead of being enhanced. The
// flag expires on its own if the user never follows up.
type feedbackModeStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func newFeedbackModeStore(rdb *redis.Client, ttl time.Duration) *feedbackModeStore {
	return &feedbackModeStore{redis: rdb, ttl: ttl}
}

func (f *feedbackModeStore) key(userID int64) string {
	return fmt.Sprintf("enhancebot:feedback_mode:%d", userID)
}

func (f *feedbackModeStore) Enter(ctx context.Context, userID int64) error {
	return f.redis.Set(ctx, f.key(userID), "1", f.ttl).Err()
}

func (f *feedbackModeStore) Active(ctx context.Context, userID int64) (bool, error) {
	_, err := f.redis.Get(ctx, f.key(userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (f *feedbackModeStore) Clear(ctx context.Context, userID int64) error {
	return f.redis.Del(ctx, f.key(userID)).Err()
}
