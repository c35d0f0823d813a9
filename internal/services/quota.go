package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// GenerationQuota caps AI generations per user in fixed one-hour windows.
type GenerationQuota struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewGenerationQuota(redisClient *redis.Client, perHour int) *GenerationQuota {
	return &GenerationQuota{redis: redisClient, limit: perHour, window: time.Hour, now: time.Now}
}

// Allow consumes one unit of the user's quota. A limit of zero or less
// disables the check. Redis failures fail open.
func (q *GenerationQuota) Allow(ctx context.Context, userID uuid.UUID) error {
	if q == nil || q.limit <= 0 {
		return nil
	}

	bucket := q.now().Unix() / int64(q.window.Seconds())
	key := fmt.Sprintf("quota:generations:%s:%d", userID, bucket)

	pipe := q.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, q.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil
	}

	if incr.Val() > int64(q.limit) {
		return &RateLimitError{Message: fmt.Sprintf("Generation limit of %d per hour reached. Please try again later.", q.limit)}
	}
	return nil
}
