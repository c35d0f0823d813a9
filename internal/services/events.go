package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tenxcards-backend/internal/logger"
	"tenxcards-backend/internal/models"
)

// UserChannel is the Redis pub/sub channel the WebSocket hub forwards to a user.
func UserChannel(userID uuid.UUID) string {
	return "user_updates:" + userID.String()
}

type EventPublisher interface {
	Publish(ctx context.Context, userID uuid.UUID, eventType string, payload interface{})
}

type RedisEventPublisher struct {
	redis *redis.Client
	log   *logger.Logger
}

func NewRedisEventPublisher(redisClient *redis.Client, log *logger.Logger) *RedisEventPublisher {
	return &RedisEventPublisher{redis: redisClient, log: log}
}

// Publish is best effort: events only drive live UI updates.
func (p *RedisEventPublisher) Publish(ctx context.Context, userID uuid.UUID, eventType string, payload interface{}) {
	data, err := json.Marshal(models.WSMessage{Type: eventType, Payload: payload, SentAt: time.Now().UTC()})
	if err != nil {
		return
	}
	if err := p.redis.Publish(ctx, UserChannel(userID), data).Err(); err != nil {
		p.log.Warn("failed to publish event", "type", eventType, "error", err)
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, uuid.UUID, string, interface{}) {}
