package models

import "time"

// WebSocket message types
const (
	EventGenerationCompleted = "generation.completed"
	EventGenerationFailed    = "generation.failed"
	EventFlashcardsCreated   = "flashcards.created"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	SentAt  time.Time   `json:"sent_at"`
}

type GenerationCompletedEvent struct {
	GenerationID   int64 `json:"generation_id"`
	GeneratedCount int   `json:"generated_count"`
	DurationMs     int   `json:"duration_ms"`
}

type GenerationFailedEvent struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type FlashcardsCreatedEvent struct {
	Count         int     `json:"count"`
	GenerationIDs []int64 `json:"generation_ids,omitempty"`
}
