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

// ErrorLogQueue holds error-log rows whose first insert failed.
const ErrorLogQueue = "queue:generation-error-logs"

type generationStore interface {
	Create(ctx context.Context, g *models.Generation) error
}

type errorLogStore interface {
	Create(ctx context.Context, l *models.GenerationErrorLog) error
}

// GenerationAttempt identifies the input of one generation call.
type GenerationAttempt struct {
	UserID           uuid.UUID
	SourceTextHash   string
	SourceTextLength int
	Model            string
}

// Recorder writes exactly one audit row per generation call: a generation on
// success or an error log on failure.
type Recorder struct {
	generations generationStore
	errorLogs   errorLogStore
	redis       *redis.Client
	log         *logger.Logger
}

func NewRecorder(generations generationStore, errorLogs errorLogStore, redisClient *redis.Client, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.Nop()
	}
	return &Recorder{
		generations: generations,
		errorLogs:   errorLogs,
		redis:       redisClient,
		log:         log,
	}
}

func (r *Recorder) RecordSuccess(ctx context.Context, a GenerationAttempt, generatedCount int, duration time.Duration) (int64, error) {
	g := &models.Generation{
		UserID:             a.UserID,
		Model:              a.Model,
		GeneratedCount:     generatedCount,
		SourceTextHash:     a.SourceTextHash,
		SourceTextLength:   a.SourceTextLength,
		GenerationDuration: int(duration.Milliseconds()),
	}
	if err := r.generations.Create(ctx, g); err != nil {
		return 0, &PersistenceError{Op: "record generation", Err: err}
	}
	return g.ID, nil
}

// RecordFailure never returns an error. A failed insert is handed to the
// error-log worker through Redis, and logged when even that is not possible.
func (r *Recorder) RecordFailure(ctx context.Context, a GenerationAttempt, code, message string, stack *string) {
	entry := &models.GenerationErrorLog{
		UserID:           a.UserID,
		Model:            a.Model,
		SourceTextHash:   a.SourceTextHash,
		SourceTextLength: a.SourceTextLength,
		ErrorCode:        code,
		ErrorMessage:     message,
		ErrorStack:       stack,
	}

	// The request context may already be cancelled; the audit row must still land.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := r.errorLogs.Create(writeCtx, entry)
	if err == nil {
		return
	}

	r.log.Error("failed to record generation error",
		"error", err,
		"error_code", code,
		"source_text_hash", shortHash(a.SourceTextHash),
	)

	if r.redis == nil {
		return
	}
	payload, mErr := json.Marshal(entry)
	if mErr != nil {
		return
	}
	if qErr := r.redis.LPush(writeCtx, ErrorLogQueue, payload).Err(); qErr != nil {
		r.log.Error("failed to queue generation error log", "error", qErr, "error_code", code)
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
