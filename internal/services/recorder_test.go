package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"tenxcards-backend/internal/logger"
	"tenxcards-backend/internal/models"
)

type stubGenerationStore struct {
	err     error
	created []*models.Generation
}

func (s *stubGenerationStore) Create(ctx context.Context, g *models.Generation) error {
	if s.err != nil {
		return s.err
	}
	g.ID = int64(len(s.created) + 1)
	s.created = append(s.created, g)
	return nil
}

type stubErrorLogStore struct {
	err     error
	ctxErr  error
	entries []*models.GenerationErrorLog
}

func (s *stubErrorLogStore) Create(ctx context.Context, l *models.GenerationErrorLog) error {
	s.ctxErr = ctx.Err()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, l)
	return nil
}

func testAttempt() GenerationAttempt {
	return GenerationAttempt{
		UserID:           uuid.New(),
		SourceTextHash:   HashSourceText("text"),
		SourceTextLength: 1234,
		Model:            "test/model",
	}
}

func TestRecordSuccess(t *testing.T) {
	gens := &stubGenerationStore{}
	r := NewRecorder(gens, &stubErrorLogStore{}, nil, nil)
	a := testAttempt()

	id, err := r.RecordSuccess(context.Background(), a, 7, 1500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	require.Len(t, gens.created, 1)
	g := gens.created[0]
	assert.Equal(t, a.UserID, g.UserID)
	assert.Equal(t, 7, g.GeneratedCount)
	assert.Equal(t, 1500, g.GenerationDuration)
	assert.Equal(t, 1234, g.SourceTextLength)
	assert.Zero(t, g.AcceptedEditedCount)
	assert.Zero(t, g.AcceptedUneditedCount)
}

func TestRecordSuccess_WrapsStorageError(t *testing.T) {
	r := NewRecorder(&stubGenerationStore{err: errors.New("disk full")}, &stubErrorLogStore{}, nil, nil)

	_, err := r.RecordSuccess(context.Background(), testAttempt(), 3, time.Second)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, CodePersistence, ErrorCode(err))
}

func TestRecordFailure_SurvivesCancelledRequest(t *testing.T) {
	logs := &stubErrorLogStore{}
	r := NewRecorder(&stubGenerationStore{}, logs, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r.RecordFailure(ctx, testAttempt(), CodeNetworkError, "timeout", nil)

	require.Len(t, logs.entries, 1)
	assert.NoError(t, logs.ctxErr)
	assert.Equal(t, CodeNetworkError, logs.entries[0].ErrorCode)
	assert.Equal(t, "timeout", logs.entries[0].ErrorMessage)
	assert.Nil(t, logs.entries[0].ErrorStack)
}

func TestRecordFailure_LogsWhenStorageAndQueueFail(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	r := NewRecorder(&stubGenerationStore{}, &stubErrorLogStore{err: errors.New("db down")}, rdb, logger.NewFromCore(core))

	assert.NotPanics(t, func() {
		r.RecordFailure(context.Background(), testAttempt(), CodeAPIError, "rate limited", nil)
	})

	assert.Equal(t, 1, observed.FilterMessage("failed to record generation error").Len())
	assert.Equal(t, 1, observed.FilterMessage("failed to queue generation error log").Len())
}
