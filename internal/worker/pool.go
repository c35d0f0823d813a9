package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tenxcards-backend/internal/logger"
	"tenxcards-backend/internal/models"
	"tenxcards-backend/internal/services"
)

const (
	// MaxErrorLogAttempts bounds how often a queued error log is retried.
	MaxErrorLogAttempts = 5

	popTimeout   = 5 * time.Second
	writeTimeout = 5 * time.Second
)

type errorLogWriter interface {
	Create(ctx context.Context, l *models.GenerationErrorLog) error
}

// Pool drains the error-log queue: rows whose first insert failed are retried
// here until they land or run out of attempts.
type Pool struct {
	redis       *redis.Client
	errorLogs   errorLogWriter
	log         *logger.Logger
	workerCount int
	maxAttempts int

	requeue func(ctx context.Context, payload []byte) error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(redisClient *redis.Client, errorLogs errorLogWriter, log *logger.Logger, workerCount int) *Pool {
	if log == nil {
		log = logger.Nop()
	}
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		redis:       redisClient,
		errorLogs:   errorLogs,
		log:         log,
		workerCount: workerCount,
		maxAttempts: MaxErrorLogAttempts,
	}
	p.requeue = func(ctx context.Context, payload []byte) error {
		return p.redis.RPush(ctx, services.ErrorLogQueue, payload).Err()
	}
	return p
}

func (p *Pool) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Info("error-log workers started", "workers", p.workerCount)
}

// Stop cancels pending BLPOPs and waits for in-flight rows to finish.
func (p *Pool) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		if p.ctx.Err() != nil {
			p.log.Debug("error-log worker shutting down", "worker", id)
			return
		}

		result, err := p.redis.BLPop(p.ctx, popTimeout, services.ErrorLogQueue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && p.ctx.Err() == nil {
				p.log.Warn("error-log queue unavailable", "worker", id, "error", err)
				sleepCtx(p.ctx, time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		if err := p.process(p.ctx, []byte(result[1])); err != nil {
			p.log.Error("error-log entry dropped", "worker", id, "error", err)
		}
	}
}

// process inserts one queued entry. A failed insert is pushed back with its
// attempt counter bumped; an error is returned only when the entry is dropped.
func (p *Pool) process(ctx context.Context, payload []byte) error {
	var entry models.GenerationErrorLog
	if err := json.Unmarshal(payload, &entry); err != nil {
		return fmt.Errorf("decode queued error log: %w", err)
	}
	entry.Attempts++

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	err := p.errorLogs.Create(writeCtx, &entry)
	if err == nil {
		p.log.Info("queued generation error log stored",
			"error_code", entry.ErrorCode,
			"attempts", entry.Attempts,
		)
		return nil
	}

	if entry.Attempts >= p.maxAttempts {
		return fmt.Errorf("giving up after %d attempts (error_code %s): %w", entry.Attempts, entry.ErrorCode, err)
	}

	p.log.Warn("retrying generation error log", "attempts", entry.Attempts, "error", err)
	next, mErr := json.Marshal(entry)
	if mErr != nil {
		return fmt.Errorf("encode error log: %w", mErr)
	}
	if qErr := p.requeue(writeCtx, next); qErr != nil {
		return fmt.Errorf("requeue error log: %w", qErr)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
