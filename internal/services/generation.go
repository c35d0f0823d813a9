package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tenxcards-backend/internal/logger"
	"tenxcards-backend/internal/models"
)

const (
	MinProposals = 3
	MaxProposals = 10
)

const flashcardSystemPrompt = `You are an assistant that writes study flashcards.
Read the source text supplied by the user and produce between 3 and 10 flashcards that cover its key facts and concepts.
Each flashcard is a concise question or term on the front and a precise answer on the back.
Rules:
- front: at most 200 characters
- back: at most 500 characters
- do not repeat the same fact twice
- write in the language of the source text
Respond only with JSON of the form {"flashcards":[{"front":"...","back":"..."}]}.`

var flashcardResponseFormat = ResponseFormat{
	Name:   "flashcards",
	Strict: true,
	Schema: SchemaProperty{
		Type:     "object",
		Required: []string{"flashcards"},
		Properties: map[string]SchemaProperty{
			"flashcards": {
				Type: "array",
				Items: &SchemaProperty{
					Type:     "object",
					Required: []string{"front", "back"},
					Properties: map[string]SchemaProperty{
						"front": {Type: "string"},
						"back":  {Type: "string"},
					},
				},
			},
		},
	},
}

type auditRecorder interface {
	RecordSuccess(ctx context.Context, a GenerationAttempt, generatedCount int, duration time.Duration) (int64, error)
	RecordFailure(ctx context.Context, a GenerationAttempt, code, message string, stack *string)
}

type generationReader interface {
	GetByID(ctx context.Context, userID uuid.UUID, id int64) (*models.Generation, error)
	ListByUser(ctx context.Context, userID uuid.UUID, p models.GenerationListParams) ([]*models.Generation, int, error)
}

type generationFlashcardReader interface {
	ListByGeneration(ctx context.Context, userID uuid.UUID, generationID int64) ([]*models.Flashcard, error)
}

type GenerationService struct {
	completer   Completer
	recorder    auditRecorder
	generations generationReader
	flashcards  generationFlashcardReader
	events      EventPublisher
	log         *logger.Logger
	now         func() time.Time
}

func NewGenerationService(
	completer Completer,
	recorder auditRecorder,
	generations generationReader,
	flashcards generationFlashcardReader,
	events EventPublisher,
	log *logger.Logger,
) *GenerationService {
	if events == nil {
		events = noopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GenerationService{
		completer:   completer,
		recorder:    recorder,
		generations: generations,
		flashcards:  flashcards,
		events:      events,
		log:         log,
		now:         time.Now,
	}
}

// HashSourceText returns the hex SHA-256 used to identify a source text.
func HashSourceText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// GenerateFlashcards asks the model for proposals and records the outcome.
// Every call writes exactly one audit row, success or failure. Length bounds
// on sourceText are checked by the caller.
func (s *GenerationService) GenerateFlashcards(ctx context.Context, userID uuid.UUID, sourceText string) (*models.GenerateFlashcardsResponse, error) {
	attempt := GenerationAttempt{
		UserID:           userID,
		SourceTextHash:   HashSourceText(sourceText),
		SourceTextLength: len([]rune(sourceText)),
		Model:            s.completer.Model(),
	}
	log := s.log.With("user_id", userID, "source_text_hash", shortHash(attempt.SourceTextHash), "model", attempt.Model)

	start := s.now()
	resp, err := s.generate(ctx, attempt, sourceText, start)
	if err != nil {
		log.Error("flashcard generation failed", "error", err, "error_code", ErrorCode(err))
		s.recorder.RecordFailure(ctx, attempt, ErrorCode(err), err.Error(), nil)
		s.events.Publish(ctx, userID, models.EventGenerationFailed, models.GenerationFailedEvent{
			ErrorCode:    ErrorCode(err),
			ErrorMessage: err.Error(),
		})
		return nil, err
	}

	log.Info("flashcards generated", "generation_id", resp.GenerationID, "count", resp.GeneratedCount)
	return resp, nil
}

func (s *GenerationService) generate(ctx context.Context, attempt GenerationAttempt, sourceText string, start time.Time) (*models.GenerateFlashcardsResponse, error) {
	req, err := NewCompletionRequest(flashcardSystemPrompt, sourceText)
	if err != nil {
		return nil, err
	}
	req = req.WithResponseFormat(flashcardResponseFormat)

	result, err := s.completer.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	proposals, dropped, err := normalizeProposals(result)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		s.log.Warn("dropped invalid flashcard proposals", "dropped", dropped, "kept", len(proposals))
	}
	if len(proposals) < MinProposals {
		return nil, &InvalidResponseFormatError{
			Message: fmt.Sprintf("expected at least %d flashcards, got %d", MinProposals, len(proposals)),
		}
	}
	if len(proposals) > MaxProposals {
		proposals = proposals[:MaxProposals]
	}

	duration := s.now().Sub(start)

	generationID, err := s.recorder.RecordSuccess(ctx, attempt, len(proposals), duration)
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, attempt.UserID, models.EventGenerationCompleted, models.GenerationCompletedEvent{
		GenerationID:   generationID,
		GeneratedCount: len(proposals),
		DurationMs:     int(duration.Milliseconds()),
	})

	return &models.GenerateFlashcardsResponse{
		GenerationID:        generationID,
		FlashcardsProposals: proposals,
		GeneratedCount:      len(proposals),
	}, nil
}

func (s *GenerationService) ListGenerations(ctx context.Context, userID uuid.UUID, p models.GenerationListParams) ([]*models.Generation, int, error) {
	generations, total, err := s.generations.ListByUser(ctx, userID, p)
	if err != nil {
		return nil, 0, fmt.Errorf("list generations: %w", err)
	}
	if generations == nil {
		generations = []*models.Generation{}
	}
	return generations, total, nil
}

func (s *GenerationService) GetGeneration(ctx context.Context, userID uuid.UUID, id int64) (*models.GenerationDetail, error) {
	g, err := s.generations.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Generation not found"}
		}
		return nil, fmt.Errorf("get generation: %w", err)
	}

	cards, err := s.flashcards.ListByGeneration(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("list generation flashcards: %w", err)
	}

	return &models.GenerationDetail{Generation: *g, Flashcards: cards}, nil
}

// ValidateSourceText checks the accepted length range, counted in characters.
func ValidateSourceText(text string) error {
	n := len([]rune(text))
	if strings.TrimSpace(text) == "" || n < models.MinSourceTextLength || n > models.MaxSourceTextLength {
		return &ValidationError{Fields: map[string]string{
			"source_text": fmt.Sprintf("Source text must be between %d and %d characters", models.MinSourceTextLength, models.MaxSourceTextLength),
		}}
	}
	return nil
}
