package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tenxcards-backend/internal/logger"
	"tenxcards-backend/internal/models"
)

const MaxFlashcardsPerRequest = 100

type flashcardStore interface {
	CreateBatch(ctx context.Context, userID uuid.UUID, cards []models.FlashcardCreate) ([]*models.Flashcard, error)
	GetByID(ctx context.Context, userID uuid.UUID, id int64) (*models.Flashcard, error)
	ListByUser(ctx context.Context, userID uuid.UUID, p models.FlashcardListParams) ([]*models.Flashcard, int, error)
	Update(ctx context.Context, c *models.Flashcard) error
	Delete(ctx context.Context, userID uuid.UUID, id int64) error
}

type generationOwnership interface {
	CountOwned(ctx context.Context, userID uuid.UUID, ids []int64) (int, error)
}

type FlashcardService struct {
	cards       flashcardStore
	generations generationOwnership
	events      EventPublisher
	log         *logger.Logger
}

func NewFlashcardService(cards flashcardStore, generations generationOwnership, events EventPublisher, log *logger.Logger) *FlashcardService {
	if events == nil {
		events = noopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &FlashcardService{cards: cards, generations: generations, events: events, log: log}
}

// ValidateFlashcardCreates checks the batch without touching storage.
func ValidateFlashcardCreates(cards []models.FlashcardCreate) error {
	if len(cards) == 0 || len(cards) > MaxFlashcardsPerRequest {
		return &ValidationError{Fields: map[string]string{
			"flashcards": fmt.Sprintf("Between 1 and %d flashcards are required", MaxFlashcardsPerRequest),
		}}
	}

	fields := make(map[string]string)
	for i, c := range cards {
		prefix := fmt.Sprintf("flashcards[%d].", i)
		if msg := checkSide(c.Front, models.MaxFrontLength, "Front"); msg != "" {
			fields[prefix+"front"] = msg
		}
		if msg := checkSide(c.Back, models.MaxBackLength, "Back"); msg != "" {
			fields[prefix+"back"] = msg
		}
		switch {
		case !c.Source.Valid():
			fields[prefix+"source"] = "Source must be one of ai-full, ai-edited, manual"
		case c.Source == models.SourceManual && c.GenerationID != nil:
			fields[prefix+"generation_id"] = "generation_id must be null for manual flashcards"
		case c.Source != models.SourceManual && c.GenerationID == nil:
			fields[prefix+"generation_id"] = "generation_id is required for AI flashcards"
		case c.GenerationID != nil && *c.GenerationID <= 0:
			fields[prefix+"generation_id"] = "generation_id must be a positive integer"
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func checkSide(s string, max int, label string) string {
	if strings.TrimSpace(s) == "" {
		return label + " side is required"
	}
	if utf8.RuneCountInString(s) > max {
		return fmt.Sprintf("%s side cannot exceed %d characters", label, max)
	}
	return ""
}

func (s *FlashcardService) CreateFlashcards(ctx context.Context, userID uuid.UUID, cards []models.FlashcardCreate) ([]*models.Flashcard, error) {
	if err := ValidateFlashcardCreates(cards); err != nil {
		return nil, err
	}

	ids := uniqueGenerationIDs(cards)
	if len(ids) > 0 {
		owned, err := s.generations.CountOwned(ctx, userID, ids)
		if err != nil {
			return nil, &PersistenceError{Op: "validate generation ids", Err: err}
		}
		if owned != len(ids) {
			return nil, &ValidationError{Fields: map[string]string{
				"generation_id": "One or more generation ids do not exist or belong to another user",
			}}
		}
	}

	created, err := s.cards.CreateBatch(ctx, userID, cards)
	if err != nil {
		return nil, &PersistenceError{Op: "create flashcards", Err: err}
	}

	s.log.Info("flashcards created", "user_id", userID, "count", len(created))
	s.events.Publish(ctx, userID, models.EventFlashcardsCreated, models.FlashcardsCreatedEvent{
		Count:         len(created),
		GenerationIDs: ids,
	})
	return created, nil
}

func uniqueGenerationIDs(cards []models.FlashcardCreate) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, c := range cards {
		if c.GenerationID == nil || seen[*c.GenerationID] {
			continue
		}
		seen[*c.GenerationID] = true
		ids = append(ids, *c.GenerationID)
	}
	return ids
}

func (s *FlashcardService) ListFlashcards(ctx context.Context, userID uuid.UUID, p models.FlashcardListParams) ([]*models.Flashcard, int, error) {
	cards, total, err := s.cards.ListByUser(ctx, userID, p)
	if err != nil {
		return nil, 0, fmt.Errorf("list flashcards: %w", err)
	}
	if cards == nil {
		cards = []*models.Flashcard{}
	}
	return cards, total, nil
}

func (s *FlashcardService) GetFlashcard(ctx context.Context, userID uuid.UUID, id int64) (*models.Flashcard, error) {
	c, err := s.cards.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Flashcard not found"}
		}
		return nil, fmt.Errorf("get flashcard: %w", err)
	}
	return c, nil
}

// UpdateFlashcard replaces the text of a card. Editing an ai-full card turns
// it into ai-edited.
func (s *FlashcardService) UpdateFlashcard(ctx context.Context, userID uuid.UUID, id int64, req models.UpdateFlashcardRequest) (*models.Flashcard, error) {
	if req.Front == nil && req.Back == nil {
		return nil, &ValidationError{Fields: map[string]string{"body": "front or back is required"}}
	}

	fields := make(map[string]string)
	if req.Front != nil {
		if msg := checkSide(*req.Front, models.MaxFrontLength, "Front"); msg != "" {
			fields["front"] = msg
		}
	}
	if req.Back != nil {
		if msg := checkSide(*req.Back, models.MaxBackLength, "Back"); msg != "" {
			fields["back"] = msg
		}
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	c, err := s.GetFlashcard(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	changed := false
	if req.Front != nil && *req.Front != c.Front {
		c.Front = *req.Front
		changed = true
	}
	if req.Back != nil && *req.Back != c.Back {
		c.Back = *req.Back
		changed = true
	}
	if changed && c.Source == models.SourceAIFull {
		c.Source = models.SourceAIEdited
	}

	if err := s.cards.Update(ctx, c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Flashcard not found"}
		}
		return nil, &PersistenceError{Op: "update flashcard", Err: err}
	}
	return c, nil
}

func (s *FlashcardService) DeleteFlashcard(ctx context.Context, userID uuid.UUID, id int64) error {
	if err := s.cards.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Message: "Flashcard not found"}
		}
		return &PersistenceError{Op: "delete flashcard", Err: err}
	}
	return nil
}
