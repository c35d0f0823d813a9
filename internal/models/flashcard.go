package models

import (
	"time"

	"github.com/google/uuid"
)

type FlashcardSource string

const (
	SourceAIFull   FlashcardSource = "ai-full"
	SourceAIEdited FlashcardSource = "ai-edited"
	SourceManual   FlashcardSource = "manual"
)

func (s FlashcardSource) Valid() bool {
	switch s {
	case SourceAIFull, SourceAIEdited, SourceManual:
		return true
	}
	return false
}

const (
	MaxFrontLength = 200
	MaxBackLength  = 500
)

type Flashcard struct {
	ID           int64           `json:"id"`
	Front        string          `json:"front"`
	Back         string          `json:"back"`
	Source       FlashcardSource `json:"source"`
	GenerationID *int64          `json:"generation_id"`
	UserID       uuid.UUID       `json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// FlashcardProposal is an AI-suggested card that has not been persisted.
type FlashcardProposal struct {
	Front  string          `json:"front"`
	Back   string          `json:"back"`
	Source FlashcardSource `json:"source"`
}

type FlashcardCreate struct {
	Front        string          `json:"front"`
	Back         string          `json:"back"`
	Source       FlashcardSource `json:"source"`
	GenerationID *int64          `json:"generation_id"`
}

type CreateFlashcardsRequest struct {
	Flashcards []FlashcardCreate `json:"flashcards"`
}

type CreateFlashcardsResponse struct {
	Flashcards []*Flashcard `json:"flashcards"`
}

type UpdateFlashcardRequest struct {
	Front *string `json:"front"`
	Back  *string `json:"back"`
}

type FlashcardListParams struct {
	Page         int
	Limit        int
	Sort         string // created_at | updated_at | front
	Order        string // asc | desc
	Source       FlashcardSource
	GenerationID *int64
}
