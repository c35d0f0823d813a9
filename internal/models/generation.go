package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinSourceTextLength = 1000
	MaxSourceTextLength = 10000
)

// Generation is the metadata row written for every successful AI call.
type Generation struct {
	ID                    int64     `json:"id"`
	UserID                uuid.UUID `json:"-"`
	Model                 string    `json:"model"`
	GeneratedCount        int       `json:"generated_count"`
	AcceptedUneditedCount int       `json:"accepted_unedited_count"`
	AcceptedEditedCount   int       `json:"accepted_edited_count"`
	SourceTextHash        string    `json:"source_text_hash"`
	SourceTextLength      int       `json:"source_text_length"`
	GenerationDuration    int       `json:"generation_duration"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

type GenerationDetail struct {
	Generation
	Flashcards []*Flashcard `json:"flashcards"`
}

// GenerationErrorLog is the audit row written for every failed AI call.
type GenerationErrorLog struct {
	ID               int64     `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	Model            string    `json:"model"`
	SourceTextHash   string    `json:"source_text_hash"`
	SourceTextLength int       `json:"source_text_length"`
	ErrorCode        string    `json:"error_code"`
	ErrorMessage     string    `json:"error_message"`
	ErrorStack       *string   `json:"error_stack,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	Attempts         int       `json:"attempts,omitempty"`
}

type GenerateFlashcardsRequest struct {
	SourceText string `json:"source_text"`
}

type GenerateFlashcardsResponse struct {
	GenerationID        int64               `json:"generation_id"`
	FlashcardsProposals []FlashcardProposal `json:"flashcards_proposals"`
	GeneratedCount      int                 `json:"generated_count"`
}

type GenerationListParams struct {
	Page  int
	Limit int
	Sort  string // created_at | updated_at
	Order string // asc | desc
}
