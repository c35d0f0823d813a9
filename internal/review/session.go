// Package review tracks AI flashcard proposals while a user accepts, edits
// and rejects them, and saves the chosen ones in a single batch.
package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"tenxcards-backend/internal/models"
)

var (
	ErrSaveInProgress   = errors.New("a save is already in progress")
	ErrNothingSelected  = errors.New("no proposals selected for saving")
	ErrProposalNotFound = errors.New("proposal not found")
)

// Selection picks which proposals BulkSave submits.
type Selection int

const (
	All Selection = iota
	AcceptedOnly
)

func (s Selection) String() string {
	if s == AcceptedOnly {
		return "accepted"
	}
	return "all"
}

// Proposal is a FlashcardProposal plus its review state. ID is the 1-based
// position in the original generation response.
type Proposal struct {
	ID       int    `json:"id"`
	Front    string `json:"front"`
	Back     string `json:"back"`
	Accepted bool   `json:"accepted"`
	Edited   bool   `json:"edited"`
}

// FieldErrors reports which sides of an edit failed validation.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return "invalid flashcard: " + strings.Join(parts, "; ")
}

// Saver persists a batch of flashcards. The API client satisfies it.
type Saver interface {
	CreateFlashcards(ctx context.Context, cards []models.FlashcardCreate) ([]*models.Flashcard, error)
}

type Session struct {
	mu           sync.Mutex
	generationID int64
	proposals    []*Proposal
	sourceText   string
	saving       bool
}

func NewSession(generationID int64, proposals []models.FlashcardProposal) *Session {
	s := &Session{generationID: generationID}
	s.load(proposals)
	return s
}

func (s *Session) load(proposals []models.FlashcardProposal) {
	s.proposals = make([]*Proposal, 0, len(proposals))
	for i, p := range proposals {
		s.proposals = append(s.proposals, &Proposal{ID: i + 1, Front: p.Front, Back: p.Back})
	}
}

func (s *Session) GenerationID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generationID
}

func (s *Session) SetSourceText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourceText = text
}

func (s *Session) SourceText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceText
}

// Proposals returns a snapshot of the working set in original order.
func (s *Session) Proposals() []Proposal {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Proposal, len(s.proposals))
	for i, p := range s.proposals {
		out[i] = *p
	}
	return out
}

func (s *Session) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

func (s *Session) find(id int) (int, *Proposal) {
	for i, p := range s.proposals {
		if p.ID == id {
			return i, p
		}
	}
	return -1, nil
}

func (s *Session) Accept(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return ErrSaveInProgress
	}

	_, p := s.find(id)
	if p == nil {
		return fmt.Errorf("accept %d: %w", id, ErrProposalNotFound)
	}
	p.Accepted = true
	return nil
}

// Reject drops the proposal from the working set. Unknown ids are ignored.
func (s *Session) Reject(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return ErrSaveInProgress
	}

	i, _ := s.find(id)
	if i < 0 {
		return nil
	}
	s.proposals = append(s.proposals[:i], s.proposals[i+1:]...)
	return nil
}

// Edit replaces both sides of a proposal. On a FieldErrors result the
// proposal is left untouched.
func (s *Session) Edit(id int, front, back string) error {
	if fields := validateSides(front, back); len(fields) > 0 {
		return fields
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return ErrSaveInProgress
	}

	_, p := s.find(id)
	if p == nil {
		return fmt.Errorf("edit %d: %w", id, ErrProposalNotFound)
	}
	p.Front = front
	p.Back = back
	p.Edited = true
	return nil
}

func validateSides(front, back string) FieldErrors {
	fields := FieldErrors{}
	switch {
	case strings.TrimSpace(front) == "":
		fields["front"] = "Front side is required"
	case utf8.RuneCountInString(front) > models.MaxFrontLength:
		fields["front"] = fmt.Sprintf("Front side cannot exceed %d characters", models.MaxFrontLength)
	}
	switch {
	case strings.TrimSpace(back) == "":
		fields["back"] = "Back side is required"
	case utf8.RuneCountInString(back) > models.MaxBackLength:
		fields["back"] = fmt.Sprintf("Back side cannot exceed %d characters", models.MaxBackLength)
	}
	return fields
}

// Reset discards every proposal and the source text.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return ErrSaveInProgress
	}
	s.proposals = nil
	s.sourceText = ""
	return nil
}

// Requests builds the create payload for the selection without saving it.
func (s *Session) Requests(sel Selection) []models.FlashcardCreate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests(sel)
}

func (s *Session) requests(sel Selection) []models.FlashcardCreate {
	var out []models.FlashcardCreate
	for _, p := range s.proposals {
		if sel == AcceptedOnly && !p.Accepted {
			continue
		}
		source := models.SourceAIFull
		if p.Edited {
			source = models.SourceAIEdited
		}
		genID := s.generationID
		out = append(out, models.FlashcardCreate{
			Front:        p.Front,
			Back:         p.Back,
			Source:       source,
			GenerationID: &genID,
		})
	}
	return out
}

// BulkSave submits the selected proposals in one batch. On success the whole
// working set and the source text are cleared; on failure nothing changes.
func (s *Session) BulkSave(ctx context.Context, sel Selection, saver Saver) ([]*models.Flashcard, error) {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return nil, ErrSaveInProgress
	}
	cards := s.requests(sel)
	if len(cards) == 0 {
		s.mu.Unlock()
		return nil, ErrNothingSelected
	}
	s.saving = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
	}()

	saved, err := saver.CreateFlashcards(ctx, cards)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.proposals = nil
	s.sourceText = ""
	s.mu.Unlock()
	return saved, nil
}
