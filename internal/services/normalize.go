package services

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"tenxcards-backend/internal/models"
)

// NormalizeProposals maps a completion result into flashcard proposals.
// Entries with a missing, empty or over-long front/back are skipped; a batch
// without any usable entry is rejected.
func NormalizeProposals(res CompletionResult) ([]models.FlashcardProposal, error) {
	proposals, _, err := normalizeProposals(res)
	return proposals, err
}

func normalizeProposals(res CompletionResult) ([]models.FlashcardProposal, int, error) {
	var payload json.RawMessage

	switch res.Kind {
	case CompletionParsed:
		payload = res.Value
		// A JSON string literal holds the real document one level down.
		var inner string
		if err := json.Unmarshal(payload, &inner); err == nil {
			raw, err := parseRawCompletion(inner)
			if err != nil {
				return nil, 0, err
			}
			payload = raw
		}
	case CompletionRaw:
		raw, err := parseRawCompletion(res.Text)
		if err != nil {
			return nil, 0, err
		}
		payload = raw
	default:
		return nil, 0, &InvalidResponseFormatError{Message: "empty completion result"}
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil || doc == nil {
		return nil, 0, &InvalidResponseFormatError{Message: "response is not a JSON object"}
	}

	rawCards, ok := doc["flashcards"]
	if !ok {
		return nil, 0, &InvalidResponseFormatError{Message: "response has no flashcards field"}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(rawCards, &entries); err != nil || entries == nil {
		return nil, 0, &InvalidResponseFormatError{Message: "flashcards field is not an array"}
	}

	proposals := make([]models.FlashcardProposal, 0, len(entries))
	dropped := 0
	for _, entry := range entries {
		front, back, ok := decodeCardEntry(entry)
		if !ok {
			dropped++
			continue
		}
		proposals = append(proposals, models.FlashcardProposal{
			Front:  front,
			Back:   back,
			Source: models.SourceAIFull,
		})
	}

	if len(entries) > 0 && len(proposals) == 0 {
		return nil, dropped, &InvalidResponseFormatError{Message: "no flashcard entry has a valid front and back"}
	}
	return proposals, dropped, nil
}

func decodeCardEntry(entry json.RawMessage) (front, back string, ok bool) {
	var card struct {
		Front *string `json:"front"`
		Back  *string `json:"back"`
	}
	if err := json.Unmarshal(entry, &card); err != nil || card.Front == nil || card.Back == nil {
		return "", "", false
	}
	front = strings.TrimSpace(*card.Front)
	back = strings.TrimSpace(*card.Back)
	if front == "" || back == "" {
		return "", "", false
	}
	if utf8.RuneCountInString(front) > models.MaxFrontLength || utf8.RuneCountInString(back) > models.MaxBackLength {
		return "", "", false
	}
	return front, back, true
}

// parseRawCompletion strips a markdown code fence, if any, and checks that what
// remains is JSON.
func parseRawCompletion(text string) (json.RawMessage, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var v json.RawMessage
	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	if err := dec.Decode(&v); err != nil {
		return nil, &ResponseParseError{Message: err.Error(), Err: err}
	}
	if dec.More() {
		return nil, &ResponseParseError{Message: "trailing data after JSON document"}
	}
	return v, nil
}
