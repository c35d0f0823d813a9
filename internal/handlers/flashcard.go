package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"tenxcards-backend/internal/logger"
	"tenxcards-backend/internal/middleware"
	"tenxcards-backend/internal/models"
)

const maxFlashcardBodyBytes = 1 << 20

type flashcardService interface {
	CreateFlashcards(ctx context.Context, userID uuid.UUID, cards []models.FlashcardCreate) ([]*models.Flashcard, error)
	ListFlashcards(ctx context.Context, userID uuid.UUID, p models.FlashcardListParams) ([]*models.Flashcard, int, error)
	GetFlashcard(ctx context.Context, userID uuid.UUID, id int64) (*models.Flashcard, error)
	UpdateFlashcard(ctx context.Context, userID uuid.UUID, id int64, req models.UpdateFlashcardRequest) (*models.Flashcard, error)
	DeleteFlashcard(ctx context.Context, userID uuid.UUID, id int64) error
}

type FlashcardHandler struct {
	service flashcardService
	log     *logger.Logger
}

func NewFlashcardHandler(service flashcardService, log *logger.Logger) *FlashcardHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &FlashcardHandler{service: service, log: log}
}

func (h *FlashcardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateFlashcardsRequest
	if !decodeJSON(w, r, maxFlashcardBodyBytes, &req) {
		return
	}

	created, err := h.service.CreateFlashcards(r.Context(), middleware.GetUserID(r.Context()), req.Flashcards)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.CreateFlashcardsResponse{Flashcards: created})
}

func (h *FlashcardHandler) List(w http.ResponseWriter, r *http.Request) {
	q, fields := parseListQuery(r, "created_at", "updated_at", "front")
	if fields == nil {
		fields = make(map[string]string)
	}

	params := models.FlashcardListParams{Page: q.Page, Limit: q.Limit, Sort: q.Sort, Order: q.Order}
	if v := r.URL.Query().Get("source"); v != "" {
		source := models.FlashcardSource(v)
		if !source.Valid() {
			fields["source"] = "Source must be one of ai-full, ai-edited, manual"
		}
		params.Source = source
	}
	if v := r.URL.Query().Get("generation_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			fields["generation_id"] = "generation_id must be a positive integer"
		} else {
			params.GenerationID = &id
		}
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, validationResp(fields, r))
		return
	}

	cards, total, err := h.service.ListFlashcards(r.Context(), middleware.GetUserID(r.Context()), params)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, paginated(cards, q, total))
}

func (h *FlashcardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.flashcardID(w, r)
	if !ok {
		return
	}

	card, err := h.service.GetFlashcard(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, card)
}

func (h *FlashcardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.flashcardID(w, r)
	if !ok {
		return
	}

	var req models.UpdateFlashcardRequest
	if !decodeJSON(w, r, maxFlashcardBodyBytes, &req) {
		return
	}

	card, err := h.service.UpdateFlashcard(r.Context(), middleware.GetUserID(r.Context()), id, req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, card)
}

func (h *FlashcardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.flashcardID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteFlashcard(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Flashcard deleted",
		"id":      id,
	})
}

func (h *FlashcardHandler) flashcardID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, validationResp(map[string]string{"id": "Flashcard id must be a positive integer"}, r))
	}
	return id, ok
}
