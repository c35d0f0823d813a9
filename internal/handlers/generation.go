package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"tenxcards-backend/internal/logger"
	"tenxcards-backend/internal/middleware"
	"tenxcards-backend/internal/models"
	"tenxcards-backend/internal/services"
)

const maxGenerationBodyBytes = 1 << 20

type generationService interface {
	GenerateFlashcards(ctx context.Context, userID uuid.UUID, sourceText string) (*models.GenerateFlashcardsResponse, error)
	ListGenerations(ctx context.Context, userID uuid.UUID, p models.GenerationListParams) ([]*models.Generation, int, error)
	GetGeneration(ctx context.Context, userID uuid.UUID, id int64) (*models.GenerationDetail, error)
}

type generationLimiter interface {
	Allow(ctx context.Context, userID uuid.UUID) error
}

type GenerationHandler struct {
	service generationService
	quota   generationLimiter
	log     *logger.Logger
}

func NewGenerationHandler(service generationService, quota generationLimiter, log *logger.Logger) *GenerationHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GenerationHandler{service: service, quota: quota, log: log}
}

// Create validates the source text, charges the user's hourly quota and asks
// the model for flashcard proposals.
func (h *GenerationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateFlashcardsRequest
	if !decodeJSON(w, r, maxGenerationBodyBytes, &req) {
		return
	}

	if err := services.ValidateSourceText(req.SourceText); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	userID := middleware.GetUserID(r.Context())
	if h.quota != nil {
		if err := h.quota.Allow(r.Context(), userID); err != nil {
			handleServiceError(w, r, h.log, err)
			return
		}
	}

	resp, err := h.service.GenerateFlashcards(r.Context(), userID, req.SourceText)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *GenerationHandler) List(w http.ResponseWriter, r *http.Request) {
	q, fields := parseListQuery(r, "created_at", "updated_at")
	if fields != nil {
		writeJSON(w, http.StatusBadRequest, validationResp(fields, r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	generations, total, err := h.service.ListGenerations(r.Context(), userID, models.GenerationListParams{
		Page:  q.Page,
		Limit: q.Limit,
		Sort:  q.Sort,
		Order: q.Order,
	})
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, paginated(generations, q, total))
}

func (h *GenerationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, validationResp(map[string]string{"id": "Generation id must be a positive integer"}, r))
		return
	}

	detail, err := h.service.GetGeneration(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}
