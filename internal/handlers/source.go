package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"tenxcards-backend/internal/logger"
	"tenxcards-backend/internal/models"
	"tenxcards-backend/internal/services"
)

type sourceExtractor interface {
	FromUpload(filename string, data []byte) (*models.SourceTextResponse, error)
	FromYouTube(ctx context.Context, rawURL string) (*models.SourceTextResponse, error)
}

// SourceHandler turns uploads and YouTube links into source text the user can
// review before generating.
type SourceHandler struct {
	sources  sourceExtractor
	maxBytes int64
	log      *logger.Logger
}

func NewSourceHandler(sources sourceExtractor, maxBytes int64, log *logger.Logger) *SourceHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &SourceHandler{sources: sources, maxBytes: maxBytes, log: log}
}

func (h *SourceHandler) SupportedFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"formats":   services.SupportedUploadFormats,
		"max_bytes": h.maxBytes,
	})
}

func (h *SourceHandler) Extract(w http.ResponseWriter, r *http.Request) {
	// Room for the multipart envelope on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+64<<10)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeTooLarge(w, r)
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResp(services.CodeValidation, "Expected a multipart form with a file field", r))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, validationResp(map[string]string{"file": "File is required"}, r))
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		h.writeTooLarge(w, r)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		handleServiceError(w, r, h.log, fmt.Errorf("read upload: %w", err))
		return
	}
	if int64(len(data)) > h.maxBytes {
		h.writeTooLarge(w, r)
		return
	}

	resp, err := h.sources.FromUpload(header.Filename, data)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *SourceHandler) YouTube(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if !decodeJSON(w, r, 16<<10, &req) {
		return
	}
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, validationResp(map[string]string{"url": "URL is required"}, r))
		return
	}

	resp, err := h.sources.FromYouTube(r.Context(), req.URL)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *SourceHandler) writeTooLarge(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusRequestEntityTooLarge, errorRespWithFields(services.CodeValidation, "File too large",
		map[string]string{"file": fmt.Sprintf("File must be at most %d bytes", h.maxBytes)}, r))
}
