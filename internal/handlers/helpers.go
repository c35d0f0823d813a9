package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tenxcards-backend/internal/logger"
	"tenxcards-backend/internal/middleware"
	"tenxcards-backend/internal/models"
	"tenxcards-backend/internal/services"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func requestID(r *http.Request) string {
	if id := middleware.GetRequestID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get(middleware.RequestIDHeader)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestID(r),
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	resp := errorResp(code, message, r)
	resp.Details = fields
	return resp
}

func validationResp(fields map[string]string, r *http.Request) models.ErrorResponse {
	return errorRespWithFields(services.CodeValidation, "Validation failed", fields, r)
}

// serverErrorMessages keeps upstream and storage details out of response bodies.
var serverErrorMessages = map[string]string{
	services.CodeInvalidConfig:         "The AI service is not configured",
	services.CodeAPIError:              "The AI service rejected the request",
	services.CodeNetworkError:          "The AI service could not be reached",
	services.CodeEmptyResponse:         "The AI service returned an empty response",
	services.CodeResponseParse:         "The AI service returned an unreadable response",
	services.CodeInvalidResponseFormat: "The AI service returned an unusable response",
	services.CodePersistence:           "Failed to save data",
}

func handleServiceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	var (
		validationErr   *services.ValidationError
		conflictErr     *services.ConflictError
		notFoundErr     *services.NotFoundError
		unauthorizedErr *services.UnauthorizedError
		rateLimitErr    *services.RateLimitError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, validationResp(validationErr.Fields, r))
	case errors.As(err, &conflictErr):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", conflictErr.Message, r))
	case errors.As(err, &notFoundErr):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", notFoundErr.Message, r))
	case errors.As(err, &unauthorizedErr):
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", unauthorizedErr.Message, r))
	case errors.As(err, &rateLimitErr):
		writeJSON(w, http.StatusTooManyRequests, errorResp("RATE_LIMITED", rateLimitErr.Message, r))
	default:
		code := services.ErrorCode(err)
		log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error_code", code,
			"error", err,
			"request_id", requestID(r),
		)
		msg, ok := serverErrorMessages[code]
		if !ok {
			code = services.CodeUnexpected
			msg = "An unexpected error occurred"
		}
		writeJSON(w, http.StatusInternalServerError, errorResp(code, msg, r))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp(services.CodeValidation, "Invalid request body", r))
		return false
	}
	return true
}

// pathID reads the positive integer {id} route parameter.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

type listQuery struct {
	Page  int
	Limit int
	Sort  string
	Order string
}

// parseListQuery validates page, limit, sort and order. Missing values take
// their defaults; present but invalid values are reported per field.
func parseListQuery(r *http.Request, sortFields ...string) (listQuery, map[string]string) {
	q := r.URL.Query()
	out := listQuery{Page: defaultPage, Limit: defaultLimit, Sort: "created_at", Order: "desc"}
	fields := make(map[string]string)

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fields["page"] = "Page must be a positive integer"
		} else {
			out.Page = n
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLimit {
			fields["limit"] = fmt.Sprintf("Limit must be between 1 and %d", maxLimit)
		} else {
			out.Limit = n
		}
	}
	if v := q.Get("sort"); v != "" {
		valid := false
		for _, f := range sortFields {
			if v == f {
				valid = true
				break
			}
		}
		if !valid {
			fields["sort"] = fmt.Sprintf("Sort must be one of %v", sortFields)
		} else {
			out.Sort = v
		}
	}
	if v := q.Get("order"); v != "" {
		if v != "asc" && v != "desc" {
			fields["order"] = "Order must be asc or desc"
		} else {
			out.Order = v
		}
	}

	if len(fields) > 0 {
		return out, fields
	}
	return out, nil
}

func paginated[T any](data []T, q listQuery, total int) models.PaginatedResponse[T] {
	if data == nil {
		data = []T{}
	}
	return models.PaginatedResponse[T]{
		Data:       data,
		Pagination: models.Pagination{Page: q.Page, Limit: q.Limit, Total: total},
	}
}
