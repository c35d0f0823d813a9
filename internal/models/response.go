package models

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

type PaginatedResponse[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

type SourceTextResponse struct {
	SourceText   string `json:"source_text"`
	Length       int    `json:"length"`
	WithinLimits bool   `json:"within_limits"`
	Truncated    bool   `json:"truncated"`
	Title        string `json:"title,omitempty"`
}
