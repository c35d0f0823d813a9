// Package client talks to the 10xCards HTTP API on behalf of cardsctl.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"tenxcards-backend/internal/models"
)

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]string
	RequestID  string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Code, e.Message)
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	return msg
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New builds a client without a fixed request timeout. Generations can run
// for minutes, so callers bound each call with the context deadline.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthTokens, error) {
	var tokens models.AuthTokens
	err := c.do(ctx, http.MethodPost, "/api/auth/login", models.LoginRequest{Email: email, Password: password}, &tokens)
	if err != nil {
		return nil, err
	}
	c.token = tokens.AccessToken
	return &tokens, nil
}

func (c *Client) Generate(ctx context.Context, sourceText string) (*models.GenerateFlashcardsResponse, error) {
	var resp models.GenerateFlashcardsResponse
	err := c.do(ctx, http.MethodPost, "/api/generations", models.GenerateFlashcardsRequest{SourceText: sourceText}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CreateFlashcards(ctx context.Context, cards []models.FlashcardCreate) ([]*models.Flashcard, error) {
	var resp models.CreateFlashcardsResponse
	err := c.do(ctx, http.MethodPost, "/api/flashcards", models.CreateFlashcardsRequest{Flashcards: cards}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Flashcards, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, data []byte) error {
	apiErr := &APIError{StatusCode: status}

	var envelope models.ErrorResponse
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error == "" {
		apiErr.Code = "UNEXPECTED_ERROR"
		apiErr.Message = strings.TrimSpace(string(data))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	apiErr.Code = envelope.Code
	apiErr.Message = envelope.Error
	apiErr.Details = envelope.Details
	apiErr.RequestID = envelope.RequestID
	return apiErr
}
