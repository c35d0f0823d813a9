package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiAPIURL is the endpoint the genai client talks to.
const GeminiAPIURL = "https://generativelanguage.googleapis.com"

// GeminiEngine sends completions to Google's Gemini API.
type GeminiEngine struct {
	client *genai.Client
}

func NewGeminiEngine(ctx context.Context, apiKey string, opts ...option.ClientOption) (*GeminiEngine, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiEngine{client: client}, nil
}

func (e *GeminiEngine) Close() {
	e.client.Close()
}

func (e *GeminiEngine) Send(ctx context.Context, model string, req CompletionRequest) (string, error) {
	// A fresh model handle per call keeps the engine safe for concurrent use.
	m := e.client.GenerativeModel(model)
	m.SetTemperature(req.Params.Temperature)
	m.SetTopP(req.Params.TopP)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemMessage)}}

	if req.ResponseFormat != nil {
		m.ResponseMIMEType = "application/json"
		m.ResponseSchema = toGeminiSchema(req.ResponseFormat.Schema)
	}

	resp, err := m.GenerateContent(ctx, genai.Text(req.UserMessage))
	if err != nil {
		return "", classifyGeminiError(err)
	}

	return extractText(resp), nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

func classifyGeminiError(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		msg := gErr.Message
		if msg == "" {
			msg = http.StatusText(gErr.Code)
		}
		return &CompletionError{Code: CodeAPIError, Message: msg, StatusCode: gErr.Code, Err: err}
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.HTTPCode()
		if status < 0 {
			status = 0
		}
		return &CompletionError{Code: CodeAPIError, Message: apiErr.Error(), StatusCode: status, Err: err}
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &CompletionError{Code: CodeAPIError, Message: blocked.Error(), Err: err}
	}

	return err
}

func toGeminiSchema(p SchemaProperty) *genai.Schema {
	s := &genai.Schema{Required: p.Required}
	switch p.Type {
	case "object":
		s.Type = genai.TypeObject
	case "array":
		s.Type = genai.TypeArray
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	default:
		s.Type = genai.TypeString
	}
	if len(p.Properties) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(p.Properties))
		for name, prop := range p.Properties {
			s.Properties[name] = toGeminiSchema(prop)
		}
	}
	if p.Items != nil {
		s.Items = toGeminiSchema(*p.Items)
	}
	return s
}
