package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	openRouterReferer = "https://10xcards.com"
	openRouterTitle   = "10xCards Flashcard Generator"
)

// OpenRouterEngine talks to any OpenAI-compatible chat completions endpoint,
// OpenRouter by default.
type OpenRouterEngine struct {
	client *openai.Client
}

// NewOpenRouterEngine builds an engine against apiURL. httpClient may be nil;
// its transport is wrapped to add the attribution headers OpenRouter expects.
func NewOpenRouterEngine(apiKey, apiURL string, httpClient *http.Client) *OpenRouterEngine {
	base := http.DefaultTransport
	if httpClient != nil && httpClient.Transport != nil {
		base = httpClient.Transport
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = apiURL
	cfg.HTTPClient = &http.Client{Transport: &attributionTransport{base: base}}

	return &OpenRouterEngine{client: openai.NewClientWithConfig(cfg)}
}

func (e *OpenRouterEngine) Send(ctx context.Context, model string, req CompletionRequest) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemMessage},
			{Role: openai.ChatMessageRoleUser, Content: req.UserMessage},
		},
		Temperature:      req.Params.Temperature,
		TopP:             req.Params.TopP,
		FrequencyPenalty: req.Params.FrequencyPenalty,
		PresencePenalty:  req.Params.PresencePenalty,
	}

	if req.ResponseFormat != nil {
		schema := toOpenAISchema(req.ResponseFormat.Schema)
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.ResponseFormat.Name,
				Schema: &schema,
				Strict: req.ResponseFormat.Strict,
			},
		}
	}

	resp, err := e.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &CompletionError{Code: CodeEmptyResponse, Message: "no choices in completion response"}
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyOpenAIError turns upstream HTTP failures into CompletionErrors so
// they are not retried. Transport errors are returned unchanged.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.HTTPStatusCode)
		}
		return &CompletionError{Code: CodeAPIError, Message: msg, StatusCode: apiErr.HTTPStatusCode, Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := fmt.Sprintf("request failed with status %d", reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &CompletionError{Code: CodeAPIError, Message: msg, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}

	return err
}

func toOpenAISchema(p SchemaProperty) jsonschema.Definition {
	def := jsonschema.Definition{
		Type:     jsonschema.DataType(p.Type),
		Required: p.Required,
	}
	if len(p.Properties) > 0 {
		def.Properties = make(map[string]jsonschema.Definition, len(p.Properties))
		for name, prop := range p.Properties {
			def.Properties[name] = toOpenAISchema(prop)
		}
		def.AdditionalProperties = false
	}
	if p.Items != nil {
		items := toOpenAISchema(*p.Items)
		def.Items = &items
	}
	return def
}

type attributionTransport struct {
	base http.RoundTripper
}

func (t *attributionTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("HTTP-Referer", openRouterReferer)
	r.Header.Set("X-Title", openRouterTitle)
	return t.base.RoundTrip(r)
}
