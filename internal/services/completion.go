package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"tenxcards-backend/internal/logger"
)

const (
	DefaultCompletionURL        = "https://openrouter.ai/api/v1"
	DefaultCompletionModel      = "qwen/qwen3-30b-a3b:free"
	DefaultCompletionTimeout    = 30 * time.Second
	DefaultCompletionMaxRetries = 3

	initialRetryInterval = time.Second
	maxRetryInterval     = 10 * time.Second
)

// ModelParams are the sampling parameters sent with every completion.
type ModelParams struct {
	Temperature      float32 `json:"temperature"`
	TopP             float32 `json:"top_p"`
	FrequencyPenalty float32 `json:"frequency_penalty"`
	PresencePenalty  float32 `json:"presence_penalty"`
}

func DefaultModelParams() ModelParams {
	return ModelParams{Temperature: 0.7, TopP: 1, FrequencyPenalty: 0, PresencePenalty: 0}
}

// SchemaProperty is a minimal JSON schema node, translated by each engine into
// its own schema type.
type SchemaProperty struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties,omitempty"`
	Items      *SchemaProperty           `json:"items,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

// ResponseFormat asks the model for strict JSON matching Schema.
type ResponseFormat struct {
	Name   string
	Strict bool
	Schema SchemaProperty
}

// CompletionRequest carries everything one completion call needs. Build it with
// NewCompletionRequest so empty messages are rejected up front.
type CompletionRequest struct {
	SystemMessage  string
	UserMessage    string
	Params         ModelParams
	ResponseFormat *ResponseFormat
}

func NewCompletionRequest(system, user string) (CompletionRequest, error) {
	if strings.TrimSpace(system) == "" {
		return CompletionRequest{}, &InvalidMessageError{Code: CodeInvalidSystemMessage, Message: "system message cannot be empty"}
	}
	if strings.TrimSpace(user) == "" {
		return CompletionRequest{}, &InvalidMessageError{Code: CodeInvalidUserMessage, Message: "user message cannot be empty"}
	}
	return CompletionRequest{
		SystemMessage: system,
		UserMessage:   user,
		Params:        DefaultModelParams(),
	}, nil
}

func (r CompletionRequest) WithResponseFormat(f ResponseFormat) CompletionRequest {
	r.ResponseFormat = &f
	return r
}

type CompletionKind int

const (
	// CompletionParsed means Value holds the completion text decoded as JSON.
	CompletionParsed CompletionKind = iota + 1
	// CompletionRaw means the text was not valid JSON and is kept in Text.
	CompletionRaw
)

// CompletionResult is either a parsed JSON value or the raw completion text.
type CompletionResult struct {
	Kind  CompletionKind
	Value json.RawMessage
	Text  string
}

func ParsedResult(v json.RawMessage) CompletionResult {
	return CompletionResult{Kind: CompletionParsed, Value: v}
}

func RawResult(text string) CompletionResult {
	return CompletionResult{Kind: CompletionRaw, Text: text}
}

// CompletionEngine performs a single request against a model provider and
// returns the assistant text.
type CompletionEngine interface {
	Send(ctx context.Context, model string, req CompletionRequest) (string, error)
}

// Completer is what the generation orchestrator depends on.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
	Model() string
}

type CompletionConfig struct {
	APIKey     string
	APIURL     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

func (c CompletionConfig) withDefaults() CompletionConfig {
	if c.APIURL == "" {
		c.APIURL = DefaultCompletionURL
	}
	if c.Model == "" {
		c.Model = DefaultCompletionModel
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultCompletionTimeout
	}
	return c
}

func (c CompletionConfig) validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return &ConfigurationError{Message: "API key is required"}
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigurationError{Message: "API URL must be an absolute http(s) URL"}
	}
	if c.Timeout < 0 {
		return &ConfigurationError{Message: "timeout cannot be negative"}
	}
	if c.MaxRetries < 0 {
		return &ConfigurationError{Message: "max retries cannot be negative"}
	}
	return nil
}

// CompletionClient sends chat completions through an engine, retrying
// network-level failures with capped exponential backoff. It holds no
// per-call state and is safe for concurrent use.
type CompletionClient struct {
	engine     CompletionEngine
	model      string
	timeout    time.Duration
	maxRetries int
	log        *logger.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewCompletionClient(cfg CompletionConfig, engine CompletionEngine, log *logger.Logger) (*CompletionClient, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, &ConfigurationError{Message: "completion engine is required"}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CompletionClient{
		engine:     engine,
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		log:        log,
		sleep:      sleepContext,
	}, nil
}

func (c *CompletionClient) Model() string { return c.model }

func (c *CompletionClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	if strings.TrimSpace(req.SystemMessage) == "" || strings.TrimSpace(req.UserMessage) == "" {
		return CompletionResult{}, &InvalidStateError{Message: "system and user messages must be set before sending"}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialRetryInterval
	policy.Multiplier = 2
	policy.MaxInterval = maxRetryInterval
	policy.RandomizationFactor = 0
	policy.Reset()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := policy.NextBackOff()
			c.log.Warn("retrying completion", "attempt", attempt, "wait", wait, "error", lastErr)
			if err := c.sleep(ctx, wait); err != nil {
				return CompletionResult{}, &CompletionError{Code: CodeNetworkError, Message: err.Error(), Err: err}
			}
		}

		text, err := c.sendOnce(ctx, req)
		if err == nil {
			if strings.TrimSpace(text) == "" {
				return CompletionResult{}, &CompletionError{Code: CodeEmptyResponse, Message: "model returned an empty completion"}
			}
			return decodeCompletion(text), nil
		}

		var ce *CompletionError
		if errors.As(err, &ce) {
			return CompletionResult{}, ce
		}
		if ctx.Err() != nil {
			return CompletionResult{}, &CompletionError{Code: CodeNetworkError, Message: ctx.Err().Error(), Err: ctx.Err()}
		}
		if !isNetworkError(err) {
			return CompletionResult{}, &CompletionError{Code: CodeAPIError, Message: err.Error(), Err: err}
		}
		lastErr = err
	}

	return CompletionResult{}, &CompletionError{Code: CodeNetworkError, Message: lastErr.Error(), Err: lastErr}
}

func (c *CompletionClient) sendOnce(ctx context.Context, req CompletionRequest) (string, error) {
	attemptCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.engine.Send(attemptCtx, c.model, req)
}

// decodeCompletion keeps the decoded JSON when the text is valid JSON and the
// raw text otherwise.
func decodeCompletion(text string) CompletionResult {
	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) {
		return ParsedResult(json.RawMessage(trimmed))
	}
	return RawResult(text)
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// unconfiguredCompleter stands in when no API key is set so the server can
// still boot; every call fails and is audited like any other failure.
type unconfiguredCompleter struct {
	model string
	err   error
}

func NewUnconfiguredCompleter(model string, err error) Completer {
	return &unconfiguredCompleter{model: model, err: err}
}

func (u *unconfiguredCompleter) Model() string { return u.model }

func (u *unconfiguredCompleter) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	return CompletionResult{}, u.err
}
