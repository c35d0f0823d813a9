package services

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu      sync.Mutex
	calls   int
	respond func(call int, ctx context.Context) (string, error)
}

func (f *fakeEngine) Send(ctx context.Context, model string, req CompletionRequest) (string, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.respond(call, ctx)
}

func newTestClient(t *testing.T, engine CompletionEngine, retries int) (*CompletionClient, *[]time.Duration) {
	t.Helper()
	c, err := NewCompletionClient(CompletionConfig{APIKey: "test-key", MaxRetries: retries}, engine, nil)
	require.NoError(t, err)

	var waits []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return c, &waits
}

func mustRequest(t *testing.T) CompletionRequest {
	t.Helper()
	req, err := NewCompletionRequest("system", "user")
	require.NoError(t, err)
	return req
}

func TestNewCompletionRequest_RejectsEmptyMessages(t *testing.T) {
	_, err := NewCompletionRequest("  ", "user")
	require.Error(t, err)
	assert.Equal(t, CodeInvalidSystemMessage, ErrorCode(err))

	_, err = NewCompletionRequest("system", "")
	require.Error(t, err)
	assert.Equal(t, CodeInvalidUserMessage, ErrorCode(err))

	req, err := NewCompletionRequest("system", "user")
	require.NoError(t, err)
	assert.Equal(t, DefaultModelParams(), req.Params)
	assert.Nil(t, req.ResponseFormat)
}

func TestNewCompletionClient_ValidatesConfig(t *testing.T) {
	engine := &fakeEngine{}

	tests := []struct {
		name string
		cfg  CompletionConfig
	}{
		{"missing key", CompletionConfig{}},
		{"relative url", CompletionConfig{APIKey: "k", APIURL: "openrouter.ai/api"}},
		{"bad scheme", CompletionConfig{APIKey: "k", APIURL: "ftp://example.com"}},
		{"negative timeout", CompletionConfig{APIKey: "k", Timeout: -time.Second}},
		{"negative retries", CompletionConfig{APIKey: "k", MaxRetries: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCompletionClient(tt.cfg, engine, nil)
			require.Error(t, err)
			assert.Equal(t, CodeInvalidConfig, ErrorCode(err))
		})
	}

	c, err := NewCompletionClient(CompletionConfig{APIKey: "k"}, engine, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultCompletionModel, c.Model())
	assert.Equal(t, DefaultCompletionTimeout, c.timeout)
}

func TestComplete_RejectsUnsetMessages(t *testing.T) {
	engine := &fakeEngine{}
	c, _ := newTestClient(t, engine, 3)

	_, err := c.Complete(context.Background(), CompletionRequest{SystemMessage: "system"})
	require.Error(t, err)
	assert.Equal(t, CodeInvalidState, ErrorCode(err))
	assert.Zero(t, engine.calls)
}

func TestComplete_ParsedAndRaw(t *testing.T) {
	payload := `{"flashcards":[{"front":"Q","back":"A"}]}`
	engine := &fakeEngine{respond: func(int, context.Context) (string, error) { return payload, nil }}
	c, _ := newTestClient(t, engine, 0)

	res, err := c.Complete(context.Background(), mustRequest(t))
	require.NoError(t, err)
	assert.Equal(t, CompletionParsed, res.Kind)
	assert.JSONEq(t, payload, string(res.Value))

	engine.respond = func(int, context.Context) (string, error) { return "Here are your cards", nil }
	res, err = c.Complete(context.Background(), mustRequest(t))
	require.NoError(t, err)
	assert.Equal(t, CompletionRaw, res.Kind)
	assert.Equal(t, "Here are your cards", res.Text)
}

func TestComplete_EmptyResponse(t *testing.T) {
	engine := &fakeEngine{respond: func(int, context.Context) (string, error) { return "  \n", nil }}
	c, _ := newTestClient(t, engine, 3)

	_, err := c.Complete(context.Background(), mustRequest(t))
	require.Error(t, err)
	assert.Equal(t, CodeEmptyResponse, ErrorCode(err))
	assert.Equal(t, 1, engine.calls)
}

func TestComplete_RetriesNetworkErrorsWithBackoff(t *testing.T) {
	engine := &fakeEngine{respond: func(call int, _ context.Context) (string, error) {
		if call <= 2 {
			return "", &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		}
		return `{"ok":true}`, nil
	}}
	c, waits := newTestClient(t, engine, 3)

	res, err := c.Complete(context.Background(), mustRequest(t))
	require.NoError(t, err)
	assert.Equal(t, CompletionParsed, res.Kind)
	assert.Equal(t, 3, engine.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestComplete_ExhaustsRetries(t *testing.T) {
	engine := &fakeEngine{respond: func(int, context.Context) (string, error) {
		return "", io.ErrUnexpectedEOF
	}}
	c, waits := newTestClient(t, engine, 3)

	_, err := c.Complete(context.Background(), mustRequest(t))
	require.Error(t, err)
	assert.Equal(t, CodeNetworkError, ErrorCode(err))
	assert.Equal(t, 4, engine.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, *waits)
}

func TestComplete_APIErrorIsNotRetried(t *testing.T) {
	engine := &fakeEngine{respond: func(int, context.Context) (string, error) {
		return "", &CompletionError{Code: CodeAPIError, Message: "bad request", StatusCode: 400}
	}}
	c, waits := newTestClient(t, engine, 3)

	_, err := c.Complete(context.Background(), mustRequest(t))
	var ce *CompletionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 400, ce.StatusCode)
	assert.Equal(t, 1, engine.calls)
	assert.Empty(t, *waits)
}

func TestComplete_UnknownErrorBecomesAPIError(t *testing.T) {
	engine := &fakeEngine{respond: func(int, context.Context) (string, error) {
		return "", errors.New("boom")
	}}
	c, _ := newTestClient(t, engine, 3)

	_, err := c.Complete(context.Background(), mustRequest(t))
	require.Error(t, err)
	assert.Equal(t, CodeAPIError, ErrorCode(err))
	assert.Equal(t, 1, engine.calls)
}

func TestComplete_ParentCancelStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	engine := &fakeEngine{respond: func(call int, ctx context.Context) (string, error) {
		cancel()
		return "", ctx.Err()
	}}
	c, _ := newTestClient(t, engine, 3)

	_, err := c.Complete(ctx, mustRequest(t))
	require.Error(t, err)
	assert.Equal(t, CodeNetworkError, ErrorCode(err))
	assert.Equal(t, 1, engine.calls)
}

func TestComplete_PerAttemptTimeout(t *testing.T) {
	engine := &fakeEngine{respond: func(call int, ctx context.Context) (string, error) {
		if call == 1 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return `{"ok":true}`, nil
	}}
	c, err := NewCompletionClient(CompletionConfig{APIKey: "k", Timeout: 20 * time.Millisecond, MaxRetries: 1}, engine, nil)
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) error { return nil }

	res, err := c.Complete(context.Background(), mustRequest(t))
	require.NoError(t, err)
	assert.Equal(t, CompletionParsed, res.Kind)
	assert.Equal(t, 2, engine.calls)
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestOpenRouterEngine_ThreeNetworkFailuresThenServerError(t *testing.T) {
	var (
		mu       sync.Mutex
		attempts int
	)
	transport := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()

		assert.Equal(t, "https://10xcards.com", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "10xCards Flashcard Generator", r.Header.Get("X-Title"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if n <= 3 {
			return nil, &net.OpError{Op: "read", Err: errors.New("connection reset by peer")}
		}
		return jsonResponse(http.StatusInternalServerError,
			`{"error":{"message":"upstream exploded","type":"server_error"}}`), nil
	})

	engine := NewOpenRouterEngine("test-key", "https://openrouter.test/api/v1", &http.Client{Transport: transport})
	c, waits := newTestClient(t, engine, 3)

	_, err := c.Complete(context.Background(), mustRequest(t))
	var ce *CompletionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeAPIError, ce.Code)
	assert.Equal(t, http.StatusInternalServerError, ce.StatusCode)
	assert.Equal(t, 4, attempts)
	assert.Len(t, *waits, 3)
}

func TestOpenRouterEngine_ReturnsAssistantContent(t *testing.T) {
	var body string
	transport := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		return jsonResponse(http.StatusOK, `{
			"id":"gen-1","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"flashcards\":[]}"},"finish_reason":"stop"}]
		}`), nil
	})

	engine := NewOpenRouterEngine("test-key", "https://openrouter.test/api/v1", &http.Client{Transport: transport})
	req := mustRequest(t).WithResponseFormat(flashcardResponseFormat)

	text, err := engine.Send(context.Background(), "test-model", req)
	require.NoError(t, err)
	assert.Equal(t, `{"flashcards":[]}`, text)
	assert.Contains(t, body, `"json_schema"`)
	assert.Contains(t, body, `"model":"test-model"`)
	assert.Contains(t, body, `"additionalProperties":false`)
}

func TestUnconfiguredCompleter(t *testing.T) {
	cfgErr := &ConfigurationError{Message: "API key is required"}
	c := NewUnconfiguredCompleter("some-model", cfgErr)

	assert.Equal(t, "some-model", c.Model())
	_, err := c.Complete(context.Background(), mustRequest(t))
	assert.Equal(t, CodeInvalidConfig, ErrorCode(err))
}
