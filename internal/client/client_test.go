package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenxcards-backend/internal/models"
	"tenxcards-backend/internal/review"
)

var _ review.Saver = (*Client)(nil)

func TestGenerate_SendsBearerAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generations", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req models.GenerateFlashcardsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text", req.SourceText)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.GenerateFlashcardsResponse{
			GenerationID:        9,
			FlashcardsProposals: []models.FlashcardProposal{{Front: "Q", Back: "A", Source: models.SourceAIFull}},
			GeneratedCount:      1,
		})
	}))
	defer srv.Close()

	resp, err := New(srv.URL+"/", "tok").Generate(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, int64(9), resp.GenerationID)
	require.Len(t, resp.FlashcardsProposals, 1)
	assert.Equal(t, "Q", resp.FlashcardsProposals[0].Front)
}

func TestCreateFlashcards_DecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse{
			Error:     "Validation failed",
			Code:      "VALIDATION_ERROR",
			Details:   map[string]string{"flashcards[0].front": "Front side is required"},
			RequestID: "01HREQ",
		})
	}))
	defer srv.Close()

	_, err := New(srv.URL, "tok").CreateFlashcards(context.Background(), []models.FlashcardCreate{{Source: models.SourceManual}})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.Equal(t, "Front side is required", apiErr.Details["flashcards[0].front"])
	assert.Contains(t, apiErr.Error(), "01HREQ")
}

func TestDo_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").Generate(context.Background(), "text")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "UNEXPECTED_ERROR", apiErr.Code)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestLogin_StoresAccessToken(t *testing.T) {
	var sawAuth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = append(sawAuth, r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/auth/login":
			json.NewEncoder(w).Encode(models.AuthTokens{AccessToken: "fresh", RefreshToken: "r", ExpiresIn: 900})
		case "/api/flashcards":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(models.CreateFlashcardsResponse{Flashcards: []*models.Flashcard{{ID: 1}}})
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	tokens, err := c.Login(context.Background(), "a@b.co", "password1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", tokens.AccessToken)

	cards, err := c.CreateFlashcards(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, cards, 1)
	assert.Equal(t, []string{"", "Bearer fresh"}, sawAuth)
}

func TestDo_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, "").Generate(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POST /api/generations")
}

func TestGenerate_WaitsForSlowServerWithinCallerDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.GenerateFlashcardsResponse{GenerationID: 3, GeneratedCount: 3})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	assert.Zero(t, c.httpClient.Timeout)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	resp, err := c.Generate(ctx, "text")
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.GenerationID)
}

func TestGenerate_CallerDeadlineBoundsRequest(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(srv.URL, "tok").Generate(ctx, "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type headerTransport struct {
	base   http.RoundTripper
	header string
	value  string
}

func (t *headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set(t.header, t.value)
	return t.base.RoundTrip(r)
}

func TestWithHTTPClient_UsesCustomTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cardsctl-test", r.Header.Get("X-Client"))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.CreateFlashcardsResponse{Flashcards: []*models.Flashcard{{ID: 5}}})
	}))
	defer srv.Close()

	hc := &http.Client{Transport: &headerTransport{base: http.DefaultTransport, header: "X-Client", value: "cardsctl-test"}}
	cards, err := New(srv.URL, "tok").WithHTTPClient(hc).CreateFlashcards(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, int64(5), cards[0].ID)
}
