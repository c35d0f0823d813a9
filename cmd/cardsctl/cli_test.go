package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenxcards-backend/internal/models"
)

type fakeAPI struct {
	saved    [][]models.FlashcardCreate
	sawToken []string
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generations", func(w http.ResponseWriter, r *http.Request) {
		f.sawToken = append(f.sawToken, r.Header.Get("Authorization"))
		proposals := make([]models.FlashcardProposal, 4)
		for i := range proposals {
			proposals[i] = models.FlashcardProposal{Front: "Q" + string(rune('1'+i)), Back: "A", Source: models.SourceAIFull}
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.GenerateFlashcardsResponse{GenerationID: 11, FlashcardsProposals: proposals, GeneratedCount: 4})
	})
	mux.HandleFunc("/api/flashcards", func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateFlashcardsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.saved = append(f.saved, req.Flashcards)

		out := make([]*models.Flashcard, len(req.Flashcards))
		for i, c := range req.Flashcards {
			out[i] = &models.Flashcard{ID: int64(100 + i), Front: c.Front, Back: c.Back, Source: c.Source, GenerationID: c.GenerationID}
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.CreateFlashcardsResponse{Flashcards: out})
	})
	return mux
}

func writeSource(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func longText() string {
	return strings.Repeat("Photosynthesis converts light energy. ", 40)
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newCLIApp(&out).Run(append([]string{"cardsctl"}, args...))
	return out.String(), err
}

func TestGenerate_AcceptSubsetSavesOnlySelected(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	out, err := runCLI(t, "generate", "--file", writeSource(t, longText()), "--server", srv.URL, "--token", "tok", "--accept", "1,3")
	require.NoError(t, err)

	require.Len(t, api.saved, 1)
	require.Len(t, api.saved[0], 2)
	assert.Equal(t, "Q1", api.saved[0][0].Front)
	assert.Equal(t, "Q3", api.saved[0][1].Front)
	for _, c := range api.saved[0] {
		assert.Equal(t, models.SourceAIFull, c.Source)
		require.NotNil(t, c.GenerationID)
		assert.Equal(t, int64(11), *c.GenerationID)
	}
	assert.Equal(t, []string{"Bearer tok"}, api.sawToken)

	var result reviewOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "accepted", result.Selection)
	assert.Len(t, result.Saved, 2)
}

func TestGenerate_AcceptAll(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	_, err := runCLI(t, "generate", "--file", writeSource(t, longText()), "--server", srv.URL, "--accept-all")
	require.NoError(t, err)

	require.Len(t, api.saved, 1)
	assert.Len(t, api.saved[0], 4)
}

func TestGenerate_DryRunDoesNotSave(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	out, err := runCLI(t, "generate", "--file", writeSource(t, longText()), "--server", srv.URL, "--accept-all", "--dry-run")
	require.NoError(t, err)

	assert.Empty(t, api.saved)
	var result reviewOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Len(t, result.Pending, 4)
}

func TestGenerate_NoSelectionListsProposals(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	out, err := runCLI(t, "generate", "--file", writeSource(t, longText()), "--server", srv.URL)
	require.NoError(t, err)

	assert.Empty(t, api.saved)
	var result reviewOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Proposals, 4)
	assert.Equal(t, 1, result.Proposals[0].ID)
}

func TestGenerate_ShortSourceRejectedLocally(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	_, err := runCLI(t, "generate", "--file", writeSource(t, "too short"), "--server", srv.URL, "--accept-all")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VALIDATION_ERROR")
	assert.Empty(t, api.sawToken)
}

func TestGenerate_ConflictingFlags(t *testing.T) {
	_, err := runCLI(t, "generate", "--file", "x.txt", "--accept-all", "--accept", "1")
	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestGenerate_UnknownProposalID(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	_, err := runCLI(t, "generate", "--file", writeSource(t, longText()), "--server", srv.URL, "--accept", "9")
	assert.ErrorContains(t, err, "proposal not found")
	assert.Empty(t, api.saved)
}

func TestErrors_LimitValidatedBeforeConnecting(t *testing.T) {
	_, err := runCLI(t, "errors", "--limit", "0")
	assert.ErrorContains(t, err, "--limit")
}

func TestErrors_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := runCLI(t, "errors")
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestParseIDs(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []int
		wantErr bool
	}{
		{name: "empty", input: "", want: nil},
		{name: "single", input: "2", want: []int{2}},
		{name: "spaces and trailing comma", input: " 1, 3 ,", want: []int{1, 3}},
		{name: "zero", input: "0", wantErr: true},
		{name: "not a number", input: "a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIDs(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
