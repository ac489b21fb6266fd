package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/cache"
)

// ── Client ─────────────────────────────────────────────────────────────────

func newTestClient(url string) *Client {
	c := NewClient("sk-or-v1-test", "test-model")
	c.BaseURL = url
	return c
}

func TestClient_CompleteReturnsFirstChoice(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		assert.Equal(t, "Bearer sk-or-v1-test", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "1. Build a churn dashboard"}},
				{"message": map[string]any{"content": "ignored second choice"}},
			},
		})
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Complete(context.Background(), "system text", "user text")
	require.NoError(t, err)
	assert.Equal(t, "1. Build a churn dashboard", got)

	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
	assert.Equal(t, "test-model", gotReq.Model)
}

func TestClient_EmptyChoicesIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClient_NonJSONBodyIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>upstream error page</html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClient_Non200StatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedResponse, "status failures are transport errors, not shape errors")
	assert.Contains(t, err.Error(), "429")
}

// ── Suggester ──────────────────────────────────────────────────────────────

// stubModel counts calls and records the last user prompt.
type stubModel struct {
	calls    int
	lastUser string
	answer   string
	err      error
}

func (s *stubModel) Complete(ctx context.Context, system, user string) (string, error) {
	s.calls++
	s.lastUser = user
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func TestSuggester_CacheAvoidsSecondCall(t *testing.T) {
	model := &stubModel{answer: "1. Project"}
	s := NewSuggester(model, cache.NewSuggestionCache())

	first, err := s.Suggest(context.Background(), "combined descriptions", "Data Analyst", "UK")
	require.NoError(t, err)

	second, err := s.Suggest(context.Background(), "combined descriptions", "Data Analyst", "UK")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, model.calls, "identical request within the window must be served from cache")
}

func TestSuggester_DifferentCountryMisses(t *testing.T) {
	model := &stubModel{answer: "1. Project"}
	s := NewSuggester(model, cache.NewSuggestionCache())

	_, err := s.Suggest(context.Background(), "text", "Data Analyst", "UK")
	require.NoError(t, err)
	_, err = s.Suggest(context.Background(), "text", "Data Analyst", "France")
	require.NoError(t, err)

	assert.Equal(t, 2, model.calls)
}

func TestSuggester_ErrorNotCached(t *testing.T) {
	model := &stubModel{err: errors.New("boom")}
	s := NewSuggester(model, cache.NewSuggestionCache())

	_, err := s.Suggest(context.Background(), "text", "Dev", "US")
	require.Error(t, err)

	model.err = nil
	model.answer = "1. Project"
	got, err := s.Suggest(context.Background(), "text", "Dev", "US")
	require.NoError(t, err)
	assert.Equal(t, "1. Project", got)
	assert.Equal(t, 2, model.calls)
}

func TestBuildPrompt_TruncatesDescriptionText(t *testing.T) {
	model := &stubModel{answer: "ok"}
	s := NewSuggester(model, cache.NewSuggestionCache())

	long := strings.Repeat("d", promptTextLimit+5000)
	_, err := s.Suggest(context.Background(), long, "Dev", "US")
	require.NoError(t, err)

	assert.LessOrEqual(t, len(model.lastUser), promptTextLimit+2000,
		"prompt must carry at most the capped description text plus the template")
	assert.Contains(t, model.lastUser, `"Dev"`)
	assert.Contains(t, model.lastUser, "US market requirements")
}
