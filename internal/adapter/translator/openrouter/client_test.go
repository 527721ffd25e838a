package openrouter_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/bridgeos/internal/adapter/translator/openrouter"
	"github.com/fairyhunter13/bridgeos/internal/config"
	"github.com/fairyhunter13/bridgeos/internal/domain"
)

func testClient(baseURL string) *openrouter.Client {
	return openrouter.New(config.Config{
		TranslatorBaseURL:  baseURL,
		TranslatorAPIKey:   "sk-test",
		TranslatorModel:    "test/model",
		TranslationTimeout: 2 * time.Second,
	})
}

func completion(text string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": text}},
		},
	}
}

func TestTranslate(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(completion("reponer por favor"))
	}))
	defer srv.Close()

	out, err := testClient(srv.URL).Translate(context.Background(), domain.TranslationRequest{
		Text:         "restock please",
		FromLanguage: "English",
		ToLanguage:   "Spanish",
	})
	require.NoError(t, err)
	assert.Equal(t, "reponer por favor", out)
	assert.Equal(t, "test/model", gotBody["model"])
}

func TestTranslate_RetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(completion("hola"))
	}))
	defer srv.Close()

	out, err := testClient(srv.URL).Translate(context.Background(), domain.TranslationRequest{
		Text: "hello", FromLanguage: "English", ToLanguage: "Spanish",
	})
	require.NoError(t, err)
	assert.Equal(t, "hola", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTranslate_NoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Translate(context.Background(), domain.TranslationRequest{
		Text: "hello", FromLanguage: "English", ToLanguage: "Spanish",
	})
	assert.ErrorIs(t, err, domain.ErrTranslationFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTranslate_GivesUpAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Translate(context.Background(), domain.TranslationRequest{
		Text: "hello", FromLanguage: "English", ToLanguage: "Spanish",
	})
	assert.ErrorIs(t, err, domain.ErrTranslationFailed)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTranslate_EmptyText(t *testing.T) {
	_, err := testClient("http://unused").Translate(context.Background(), domain.TranslationRequest{Text: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestExtractActionItems(t *testing.T) {
	var gotBody struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(completion("- Order more boxes\n- Fix the freezer"))
	}))
	defer srv.Close()

	out, err := testClient(srv.URL).ExtractActionItems(context.Background(), domain.ExtractionRequest{
		Messages: []domain.Message{{SenderID: 200, OriginalText: "we ran out of boxes"}},
		Language: "English",
	})
	require.NoError(t, err)
	assert.Equal(t, "- Order more boxes\n- Fix the freezer", out)

	require.NotEmpty(t, gotBody.Messages)
	require.Equal(t, "system", gotBody.Messages[0].Role)
	system := gotBody.Messages[0].Content
	assert.Contains(t, system, "actionable tasks")
	assert.Contains(t, system, "safety issues")
	assert.Contains(t, system, "equipment problems")
	assert.Contains(t, system, "Extract, do not summarize")
}

func TestExtractActionItems_NoneMeansEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(completion("NONE"))
	}))
	defer srv.Close()

	out, err := testClient(srv.URL).ExtractActionItems(context.Background(), domain.ExtractionRequest{
		Messages: []domain.Message{{SenderID: 200, OriginalText: "good morning"}},
		Language: "English",
	})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestExtractActionItems_EmptyTranscriptSkipsAPI(t *testing.T) {
	out, err := testClient("http://unused").ExtractActionItems(context.Background(), domain.ExtractionRequest{Language: "English"})
	require.NoError(t, err)
	assert.Empty(t, out)
}
