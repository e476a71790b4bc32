package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/studymate/studyplan-api/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: 2 * time.Second,
	}, nil, nil)
}

func TestComplete_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "{\"ok\":true}"}}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 15}
		}`))
	})

	out, err := client.Complete(context.Background(), CompletionRequest{
		System: "sys",
		User:   "user",
		Event:  "test",
	})

	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out.Content)
	assert.Equal(t, 120, out.PromptTokens)
	assert.Equal(t, 15, out.CompletionTokens)
}

func TestComplete_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode string
	}{
		{"rate limited", http.StatusTooManyRequests, appErrors.ErrModelRateLimited.Code},
		{"credits exhausted", http.StatusPaymentRequired, appErrors.ErrModelCreditsExhausted.Code},
		{"server error", http.StatusBadGateway, appErrors.ErrModelUnavailable.Code},
		{"bad request", http.StatusBadRequest, appErrors.ErrModelInvalidOutput.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := client.Complete(context.Background(), CompletionRequest{Event: "test"})

			require.Error(t, err)
			assert.True(t, appErrors.HasCode(err, tt.wantCode))
		})
	}
}

func TestComplete_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	client := NewHTTPClient(Config{
		BaseURL: srv.URL,
		Model:   "test-model",
		Timeout: 50 * time.Millisecond,
	}, nil, nil)

	_, err := client.Complete(context.Background(), CompletionRequest{Event: "test"})

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrModelUnavailable.Code))
}

func TestComplete_EmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": [], "usage": {}}`))
	})

	_, err := client.Complete(context.Background(), CompletionRequest{Event: "test"})

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrModelInvalidOutput.Code))
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"surrounding whitespace", "  \n```json\n{}\n```\n", "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFences(tt.input))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		A int `json:"a"`
	}

	err := DecodeJSON("```json\n{\"a\": 7}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, 7, out.A)

	err = DecodeJSON("not json at all", &out)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrModelInvalidOutput.Code))
}
