package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pai-policy-qa/internal/config"
	"pai-policy-qa/internal/errs"
)

func testConfig(baseURL, key string) config.LLMConfig {
	return config.LLMConfig{
		APIKey:         key,
		BaseURL:        baseURL,
		Model:          "llama-3.1-sonar-large-32k-chat",
		SystemMessage:  "You are a helpful assistant",
		TimeoutSeconds: 5,
		Generation:     config.LLMGenerationConfig{MaxTokens: 500},
	}
}

func TestComplete_SendsChatRequestAndTrimsAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer pplx-key", r.Header.Get("Authorization"))

		var body struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama-3.1-sonar-large-32k-chat", body.Model)
		assert.Equal(t, 500, body.MaxTokens)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "You are a helpful assistant", body.Messages[0].Content)
		assert.Equal(t, "user", body.Messages[1].Role)
		assert.Equal(t, "Question: X", body.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  Not in policy \n"}}]}`))
	}))
	defer srv.Close()

	answer, err := NewClient(testConfig(srv.URL, "pplx-key")).Complete(context.Background(), "Question: X")
	require.NoError(t, err)
	assert.Equal(t, "Not in policy", answer)
}

func TestComplete_MissingKey(t *testing.T) {
	_, err := NewClient(testConfig("http://127.0.0.1:0", "")).Complete(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrExternalService)
	assert.Contains(t, err.Error(), "PERPLEXITY_API_KEY")
}

func TestComplete_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL, "pplx-key")).Complete(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrExternalService)
}

func TestComplete_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL, "pplx-key")).Complete(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrExternalService)
}
