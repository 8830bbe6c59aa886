package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rodeoai/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, events []string, captured *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if captured != nil {
			assert.NoError(t, json.Unmarshal(body, captured))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, e := range events {
			fmt.Fprintf(w, "data: %s\n\n", e)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
}

func chunkJSON(content string) string {
	return fmt.Sprintf(`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`, content)
}

const usageJSON = `{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[],"usage":{"prompt_tokens":42,"completion_tokens":7,"total_tokens":49}}`

func TestOpenAIRelay_Stream(t *testing.T) {
	var captured map[string]interface{}
	server := sseServer(t, []string{chunkJSON("Keep "), chunkJSON("your "), chunkJSON("heels down."), usageJSON}, &captured)
	defer server.Close()

	relay := NewOpenAIRelay(config.LLMConfig{OpenAIAPIKey: "sk-test", BaseURL: server.URL})
	chunks, err := relay.Stream(context.Background(), CompletionRequest{
		Model:       "gpt-4o-mini",
		Messages:    []Message{{Role: "system", Content: "You are RodeoAI"}, {Role: "user", Content: "Barrel tips?"}},
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	require.NoError(t, err)

	var content strings.Builder
	var usage *Usage
	for c := range chunks {
		require.NoError(t, c.Err)
		content.WriteString(c.Content)
		if c.Usage != nil {
			usage = c.Usage
		}
	}

	assert.Equal(t, "Keep your heels down.", content.String())
	require.NotNil(t, usage)
	assert.Equal(t, int64(42), usage.PromptTokens)
	assert.Equal(t, int64(7), usage.CompletionTokens)
	assert.Equal(t, int64(49), usage.Total())

	assert.Equal(t, "gpt-4o-mini", captured["model"])
	assert.Equal(t, true, captured["stream"])
	assert.Equal(t, map[string]interface{}{"include_usage": true}, captured["stream_options"])
	messages, ok := captured["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
}

func TestOpenAIRelay_StreamUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"upstream exploded","type":"server_error"}}`)
	}))
	defer server.Close()

	relay := NewOpenAIRelay(config.LLMConfig{OpenAIAPIKey: "sk-test", BaseURL: server.URL})
	chunks, err := relay.Stream(context.Background(), CompletionRequest{Model: "gpt-4o-mini", Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)

	var last StreamChunk
	for c := range chunks {
		last = c
	}
	require.Error(t, last.Err)
}

func TestOpenAIRelay_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"chatcmpl-2","object":"chat.completion","created":1,"model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"Dally fast."},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`)
	}))
	defer server.Close()

	relay := NewOpenAIRelay(config.LLMConfig{OpenAIAPIKey: "sk-test", BaseURL: server.URL})
	resp, err := relay.Complete(context.Background(), CompletionRequest{Model: "gpt-4o", Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "Dally fast.", resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, int64(15), resp.Usage.Total())
}

func TestOpenAIRelay_NotConfigured(t *testing.T) {
	relay := NewOpenAIRelay(config.LLMConfig{})

	_, err := relay.Stream(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = relay.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestEstimateCounter(t *testing.T) {
	tests := []struct {
		text string
		want int64
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"🤠🤠🤠🤠🤠", 2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateCounter{}.Count(tt.text), tt.text)
	}
}

func TestCountMessages(t *testing.T) {
	messages := []Message{{Role: "system", Content: "abcd"}, {Role: "user", Content: "abcdefgh"}}
	assert.Equal(t, int64(1+4+2+4), CountMessages(EstimateCounter{}, messages))
}
