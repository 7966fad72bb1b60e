package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kart-io/agentic-rag/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-key"

func newTestProvider(t *testing.T, mux *http.ServeMux) *Provider {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p, err := NewProvider(map[string]any{"api_key": testAPIKey, "base_url": srv.URL + "/v1"})
	require.NoError(t, err)
	return p.(*Provider)
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		config    map[string]any
		wantError bool
	}{
		{name: "valid config", config: map[string]any{"api_key": testAPIKey}},
		{name: "custom models", config: map[string]any{"api_key": testAPIKey, "chat_model": "gpt-4o", "organization": "org-123"}},
		{name: "missing api_key", config: map[string]any{}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ProviderName, p.Name())
		})
	}
}

func TestChat_ToolCallsAndSchema(t *testing.T) {
	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":"","tool_calls":[{"id":"call_abc","type":"function","function":{"name":"retrieve","arguments":"{\"query\":\"石卵\"}"}}]}}],"usage":{"prompt_tokens":20,"completion_tokens":8,"total_tokens":28}}`))
	})
	p := newTestProvider(t, mux)

	resp, err := p.Chat(context.Background(), &llm.ChatRequest{
		Messages:       []llm.Message{{Role: llm.RoleUser, Content: "孙悟空从哪里出生？"}},
		Tools:          []llm.Tool{{Name: "retrieve", Parameters: map[string]any{"type": "object"}}},
		ResponseFormat: &llm.ResponseFormat{Name: "grade", Schema: map[string]any{"type": "object"}},
		Temperature:    llm.Temperature(0),
	})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_abc", resp.ToolCalls[0].ID)
	assert.Equal(t, "retrieve", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"石卵"}`, resp.ToolCalls[0].Arguments)
	assert.Equal(t, 20, resp.Usage.PromptTokens)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	// 温度 0 必须被显式发送
	assert.Contains(t, got, "temperature")
	rf := got["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", rf["type"])
	require.Len(t, got["tools"], 1)
}

func TestChat_EncodesToolHistory(t *testing.T) {
	var got struct {
		Messages []struct {
			Role       string `json:"role"`
			ToolCallID string `json:"tool_call_id"`
			ToolCalls  []struct {
				ID string `json:"id"`
			} `json:"tool_calls"`
		} `json:"messages"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"石卵"}}]}`))
	})
	p := newTestProvider(t, mux)

	resp, err := p.Chat(context.Background(), &llm.ChatRequest{Messages: []llm.Message{
		{Role: llm.RoleUser, Content: "q"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "retrieve", Arguments: `{"query":"q"}`}}},
		{Role: llm.RoleTool, ToolCallID: "call_1", Content: "[片段 1]"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "石卵", resp.Content)

	require.Len(t, got.Messages, 3)
	assert.Equal(t, "call_1", got.Messages[1].ToolCalls[0].ID)
	assert.Equal(t, "tool", got.Messages[2].Role)
	assert.Equal(t, "call_1", got.Messages[2].ToolCallID)
}

func TestEmbed_OrdersByIndex(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":1,"embedding":[0.2]},{"object":"embedding","index":0,"embedding":[0.1]}]}`))
	})
	p := newTestProvider(t, mux)

	out, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1}, {0.2}}, out)
}

func TestChat_APIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	})
	p := newTestProvider(t, mux)

	_, err := p.Chat(context.Background(), &llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "q"}}})
	assert.ErrorContains(t, err, "openai chat")
}
