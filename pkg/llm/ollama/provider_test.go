package ollama

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

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewProvider(map[string]any{"base_url": srv.URL, "max_retries": 0})
	require.NoError(t, err)
	return p.(*Provider)
}

func TestChat_ToolsFormatAndTemperature(t *testing.T) {
	var got map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"retrieve","arguments":{"query":"石卵"}}}]},"done":true,"prompt_eval_count":12,"eval_count":5}`))
	})

	resp, err := p.Chat(context.Background(), &llm.ChatRequest{
		Messages:       []llm.Message{{Role: llm.RoleUser, Content: "孙悟空从哪里出生？"}},
		Tools:          []llm.Tool{{Name: "retrieve", Description: "检索", Parameters: map[string]any{"type": "object"}}},
		ResponseFormat: &llm.ResponseFormat{Name: "grade", Schema: map[string]any{"type": "object"}},
		Temperature:    llm.Temperature(0),
	})
	require.NoError(t, err)

	assert.Equal(t, "qwen3", got["model"])
	assert.Equal(t, false, got["stream"])
	assert.Equal(t, map[string]any{"temperature": float64(0)}, got["options"])
	assert.Equal(t, map[string]any{"type": "object"}, got["format"])
	require.Len(t, got["tools"], 1)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "retrieve", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"石卵"}`, resp.ToolCalls[0].Arguments)
	assert.NotEmpty(t, resp.ToolCalls[0].ID)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
}

func TestChat_ToolHistoryEncoded(t *testing.T) {
	var got chatRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"石卵"},"done":true}`))
	})

	resp, err := p.Chat(context.Background(), &llm.ChatRequest{Messages: []llm.Message{
		{Role: llm.RoleUser, Content: "q"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "retrieve", Arguments: `{"query":"q"}`}}},
		{Role: llm.RoleTool, ToolCallID: "call_1", Content: "[片段 1]"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "石卵", resp.Content)
	assert.Empty(t, resp.ToolCalls)

	require.Len(t, got.Messages, 3)
	require.Len(t, got.Messages[1].ToolCalls, 1)
	assert.JSONEq(t, `{"query":"q"}`, string(got.Messages[1].ToolCalls[0].Function.Arguments))
	assert.Equal(t, "tool", got.Messages[2].Role)
	assert.Nil(t, got.Options)
}

func TestEmbed(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2]]}`))
	})

	v, err := p.EmbedSingle(context.Background(), "石猴")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, v)
}

func TestEmbed_CountMismatch(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[]}`))
	})

	_, err := p.EmbedSingle(context.Background(), "石猴")
	assert.Error(t, err)
}

func TestChat_ServerError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	_, err := p.Chat(context.Background(), &llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "q"}}})
	assert.ErrorContains(t, err, "状态码 404")
}

func TestListModels(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"qwen3"},{"name":"qwen3-embedding"}]}`))
	})

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"qwen3", "qwen3-embedding"}, models)
	assert.NoError(t, p.Ping(context.Background()))
}
