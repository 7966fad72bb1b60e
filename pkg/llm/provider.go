// Package llm 提供统一的 LLM 供应商抽象层。
// 支持 Embedding 和 Chat 使用不同供应商的模型；Chat 请求可携带工具描述、
// JSON Schema 输出约束与采样温度。
package llm

import "context"

// EmbeddingProvider 定义 Embedding 供应商接口。
type EmbeddingProvider interface {
	// Embed 为多个文本生成向量嵌入。
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle 为单个文本生成向量嵌入。
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Name 返回供应商名称。
	Name() string
}

// ChatProvider 定义 Chat 供应商接口。
type ChatProvider interface {
	// Chat 进行一次对话调用。
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name 返回供应商名称。
	Name() string
}

// Provider 同时支持 Embedding 和 Chat 的完整供应商。
type Provider interface {
	EmbeddingProvider
	ChatProvider
}

// Role 定义消息角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message 表示对话中的一条消息。
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls 仅用于 assistant 消息。
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID 仅用于 tool 消息，指向对应的调用。
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Tool 描述一个可供模型调用的函数。
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall 是模型发起的一次函数调用，Arguments 为 JSON 文本。
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ResponseFormat 约束模型输出为符合 Schema 的 JSON 对象。
type ResponseFormat struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
}

// ChatRequest 是一次 Chat 调用的输入。
type ChatRequest struct {
	Messages       []Message
	Tools          []Tool
	ResponseFormat *ResponseFormat
	// Temperature 为 nil 时使用供应商默认值。
	Temperature *float64
}

// Usage 记录 token 消耗。
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// ChatResponse 是一次 Chat 调用的输出。
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

// Temperature 返回指向 t 的指针，便于构造请求。
func Temperature(t float64) *float64 {
	return &t
}

// Generate 以单轮提示调用 Chat，返回文本内容。
func Generate(ctx context.Context, p ChatProvider, prompt, systemPrompt string, temperature *float64) (string, error) {
	msgs := make([]Message, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: prompt})

	resp, err := p.Chat(ctx, &ChatRequest{Messages: msgs, Temperature: temperature})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
