// Package grader 判断检索内容与问题是否相关。
//
// 评分调用使用 JSON Schema 约束输出为 {"binary_score": "yes"|"no"}，
// 温度固定为 0；任何不符合约束的输出都会被拒绝。
package grader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/agentic-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/agentic-rag/pkg/llm"
	"github.com/kart-io/agentic-rag/pkg/utils/json"
)

// Decision 是评分结果。
type Decision string

const (
	Relevant    Decision = "relevant"
	NotRelevant Decision = "not-relevant"
)

// ErrRejected 表示模型输出不符合评分 Schema。
var ErrRejected = errors.New("grade response rejected")

const systemPrompt = `你是一个评估检索内容与用户问题相关性的评分员。
如果检索内容包含与问题相关的关键词或语义信息，即判定为相关。
不需要非常严格，目的是过滤明显错误的检索结果。
只输出 JSON：{"binary_score": "yes"} 或 {"binary_score": "no"}。`

const userPrompt = `检索内容：
%s

用户问题：%s`

// Schema 是评分输出的 JSON Schema。
var Schema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"binary_score": map[string]any{
			"type":        "string",
			"enum":        []string{"yes", "no"},
			"description": "检索内容是否与问题相关",
		},
	},
	"required":             []string{"binary_score"},
	"additionalProperties": false,
}

// Config 评分器配置。
type Config struct {
	// Retries 输出被拒绝后的最大重试次数。
	Retries int
	// MaxContextRunes 送入评分的检索文本最大字符数，0 表示不截断。
	MaxContextRunes int
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{Retries: 2, MaxContextRunes: 4000}
}

// Grader 相关性评分器。
type Grader struct {
	chat   llm.ChatProvider
	config Config
}

// New 创建评分器。
func New(chat llm.ChatProvider, config Config) *Grader {
	return &Grader{chat: chat, config: config}
}

// Grade 评估 text 与 question 的相关性。
// 空文本直接判定为不相关，不调用模型。服务错误原样返回；
// 输出连续被拒绝时返回包装了 ErrRejected 的错误。
func (g *Grader) Grade(ctx context.Context, question, text string) (Decision, error) {
	if strings.TrimSpace(text) == "" {
		return NotRelevant, nil
	}
	if g.config.MaxContextRunes > 0 {
		text = textutil.TruncateString(text, g.config.MaxContextRunes)
	}

	req := &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf(userPrompt, text, question)},
		},
		ResponseFormat: &llm.ResponseFormat{Name: "grade", Schema: Schema},
		Temperature:    llm.Temperature(0),
	}

	var lastErr error
	for attempt := 0; attempt <= g.config.Retries; attempt++ {
		resp, err := g.chat.Chat(ctx, req)
		if err != nil {
			return "", err
		}

		d, err := ParseDecision(resp.Content)
		if err == nil {
			return d, nil
		}
		lastErr = err
		logger.Warnw("grade response rejected", "attempt", attempt+1, "error", err.Error())
	}
	return "", lastErr
}

// ParseDecision 严格解析评分输出。
func ParseDecision(content string) (Decision, error) {
	var out struct {
		BinaryScore *string `json:"binary_score"`
	}
	raw := textutil.StripThinking(content)
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return "", fmt.Errorf("%w: %q is not a JSON object", ErrRejected, textutil.TruncateString(raw, 80))
	}
	if out.BinaryScore == nil {
		return "", fmt.Errorf("%w: missing binary_score", ErrRejected)
	}

	switch strings.TrimSpace(*out.BinaryScore) {
	case "yes":
		return Relevant, nil
	case "no":
		return NotRelevant, nil
	default:
		return "", fmt.Errorf("%w: binary_score %q", ErrRejected, *out.BinaryScore)
	}
}
