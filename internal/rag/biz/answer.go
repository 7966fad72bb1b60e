package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/agentic-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/agentic-rag/pkg/llm"
)

// Answerer 根据检索结果生成最终答案。
type Answerer interface {
	Answer(ctx context.Context, question string, r *RetrievalResult) (string, error)
}

const answerSystemPrompt = `你是一个专业的西游记知识助手。
请基于检索到的内容回答用户问题，如果检索内容不足以回答，请告诉用户你不知道。
回答要准确、简洁，最多三句话。`

const answerUserPrompt = `检索内容：
%s

问题：%s`

// LLMAnswerer 使用生成服务合成答案。
type LLMAnswerer struct {
	chat        llm.ChatProvider
	temperature *float64
}

// NewLLMAnswerer 创建答案生成器。
func NewLLMAnswerer(chat llm.ChatProvider, temperature *float64) *LLMAnswerer {
	return &LLMAnswerer{chat: chat, temperature: temperature}
}

// Answer implements Answerer.
func (a *LLMAnswerer) Answer(ctx context.Context, question string, r *RetrievalResult) (string, error) {
	prompt := fmt.Sprintf(answerUserPrompt, r.Observation(), question)
	out, err := llm.Generate(ctx, a.chat, prompt, answerSystemPrompt, a.temperature)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(textutil.StripThinking(out)), nil
}
