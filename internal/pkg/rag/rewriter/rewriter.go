// Package rewriter 将原始问题改写为更适合向量检索的查询。
package rewriter

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/kart-io/agentic-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/agentic-rag/pkg/llm"
)

// ErrEmptyRewrite 表示模型没有给出可用的改写。
var ErrEmptyRewrite = errors.New("rewrite produced an empty question")

const prompt = `你是一个查询优化专家。之前用下面的问题在知识库中检索，没有找到相关内容。
请将它改写为更适合向量检索的形式。

要求：
1. 保持原始问题的核心意图
2. 扩展关键术语和同义词，使查询更加具体和明确
3. 只输出一行改写后的问题，不要包含任何解释

原始问题：%s

改写后的问题：`

// echoPrefix 匹配模型回显的提示前缀。
var echoPrefix = regexp.MustCompile(`^(?:改写后的问题|重写后的查询|改写|Rewritten question)\s*[:：]\s*`)

// Rewriter 查询改写器。
type Rewriter struct {
	chat        llm.ChatProvider
	temperature *float64
}

// New 创建改写器，temperature 为 nil 时使用供应商默认值。
func New(chat llm.ChatProvider, temperature *float64) *Rewriter {
	return &Rewriter{chat: chat, temperature: temperature}
}

// Rewrite 改写原始问题。调用方必须传入会话的原始问题，而不是上一次的改写结果。
func (r *Rewriter) Rewrite(ctx context.Context, original string) (string, error) {
	out, err := llm.Generate(ctx, r.chat, fmt.Sprintf(prompt, original), "", r.temperature)
	if err != nil {
		return "", err
	}

	rewritten := Clean(out)
	if rewritten == "" {
		return "", ErrEmptyRewrite
	}
	return rewritten, nil
}

// Clean 去掉推理块、回显前缀和包裹引号，只保留第一行。
func Clean(s string) string {
	line := textutil.FirstLine(textutil.StripThinking(s))
	line = echoPrefix.ReplaceAllString(line, "")
	return textutil.Unquote(line)
}
