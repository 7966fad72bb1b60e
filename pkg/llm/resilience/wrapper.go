package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kart-io/agentic-rag/pkg/llm"
	"github.com/kart-io/agentic-rag/pkg/utils/httpclient"
)

// Provider 为 Embedding 与 Chat 调用分别套上重试和熔断。
// 两类调用使用独立的熔断器，嵌入服务故障不影响对话调用。
type Provider struct {
	embed   llm.EmbeddingProvider
	chat    llm.ChatProvider
	retry   *RetryConfig
	embedCB *CircuitBreaker
	chatCB  *CircuitBreaker
}

// Wrap 创建带韧性功能的供应商；embed 或 chat 可以为 nil。
func Wrap(embed llm.EmbeddingProvider, chat llm.ChatProvider, retry *RetryConfig, cb *CircuitBreakerConfig) *Provider {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	p := &Provider{embed: embed, chat: chat, retry: retry}
	if embed != nil {
		p.embedCB = NewCircuitBreaker(embed.Name()+"-embed", cb)
	}
	if chat != nil {
		p.chatCB = NewCircuitBreaker(chat.Name()+"-chat", cb)
	}
	return p
}

// Embed 为多个文本生成向量嵌入（带重试和熔断）。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := RetryWithCircuitBreaker(ctx, p.retry, p.embedCB, func() error {
		var err error
		out, err = p.embed.Embed(ctx, texts)
		return err
	})
	return out, err
}

// EmbedSingle 为单个文本生成向量嵌入（带重试和熔断）。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := RetryWithCircuitBreaker(ctx, p.retry, p.embedCB, func() error {
		var err error
		out, err = p.embed.EmbedSingle(ctx, text)
		return err
	})
	return out, err
}

// Chat 进行一次对话调用（带重试和熔断）。
func (p *Provider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	var out *llm.ChatResponse
	err := RetryWithCircuitBreaker(ctx, p.retry, p.chatCB, func() error {
		var err error
		out, err = p.chat.Chat(ctx, req)
		return err
	})
	return out, err
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	if p.chat != nil {
		return p.chat.Name() + "-resilient"
	}
	return p.embed.Name() + "-resilient"
}

// Stats 返回各熔断器的状态快照。
func (p *Provider) Stats() []Stats {
	var out []Stats
	for _, cb := range []*CircuitBreaker{p.embedCB, p.chatCB} {
		if cb != nil {
			out = append(out, cb.Stats())
		}
	}
	return out
}

// IsRetryableError 判断错误是否可重试。
// 上下文错误与熔断错误不重试；网络错误、5xx、408 与 429 重试。
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitBreakerOpen) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.StatusCode)
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	// 包括 *net.OpError 与 *net.DNSError
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code >= http.StatusInternalServerError ||
		code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout
}
