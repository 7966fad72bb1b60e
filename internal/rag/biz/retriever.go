package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/agentic-rag/internal/rag/store"
	"github.com/kart-io/agentic-rag/pkg/llm"
)

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// Collection 集合名称。
	Collection string
	// MinScore 最低相似度，0 表示不过滤。
	MinScore float32
}

// VectorRetriever 通过嵌入向量在向量库中检索。
type VectorRetriever struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	config        *RetrieverConfig
}

// NewVectorRetriever 创建检索器实例。
func NewVectorRetriever(vectorStore store.VectorStore, embedProvider llm.EmbeddingProvider, config *RetrieverConfig) *VectorRetriever {
	return &VectorRetriever{
		store:         vectorStore,
		embedProvider: embedProvider,
		config:        config,
	}
}

// Search implements Retriever.
func (r *VectorRetriever) Search(ctx context.Context, query string, k int) (*RetrievalResult, error) {
	embedding, err := r.embedProvider.EmbedSingle(ctx, query)
	if err != nil {
		logger.Warnw("failed to embed query", "query", query, "error", err.Error())
		return nil, fmt.Errorf("生成查询嵌入失败: %w", err)
	}

	hits, err := r.store.Search(ctx, r.config.Collection, embedding, k)
	if err != nil {
		logger.Warnw("vector search failed", "collection", r.config.Collection, "error", err.Error())
		return nil, fmt.Errorf("向量检索失败: %w", err)
	}

	result := &RetrievalResult{Query: query, Snippets: make([]Snippet, 0, len(hits))}
	for _, h := range hits {
		if h == nil || h.Content == "" {
			continue
		}
		if r.config.MinScore > 0 && h.Score < r.config.MinScore {
			continue
		}
		result.Snippets = append(result.Snippets, Snippet{Text: h.Content, Source: Locator(h.Source, h.Page)})
		if len(result.Snippets) == k {
			break
		}
	}

	logger.Debugw("retrieval completed", "query", query, "hits", len(hits), "snippets", len(result.Snippets))
	return result, nil
}

// Locator 生成片段来源描述，如 "xiyouji.pdf 第12页"。
func Locator(source string, page int64) string {
	switch {
	case source != "" && page > 0:
		return fmt.Sprintf("%s 第%d页", source, page)
	case page > 0:
		return fmt.Sprintf("第%d页", page)
	default:
		return source
	}
}
