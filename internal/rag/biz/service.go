package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/agentic-rag/internal/rag/metrics"
	"github.com/kart-io/agentic-rag/internal/rag/store"
)

// Service 定义 Agent 服务接口。
type Service interface {
	// Ask 回答一个问题。
	Ask(ctx context.Context, question string, opts ...RunOption) (*Result, error)
	// GetStats 获取服务统计信息。
	GetStats(ctx context.Context) (*Stats, error)
}

// Stats 服务统计信息。
type Stats struct {
	Collection string        `json:"collection"`
	Documents  int64         `json:"documents"`
	MaxSteps   int           `json:"max_steps"`
	TopK       int           `json:"top_k"`
	Sessions   metrics.Stats `json:"sessions"`
	Cache      *CacheStats   `json:"cache,omitempty"`
}

// AgentService 组合引擎、向量库和缓存提供完整的问答服务。
type AgentService struct {
	engine     *Engine
	store      store.VectorStore
	cache      *CachedRetriever
	collection string
	metrics    *metrics.AgentMetrics
}

// ServiceConfig Agent 服务配置。
type ServiceConfig struct {
	// Collection 集合名称，用于统计。
	Collection string
	// Store 可选，用于统计文档数。
	Store store.VectorStore
	// Cache 可选，用于统计缓存。
	Cache *CachedRetriever
	// Metrics 可选。
	Metrics *metrics.AgentMetrics
}

// NewAgentService 创建 Agent 服务实例。
func NewAgentService(engine *Engine, config *ServiceConfig) *AgentService {
	if config == nil {
		config = &ServiceConfig{}
	}
	return &AgentService{
		engine:     engine,
		store:      config.Store,
		cache:      config.Cache,
		collection: config.Collection,
		metrics:    config.Metrics,
	}
}

// Ask implements Service.
func (s *AgentService) Ask(ctx context.Context, question string, opts ...RunOption) (*Result, error) {
	start := time.Now()
	result, err := s.engine.Run(ctx, question, opts...)
	if err != nil {
		logger.Warnw("ask failed", "question", question, "error", err.Error(), "elapsed", time.Since(start).String())
	}
	return result, err
}

// GetStats implements Service.
func (s *AgentService) GetStats(ctx context.Context) (*Stats, error) {
	cfg := s.engine.Config()
	stats := &Stats{
		Collection: s.collection,
		MaxSteps:   cfg.MaxSteps,
		TopK:       cfg.TopK,
		Sessions:   s.metrics.Snapshot(),
	}

	if s.store != nil && s.collection != "" {
		count, err := s.store.GetStats(ctx, s.collection)
		if err != nil {
			return nil, err
		}
		stats.Documents = count
	}

	if s.cache != nil {
		cacheStats, err := s.cache.GetStats(ctx)
		if err != nil {
			logger.Warnw("failed to get cache stats", "error", err.Error())
		} else {
			stats.Cache = cacheStats
		}
	}
	return stats, nil
}
