package ragsvc

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/agentic-rag/internal/pkg/rag/grader"
	"github.com/kart-io/agentic-rag/internal/pkg/rag/rewriter"
	"github.com/kart-io/agentic-rag/internal/rag/biz"
	"github.com/kart-io/agentic-rag/internal/rag/metrics"
	"github.com/kart-io/agentic-rag/internal/rag/store"
	"github.com/kart-io/agentic-rag/pkg/component/milvus"
	redisclient "github.com/kart-io/agentic-rag/pkg/component/redis"
	"github.com/kart-io/agentic-rag/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/agentic-rag/pkg/llm/ollama"
	_ "github.com/kart-io/agentic-rag/pkg/llm/openai"
	"github.com/kart-io/agentic-rag/pkg/llm/resilience"
	cacheopts "github.com/kart-io/agentic-rag/pkg/options/cache"
	storeopts "github.com/kart-io/agentic-rag/pkg/options/store"
)

// Components 是组装完成的 Agent 服务及其需要释放的资源。
type Components struct {
	Service *biz.AgentService
	Engine  *biz.Engine
	Store   store.VectorStore
	Cache   *biz.CachedRetriever
	Metrics *metrics.AgentMetrics
	// Redis 为缓存使用的连接，未使用 Redis 时为 nil。
	Redis *redisclient.Client

	closers []func(ctx context.Context)
}

// Close 按创建的逆序释放资源。
func (c *Components) Close(ctx context.Context) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i](ctx)
	}
	c.closers = nil
}

// BuildComponents 根据配置连接外部服务并组装控制循环。
// 任一步失败时已创建的资源会被释放。
func (cfg *Config) BuildComponents(ctx context.Context) (_ *Components, err error) {
	c := &Components{Metrics: cfg.Metrics}
	if c.Metrics == nil {
		c.Metrics = metrics.GetAgentMetrics()
	}
	defer func() {
		if err != nil {
			c.Close(context.Background())
		}
	}()

	// 1. 向量库
	vectorStore, err := cfg.newVectorStore()
	if err != nil {
		return nil, err
	}
	c.Store = vectorStore
	c.closers = append(c.closers, func(ctx context.Context) { _ = vectorStore.Close(ctx) })

	// 2. LLM 供应商
	embedProvider, err := llm.NewEmbeddingProvider(cfg.Embedding.Provider, cfg.Embedding.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.Embedding.Provider,
		"model", cfg.Embedding.Model,
	)

	chatProvider, err := llm.NewChatProvider(cfg.Chat.Provider, cfg.Chat.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.Chat.Provider,
		"model", cfg.Chat.Model,
	)

	// 嵌入与对话调用带重试和熔断。
	// 对话重试次数取 chat 配置，嵌入沿用默认值。
	chatRetry := resilience.DefaultRetryConfig()
	chatRetry.MaxAttempts = cfg.Chat.MaxRetries
	embed := resilience.Wrap(embedProvider, nil, nil, nil)
	chat := resilience.Wrap(nil, chatProvider, chatRetry, nil)

	// 3. 检索器与缓存
	var retriever biz.Retriever = biz.NewVectorRetriever(vectorStore, embed, &biz.RetrieverConfig{
		Collection: cfg.Store.Collection,
		MinScore:   cfg.Agent.MinScore,
	})
	cacheOn := false
	if cfg.Cache.Enabled {
		var backend biz.CacheBackend
		if backend = cfg.newCacheBackend(ctx, c); backend != nil {
			cacheOn = true
		}
		c.Cache = biz.NewCachedRetriever(retriever, backend, &biz.RetrievalCacheConfig{
			Enabled:   cacheOn,
			TTL:       cfg.Cache.TTL,
			KeyPrefix: cfg.Cache.KeyPrefix,
		}, c.Metrics)
		retriever = c.Cache
	} else {
		logger.Info("Cache is disabled")
	}

	// 4. 控制循环
	agent := cfg.Agent
	decider, err := biz.NewDecider(agent.Transport, chat, agent.ToolName, llm.Temperature(agent.DecisionTemperature))
	if err != nil {
		return nil, err
	}
	gradeCfg := grader.DefaultConfig()
	gradeCfg.Retries = agent.GradeRetries

	c.Engine, err = biz.NewEngine(biz.EngineDeps{
		Decider:   decider,
		Retriever: retriever,
		Grader:    grader.New(chat, gradeCfg),
		Rewriter:  rewriter.New(chat, llm.Temperature(agent.RewriteTemperature)),
		Answerer:  biz.NewLLMAnswerer(chat, llm.Temperature(agent.AnswerTemperature)),
		Metrics:   c.Metrics,
	}, biz.EngineConfig{
		MaxSteps:       agent.MaxSteps,
		TopK:           agent.TopK,
		ParseRetries:   agent.ParseRetries,
		CallTimeout:    agent.CallTimeout,
		SessionTimeout: agent.SessionTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	c.Service = biz.NewAgentService(c.Engine, &biz.ServiceConfig{
		Collection: cfg.Store.Collection,
		Store:      vectorStore,
		Cache:      c.Cache,
		Metrics:    c.Metrics,
	})
	logger.Infow("Agent service initialized",
		"transport", agent.Transport,
		"max_steps", agent.MaxSteps,
		"top_k", agent.TopK,
		"cache.enabled", cacheOn,
	)
	return c, nil
}

func (cfg *Config) newVectorStore() (store.VectorStore, error) {
	switch cfg.Store.Backend {
	case storeopts.BackendWeaviate:
		s, err := store.NewWeaviateStore(store.WeaviateConfig{
			Host:   cfg.Weaviate.Host,
			Scheme: cfg.Weaviate.Scheme,
			APIKey: cfg.Weaviate.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize weaviate: %w", err)
		}
		logger.Infow("Weaviate store initialized", "host", cfg.Weaviate.Host)
		return s, nil
	case storeopts.BackendMilvus, "":
		client, err := milvus.New(cfg.Milvus)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		logger.Infow("Milvus store initialized", "address", cfg.Milvus.Address)
		return store.NewMilvusStore(client), nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

// newCacheBackend 按配置创建缓存后端。Redis 连接失败时返回 nil，缓存降级为直通。
func (cfg *Config) newCacheBackend(ctx context.Context, c *Components) biz.CacheBackend {
	if cfg.Cache.Backend == cacheopts.BackendMemory {
		logger.Infow("Memory cache initialized",
			"max_entries", cfg.Cache.MaxEntries,
			"ttl", cfg.Cache.TTL.String(),
		)
		return biz.NewMemoryBackend(cfg.Cache.MaxEntries)
	}

	rdb := cfg.newRedis(ctx)
	if rdb == nil {
		return nil
	}
	c.Redis = rdb
	c.closers = append(c.closers, func(context.Context) { _ = rdb.Close() })
	return biz.NewRedisBackend(rdb.Client())
}

// newRedis 连接缓存使用的 Redis，连接失败时返回 nil。
func (cfg *Config) newRedis(ctx context.Context) *redisclient.Client {
	if cfg.Cache.Redis == nil {
		logger.Warn("Cache is enabled but no Redis configuration provided")
		return nil
	}
	client, err := redisclient.New(ctx, cfg.Cache.Redis)
	if err != nil {
		logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
		return nil
	}
	logger.Infow("Redis cache initialized",
		"addr", client.Addr(),
		"ttl", cfg.Cache.TTL.String(),
	)
	return client
}
