// Package ragsvc provides the agent service server implementation.
package ragsvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/agentic-rag/internal/rag/handler"
	"github.com/kart-io/agentic-rag/internal/rag/metrics"
	"github.com/kart-io/agentic-rag/internal/rag/router"
	"github.com/kart-io/agentic-rag/pkg/infra/app"
	"github.com/kart-io/agentic-rag/pkg/infra/tracing"
	agentopts "github.com/kart-io/agentic-rag/pkg/options/agent"
	cacheopts "github.com/kart-io/agentic-rag/pkg/options/cache"
	llmopts "github.com/kart-io/agentic-rag/pkg/options/llm"
	logopts "github.com/kart-io/agentic-rag/pkg/options/logger"
	milvusopts "github.com/kart-io/agentic-rag/pkg/options/milvus"
	httpopts "github.com/kart-io/agentic-rag/pkg/options/server/http"
	storeopts "github.com/kart-io/agentic-rag/pkg/options/store"
	weaviateopts "github.com/kart-io/agentic-rag/pkg/options/weaviate"
)

// Name is the name of the application.
const Name = "agentic-rag"

// Config contains application-related configurations.
type Config struct {
	HTTP      *httpopts.Options
	Log       *logopts.Options
	Tracing   *tracing.Options
	Milvus    *milvusopts.Options
	Weaviate  *weaviateopts.Options
	Store     *storeopts.Options
	Embedding *llmopts.ProviderOptions
	Chat      *llmopts.ProviderOptions
	Agent     *agentopts.Options
	Cache     *cacheopts.Options

	// Metrics 可选，默认使用注册在默认 Registerer 上的全局指标。
	Metrics *metrics.AgentMetrics

	ShutdownTimeout time.Duration
}

// InitLogger 初始化全局日志，附带服务名与版本。
func (cfg *Config) InitLogger() error {
	cfg.Log.AddInitialField("service.name", Name)
	cfg.Log.AddInitialField("service.version", app.GetVersion())
	if err := cfg.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// Server represents the agent HTTP server.
type Server struct {
	httpServer      *http.Server
	components      *Components
	tracer          *tracing.Provider
	shutdownTimeout time.Duration
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. 初始化日志
	if err := cfg.InitLogger(); err != nil {
		return nil, err
	}
	logger.Info("Starting agent service...")

	// 2. 初始化链路追踪
	if cfg.Tracing.ServiceVersion == "" {
		cfg.Tracing.ServiceVersion = app.GetVersion()
	}
	tracer, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if tracer.Enabled() {
		logger.Infow("tracing enabled",
			"exporter", string(cfg.Tracing.ExporterType),
			"sampler", string(cfg.Tracing.SamplerType),
		)
	}

	// 3. 组装控制循环
	components, err := cfg.BuildComponents(ctx)
	if err != nil {
		_ = tracer.Shutdown(context.Background())
		return nil, err
	}

	// 4. 初始化 Handler 与路由
	agentHandler := handler.NewAgentHandler(components.Service, cfg.readinessChecks(components)...)
	engine := router.New(router.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Mode:        cfg.HTTP.Mode,
	}, agentHandler)

	logger.Infow("Agent service is ready", "addr", cfg.HTTP.Addr)
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.HTTP.Addr,
			Handler:      engine,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
			IdleTimeout:  cfg.HTTP.IdleTimeout,
		},
		components:      components,
		tracer:          tracer,
		shutdownTimeout: cfg.ShutdownTimeout,
	}, nil
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down agent service...")
	case err := <-errCh:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("HTTP server shutdown failed", "error", err.Error())
	}
	s.components.Close(shutdownCtx)
	if err := s.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("tracer shutdown failed", "error", err.Error())
	}
	_ = logger.Flush()

	return runErr
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Store: %s (%s)\n", cfg.Store.Backend, cfg.Store.Collection)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.Embedding.Provider, cfg.Embedding.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.Chat.Provider, cfg.Chat.Model)
	fmt.Printf("  Transport: %s, max steps %d\n", cfg.Agent.Transport, cfg.Agent.MaxSteps)
}

// readinessChecks 返回 /readyz 使用的依赖检查：向量库集合，以及启用时的 Redis 缓存。
func (cfg *Config) readinessChecks(c *Components) []handler.Check {
	checks := []handler.Check{{
		Name: "store",
		Probe: func(ctx context.Context) (any, error) {
			return nil, c.Store.Ping(ctx, cfg.Store.Collection)
		},
	}}
	if c.Redis != nil {
		checks = append(checks, handler.Check{
			Name: "cache",
			Probe: func(ctx context.Context) (any, error) {
				stats := c.Redis.HealthWithStats(ctx)
				if !stats.Healthy {
					return stats, errors.New(stats.Error)
				}
				return stats, nil
			},
		})
	}
	return checks
}
