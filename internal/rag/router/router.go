// Package router provides agent service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/kart-io/agentic-rag/internal/rag/handler"
	"github.com/kart-io/agentic-rag/pkg/middleware"
)

// Config controls router construction.
type Config struct {
	// ServiceName is the otel server name.
	ServiceName string
	// Mode is the gin mode: debug, release or test.
	Mode string
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// New builds the gin engine and registers the agent routes.
func New(cfg Config, agentHandler *handler.AgentHandler) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	logger.Info("Registering agent routes...")

	r := gin.New()
	r.Use(
		middleware.Recovery(),
		otelgin.Middleware(cfg.ServiceName),
		middleware.RequestID(),
		middleware.Logger(),
	)

	r.GET("/healthz", agentHandler.Healthz)
	r.GET("/readyz", agentHandler.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	{
		agent := v1.Group("/agent")
		{
			agent.POST("/ask", agentHandler.Ask)
			agent.GET("/stats", agentHandler.Stats)
		}
	}

	logger.Info("HTTP routes registered")
	return r
}
