// Package app provides the agentic RAG server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kart-io/agentic-rag/cmd/agentic-rag/app/options"
	ragsvc "github.com/kart-io/agentic-rag/internal/rag"
	"github.com/kart-io/agentic-rag/pkg/infra/app"
)

const (
	// commandDesc is the description of the command.
	commandDesc = `Agentic RAG Service

Answers questions about Journey to the West by letting a language model
decide when to search the indexed text, grading what comes back and
rewriting the question when the snippets are off topic.

This server provides:
  - POST /v1/agent/ask     run one bounded agent session
  - GET  /v1/agent/stats   collection size, session and cache statistics
  - GET  /healthz          liveness
  - GET  /readyz           vector store and cache readiness
  - GET  /metrics          Prometheus metrics`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(ragsvc.Name),
		app.WithShortDescription("Agentic RAG question answering service"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithArgs(cobra.NoArgs),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func([]string) error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
