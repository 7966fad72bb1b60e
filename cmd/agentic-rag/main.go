// Package main is the entry point for the agentic RAG service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/agentic-rag/cmd/agentic-rag/app"
)

func main() {
	app.NewApp().Run()
}
