// Package main is the entry point for the agentic RAG command line client.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/agentic-rag/cmd/agentic-rag-ask/app"
)

func main() {
	app.NewApp().Run()
}
