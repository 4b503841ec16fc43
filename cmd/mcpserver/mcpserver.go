// mcpserver exposes the clinical RAG tool catalog over the Model Context
// Protocol on stdio, for MCP-speaking clients (editors, other agents) that
// want the same retrieval/visualization/memory tools the agent loop uses
// internally. Wiring is shared with cmd/clinicalragd via internal/bootstrap.
package main

import (
	"context"
	"fmt"
	"os"

	"clinicalrag/internal/bootstrap"
	"clinicalrag/internal/config"
	"clinicalrag/internal/mcpserver"
	"clinicalrag/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		os.Exit(1)
	}

	// The stdio transport owns stdout for protocol frames, so logs must not
	// land there; route them to a file when one is configured, otherwise to
	// /dev/null rather than observability.InitLogger's stdout default.
	logPath := os.Getenv("MCP_LOG_FILE")
	if logPath == "" {
		logPath = os.DevNull
	}
	observability.InitLogger(logPath, cfg.LogLevel)

	ctx := context.Background()
	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing backends: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := mcpserver.Run(ctx, app.Registry, cfg.ServiceName, "1.0.0"); err != nil {
		fmt.Fprintf(os.Stderr, "mcp server exited: %v\n", err)
		os.Exit(1)
	}
}
