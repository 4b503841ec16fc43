// clinicalragd is the CLI entrypoint over the clinical RAG core: process
// wiring for the agent loop, hybrid retrieval, and the DICOM ingestion
// pipeline (spec.md §6's core-relevant CLI subset). Backend construction
// itself lives in internal/bootstrap, shared with cmd/mcpserver so the two
// entrypoints never wire the same dependency graph twice.
package main

import (
	"context"

	"clinicalrag/internal/bootstrap"
	"clinicalrag/internal/config"
)

type App = bootstrap.App

func buildApp(ctx context.Context, cfg config.Config) (*App, error) {
	return bootstrap.Build(ctx, cfg)
}
