// Package bootstrap wires every backend named in SPEC_FULL.md into one App,
// shared by both CLI entrypoints (cmd/clinicalragd's subcommands and
// cmd/mcpserver's stdio server) so process construction lives in exactly one
// place. Grounded on the teacher's initialize.go (one function building
// every dependency a cmd/ main needs before dispatching).
package bootstrap

import (
	"context"
	"fmt"

	"clinicalrag/internal/agent"
	"clinicalrag/internal/agent/memory"
	"clinicalrag/internal/apperr"
	"clinicalrag/internal/config"
	"clinicalrag/internal/embedding"
	"clinicalrag/internal/fhir"
	"clinicalrag/internal/imaging"
	"clinicalrag/internal/kg"
	"clinicalrag/internal/llm/providers"
	"clinicalrag/internal/observability"
	"clinicalrag/internal/persistence/databases"
	"clinicalrag/internal/rag/obs"
	"clinicalrag/internal/rag/retrieve"
	"clinicalrag/internal/tools"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App bundles every constructed backend a subcommand might need. Fields
// that depend on an unconfigured backend (no IRIS host, no Qdrant addr) are
// left nil; callers check before using them, same degrade-not-panic
// contract as internal/tools.Deps.
type App struct {
	Config   config.Config
	Pool     *pgxpool.Pool
	Embedder *embedding.Client
	FHIR     *fhir.Client
	Entities *kg.Store
	Images   *imaging.Store
	Deps     tools.Deps
	Registry *agent.Registry
	Engine   *agent.Engine
	Trace    observability.TraceSink
}

// Build constructs every backend named in SPEC_FULL.md against cfg. It
// never fails outright on an optional backend being unreachable (matching
// the embedding/FHIR clients' own sticky-mock/demo-mode contracts); it only
// returns an error when a backend the caller cannot run without is
// misconfigured.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}

	retry := apperr.RetryPolicy{MaxAttempts: cfg.Retry.MaxAttempts, BaseDelay: cfg.Retry.BaseDelay}
	app.Embedder = embedding.New(cfg.EmbeddingURL, cfg.ImageEmbedURL, retry)
	app.FHIR = fhir.NewClient(ctx, cfg.FHIRBaseURL, nil)

	if dsn := cfg.IRIS.DSN(); dsn != "" {
		pool, err := databases.OpenPool(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connecting to IRIS/Postgres: %w", err)
		}
		app.Pool = pool

		docVectors, err := databases.NewPostgresVector(ctx, pool, "rag_documents", embedding.TextDim, "cosine")
		if err != nil {
			return nil, fmt.Errorf("bootstrapping document vector store: %w", err)
		}
		docs := fhir.NewDocumentStore(docVectors, pool, "rag_documents")

		entities, err := kg.NewStore(ctx, pool)
		if err != nil {
			return nil, fmt.Errorf("bootstrapping knowledge graph store: %w", err)
		}
		app.Entities = entities

		facade := &retrieve.Facade{
			Documents:  docs,
			Entities:   entities,
			Embedder:   app.Embedder,
			FusionK:    cfg.FusionK,
			WeightFHIR: cfg.FusionWeightFHIR,
			WeightKG:   cfg.FusionWeightKG,
			Metrics:    obs.NoopMetrics{},
		}
		app.Deps.Documents = docs
		app.Deps.Entities = entities
		app.Deps.Retrieve = facade

		if cfg.Qdrant.Addr != "" {
			imgVectors, err := databases.NewQdrantVector(cfg.Qdrant.Addr, cfg.Qdrant.Collection, embedding.ImageDim, "cosine")
			if err != nil {
				return nil, fmt.Errorf("bootstrapping image vector store: %w", err)
			}
			images, err := imaging.NewStore(ctx, imgVectors, pool)
			if err != nil {
				return nil, fmt.Errorf("bootstrapping imaging store: %w", err)
			}
			app.Images = images
			app.Deps.Images = images
			facade.Images = images
		}
	}

	app.Deps.FHIR = app.FHIR
	app.Deps.Embedder = app.Embedder
	app.Deps.Memory = memory.Open(ctx, cfg.Redis, app.Embedder, cfg.MemoryCapacity)

	reg := agent.NewRegistry()
	tools.RegisterAll(reg, app.Deps)
	app.Registry = reg

	provider, err := providers.Build(cfg.LLM, observability.NewHTTPClient(nil))
	if err != nil {
		return nil, fmt.Errorf("constructing LLM provider: %w", err)
	}

	app.Trace = buildTraceSink(ctx, cfg)

	app.Engine = &agent.Engine{
		Provider: provider,
		Registry: reg,
		Memory:   app.Deps.Memory,
		Trace:    app.Trace,
		Config: agent.Config{
			Model:          cfg.LLM.Model,
			Temperature:    0, // spec.md §4.10 step 2: the agent loop always runs deterministic
			MaxIterations:  cfg.AgentMaxIterations,
			MemoryTopK:     cfg.MemoryRecallTopK,
			MemoryMinScore: cfg.MemoryRecallMinSim,
		},
	}

	return app, nil
}

// buildTraceSink resolves the ClickHouse-backed sink when configured,
// falling back to a log-only sink on missing config or connection failure
// rather than failing startup over an observability dependency.
func buildTraceSink(ctx context.Context, cfg config.Config) observability.TraceSink {
	if cfg.ClickHouse.DSN == "" {
		return observability.NoopTraceSink{}
	}
	sink, err := observability.NewClickHouseTraceSink(ctx, cfg.ClickHouse.DSN)
	if err != nil {
		return observability.NoopTraceSink{}
	}
	return sink
}

// Close releases every backend connection the app holds open.
func (a *App) Close() {
	if a.Trace != nil {
		_ = a.Trace.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
