// Package tools is the concrete ~20-tool catalog described in spec.md §4.9:
// retrieval, visualization, and session-memory tools wired into an
// agent.Registry for the agent loop to dispatch.
package tools

import (
	"clinicalrag/internal/agent"
	"clinicalrag/internal/agent/memory"
	"clinicalrag/internal/fhir"
	"clinicalrag/internal/imaging"
	"clinicalrag/internal/kg"
	"clinicalrag/internal/rag/retrieve"
)

// Embedder is the narrow text/image embedding shape every search-backed
// tool depends on, satisfied by *internal/embedding.Client in production.
type Embedder interface {
	fhir.EmbeddingLookup
	kg.EmbeddingLookup
	imaging.EmbeddingLookup
}

// Deps bundles every backend the tool catalog dispatches against. Fields
// may be nil when a deployment has no corresponding backend configured
// (e.g. Images when no imaging pipeline has run); tools degrade to a
// ToolResult{Status:"fail"} rather than panicking when their dependency
// is absent.
type Deps struct {
	Documents *fhir.DocumentStore
	FHIR      *fhir.Client
	Entities  *kg.Store
	Images    *imaging.Store
	Retrieve  *retrieve.Facade
	Embedder  Embedder
	Memory    memory.Store
}

// RegisterAll registers the full spec.md §4.9 tool catalog into reg. Call
// sites (cmd/clinicalragd's wiring) build Deps once per process and pass it
// here; the agent engine never talks to the backends directly.
func RegisterAll(reg *agent.Registry, deps Deps) {
	for _, t := range retrievalTools(deps) {
		reg.Register(t.Describe().Name, t)
	}
	for _, t := range visualizationTools(deps) {
		reg.Register(t.Describe().Name, t)
	}
	for _, t := range memoryTools(deps) {
		reg.Register(t.Describe().Name, t)
	}
}
