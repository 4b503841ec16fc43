package tools

import (
	"context"
	"fmt"
	"sort"

	"clinicalrag/internal/agent"
	"clinicalrag/internal/kg"
	"clinicalrag/internal/rag/retrieve"
)

// Visualization tools return structured {labels,values}/{nodes,edges} data
// in the ToolResult envelope rather than a rendered image: nothing in this
// codebase's dependency stack renders charts, and the agent's consumer (an
// LLM, or a UI that reads the tool trace) can render structured data itself.

func visualizationTools(deps Deps) []agent.Tool {
	return []agent.Tool{
		plotSymptomFrequencyTool{deps},
		plotEntityDistributionTool{deps},
		plotPatientTimelineTool{deps},
		plotEntityNetworkTool{deps},
		visualizeGraphRAGResultsTool{deps},
	}
}

// ChartData is a generic labeled-series shape shared by the bar/frequency
// plot tools.
type ChartData struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// --- plot_symptom_frequency ---

type plotSymptomFrequencyTool struct{ deps Deps }

func (t plotSymptomFrequencyTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "plot_symptom_frequency",
		Description: "Return chart data {labels,values} of symptom entities matching a query, ranked by relationship count as a proxy for mention frequency.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
				"limit": map[string]any{"type": "integer", "default": 10},
			},
			"required": []string{"query"},
		},
	}
}

func (t plotSymptomFrequencyTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.Entities == nil {
		return agent.ToolResult{Status: "fail", Error: "knowledge graph is not configured"}, nil
	}
	query, err := requiredStringArg(args, "query")
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	limit := intArg(args, "limit", 10)
	results, err := t.deps.Entities.Search(ctx, t.deps.Embedder, query, limit*4)
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}

	type counted struct {
		text  string
		count int
	}
	var symptoms []counted
	for _, r := range results {
		if r.Entity.Type != kg.EntitySymptom {
			continue
		}
		edges, err := t.deps.Entities.Relationships(ctx, r.Entity.ID)
		if err != nil {
			continue
		}
		symptoms = append(symptoms, counted{text: r.Entity.Text, count: len(edges)})
	}
	sort.Slice(symptoms, func(i, j int) bool { return symptoms[i].count > symptoms[j].count })
	if len(symptoms) > limit {
		symptoms = symptoms[:limit]
	}

	chart := ChartData{}
	for _, s := range symptoms {
		chart.Labels = append(chart.Labels, s.text)
		chart.Values = append(chart.Values, float64(s.count))
	}
	return agent.ToolResult{Status: "ok", Data: chart}, nil
}

// --- plot_entity_distribution ---

type plotEntityDistributionTool struct{ deps Deps }

func (t plotEntityDistributionTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "plot_entity_distribution",
		Description: "Return chart data {labels,values} of knowledge-graph entity counts by type.",
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
	}
}

func (t plotEntityDistributionTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.Entities == nil {
		return agent.ToolResult{Status: "fail", Error: "knowledge graph is not configured"}, nil
	}
	stats, err := t.deps.Entities.Statistics(ctx)
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	types := make([]string, 0, len(stats.EntitiesByType))
	for typ := range stats.EntitiesByType {
		types = append(types, string(typ))
	}
	sort.Strings(types)

	chart := ChartData{}
	for _, typ := range types {
		chart.Labels = append(chart.Labels, typ)
		chart.Values = append(chart.Values, float64(stats.EntitiesByType[kg.EntityType(typ)]))
	}
	return agent.ToolResult{Status: "ok", Data: chart}, nil
}

// --- plot_patient_timeline ---

type plotPatientTimelineTool struct{ deps Deps }

type timelineEvent struct {
	EncounterID string `json:"encounter_id"`
	Status      string `json:"status"`
	Start       string `json:"start"`
	End         string `json:"end,omitempty"`
}

func (t plotPatientTimelineTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "plot_patient_timeline",
		Description: "Return a chronological list of a patient's encounters for timeline visualization.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"patient_id": map[string]any{"type": "string"}},
			"required":   []string{"patient_id"},
		},
	}
}

func (t plotPatientTimelineTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.FHIR == nil {
		return agent.ToolResult{Status: "fail", Error: "fhir client is not configured"}, nil
	}
	patientID, err := requiredStringArg(args, "patient_id")
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	encounters, err := t.deps.FHIR.SearchEncountersForPatient(ctx, patientID)
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	sort.Slice(encounters, func(i, j int) bool { return encounters[i].Period.Start.Before(encounters[j].Period.Start) })

	events := make([]timelineEvent, 0, len(encounters))
	for _, e := range encounters {
		ev := timelineEvent{EncounterID: e.ID, Status: e.Status, Start: e.Period.Start.Format("2006-01-02T15:04:05Z07:00")}
		if !e.Period.End.IsZero() {
			ev.End = e.Period.End.Format("2006-01-02T15:04:05Z07:00")
		}
		events = append(events, ev)
	}
	return agent.ToolResult{Status: "ok", Data: events}, nil
}

// --- plot_entity_network ---

type plotEntityNetworkTool struct{ deps Deps }

func (t plotEntityNetworkTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "plot_entity_network",
		Description: "Return a {entities,edges} subgraph around one knowledge-graph entity, for network visualization.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"entity_id": map[string]any{"type": "integer"},
				"depth":     map[string]any{"type": "integer", "default": 2},
			},
			"required": []string{"entity_id"},
		},
	}
}

func (t plotEntityNetworkTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.Entities == nil {
		return agent.ToolResult{Status: "fail", Error: "knowledge graph is not configured"}, nil
	}
	id, err := int64Arg(args, "entity_id")
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	sg, err := t.deps.Entities.Traverse(ctx, id, intArg(args, "depth", 2))
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	return agent.ToolResult{Status: "ok", Data: sg}, nil
}

// --- visualize_graphrag_results ---

type visualizeGraphRAGResultsTool struct{ deps Deps }

type graphRAGNode struct {
	ID   string `json:"id"`
	Kind string `json:"kind"` // "document" | "entity"
	Label string `json:"label"`
}

type graphRAGEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type graphRAGView struct {
	Nodes []graphRAGNode `json:"nodes"`
	Edges []graphRAGEdge `json:"edges"`
}

func (t visualizeGraphRAGResultsTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "visualize_graphrag_results",
		Description: "Run a hybrid search and return a {nodes,edges} graph connecting matched documents to the knowledge-graph entities that contributed to their ranking.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
				"top_k": map[string]any{"type": "integer", "default": 10},
			},
			"required": []string{"query"},
		},
	}
}

func (t visualizeGraphRAGResultsTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.Retrieve == nil {
		return agent.ToolResult{Status: "fail", Error: "hybrid search is not configured"}, nil
	}
	query, err := requiredStringArg(args, "query")
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	resp, err := t.deps.Retrieve.HybridSearch(ctx, retrieve.Options{Query: query, TopK: intArg(args, "top_k", 10)})
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}

	view := graphRAGView{}
	seenEntity := map[int64]bool{}
	for _, res := range resp.Results {
		view.Nodes = append(view.Nodes, graphRAGNode{ID: res.DocumentID, Kind: "document", Label: fmt.Sprintf("doc:%s", res.DocumentID)})
		for _, e := range res.Entities {
			if !seenEntity[e.ID] {
				seenEntity[e.ID] = true
				view.Nodes = append(view.Nodes, graphRAGNode{ID: fmt.Sprintf("entity:%d", e.ID), Kind: "entity", Label: e.Text})
			}
			view.Edges = append(view.Edges, graphRAGEdge{From: res.DocumentID, To: fmt.Sprintf("entity:%d", e.ID)})
		}
	}
	return agent.ToolResult{Status: "ok", Data: view, SearchMode: string(resp.SearchMode), FallbackReason: resp.FallbackReason}, nil
}
