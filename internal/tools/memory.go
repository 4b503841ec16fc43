package tools

import (
	"context"

	"clinicalrag/internal/agent"
)

func memoryTools(deps Deps) []agent.Tool {
	return []agent.Tool{
		rememberInformationTool{deps},
		recallInformationTool{deps},
		getMemoryStatsTool{deps},
	}
}

// --- remember_information ---

type rememberInformationTool struct{ deps Deps }

func (t rememberInformationTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "remember_information",
		Description: "Store a piece of information in this session's memory for later recall.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"session_id": map[string]any{"type": "string"},
				"text":       map[string]any{"type": "string"},
			},
			"required": []string{"session_id", "text"},
		},
	}
}

func (t rememberInformationTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.Memory == nil {
		return agent.ToolResult{Status: "fail", Error: "session memory is not configured"}, nil
	}
	session, err := requiredStringArg(args, "session_id")
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	text, err := requiredStringArg(args, "text")
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	if err := t.deps.Memory.Remember(ctx, session, text); err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	return agent.ToolResult{Status: "ok", Data: map[string]any{"remembered": true}}, nil
}

// --- recall_information ---

type recallInformationTool struct{ deps Deps }

func (t recallInformationTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "recall_information",
		Description: "Recall the most similar previously remembered items for this session, ranked by cosine similarity.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"session_id": map[string]any{"type": "string"},
				"query":      map[string]any{"type": "string"},
				"top_k":      map[string]any{"type": "integer", "default": 3},
			},
			"required": []string{"session_id", "query"},
		},
	}
}

func (t recallInformationTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.Memory == nil {
		return agent.ToolResult{Status: "fail", Error: "session memory is not configured"}, nil
	}
	session, err := requiredStringArg(args, "session_id")
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	query, err := requiredStringArg(args, "query")
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	hits, err := t.deps.Memory.Recall(ctx, session, query, intArg(args, "top_k", 3))
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	return agent.ToolResult{Status: "ok", Data: hits}, nil
}

// --- get_memory_stats ---

type getMemoryStatsTool struct{ deps Deps }

func (t getMemoryStatsTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "get_memory_stats",
		Description: "Report how many items are stored in this session's memory and their age range.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"session_id": map[string]any{"type": "string"}},
			"required":   []string{"session_id"},
		},
	}
}

func (t getMemoryStatsTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.Memory == nil {
		return agent.ToolResult{Status: "fail", Error: "session memory is not configured"}, nil
	}
	session, err := requiredStringArg(args, "session_id")
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	stats, err := t.deps.Memory.Stats(ctx, session)
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	return agent.ToolResult{Status: "ok", Data: stats}, nil
}
