package agent

import "context"

// Tool is an external capability exposed to the LLM's tool catalog.
type Tool interface {
	Describe() ToolSpec
	Execute(ctx context.Context, args map[string]any) (ToolResult, error)
}

// Tracer emits structured traces/spans around one turn or tool call.
type Tracer interface {
	Start(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error))
}
