package agent

// ToolSpec describes one callable tool for the registry and the LLM's tool
// catalog (spec.md §4.9).
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolResult is the stable envelope every tool handler returns, per
// spec.md §4.9.
type ToolResult struct {
	Status         string `json:"status"` // "ok" | "fail"
	Data           any    `json:"data,omitempty"`
	Error          string `json:"error,omitempty"`
	SearchMode     string `json:"search_mode,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty"`
}
