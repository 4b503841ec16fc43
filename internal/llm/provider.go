// Package llm normalizes the three supported chat-completion backends
// (OpenAI-compatible, Anthropic, Gemini) behind one Provider interface, per
// spec.md §6/§9 "LLM provider normalization". Streaming is out of scope
// (spec.md's External Interfaces excludes a UI front-end), so the
// interface carries only the blocking Chat call the Agent Controller needs.
package llm

import (
	"context"
	"encoding/json"
)

// ToolCall is one function invocation the model asked for.
type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

// Message is a portable chat message usable across all three providers.
type Message struct {
	Role      string // "system" | "user" | "assistant" | "tool"
	Content   string
	ToolID    string // set on role=="tool": which call this responds to
	ToolCalls []ToolCall
}

// ToolSchema describes one callable tool's JSON-schema parameters, for
// providers that support native function/tool calling.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Provider is the normalized interface the Agent Controller drives. Any one
// of the three adapters in internal/llm/{openai,anthropic,google} satisfies
// it. temperature is threaded straight through from agent.Config so the
// loop, not the adapter, owns the determinism knob spec.md §4.10 requires.
type Provider interface {
	Chat(ctx context.Context, msgs []Message, tools []ToolSchema, model string, temperature float64) (Message, error)
}
