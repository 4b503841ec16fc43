package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"clinicalrag/internal/agent/memory"
	"clinicalrag/internal/agent/prompts"
	"clinicalrag/internal/llm"
	"clinicalrag/internal/observability"
)

const maxIterationsMessage = "Reached maximum iterations"

// Engine implements spec.md §4.10's five-step agent loop: memory recall,
// LLM invocation with the tool catalog, terminal-message short-circuit,
// sequential tool execution, and an iteration cap.
type Engine struct {
	Provider llm.Provider
	Registry *Registry
	Memory   memory.Store            // nil disables recall entirely
	Trace    observability.TraceSink // nil falls back to observability.NoopTraceSink{}
	Tracer   Tracer                  // nil falls back to NullTracer{}
	Config   Config
}

func (e *Engine) trace() observability.TraceSink {
	if e.Trace != nil {
		return e.Trace
	}
	return observability.NoopTraceSink{}
}

func (e *Engine) tracer() Tracer {
	if e.Tracer != nil {
		return e.Tracer
	}
	return &NullTracer{}
}

func (e *Engine) config() Config {
	cfg := e.Config
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if cfg.MemoryTopK <= 0 {
		cfg.MemoryTopK = 3
	}
	if cfg.MemoryMinScore == 0 {
		cfg.MemoryMinScore = 0.3
	}
	return cfg
}

// Run executes one turn for session and returns the final assistant message.
func (e *Engine) Run(ctx context.Context, session, turnID, userPrompt string) (string, error) {
	cfg := e.config()

	prompt, err := e.withRecalledMemory(ctx, session, userPrompt, cfg)
	if err != nil {
		return "", err
	}

	messages := BuildInitialLLMMessages(prompts.DefaultSystemPrompt(), prompt, nil)
	toolSchemas := e.toolSchemas()

	for iteration := 1; iteration <= cfg.MaxIterations; iteration++ {
		ctx, end := e.tracer().Start(ctx, "agent.turn.iteration", map[string]any{
			"session_id": session, "turn_id": turnID, "iteration": iteration,
		})
		reply, err := e.Provider.Chat(ctx, messages, toolSchemas, cfg.Model, cfg.Temperature)
		end(err)
		if err != nil {
			return "", err
		}

		if len(reply.ToolCalls) == 0 {
			return reply.Content, nil
		}

		messages = append(messages, reply)
		for _, call := range reply.ToolCalls {
			result := e.executeTool(ctx, call, session, turnID, iteration)
			payload, merr := json.Marshal(result)
			if merr != nil {
				payload = []byte(`{"status":"fail","error":"encoding tool result"}`)
			}
			messages = append(messages, llm.Message{Role: "tool", ToolID: call.ID, Content: string(payload)})
		}
	}

	return maxIterationsMessage, nil
}

// withRecalledMemory implements spec.md §4.10 step 1: recall top-K memory
// items, keep only those above the similarity floor, and prepend them as a
// [RECALLED MEMORY] block.
func (e *Engine) withRecalledMemory(ctx context.Context, session, userPrompt string, cfg Config) (string, error) {
	if e.Memory == nil {
		return userPrompt, nil
	}
	hits, err := e.Memory.Recall(ctx, session, userPrompt, cfg.MemoryTopK)
	if err != nil {
		return userPrompt, err
	}
	var relevant []string
	for _, h := range hits {
		if h.Similarity > cfg.MemoryMinScore {
			relevant = append(relevant, h.Text)
		}
	}
	if len(relevant) == 0 {
		return userPrompt, nil
	}
	var b strings.Builder
	b.WriteString(prompts.RecalledMemoryTag())
	b.WriteString("\n")
	for _, text := range relevant {
		b.WriteString("- ")
		b.WriteString(text)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(userPrompt)
	return b.String(), nil
}

func (e *Engine) toolSchemas() []llm.ToolSchema {
	specs := e.Registry.Spec()
	out := make([]llm.ToolSchema, 0, len(specs))
	for _, s := range specs {
		out = append(out, llm.ToolSchema{Name: s.Name, Description: s.Description, Parameters: s.Parameters})
	}
	return out
}

// executeTool runs one tool call and records its trace event. Tool errors
// never propagate as Go errors out of Run; they're captured as
// {status:"fail", error} observations per spec.md §4.10 step 5.
func (e *Engine) executeTool(ctx context.Context, call llm.ToolCall, session, turnID string, iteration int) ToolResult {
	start := time.Now()
	var args map[string]any
	if len(call.Args) > 0 {
		if err := json.Unmarshal(call.Args, &args); err != nil {
			result := ToolResult{Status: "fail", Error: fmt.Sprintf("decoding tool arguments: %v", err)}
			e.recordTrace(ctx, session, turnID, iteration, call, result, start)
			return result
		}
	}

	result, err := e.Registry.Execute(ctx, call.Name, args)
	if err != nil {
		result = ToolResult{Status: "fail", Error: err.Error()}
	}
	e.recordTrace(ctx, session, turnID, iteration, call, result, start)
	return result
}

func (e *Engine) recordTrace(ctx context.Context, session, turnID string, iteration int, call llm.ToolCall, result ToolResult, start time.Time) {
	resultJSON, _ := json.Marshal(result)
	ev := observability.ToolTraceEvent{
		Timestamp:  time.Now(),
		SessionID:  session,
		TurnID:     turnID,
		Iteration:  iteration,
		ToolName:   call.Name,
		ArgsJSON:   string(call.Args),
		ResultJSON: observability.TruncateResult(string(resultJSON)),
		Status:     result.Status,
		ErrorText:  result.Error,
		DurationMS: time.Since(start).Milliseconds(),
	}
	_ = e.trace().Record(ctx, ev)
}
