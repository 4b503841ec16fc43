package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"clinicalrag/internal/agent/memory"
	"clinicalrag/internal/llm"
	"clinicalrag/internal/observability"
	"clinicalrag/internal/rag/embedder"
)

type scriptedProvider struct {
	replies []llm.Message
	calls   int
}

func (p *scriptedProvider) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string, temperature float64) (llm.Message, error) {
	if p.calls >= len(p.replies) {
		return llm.Message{}, fmt.Errorf("scriptedProvider: no more replies queued (call %d)", p.calls+1)
	}
	reply := p.replies[p.calls]
	p.calls++
	return reply, nil
}

type echoTool struct {
	fail bool
}

func (echoTool) Describe() ToolSpec {
	return ToolSpec{Name: "echo", Description: "echoes its input", Parameters: map[string]any{}}
}

func (t echoTool) Execute(_ context.Context, args map[string]any) (ToolResult, error) {
	if t.fail {
		return ToolResult{}, fmt.Errorf("boom")
	}
	return ToolResult{Status: "ok", Data: args}, nil
}

func newTestEngine(provider llm.Provider, reg *Registry, mem memory.Store) *Engine {
	return &Engine{
		Provider: provider,
		Registry: reg,
		Memory:   mem,
		Trace:    observability.NoopTraceSink{},
		Tracer:   &NullTracer{},
		Config:   DefaultConfig(),
	}
}

func TestEngineRunShortCircuitsOnTerminalMessage(t *testing.T) {
	provider := &scriptedProvider{replies: []llm.Message{
		{Role: "assistant", Content: "the patient has no active conditions on file"},
	}}
	reg := NewRegistry()
	e := newTestEngine(provider, reg, nil)

	out, err := e.Run(context.Background(), "sess-1", "turn-1", "any active conditions?")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "the patient has no active conditions on file" {
		t.Fatalf("unexpected output: %q", out)
	}
	if provider.calls != 1 {
		t.Fatalf("expected exactly one LLM call, got %d", provider.calls)
	}
}

func TestEngineRunExecutesToolCallsThenTerminates(t *testing.T) {
	provider := &scriptedProvider{replies: []llm.Message{
		{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "echo", Args: json.RawMessage(`{"q":"hypertension"}`)}}},
		{Role: "assistant", Content: "done"},
	}}
	reg := NewRegistry()
	reg.Register("echo", echoTool{})
	e := newTestEngine(provider, reg, nil)

	out, err := e.Run(context.Background(), "sess-1", "turn-1", "look up hypertension")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "done" {
		t.Fatalf("unexpected output: %q", out)
	}
	if provider.calls != 2 {
		t.Fatalf("expected two LLM calls, got %d", provider.calls)
	}
}

func TestEngineRunCapsIterations(t *testing.T) {
	replies := make([]llm.Message, 0, 11)
	for i := 0; i < 11; i++ {
		replies = append(replies, llm.Message{
			Role:      "assistant",
			ToolCalls: []llm.ToolCall{{ID: fmt.Sprintf("call-%d", i), Name: "echo", Args: json.RawMessage(`{}`)}},
		})
	}
	provider := &scriptedProvider{replies: replies}
	reg := NewRegistry()
	reg.Register("echo", echoTool{})
	e := newTestEngine(provider, reg, nil)

	out, err := e.Run(context.Background(), "sess-1", "turn-1", "keep going forever")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != maxIterationsMessage {
		t.Fatalf("expected max-iterations message, got %q", out)
	}
	if provider.calls != 10 {
		t.Fatalf("expected exactly 10 LLM calls (the cap), got %d", provider.calls)
	}
}

func TestEngineRunCapturesToolErrorsAsObservations(t *testing.T) {
	provider := &scriptedProvider{replies: []llm.Message{
		{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "echo", Args: json.RawMessage(`{}`)}}},
		{Role: "assistant", Content: "handled the failure"},
	}}
	reg := NewRegistry()
	reg.Register("echo", echoTool{fail: true})
	e := newTestEngine(provider, reg, nil)

	out, err := e.Run(context.Background(), "sess-1", "turn-1", "do something that fails")
	if err != nil {
		t.Fatalf("tool failure must not propagate as a Go error: %v", err)
	}
	if out != "handled the failure" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestEngineRunPrependsRecalledMemoryAboveThreshold(t *testing.T) {
	ctx := context.Background()
	emb := embedder.NewDeterministic(64, true, 0)
	mem := memory.NewInProcess(fixtureEmbedderFor(emb), 256)
	if err := mem.Remember(ctx, "sess-1", "patient prefers morning appointments"); err != nil {
		t.Fatalf("remember: %v", err)
	}

	var seenPrompt string
	provider := &capturingProvider{onChat: func(msgs []llm.Message) llm.Message {
		for _, m := range msgs {
			if m.Role == "user" {
				seenPrompt = m.Content
			}
		}
		return llm.Message{Role: "assistant", Content: "ok"}
	}}
	reg := NewRegistry()
	e := newTestEngine(provider, reg, mem)

	if _, err := e.Run(ctx, "sess-1", "turn-1", "patient prefers morning appointments"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(seenPrompt, "[RECALLED MEMORY]") {
		t.Fatalf("expected recalled memory block in prompt, got %q", seenPrompt)
	}
}

type capturingProvider struct {
	onChat func(msgs []llm.Message) llm.Message
}

func (p *capturingProvider) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string, temperature float64) (llm.Message, error) {
	return p.onChat(msgs), nil
}

type fixtureEmbedderAdapter struct {
	e embedder.Embedder
}

func (f fixtureEmbedderAdapter) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func fixtureEmbedderFor(e embedder.Embedder) memory.Embedder {
	return fixtureEmbedderAdapter{e: e}
}
