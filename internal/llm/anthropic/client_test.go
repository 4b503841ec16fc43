package anthropic

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"clinicalrag/internal/llm"
)

func TestChatReturnsAssistantMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "msg_1",
			"type":  "message",
			"role":  "assistant",
			"model": "claude-3-7-sonnet-latest",
			"content": []map[string]any{
				{"type": "text", "text": "impression: no acute findings"},
			},
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 12, "output_tokens": 6},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "claude-3-7-sonnet-latest", srv.Client())
	out, err := c.Chat(t.Context(), []llm.Message{{Role: "user", Content: "summarize the radiology report"}}, nil, "", 0)
	require.NoError(t, err)
	require.Equal(t, "assistant", out.Role)
	require.Equal(t, "impression: no acute findings", out.Content)
}

func TestChatParsesToolUseBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "msg_2",
			"type":  "message",
			"role":  "assistant",
			"model": "claude-3-7-sonnet-latest",
			"content": []map[string]any{
				{
					"type":  "tool_use",
					"id":    "toolu_1",
					"name":  "search_knowledge_graph",
					"input": map[string]any{"entity": "pneumonia"},
				},
			},
			"stop_reason": "tool_use",
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 4},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "claude-3-7-sonnet-latest", srv.Client())
	tools := []llm.ToolSchema{{Name: "search_knowledge_graph", Parameters: map[string]any{"type": "object", "properties": map[string]any{}}}}
	out, err := c.Chat(t.Context(), []llm.Message{{Role: "user", Content: "find related entities"}}, tools, "", 0)
	require.NoError(t, err)
	require.Len(t, out.ToolCalls, 1)
	require.Equal(t, "search_knowledge_graph", out.ToolCalls[0].Name)
	require.JSONEq(t, `{"entity":"pneumonia"}`, string(out.ToolCalls[0].Args))
}

func TestAdaptMessagesRequiresAtLeastOneMessage(t *testing.T) {
	_, _, err := adaptMessages(nil)
	require.Error(t, err)
}

func TestAdaptToolsRejectsEmptyName(t *testing.T) {
	_, err := adaptTools([]llm.ToolSchema{{Name: "  "}})
	require.Error(t, err)
}
