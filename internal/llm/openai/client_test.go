package openai

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
			"id":    "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": []map[string]any{
				{
					"index": 0,
					"message": map[string]any{
						"role":    "assistant",
						"content": "patient has a fracture",
					},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "gpt-4o-mini", srv.Client())
	out, err := c.Chat(t.Context(), []llm.Message{{Role: "user", Content: "describe the imaging finding"}}, nil, "", 0)
	require.NoError(t, err)
	require.Equal(t, "assistant", out.Role)
	require.Equal(t, "patient has a fracture", out.Content)
}

func TestChatParsesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "chatcmpl-2",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": []map[string]any{
				{
					"index": 0,
					"message": map[string]any{
						"role":    "assistant",
						"content": "",
						"tool_calls": []map[string]any{
							{
								"id":   "call_1",
								"type": "function",
								"function": map[string]any{
									"name":      "search_fhir_documents",
									"arguments": `{"patient_id":"p1"}`,
								},
							},
						},
					},
					"finish_reason": "tool_calls",
				},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "gpt-4o-mini", srv.Client())
	tools := []llm.ToolSchema{{Name: "search_fhir_documents", Parameters: map[string]any{"type": "object"}}}
	out, err := c.Chat(t.Context(), []llm.Message{{Role: "user", Content: "find documents for patient p1"}}, tools, "", 0)
	require.NoError(t, err)
	require.Len(t, out.ToolCalls, 1)
	require.Equal(t, "search_fhir_documents", out.ToolCalls[0].Name)
	require.JSONEq(t, `{"patient_id":"p1"}`, string(out.ToolCalls[0].Args))
}
