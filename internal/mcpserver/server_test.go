package mcpserver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToJSONSchemaRoundTripsToolParameters(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
			"top_k": map[string]any{"type": "integer"},
		},
		"required": []any{"query"},
	}

	schema, err := toJSONSchema(params)
	require.NoError(t, err)
	require.NotNil(t, schema)

	out, err := json.Marshal(schema)
	require.NoError(t, err)
	require.Contains(t, string(out), `"query"`)
	require.Contains(t, string(out), `"object"`)
}

func TestToJSONSchemaRejectsUnmarshalableInput(t *testing.T) {
	params := map[string]any{"bad": make(chan int)}
	_, err := toJSONSchema(params)
	require.Error(t, err)
}
