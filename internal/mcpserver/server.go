// Package mcpserver exposes the spec.md §4.9 tool catalog over the Model
// Context Protocol, so an external MCP-speaking client can call the same
// retrieval/visualization/memory tools the agent loop dispatches internally.
// Grounded on the teacher's RunMCP (mcp.go): one stdio server, one
// registered tool per catalog entry, a typed response per call.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"clinicalrag/internal/agent"
)

// Run builds an MCP server over reg's full tool catalog and serves it on
// stdio until ctx is cancelled or the transport closes.
func Run(ctx context.Context, reg *agent.Registry, name, version string) error {
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)

	for _, spec := range reg.Spec() {
		schema, err := toJSONSchema(spec.Parameters)
		if err != nil {
			return fmt.Errorf("building input schema for %s: %w", spec.Name, err)
		}
		mcp.AddTool(server, &mcp.Tool{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: schema,
		}, toolHandler(reg, spec.Name))
	}

	log.Ctx(ctx).Info().Int("tool_count", len(reg.Spec())).Msg("starting MCP stdio server")
	return server.Run(ctx, &mcp.StdioTransport{})
}

// toolHandler adapts one agent.Registry entry to the SDK's generic
// AddTool callback shape. Arguments arrive pre-decoded into a
// map[string]any (tool schemas here are plain JSON objects, not Go
// structs), matching agent.Tool.Execute's own argument shape exactly.
func toolHandler(reg *agent.Registry, name string) func(context.Context, *mcp.CallToolRequest, map[string]any) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		result, err := reg.Execute(ctx, name, args)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil, nil
		}

		payload, err := json.Marshal(result)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "encoding tool result: " + err.Error()}},
				IsError: true,
			}, nil, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
			IsError: result.Status == "fail",
		}, nil, nil
	}
}

// toJSONSchema round-trips a tool's parameter map (already plain JSON-Schema
// vocabulary, per internal/tools' Describe() implementations) through JSON
// into the SDK's typed Schema, rather than hand-mapping every field name.
func toJSONSchema(params map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}
