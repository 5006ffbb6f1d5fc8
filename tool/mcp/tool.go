package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hupe1980/firegraph/tool"
)

type toolCaller interface {
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// remoteTool adapts a catalog entry of an MCP server to tool.Tool.
type remoteTool struct {
	caller toolCaller
	def    mcp.Tool
}

func newRemoteTool(caller toolCaller, def mcp.Tool) *remoteTool {
	return &remoteTool{caller: caller, def: def}
}

func (t *remoteTool) Name() string { return t.def.Name }

func (t *remoteTool) Description() string { return t.def.Description }

func (t *remoteTool) Parameters() map[string]any {
	schema := map[string]any{"type": "object"}
	if t.def.InputSchema.Type != "" {
		schema["type"] = t.def.InputSchema.Type
	}

	props := t.def.InputSchema.Properties
	if props == nil {
		props = map[string]any{}
	}
	schema["properties"] = props

	if len(t.def.InputSchema.Required) > 0 {
		schema["required"] = t.def.InputSchema.Required
	}

	return schema
}

// Call invokes the remote tool and returns its text content joined by newlines.
func (t *remoteTool) Call(ctx context.Context, args map[string]any) (any, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = t.def.Name
	req.Params.Arguments = args

	res, err := t.caller.CallTool(ctx, req)
	if err != nil {
		return nil, &tool.ToolError{Tool: t.def.Name, Message: err.Error(), Code: tool.CodeRemote, Details: err}
	}

	text := contentText(res.Content)
	if res.IsError {
		return nil, tool.NewToolError(t.def.Name, text, tool.CodeExecution)
	}

	return text, nil
}

func contentText(content []mcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		}
	}
	return strings.Join(parts, "\n")
}
