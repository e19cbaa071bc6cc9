package schema

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPTool converts the definition into an mcp-go tool declaration so the
// MCP transport advertises exactly the schema the dispatcher enforces.
// Integer fields are advertised as JSON numbers; the dispatcher still
// rejects non-integral values.
func (d ToolDefinition) MCPTool() mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(d.Description)}

	for name, field := range d.Input.Properties {
		var propOpts []mcp.PropertyOption
		if d.Input.IsRequired(name) {
			propOpts = append(propOpts, mcp.Required())
		}
		if field.Description != "" {
			propOpts = append(propOpts, mcp.Description(field.Description))
		}

		switch field.Type {
		case TypeInteger, TypeNumber:
			opts = append(opts, mcp.WithNumber(name, propOpts...))
		default:
			opts = append(opts, mcp.WithString(name, propOpts...))
		}
	}

	return mcp.NewTool(d.Name, opts...)
}
