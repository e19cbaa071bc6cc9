package reservation_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mvollmer/tablebook/internal/dispatch"
	"github.com/mvollmer/tablebook/internal/google"
	"github.com/mvollmer/tablebook/internal/instrumentation"
	"github.com/mvollmer/tablebook/internal/schema"
	"github.com/mvollmer/tablebook/internal/server"
	"github.com/mvollmer/tablebook/internal/tools/common"
)

// accountResolver builds the dispatcher's service resolver over the
// server context. The account is resolved per invocation: the transport
// may have stored one on the context, otherwise the default account's
// stored token is used.
func accountResolver(sc *server.ServerContext) dispatch.ServiceResolver {
	return func(ctx context.Context) (dispatch.ReservationService, error) {
		account, ok := common.AccountFromContext(ctx)
		if !ok {
			account = google.DefaultAccount
		}
		return sc.ServiceForAccount(account)
	}
}

// operationForTool maps a tool to the calendar operation it drives, for
// operation-level metrics.
func operationForTool(toolName string) string {
	switch toolName {
	case schema.ToolCreateReservation:
		return instrumentation.OperationInsert
	case schema.ToolCheckAvailability:
		return instrumentation.OperationList
	case schema.ToolCancelReservation:
		return instrumentation.OperationDelete
	}
	return ""
}

// RegisterReservationTools registers all reservation tools with the MCP
// server. Every tool is advertised from the shared schema registry and
// routed through the dispatcher, so the MCP transport enforces exactly
// the same validation and envelope as the HTTP gateway.
func RegisterReservationTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	registry, err := schema.NewRegistry()
	if err != nil {
		return fmt.Errorf("failed to build tool registry: %w", err)
	}

	d := dispatch.New(registry, accountResolver(sc), sc.Logger())
	d.SetMetrics(sc.Metrics())

	for _, def := range registry.List() {
		toolName := def.Name
		handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleToolCall(ctx, d, toolName, request)
		}
		s.AddTool(def.MCPTool(),
			common.InstrumentedToolHandlerWithOperation(toolName, operationForTool(toolName), sc, handler))
	}

	return nil
}

// handleToolCall runs one invocation through the dispatcher and renders
// the result envelope as the tool result. Failures come back as error
// results carrying the envelope, never as transport errors; the
// dispatcher has already classified them.
func handleToolCall(ctx context.Context, d *dispatch.Dispatcher, toolName string, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if args == nil {
		args = map[string]interface{}{}
	}

	// Pin the account before dispatch so the resolver sees the same one
	// the instrumentation records.
	ctx = common.ContextWithAccount(ctx, common.GetAccountFromArgs(ctx, args))

	res := d.Dispatch(ctx, toolName, args)

	payload, err := json.Marshal(res.Envelope())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}

	if !res.OK {
		return mcp.NewToolResultError(string(payload)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}
