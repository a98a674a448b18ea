package calendar_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calendar-mcp/internal/schema"
	"github.com/teemow/calendar-mcp/internal/server"
	"github.com/teemow/calendar-mcp/internal/tools/common"
)

// Config controls tool registration.
type Config struct {
	// User identifies the authenticated principal on whose behalf mutations
	// run. It scopes idempotency keys and appears in audit records. Usually
	// the Google account email.
	User string
}

var toolDescriptions = map[string]string{
	schema.ToolCreateEvent:   "Create a new Google Calendar event",
	schema.ToolUpdateEvent:   "Update an existing Google Calendar event",
	schema.ToolDeleteEvent:   "Delete a Google Calendar event",
	schema.ToolFreeBusyQuery: "Query free/busy information for Google Calendar",
}

// RegisterCalendarTools registers all calendar mutation tools with the MCP
// server. Every handler runs through the dispatch pipeline and returns the
// response envelope as JSON text content.
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext, cfg Config) error {
	for _, name := range schema.ToolNames() {
		desc, ok := toolDescriptions[name]
		if !ok {
			return fmt.Errorf("no description for tool %s", name)
		}

		tool := mcp.NewToolWithRawSchema(name, desc, schema.InputSchema(name))
		s.AddTool(tool, mcpserver.ToolHandlerFunc(common.InstrumentedToolHandler(name, sc, makeHandler(name, sc, cfg.User))))
	}
	return nil
}

func makeHandler(toolName string, sc *server.ServerContext, user string) common.ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if sc.IsShutdown() {
			return mcp.NewToolResultError("server is shutting down"), nil
		}

		envelope := sc.Router().Dispatch(ctx, toolName, request.GetArguments(), user)

		payload, err := json.MarshalIndent(envelope, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling response for %s: %w", toolName, err)
		}

		result := mcp.NewToolResultText(string(payload))
		result.IsError = !envelope.Success
		return result, nil
	}
}
