// Package mcp exposes scenario execution as MCP tools over stdio, so
// agent frameworks can validate, run and step through scenarios
// without shelling out.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/stagewright/internal/manager"
)

// Server wraps the MCP SDK server around a session manager.
type Server struct {
	mcpServer *mcpsdk.Server
	mgr       *manager.Manager
}

// New creates an MCP server with every scenario tool registered.
func New(mgr *manager.Manager) *Server {
	s := &Server{mgr: mgr}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "stagewright",
			Version: "0.1.0",
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is
// cancelled. Live sessions are ended on the way out.
func (s *Server) Run(ctx context.Context) error {
	err := s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
	s.mgr.CloseAll(context.Background())
	return err
}

// registerTools adds all scenario tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "scenario_validate",
		Description: "Validate a scenario document without running it. Returns structure counts and warnings for unresolved account references.",
	}, s.handleValidate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "scenario_run",
		Description: "Run a whole scenario in batch: every part and step in order. Returns the aggregate outcome and where results were saved.",
	}, s.handleRun)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "scenario_start",
		Description: "Start an interactive session resting before the first step. Use scenario_step to execute steps one at a time.",
	}, s.handleStart)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "scenario_step",
		Description: "Execute the session's current step and advance. retry re-runs the same step without advancing; skip records it as skipped without executing.",
	}, s.handleStep)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "scenario_end",
		Description: "End an interactive session: save its results, release the browser page and return the final counts.",
	}, s.handleEnd)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "scenario_sessions",
		Description: "List live interactive sessions, oldest first.",
	}, s.handleSessions)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "scenario_info",
		Description: "Inspect one live session: cursor position, counts and status.",
	}, s.handleInfo)
}
