// Package mcpserver implements the supplemental Control Surface
// (SPEC_FULL.md §9.7): the Supervisor's start/stop/pause/resume/status/
// global_stats operations exposed as typed, schema-validated MCP tools.
// Generalized directly from the teacher's internal/mcpserver, which
// exposed git-provider operations the same way over
// github.com/mark3labs/mcp-go.
package mcpserver

import (
	"context"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/joestump/marketwatch/internal/supervisor"
)

// Server holds the MCP server state.
type Server struct {
	sup *supervisor.Supervisor
}

// NewServer returns an MCP server backed by sup.
func NewServer(sup *supervisor.Supervisor) *Server {
	return &Server{sup: sup}
}

// Run starts the MCP stdio server, blocking until ctx is cancelled or
// stdin closes.
func (s *Server) Run(ctx context.Context, version string) error {
	mcpServer := server.NewMCPServer(
		"marketwatch",
		version,
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTools(
		server.ServerTool{Tool: startUserTool(), Handler: s.handleStartUser},
		server.ServerTool{Tool: stopUserTool(), Handler: s.handleStopUser},
		server.ServerTool{Tool: pauseUserTool(), Handler: s.handlePauseUser},
		server.ServerTool{Tool: resumeUserTool(), Handler: s.handleResumeUser},
		server.ServerTool{Tool: userStatusTool(), Handler: s.handleUserStatus},
		server.ServerTool{Tool: globalStatsTool(), Handler: s.handleGlobalStats},
	)

	stdio := server.NewStdioServer(mcpServer)
	stdio.SetErrorLogger(log.New(os.Stderr, "[mcp] ", log.LstdFlags))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}
