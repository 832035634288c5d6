// Package mcp implements the Model Context Protocol server exposing the
// podcast recommendation pipeline as tools for MCP-compatible agents.
package mcp

import (
	"context"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/serafis/podreco"
)

// serverInstructions is sent to every MCP client during the initialize
// handshake so a connected agent knows the create/load-more/engage
// workflow without per-project configuration.
const serverInstructions = `You have access to podreco, a podcast episode recommendation pipeline.

WORKFLOW:

1. Call podreco_create_session once per listener, with any known engagement
   history (clicks, listens, bookmarks). This returns the first page of a
   ranked queue plus a session_id.

2. Call podreco_load_more with that session_id to walk deeper into the same
   ranked queue. The queue is fixed at creation time — load_more never
   re-ranks, and never repeats an episode already shown or engaged.

3. Call podreco_engage whenever the listener interacts with an episode
   (click, listen, bookmark). This excludes the episode from future pages
   in the same session and, if a user_id was supplied, persists the
   engagement for future sessions.

Sessions expire after a TTL; once expired, podreco_load_more/podreco_engage
return a not-found error and a new session must be created.`

// Engine is the subset of the public App surface the MCP tools call.
// Kept as a narrow interface (rather than taking *podreco.App directly)
// so tests can substitute a fake; cmd/podreco passes the *podreco.App.
type Engine interface {
	CreateSession(ctx context.Context, engagements []podreco.Engagement, excludedIDs []string, userID string) (podreco.Page, error)
	LoadMore(ctx context.Context, sessionID string, limit int) (podreco.Page, error)
	Engage(ctx context.Context, sessionID, episodeID, engagementType, userID string) (int, error)
}

// Server wraps the MCP server around the recommendation pipeline.
type Server struct {
	mcpServer *mcpserver.MCPServer
	engine    Engine
	logger    *slog.Logger
}

// New creates and configures a new MCP server exposing
// podreco_create_session, podreco_load_more, and podreco_engage.
func New(engine Engine, logger *slog.Logger, version string) *Server {
	s := &Server{
		engine: engine,
		logger: logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"podreco",
		version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithInstructions(serverInstructions),
	)

	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
