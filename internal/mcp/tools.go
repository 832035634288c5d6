package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/serafis/podreco"
)

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcplib.NewTool("podreco_create_session",
			mcplib.WithDescription(`Start a new recommendation session for a listener, returning the first
page of a ranked episode queue.

WHEN TO USE: once per listener interaction, before podreco_load_more or
podreco_engage. If user_id is supplied, prior engagement history for that
listener is loaded automatically and used in place of any engagements
passed here; otherwise only the engagements passed in this call are used.

Returns a session_id — pass it to podreco_load_more and podreco_engage.`),
			mcplib.WithReadOnlyHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("user_id",
				mcplib.Description("Optional listener identity. When set, stored engagement history is loaded and new engagements are persisted against it."),
			),
			mcplib.WithString("excluded_episode_ids",
				mcplib.Description(`JSON array of episode IDs to exclude from the ranked queue regardless of engagement history, e.g. ["ep1","ep2"]. Omit for none.`),
			),
			mcplib.WithString("engagements",
				mcplib.Description(`JSON array of engagement history for this request, each item {"episode_id": "...", "type": "click|listen|bookmark|view", "timestamp": "RFC3339"}. Ignored when user_id is set; that listener's stored history is used instead.`),
			),
		),
		s.handleCreateSession,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("podreco_load_more",
			mcplib.WithDescription(`Fetch the next page from an existing session's ranked queue.

WHEN TO USE: after podreco_create_session, to page deeper into the same
ranked queue. Never re-ranks — it walks the queue built at session
creation, skipping episodes already shown or engaged.

Returns an error if session_id is unknown or has expired; call
podreco_create_session again in that case.`),
			mcplib.WithReadOnlyHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("session_id",
				mcplib.Description("session_id returned by podreco_create_session."),
				mcplib.Required(),
			),
			mcplib.WithNumber("limit",
				mcplib.Description("Maximum number of episodes to return in this page (default 10, max 20)."),
				mcplib.Min(1),
				mcplib.Max(20),
				mcplib.DefaultNumber(10),
			),
		),
		s.handleLoadMore,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("podreco_engage",
			mcplib.WithDescription(`Record a listener interaction with an episode (click, listen, bookmark,
view) and exclude it from future pages of the session.

WHEN TO USE: as soon as the listener interacts with a recommended
episode. If user_id was supplied, the engagement is also persisted for
future sessions.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("session_id",
				mcplib.Description("session_id returned by podreco_create_session."),
				mcplib.Required(),
			),
			mcplib.WithString("episode_id",
				mcplib.Description("ID (or content_id) of the episode being engaged with."),
				mcplib.Required(),
			),
			mcplib.WithString("type",
				mcplib.Description("Engagement type: click, listen, bookmark, or view."),
				mcplib.Required(),
			),
			mcplib.WithString("user_id",
				mcplib.Description("Optional listener identity; when set, the engagement is persisted for future sessions."),
			),
		),
		s.handleEngage,
	)
}

func (s *Server) handleCreateSession(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	userID := request.GetString("user_id", "")

	excluded, err := parseStringArray(request.GetString("excluded_episode_ids", ""))
	if err != nil {
		return errorResult(fmt.Sprintf("invalid excluded_episode_ids: %v", err)), nil
	}

	var rawEngagements []map[string]any
	if raw := request.GetString("engagements", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &rawEngagements); err != nil {
			return errorResult(fmt.Sprintf("invalid engagements: %v", err)), nil
		}
	}
	engagements, err := parseEngagements(rawEngagements)
	if err != nil {
		return errorResult(fmt.Sprintf("invalid engagements: %v", err)), nil
	}

	page, err := s.engine.CreateSession(ctx, engagements, excluded, userID)
	if err != nil {
		return errorResult(fmt.Sprintf("create session failed: %v", err)), nil
	}
	return jsonResult(page)
}

func (s *Server) handleLoadMore(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	if sessionID == "" {
		return errorResult("session_id is required"), nil
	}
	limit := request.GetInt("limit", 10)

	page, err := s.engine.LoadMore(ctx, sessionID, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("load more failed: %v", err)), nil
	}
	return jsonResult(page)
}

func (s *Server) handleEngage(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	episodeID := request.GetString("episode_id", "")
	engagementType := request.GetString("type", "")
	if sessionID == "" || episodeID == "" || engagementType == "" {
		return errorResult("session_id, episode_id, and type are required"), nil
	}
	userID := request.GetString("user_id", "")

	count, err := s.engine.Engage(ctx, sessionID, episodeID, engagementType, userID)
	if err != nil {
		return errorResult(fmt.Sprintf("engage failed: %v", err)), nil
	}
	return jsonResult(map[string]any{"engaged_count": count})
}

func parseStringArray(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseEngagements(raw []map[string]any) ([]podreco.Engagement, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]podreco.Engagement, 0, len(raw))
	for _, m := range raw {
		episodeID, _ := m["episode_id"].(string)
		engType, _ := m["type"].(string)
		if episodeID == "" || engType == "" {
			return nil, fmt.Errorf("each engagement requires episode_id and type")
		}
		e := podreco.Engagement{EpisodeID: episodeID, Type: engType}
		if ts, ok := m["timestamp"].(string); ok && ts != "" {
			parsed, err := time.Parse(time.RFC3339, ts)
			if err != nil {
				return nil, fmt.Errorf("invalid timestamp %q: %w", ts, err)
			}
			e.Timestamp = parsed
		}
		out = append(out, e)
	}
	return out, nil
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("marshal response: %v", err)), nil
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}
