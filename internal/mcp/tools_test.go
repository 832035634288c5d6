package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/serafis/podreco"
)

type fakeEngine struct {
	createCalled    bool
	gotEngagements  []podreco.Engagement
	gotExcluded     []string
	gotUserID       string
	loadMoreLimit   int
	loadMoreSession string
	engageType      string
	page            podreco.Page
	engagedCount    int
	err             error
}

func (f *fakeEngine) CreateSession(ctx context.Context, engagements []podreco.Engagement, excludedIDs []string, userID string) (podreco.Page, error) {
	f.createCalled = true
	f.gotEngagements = engagements
	f.gotExcluded = excludedIDs
	f.gotUserID = userID
	return f.page, f.err
}

func (f *fakeEngine) LoadMore(ctx context.Context, sessionID string, limit int) (podreco.Page, error) {
	f.loadMoreSession = sessionID
	f.loadMoreLimit = limit
	return f.page, f.err
}

func (f *fakeEngine) Engage(ctx context.Context, sessionID, episodeID, engagementType, userID string) (int, error) {
	f.loadMoreSession = sessionID
	f.engageType = engagementType
	return f.engagedCount, f.err
}

func parseToolText(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content in result")
	return ""
}

func newRequest(args map[string]any) mcplib.CallToolRequest {
	return mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Arguments: args,
		},
	}
}

func TestHandleCreateSessionParsesEngagementsAndExcludedIDs(t *testing.T) {
	fe := &fakeEngine{page: podreco.Page{SessionID: "s1"}}
	s := &Server{engine: fe}

	req := newRequest(map[string]any{
		"user_id":              "u1",
		"excluded_episode_ids": `["ep1","ep2"]`,
		"engagements":          `[{"episode_id":"ep3","type":"click","timestamp":"2026-01-01T00:00:00Z"}]`,
	})

	result, err := s.handleCreateSession(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError, "unexpected error result: %s", parseToolText(t, result))

	assert.True(t, fe.createCalled)
	assert.Equal(t, "u1", fe.gotUserID)
	assert.Equal(t, []string{"ep1", "ep2"}, fe.gotExcluded)
	require.Len(t, fe.gotEngagements, 1)
	assert.Equal(t, "ep3", fe.gotEngagements[0].EpisodeID)
	assert.Equal(t, podreco.EngagementClick, fe.gotEngagements[0].Type)

	var page podreco.Page
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &page))
	assert.Equal(t, "s1", page.SessionID)
}

func TestHandleCreateSessionRejectsMalformedEngagements(t *testing.T) {
	fe := &fakeEngine{}
	s := &Server{engine: fe}

	req := newRequest(map[string]any{
		"engagements": `[{"type":"click"}]`,
	})

	result, err := s.handleCreateSession(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.False(t, fe.createCalled)
}

func TestHandleCreateSessionWithNoArgumentsUsesDefaults(t *testing.T) {
	fe := &fakeEngine{page: podreco.Page{SessionID: "s2"}}
	s := &Server{engine: fe}

	result, err := s.handleCreateSession(context.Background(), newRequest(map[string]any{}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Empty(t, fe.gotExcluded)
	assert.Empty(t, fe.gotEngagements)
}

func TestHandleLoadMoreRequiresSessionID(t *testing.T) {
	fe := &fakeEngine{}
	s := &Server{engine: fe}

	result, err := s.handleLoadMore(context.Background(), newRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleLoadMoreUsesIntegerLimit(t *testing.T) {
	fe := &fakeEngine{page: podreco.Page{SessionID: "s1"}}
	s := &Server{engine: fe}

	req := newRequest(map[string]any{"session_id": "s1", "limit": float64(5)})
	result, err := s.handleLoadMore(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, 5, fe.loadMoreLimit)
}

func TestHandleEngageRequiresAllFields(t *testing.T) {
	fe := &fakeEngine{}
	s := &Server{engine: fe}

	result, err := s.handleEngage(context.Background(), newRequest(map[string]any{"session_id": "s1"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleEngageReturnsEngagedCount(t *testing.T) {
	fe := &fakeEngine{engagedCount: 3}
	s := &Server{engine: fe}

	req := newRequest(map[string]any{
		"session_id": "s1",
		"episode_id": "ep1",
		"type":       "listen",
	})
	result, err := s.handleEngage(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "listen", fe.engageType)
	assert.JSONEq(t, `{"engaged_count":3}`, parseToolText(t, result))
}
