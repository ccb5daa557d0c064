package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for searchsync resources.
	uriScheme = "searchsync://"

	historyResourceLimit = 20
	behaviorDays         = 30
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	if s.ports.Scheduler != nil {
		s.server.AddResource(&mcp.Resource{
			URI:         uriScheme + "sync/status",
			Name:        "sync-status",
			Description: "Current state of the sync scheduler",
			MIMEType:    "application/json",
		}, s.handleSyncStatusResource)

		s.server.AddResource(&mcp.Resource{
			URI:         uriScheme + "sync/history",
			Name:        "sync-history",
			Description: "Recent sync passes, most recent first",
			MIMEType:    "application/json",
		}, s.handleSyncHistoryResource)
	}

	if s.ports.Analytics != nil {
		s.server.AddResourceTemplate(&mcp.ResourceTemplate{
			URITemplate: uriScheme + "analytics/trends/{days}",
			Name:        "search-trends",
			Description: "Daily search volume over the last days",
			MIMEType:    "application/json",
		}, s.handleTrendsResource)

		s.server.AddResourceTemplate(&mcp.ResourceTemplate{
			URITemplate: uriScheme + "users/{userId}/behavior",
			Name:        "user-behavior",
			Description: "Search behaviour of one user over the last 30 days",
			MIMEType:    "application/json",
		}, s.handleUserBehaviorResource)
	}
}

// handleSyncStatusResource returns the scheduler status.
func (s *Server) handleSyncStatusResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	status := s.ports.Scheduler.Status()

	type statusInfo struct {
		Running  bool   `json:"running"`
		State    string `json:"state"`
		LastSync string `json:"lastSync,omitempty"`
		Interval string `json:"interval"`
		LastPass any    `json:"lastPass,omitempty"`
	}
	info := statusInfo{
		Running:  status.Running,
		State:    string(status.State),
		Interval: status.Interval.String(),
	}
	if !status.LastSync.IsZero() {
		info.LastSync = status.LastSync.UTC().Format(time.RFC3339)
	}
	if status.LastResult != nil {
		info.LastPass = status.LastResult
	}
	return jsonResult(req.Params.URI, info)
}

// handleSyncHistoryResource returns recent sync passes.
func (s *Server) handleSyncHistoryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	history, err := s.ports.Scheduler.History(ctx, historyResourceLimit)
	if err != nil {
		return nil, fmt.Errorf("reading sync history: %w", err)
	}
	return jsonResult(req.Params.URI, history)
}

// handleTrendsResource returns daily search volume.
func (s *Server) handleTrendsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	days := extractDays(req.Params.URI)
	if days <= 0 {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	trends, err := s.ports.Analytics.SearchTrends(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("reading search trends: %w", err)
	}
	return jsonResult(req.Params.URI, trends)
}

// handleUserBehaviorResource returns one user's search behaviour.
func (s *Server) handleUserBehaviorResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	userID := extractUserID(req.Params.URI)
	if userID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	behavior, err := s.ports.Analytics.UserBehavior(ctx, userID, behaviorDays)
	if err != nil {
		return nil, fmt.Errorf("reading user behaviour: %w", err)
	}
	return jsonResult(req.Params.URI, behavior)
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractDays extracts the day count from a URI like searchsync://analytics/trends/{days}.
func extractDays(uri string) int {
	const prefix = uriScheme + "analytics/trends/"

	if !strings.HasPrefix(uri, prefix) {
		return 0
	}

	days, err := strconv.Atoi(strings.TrimPrefix(uri, prefix))
	if err != nil {
		return 0
	}
	return days
}

// extractUserID extracts the user ID from a URI like searchsync://users/{userId}/behavior.
func extractUserID(uri string) string {
	const prefix = uriScheme + "users/"
	const suffix = "/behavior"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}

	return strings.TrimSuffix(uri, suffix)
}
