package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/toolgate/toolgate/internal/governor"
	"github.com/toolgate/toolgate/internal/logger"
	"github.com/toolgate/toolgate/internal/mcp"
	"github.com/toolgate/toolgate/internal/policy"
	"github.com/toolgate/toolgate/internal/ratelimit"
)

type staticMCPClient struct {
	tools []mcp.Tool
}

func (c *staticMCPClient) ListTools(_ context.Context) ([]mcp.Tool, error) { return c.tools, nil }

func (c *staticMCPClient) CallTool(_ context.Context, _ string, _ json.RawMessage) (mcp.Result, error) {
	return mcp.Result{}, nil
}

func (c *staticMCPClient) Close() error { return nil }

func TestToolsList(t *testing.T) {
	t.Parallel()

	router := mcp.NewRouter(logger.L)
	err := router.Register("confluence", &staticMCPClient{tools: []mcp.Tool{
		{Name: "confluence_search", Description: "Search pages", Server: "confluence"},
		{Name: "confluence_create_page", Description: "Create a page", Server: "confluence"},
	}})
	if err != nil {
		t.Fatalf("register server: %v", err)
	}
	if err := router.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh catalog: %v", err)
	}

	table, err := policy.NewTable(
		policy.ToolPolicy{RequiresApproval: true, MaxCallsPerMinute: 5},
		map[string]policy.ToolPolicy{
			"confluence_search": {RequiresApproval: false, MaxCallsPerMinute: 2},
		},
	)
	if err != nil {
		t.Fatalf("build policy table: %v", err)
	}
	gov := governor.NewService(logger.L, table, ratelimit.New())

	e := echo.New()
	NewToolsHandler(logger.L, router, gov).Register(e)

	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var res ToolsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(res.Tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(res.Tools))
	}
	// Catalog is sorted by name; create_page falls back to the default policy.
	if res.Tools[0].Name != "confluence_create_page" {
		t.Fatalf("unexpected first tool: %+v", res.Tools[0])
	}
	if !res.Tools[0].Policy.RequiresApproval || res.Tools[0].Policy.MaxCallsPerMinute != 5 {
		t.Fatalf("expected fallback policy for create_page, got %+v", res.Tools[0].Policy)
	}
	if res.Tools[1].Name != "confluence_search" || res.Tools[1].Policy.RequiresApproval {
		t.Fatalf("expected explicit search policy, got %+v", res.Tools[1])
	}
}
