package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/toolgate/toolgate/internal/governor"
	"github.com/toolgate/toolgate/internal/logger"
	"github.com/toolgate/toolgate/internal/policy"
	"github.com/toolgate/toolgate/internal/ratelimit"
)

func TestPoliciesList(t *testing.T) {
	t.Parallel()

	table, err := policy.NewTable(
		policy.ToolPolicy{RequiresApproval: true, MaxCallsPerMinute: 5},
		map[string]policy.ToolPolicy{
			"confluence_search":      {RequiresApproval: false, MaxCallsPerMinute: 2},
			"confluence_create_page": {RequiresApproval: true, MaxCallsPerMinute: 5},
		},
	)
	if err != nil {
		t.Fatalf("build policy table: %v", err)
	}
	gov := governor.NewService(logger.L, table, ratelimit.New())

	e := echo.New()
	NewPoliciesHandler(logger.L, gov).Register(e)

	req := httptest.NewRequest(http.MethodGet, "/policies", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var res PoliciesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !res.Default.RequiresApproval || res.Default.MaxCallsPerMinute != 5 {
		t.Fatalf("unexpected default policy: %+v", res.Default)
	}
	if len(res.Tools) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(res.Tools))
	}
	// List is sorted by tool name.
	if res.Tools[0].Tool != "confluence_create_page" || res.Tools[1].Tool != "confluence_search" {
		t.Fatalf("unexpected entry order: %+v", res.Tools)
	}
	if res.Tools[1].Policy.MaxCallsPerMinute != 2 {
		t.Fatalf("unexpected search policy: %+v", res.Tools[1].Policy)
	}
}
