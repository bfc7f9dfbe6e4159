package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/toolgate/toolgate/internal/config"
)

func TestLookupFallsBackForUnknownTools(t *testing.T) {
	table, err := NewTable(Default, map[string]ToolPolicy{
		"confluence_search": {RequiresApproval: false, MaxCallsPerMinute: 20},
	})
	if err != nil {
		t.Fatalf("new table: %v", err)
	}

	got := table.Lookup("confluence_search")
	if got.RequiresApproval || got.MaxCallsPerMinute != 20 {
		t.Fatalf("unexpected policy: %+v", got)
	}

	unknown := table.Lookup("rm_rf_everything")
	if !unknown.RequiresApproval {
		t.Fatal("unknown tools must require approval")
	}
	if unknown.MaxCallsPerMinute != Default.MaxCallsPerMinute {
		t.Fatalf("unknown tools must get the default rate, got %d", unknown.MaxCallsPerMinute)
	}
}

func TestNewTableRejectsNonPositiveRate(t *testing.T) {
	if _, err := NewTable(ToolPolicy{RequiresApproval: true}, nil); err == nil {
		t.Fatal("expected error for zero default rate")
	}
	_, err := NewTable(Default, map[string]ToolPolicy{
		"broken": {RequiresApproval: false, MaxCallsPerMinute: 0},
	})
	if err == nil {
		t.Fatal("expected error for zero tool rate")
	}
}

func TestListIsSorted(t *testing.T) {
	table, err := NewTable(Default, map[string]ToolPolicy{
		"zeta":  {RequiresApproval: true, MaxCallsPerMinute: 1},
		"alpha": {RequiresApproval: false, MaxCallsPerMinute: 2},
	})
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	entries := table.List()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Tool != "alpha" || entries[1].Tool != "zeta" {
		t.Fatalf("entries not sorted: %+v", entries)
	}
}

func TestFromConfigAppliesYAMLOverlay(t *testing.T) {
	overlay := `
default:
  requires_approval: true
  max_calls_per_minute: 3
tools:
  confluence_create_page:
    requires_approval: true
    max_calls_per_minute: 5
  confluence_search:
    requires_approval: false
    max_calls_per_minute: 30
`
	path := filepath.Join(t.TempDir(), "policies.yaml")
	if err := os.WriteFile(path, []byte(overlay), 0o600); err != nil {
		t.Fatalf("write overlay: %v", err)
	}

	table, err := FromConfig(config.PolicyConfig{
		File:    path,
		Default: config.PolicyEntry{RequiresApproval: true, MaxCallsPerMinute: 5},
		Tools: map[string]config.PolicyEntry{
			"confluence_search": {RequiresApproval: false, MaxCallsPerMinute: 20},
		},
	})
	if err != nil {
		t.Fatalf("from config: %v", err)
	}

	// Overlay overrides both the default and the TOML entry.
	if table.Fallback().MaxCallsPerMinute != 3 {
		t.Fatalf("expected overlay default, got %+v", table.Fallback())
	}
	if got := table.Lookup("confluence_search"); got.MaxCallsPerMinute != 30 {
		t.Fatalf("expected overlay rate 30, got %+v", got)
	}
	if got := table.Lookup("confluence_create_page"); !got.RequiresApproval || got.MaxCallsPerMinute != 5 {
		t.Fatalf("expected overlay entry, got %+v", got)
	}
}

func TestFromConfigMissingOverlayFileFails(t *testing.T) {
	_, err := FromConfig(config.PolicyConfig{
		File:    filepath.Join(t.TempDir(), "absent.yaml"),
		Default: config.PolicyEntry{RequiresApproval: true, MaxCallsPerMinute: 5},
	})
	if err == nil {
		t.Fatal("expected error for missing overlay file")
	}
}
