// Package policy defines per-tool governance rules: whether a tool call needs
// human approval and how many calls per minute it is allowed.
package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/toolgate/toolgate/internal/config"
)

// ToolPolicy is the governance rule for one tool name.
type ToolPolicy struct {
	RequiresApproval  bool `json:"requires_approval" yaml:"requires_approval"`
	MaxCallsPerMinute int  `json:"max_calls_per_minute" yaml:"max_calls_per_minute"`
}

// Default gates any tool without an explicit policy: approval required and a
// low rate ceiling. Unknown tools are never silently allowed.
var Default = ToolPolicy{RequiresApproval: true, MaxCallsPerMinute: 5}

// Entry pairs a tool name with its policy, for listing.
type Entry struct {
	Tool   string     `json:"tool"`
	Policy ToolPolicy `json:"policy"`
}

// Table maps tool names to policies. Lookup falls back to the table's default
// for unknown names. A Table is immutable after construction and safe for
// concurrent readers.
type Table struct {
	fallback ToolPolicy
	entries  map[string]ToolPolicy
}

// NewTable builds a table from a fallback policy and per-tool entries.
// Every policy must have a positive MaxCallsPerMinute.
func NewTable(fallback ToolPolicy, entries map[string]ToolPolicy) (*Table, error) {
	if fallback.MaxCallsPerMinute <= 0 {
		return nil, fmt.Errorf("default policy: max_calls_per_minute must be positive, got %d", fallback.MaxCallsPerMinute)
	}
	table := map[string]ToolPolicy{}
	for name, p := range entries {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("policy entry with empty tool name")
		}
		if p.MaxCallsPerMinute <= 0 {
			return nil, fmt.Errorf("policy for %s: max_calls_per_minute must be positive, got %d", name, p.MaxCallsPerMinute)
		}
		table[name] = p
	}
	return &Table{fallback: fallback, entries: table}, nil
}

// Lookup returns the policy for tool, or the fallback for unknown names.
func (t *Table) Lookup(tool string) ToolPolicy {
	if p, ok := t.entries[strings.TrimSpace(tool)]; ok {
		return p
	}
	return t.fallback
}

// Fallback returns the policy applied to unknown tool names.
func (t *Table) Fallback() ToolPolicy {
	return t.fallback
}

// List returns all explicit entries sorted by tool name.
func (t *Table) List() []Entry {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{Tool: name, Policy: t.entries[name]})
	}
	return entries
}

// FromConfig builds the table from the TOML policy section, applying the
// optional YAML overlay file on top of the TOML-declared tools.
func FromConfig(cfg config.PolicyConfig) (*Table, error) {
	fallback := ToolPolicy{
		RequiresApproval:  cfg.Default.RequiresApproval,
		MaxCallsPerMinute: cfg.Default.MaxCallsPerMinute,
	}
	entries := map[string]ToolPolicy{}
	for name, e := range cfg.Tools {
		entries[name] = ToolPolicy{
			RequiresApproval:  e.RequiresApproval,
			MaxCallsPerMinute: e.MaxCallsPerMinute,
		}
	}

	if strings.TrimSpace(cfg.File) != "" {
		overlay, err := LoadFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("policy file: %w", err)
		}
		if overlay.Default != nil {
			fallback = *overlay.Default
		}
		for name, p := range overlay.Tools {
			entries[name] = p
		}
	}

	return NewTable(fallback, entries)
}
