package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writePolicyFile(t, `
default:
  requires_approval: false
  max_calls_per_minute: 10
tools:
  confluence_create_page:
    requires_approval: true
    max_calls_per_minute: 5
`)
	doc, err := LoadFile(path)
	require.NoError(t, err)
	require.NotNil(t, doc.Default)
	assert.False(t, doc.Default.RequiresApproval)
	assert.Equal(t, 10, doc.Default.MaxCallsPerMinute)
	assert.Len(t, doc.Tools, 1)
	assert.True(t, doc.Tools["confluence_create_page"].RequiresApproval)
}

func TestLoadFileWithoutDefault(t *testing.T) {
	path := writePolicyFile(t, `
tools:
  confluence_search:
    requires_approval: false
    max_calls_per_minute: 30
`)
	doc, err := LoadFile(path)
	require.NoError(t, err)
	assert.Nil(t, doc.Default)
	assert.Equal(t, 30, doc.Tools["confluence_search"].MaxCallsPerMinute)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadFileMalformed(t *testing.T) {
	path := writePolicyFile(t, "tools: [not a map")
	_, err := LoadFile(path)
	assert.Error(t, err)
}
