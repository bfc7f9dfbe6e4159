package conversation

import (
	"context"
	"encoding/json"

	"github.com/toolgate/toolgate/internal/mcp"
)

// ToolTransport is the slice of the tool layer the loop depends on: the
// advertised catalog and name-routed invocation. *mcp.Router satisfies it.
type ToolTransport interface {
	Tools() []mcp.Tool
	CallTool(ctx context.Context, name string, args json.RawMessage) (mcp.Result, error)
}
