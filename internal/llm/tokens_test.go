package llm

import (
	"encoding/json"
	"testing"

	"github.com/toolgate/toolgate/internal/session"
)

func TestEstimateTokens(t *testing.T) {
	t.Parallel()

	if got := EstimateTokens(""); got != 0 {
		t.Fatalf("empty = %d, want 0", got)
	}
	if got := EstimateTokens("hi"); got < 1 {
		t.Fatalf("short string = %d, want >= 1", got)
	}
	long := EstimateTokens("the quick brown fox jumps over the lazy dog")
	if long < 10 {
		t.Fatalf("sentence = %d, want >= 10", long)
	}
}

func TestEstimateMessagesCountsToolCalls(t *testing.T) {
	t.Parallel()

	plain := EstimateMessages([]session.Message{session.UserMessage("hello world")})
	withCall := EstimateMessages([]session.Message{
		session.UserMessage("hello world"),
		{Role: session.RoleAssistant, ToolCalls: []session.ToolCall{
			{ID: "c1", Name: "confluence_search", Args: json.RawMessage(`{"query":"hello"}`)},
		}},
	})
	if withCall <= plain {
		t.Fatalf("tool call should add to the estimate: %d <= %d", withCall, plain)
	}
}
