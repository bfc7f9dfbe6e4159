package conversation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/toolgate/toolgate/internal/session"
)

// defaultSystemPrompt seeds position 0 of every new conversation unless
// overridden in configuration.
const defaultSystemPrompt = "You are a helpful assistant with access to external tools. " +
	"Use the available tools when they help answer the user's question, and answer " +
	"directly when they do not. Be concise and accurate."

// approvalPrompt is the text returned to the caller when a tool call suspends
// the turn. The next submitted message is consumed as the answer.
func approvalPrompt(call session.ToolCall) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tool %q requires approval.\n", call.Name)
	fmt.Fprintf(&b, "Arguments: %s\n", prettyArgs(call.Args))
	b.WriteString(`Type "y" to approve, anything else to deny:`)
	return b.String()
}

// prettyArgs indents the raw argument JSON for display, preserving the key
// order the model produced. Unparseable arguments are echoed verbatim.
func prettyArgs(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func rateLimitNotice(tool string) string {
	return fmt.Sprintf("Rate limit exceeded for tool %s", tool)
}

func denialNotice(tool string) string {
	return fmt.Sprintf("Tool call %q was denied by the user.", tool)
}

// isAffirmative reports whether an approval answer grants the pending call.
// Only an explicit yes approves; anything else denies.
func isAffirmative(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
