// Package session persists conversation state: the full message history, the
// tool schemas cached for the conversation, and any tool call suspended while
// it waits for human approval. Stores bound both dimensions the same way
// regardless of backend: records expire 24h after their last write (sliding
// expiry, reset on every put) and the least recently used record is evicted
// once the store holds more than its capacity.
package session

import (
	"encoding/json"
	"time"
)

// Message roles as they appear in persisted history and on the chat wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is one tool invocation requested by the model. Args holds the raw
// argument JSON exactly as the model produced it.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Message is one entry in a conversation history. Assistant messages may carry
// tool calls; tool messages carry the result for exactly one call, linked by
// ToolCallID.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// SystemMessage builds a system-role message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage builds a user-role message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage builds a plain-text assistant message.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// ToolResultMessage builds a tool-role message carrying the result of the
// call identified by callID.
func ToolResultMessage(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

// State tells whether a conversation can accept a normal user turn or is
// suspended on an approval question.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingApproval State = "awaiting_approval"
)

// PendingApproval records the single tool call a conversation is suspended
// on. There is at most one per conversation; the next user turn is consumed
// as the answer to it. Snapshot holds the exact message list at the point of
// suspension so an affirmative answer resumes from precisely that state, with
// the rest of the suspended batch recoverable from the snapshot's final
// assistant message.
type PendingApproval struct {
	Request  ToolCall  `json:"request"`
	Snapshot []Message `json:"snapshot"`
	AskedAt  time.Time `json:"asked_at"`
}

// CachedTool is one tool schema cached on the record after its first fetch,
// so a conversation keeps a stable tool view across turns.
type CachedTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Record is the unit of persistence: one conversation.
type Record struct {
	ID        string           `json:"id"`
	Messages  []Message        `json:"messages"`
	Tools     []CachedTool     `json:"tools,omitempty"`
	Pending   *PendingApproval `json:"pending,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewRecord creates an empty conversation record.
func NewRecord(id string, now time.Time) *Record {
	return &Record{ID: id, CreatedAt: now, UpdatedAt: now}
}

// State reports whether the conversation is idle or suspended on an approval.
func (r *Record) State() State {
	if r.Pending != nil {
		return StateAwaitingApproval
	}
	return StateIdle
}

// Append adds messages to the history.
func (r *Record) Append(msgs ...Message) {
	r.Messages = append(r.Messages, msgs...)
}

// Suspend marks the record as awaiting approval for call, capturing the
// current message list so an affirmative answer can resume from exactly this
// point.
func (r *Record) Suspend(call ToolCall, now time.Time) {
	r.Pending = &PendingApproval{
		Request:  call,
		Snapshot: cloneMessages(r.Messages),
		AskedAt:  now,
	}
}

// Clone returns a deep copy so callers can mutate freely before Put.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Messages = cloneMessages(r.Messages)
	out.Tools = append([]CachedTool(nil), r.Tools...)
	if r.Pending != nil {
		p := *r.Pending
		p.Snapshot = cloneMessages(r.Pending.Snapshot)
		out.Pending = &p
	}
	return &out
}

func cloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m
		if len(m.ToolCalls) > 0 {
			out[i].ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
		}
	}
	return out
}
