package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/session"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(nil, config.LLMConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "gpt-4o",
	})
	if err != nil {
		t.Fatalf("new llm client: %v", err)
	}
	return client
}

func TestCompleteReturnsToolCalls(t *testing.T) {
	t.Parallel()

	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"","tool_calls":[` +
			`{"id":"call_1","type":"function","function":{"name":"confluence_search","arguments":"{\"query\":\"roadmap\"}"}}]}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	turn, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []session.Message{session.UserMessage("find the roadmap")},
		Tools: []ToolSpec{{
			Name:        "confluence_search",
			Description: "Search pages",
			Parameters:  map[string]any{"type": "object"},
		}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(turn.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(turn.ToolCalls))
	}
	tc := turn.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "confluence_search" {
		t.Fatalf("unexpected tool call: %+v", tc)
	}
	var args map[string]string
	if err := json.Unmarshal(tc.Args, &args); err != nil || args["query"] != "roadmap" {
		t.Fatalf("unexpected args %s: %v", tc.Args, err)
	}

	if captured.Model != "gpt-4o" {
		t.Fatalf("request model = %q", captured.Model)
	}
	if len(captured.Tools) != 1 || captured.Tools[0].Type != "function" || captured.Tools[0].Function.Name != "confluence_search" {
		t.Fatalf("unexpected tools on the wire: %+v", captured.Tools)
	}
}

func TestCompleteReturnsText(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"All done."}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	turn, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []session.Message{session.UserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if turn.Content != "All done." || len(turn.ToolCalls) != 0 {
		t.Fatalf("unexpected turn: %+v", turn)
	}
}

func TestCompleteSendsToolResults(t *testing.T) {
	t.Parallel()

	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Found 3 pages."}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []session.Message{
			session.UserMessage("search"),
			{Role: session.RoleAssistant, ToolCalls: []session.ToolCall{
				{ID: "call_1", Name: "confluence_search", Args: json.RawMessage(`{"query":"x"}`)},
			}},
			session.ToolResultMessage("call_1", `{"results":3}`),
		},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(captured.Messages) != 3 {
		t.Fatalf("got %d wire messages, want 3", len(captured.Messages))
	}
	asst := captured.Messages[1]
	if len(asst.ToolCalls) != 1 || asst.ToolCalls[0].Type != "function" || asst.ToolCalls[0].Function.Arguments != `{"query":"x"}` {
		t.Fatalf("unexpected assistant wire message: %+v", asst)
	}
	if captured.Messages[2].ToolCallID != "call_1" {
		t.Fatalf("tool result missing call id: %+v", captured.Messages[2])
	}
}

func TestCompleteBackendError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream unavailable`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []session.Message{session.UserMessage("hi")},
	})
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(nil, config.LLMConfig{APIKey: "k", Model: "m"}); err == nil {
		t.Fatal("missing base url should fail")
	}
	if _, err := NewClient(nil, config.LLMConfig{BaseURL: "http://x", APIKey: "k"}); err == nil {
		t.Fatal("missing model should fail")
	}
	if _, err := NewClient(nil, config.LLMConfig{BaseURL: "http://x", Model: "m"}); err == nil {
		t.Fatal("missing credentials should fail")
	}
}
