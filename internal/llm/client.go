// Package llm talks to an OpenAI-compatible chat completions endpoint,
// advertising MCP tools as function schemas and normalizing the returned
// tool calls.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/session"
)

// ToolSpec describes one callable tool to the model. Parameters is a JSON
// Schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// CompletionRequest is one model invocation: the visible transcript plus the
// tools the model may call.
type CompletionRequest struct {
	Messages []session.Message
	Tools    []ToolSpec
}

// AssistantTurn is the model's reply: free text, requested tool calls, or both.
type AssistantTurn struct {
	Content   string
	ToolCalls []session.ToolCall
}

// Backend produces assistant turns. Implemented by Client; faked in tests.
type Backend interface {
	Complete(ctx context.Context, req CompletionRequest) (AssistantTurn, error)
}

// Client calls a chat completions endpoint over HTTP. Authentication is
// either a bearer API key or signed gateway headers; at least one must be
// configured.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	signer  *GatewaySigner
	logger  *slog.Logger
	http    *http.Client
}

func NewClient(log *slog.Logger, cfg config.LLMConfig) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("llm client: base url is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("llm client: model is required")
	}

	var signer *GatewaySigner
	if strings.TrimSpace(cfg.GatewayAuth.ConsumerID) != "" {
		s, err := NewGatewaySigner(cfg.GatewayAuth)
		if err != nil {
			return nil, fmt.Errorf("llm client: %w", err)
		}
		signer = s
	}
	if strings.TrimSpace(cfg.APIKey) == "" && signer == nil {
		return nil, fmt.Errorf("llm client: api key or gateway auth is required")
	}
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.LLMTimeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		signer:  signer,
		logger:  log.With(slog.String("client", "llm")),
		http: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Complete sends the transcript and returns the model's next turn.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (AssistantTurn, error) {
	if len(req.Messages) == 0 {
		return AssistantTurn{}, fmt.Errorf("messages is required")
	}

	c.logger.Debug("calling chat completions",
		slog.Int("messages", len(req.Messages)),
		slog.Int("tools", len(req.Tools)),
		slog.Int("estimated_tokens", EstimateMessages(req.Messages)),
	)

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: toWireMessages(req.Messages),
		Tools:    toWireTools(req.Tools),
	})
	if err != nil {
		return AssistantTurn{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return AssistantTurn{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.signer != nil {
		if err := c.signer.Sign(httpReq.Header); err != nil {
			return AssistantTurn{}, fmt.Errorf("sign llm request: %w", err)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return AssistantTurn{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return AssistantTurn{}, fmt.Errorf("llm error: %s", strings.TrimSpace(string(b)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return AssistantTurn{}, err
	}
	if len(parsed.Choices) == 0 {
		return AssistantTurn{}, fmt.Errorf("llm response missing choices")
	}

	msg := parsed.Choices[0].Message
	turn := AssistantTurn{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		args := strings.TrimSpace(tc.Function.Arguments)
		if args == "" {
			args = "{}"
		}
		turn.ToolCalls = append(turn.ToolCalls, session.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: json.RawMessage(args),
		})
	}
	if turn.Content == "" && len(turn.ToolCalls) == 0 {
		return AssistantTurn{}, fmt.Errorf("llm response missing content")
	}
	return turn, nil
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type wireTool struct {
	Type     string           `json:"type"`
	Function wireToolFunction `json:"function"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Tools    []wireTool    `json:"tools,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      wireMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

func toWireMessages(msgs []session.Message) []wireMessage {
	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		wm := wireMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: wireFunction{
					Name:      tc.Name,
					Arguments: string(tc.Args),
				},
			})
		}
		out = append(out, wm)
	}
	return out
}

func toWireTools(tools []ToolSpec) []wireTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]wireTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, wireTool{
			Type: "function",
			Function: wireToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}
