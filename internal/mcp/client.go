// Package mcp connects the gateway to MCP servers and routes tool calls to
// whichever server advertises the tool.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/version"
)

// Tool is one callable tool advertised by a connected server.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
	Server      string         `json:"server"`
}

// Result is a normalized tool call outcome. IsError mirrors the MCP result
// flag: the call reached the tool but the tool reports failure.
type Result struct {
	Text    string
	IsError bool
}

// Client is the capability the gateway needs from one connected MCP server.
type Client interface {
	ListTools(ctx context.Context) ([]Tool, error)
	CallTool(ctx context.Context, name string, args json.RawMessage) (Result, error)
	Close() error
}

type sessionClient struct {
	server  string
	session *mcpsdk.ClientSession
}

// NewSessionClient wraps an established SDK session as a Client. The server
// name labels the tools it advertises.
func NewSessionClient(server string, session *mcpsdk.ClientSession) Client {
	return &sessionClient{server: server, session: session}
}

// Dial connects to the server described by cfg and performs the MCP handshake.
func Dial(ctx context.Context, server string, cfg config.MCPServerConfig) (Client, error) {
	transport, err := buildTransport(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("server %q: %w", server, err)
	}
	impl := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "toolgate", Version: version.Version}, nil)
	session, err := impl.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("server %q: connect: %w", server, err)
	}
	return NewSessionClient(server, session), nil
}

func (c *sessionClient) ListTools(ctx context.Context) ([]Tool, error) {
	var tools []Tool
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("server %q: list tools: %w", c.server, err)
		}
		tools = append(tools, Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: toSchemaMap(tool.InputSchema),
			Server:      c.server,
		})
	}
	return tools, nil
}

func (c *sessionClient) CallTool(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	arguments := map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return Result{}, fmt.Errorf("tool %q: invalid arguments: %w", name, err)
		}
	}
	res, err := c.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: arguments})
	if err != nil {
		return Result{}, fmt.Errorf("tool %q: %w", name, err)
	}
	return Result{Text: contentText(res.Content), IsError: res.IsError}, nil
}

func (c *sessionClient) Close() error {
	return c.session.Close()
}

// buildTransport infers the transport from the server declaration: a command
// means stdio, a url means streamable HTTP unless transport is "sse".
func buildTransport(ctx context.Context, cfg config.MCPServerConfig) (mcpsdk.Transport, error) {
	hasCommand := strings.TrimSpace(cfg.Command) != ""
	hasURL := strings.TrimSpace(cfg.URL) != ""

	if !hasCommand && !hasURL {
		return nil, fmt.Errorf("command or url is required")
	}
	if hasCommand && hasURL {
		return nil, fmt.Errorf("command and url are mutually exclusive")
	}

	if hasCommand {
		cmd := exec.CommandContext(ctx, strings.TrimSpace(cfg.Command), cfg.Args...)
		if len(cfg.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range cfg.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		if strings.TrimSpace(cfg.Cwd) != "" {
			cmd.Dir = strings.TrimSpace(cfg.Cwd)
		}
		return &mcpsdk.CommandTransport{Command: cmd}, nil
	}

	endpoint := strings.TrimSpace(cfg.URL)
	httpClient := &http.Client{}
	if len(cfg.Headers) > 0 {
		httpClient.Transport = &headerTransport{base: http.DefaultTransport, headers: cfg.Headers}
	}

	if strings.ToLower(strings.TrimSpace(cfg.Transport)) == "sse" {
		return &mcpsdk.SSEClientTransport{Endpoint: endpoint, HTTPClient: httpClient}, nil
	}
	return &mcpsdk.StreamableClientTransport{Endpoint: endpoint, HTTPClient: httpClient}, nil
}

// headerTransport injects static headers into every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	for k, v := range t.headers {
		cloned.Header.Set(k, v)
	}
	return t.base.RoundTrip(cloned)
}

// contentText flattens a tool result to text. Non-text content blocks are
// carried as their JSON encoding so nothing silently disappears.
func contentText(blocks []mcpsdk.Content) string {
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		if text, ok := block.(*mcpsdk.TextContent); ok {
			parts = append(parts, text.Text)
			continue
		}
		if raw, err := json.Marshal(block); err == nil {
			parts = append(parts, string(raw))
		}
	}
	return strings.Join(parts, "\n")
}

func toSchemaMap(schema any) map[string]any {
	if schema == nil {
		return nil
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
