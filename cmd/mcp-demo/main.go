// The mcp-demo binary is a stdio MCP server with a few harmless tools, enough
// to exercise the gateway's approval and rate limiting end to end without any
// external service. Point a [mcp.servers] block at it:
//
//	[mcp.servers.demo]
//	command = "toolgate-mcp-demo"
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/toolgate/toolgate/internal/logger"
	"github.com/toolgate/toolgate/internal/version"
)

type currentTimeArgs struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"IANA timezone name, defaults to UTC"`
}

type echoTextArgs struct {
	Text string `json:"text" jsonschema:"text to echo back"`
}

type randomUUIDArgs struct {
	Count int `json:"count,omitempty" jsonschema:"how many UUIDs to generate, defaults to 1"`
}

func main() {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "text"
	}
	logger.Init(logLevel, logFormat)

	server, err := buildServer()
	if err != nil {
		logger.Error("build mcp server", slog.Any("error", err))
		os.Exit(1)
	}
	if err := server.Run(context.Background(), &gomcp.StdioTransport{}); err != nil {
		logger.Error("mcp server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func buildServer() (*gomcp.Server, error) {
	server := gomcp.NewServer(
		&gomcp.Implementation{Name: "toolgate-demo", Version: version.Version},
		nil,
	)

	timeSchema, err := jsonschema.For[currentTimeArgs](nil)
	if err != nil {
		return nil, fmt.Errorf("current_time schema: %w", err)
	}
	gomcp.AddTool(server, &gomcp.Tool{
		Name:        "current_time",
		Description: "Current time in the given timezone (default UTC).",
		InputSchema: timeSchema,
	}, currentTime)

	echoSchema, err := jsonschema.For[echoTextArgs](nil)
	if err != nil {
		return nil, fmt.Errorf("echo_text schema: %w", err)
	}
	gomcp.AddTool(server, &gomcp.Tool{
		Name:        "echo_text",
		Description: "Echo the given text back unchanged.",
		InputSchema: echoSchema,
	}, echoText)

	uuidSchema, err := jsonschema.For[randomUUIDArgs](nil)
	if err != nil {
		return nil, fmt.Errorf("random_uuid schema: %w", err)
	}
	gomcp.AddTool(server, &gomcp.Tool{
		Name:        "random_uuid",
		Description: "Generate one or more random UUIDs.",
		InputSchema: uuidSchema,
	}, randomUUID)

	return server, nil
}

func currentTime(_ context.Context, _ *gomcp.CallToolRequest, args currentTimeArgs) (*gomcp.CallToolResult, any, error) {
	loc := time.UTC
	if tz := strings.TrimSpace(args.Timezone); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return textError(fmt.Sprintf("unknown timezone %q", tz)), nil, nil
		}
		loc = parsed
	}
	return textResult(time.Now().In(loc).Format(time.RFC3339)), nil, nil
}

func echoText(_ context.Context, _ *gomcp.CallToolRequest, args echoTextArgs) (*gomcp.CallToolResult, any, error) {
	return textResult(args.Text), nil, nil
}

func randomUUID(_ context.Context, _ *gomcp.CallToolRequest, args randomUUIDArgs) (*gomcp.CallToolResult, any, error) {
	count := args.Count
	if count <= 0 {
		count = 1
	}
	if count > 20 {
		count = 20
	}
	ids := make([]string, count)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	return textResult(strings.Join(ids, "\n")), nil, nil
}

func textResult(text string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: text}},
	}
}

func textError(text string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: text}},
		IsError: true,
	}
}
