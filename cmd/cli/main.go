// The cli binary talks to a running Toolgate gateway: it logs in, then sends
// prompt turns for one conversation. Without arguments it runs an interactive
// loop; with arguments it sends them as a single turn. When the gateway asks
// for a tool approval, the next line typed is the answer.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/handlers"
	"github.com/toolgate/toolgate/internal/logger"
	"github.com/toolgate/toolgate/internal/session"
	"github.com/toolgate/toolgate/internal/version"
)

type cliOptions struct {
	configPath     string
	username       string
	password       string
	timeout        time.Duration
	apiBaseURL     string
	jwtToken       string
	conversationID string
	showVersion    bool
}

func parseFlags() cliOptions {
	var opts cliOptions
	defaultConfig := os.Getenv("CONFIG_PATH")
	if strings.TrimSpace(defaultConfig) == "" {
		defaultConfig = config.DefaultConfigPath
	}

	flag.StringVar(&opts.configPath, "config", defaultConfig, "Path to config.toml")
	flag.StringVar(&opts.username, "username", "", "Username for login")
	flag.StringVar(&opts.password, "password", "", "Password for login (or set TOOLGATE_PASSWORD)")
	flag.StringVar(&opts.jwtToken, "jwt", "", "JWT token (optional)")
	flag.StringVar(&opts.apiBaseURL, "api-url", "", "API server base URL (e.g. http://127.0.0.1:8080)")
	flag.StringVar(&opts.conversationID, "conversation", "", "Conversation ID (default: a fresh UUID)")
	flag.DurationVar(&opts.timeout, "timeout", 120*time.Second, "Request timeout")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version information")
	flag.Parse()

	return opts
}

func main() {
	opts := parseFlags()
	if opts.showVersion {
		fmt.Printf("Toolgate CLI %s\n", version.GetInfo())
		return
	}
	ctx := context.Background()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	gw := &gatewayClient{
		http:    &http.Client{Timeout: opts.timeout},
		baseURL: baseURLFor(opts.apiBaseURL, cfg.Server.Addr),
		token:   strings.TrimSpace(opts.jwtToken),
	}
	if gw.baseURL == "" {
		logger.Error("api url is required")
		os.Exit(1)
	}

	// Only authenticate when the gateway has auth enabled at all.
	if gw.token == "" && strings.TrimSpace(cfg.Auth.JWTSecret) != "" {
		if err := gw.login(ctx, opts, cfg); err != nil {
			logger.Error("login failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	conversationID := strings.TrimSpace(opts.conversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	if query := strings.TrimSpace(strings.Join(flag.Args(), " ")); query != "" {
		if err := gw.prompt(ctx, conversationID, query); err != nil {
			logger.Error("prompt failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}
	if err := interactiveLoop(ctx, gw, conversationID); err != nil {
		logger.Error("prompt failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// baseURLFor picks the explicit flag value or derives one from the server
// listen address in the shared config file.
func baseURLFor(flagValue, listenAddr string) string {
	value := strings.TrimSpace(flagValue)
	if value == "" {
		value = strings.TrimSpace(listenAddr)
		switch {
		case value == "":
		case strings.HasPrefix(value, "http://"), strings.HasPrefix(value, "https://"):
		case strings.HasPrefix(value, ":"):
			value = "http://127.0.0.1" + value
		default:
			value = "http://" + value
		}
	}
	return strings.TrimRight(value, "/")
}

// gatewayClient is the HTTP surface of a running gateway, plus the bearer
// token once login has happened.
type gatewayClient struct {
	http    *http.Client
	baseURL string
	token   string
}

// postJSON sends one JSON request and decodes the JSON response into out.
// Any non-2xx status is returned as an error carrying the response body.
func (g *gatewayClient) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api server error: %s", strings.TrimSpace(string(payload)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// login resolves credentials from flags, environment, and config, then trades
// them for a bearer token.
func (g *gatewayClient) login(ctx context.Context, opts cliOptions, cfg config.Config) error {
	username := strings.TrimSpace(opts.username)
	if username == "" {
		username = strings.TrimSpace(cfg.Auth.Username)
	}
	if username == "" {
		return fmt.Errorf("username is required for login")
	}
	password := strings.TrimSpace(opts.password)
	if password == "" {
		password = strings.TrimSpace(os.Getenv("TOOLGATE_PASSWORD"))
	}
	if password == "" {
		return fmt.Errorf("password is required; pass --password or set TOOLGATE_PASSWORD")
	}

	var parsed handlers.LoginResponse
	err := g.postJSON(ctx, "/auth/login", handlers.LoginRequest{Username: username, Password: password}, &parsed)
	if err != nil {
		return err
	}
	if strings.TrimSpace(parsed.AccessToken) == "" {
		return fmt.Errorf("login succeeded but token missing")
	}
	g.token = parsed.AccessToken
	return nil
}

// prompt submits one turn and prints the outcome. An approval question is
// printed verbatim so the operator sees exactly what the gateway will do.
func (g *gatewayClient) prompt(ctx context.Context, conversationID, input string) error {
	var parsed handlers.PromptResponse
	err := g.postJSON(ctx, "/prompt", handlers.PromptRequest{
		UserInput:      input,
		ConversationID: conversationID,
	}, &parsed)
	if err != nil {
		return err
	}
	if parsed.State == session.StateAwaitingApproval {
		fmt.Fprintln(os.Stdout, parsed.Response)
		return nil
	}
	fmt.Fprintf(os.Stdout, "Assistant: %s\n", parsed.Response)
	return nil
}

func interactiveLoop(ctx context.Context, gw *gatewayClient, conversationID string) error {
	reader := bufio.NewScanner(os.Stdin)
	reader.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	fmt.Fprintf(os.Stdout, "Conversation %s (type exit to quit)\n", conversationID)
	for {
		fmt.Fprint(os.Stdout, "You: ")
		if !reader.Scan() {
			return reader.Err()
		}
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}
		if lower := strings.ToLower(line); lower == "exit" || lower == "quit" {
			return nil
		}
		if err := gw.prompt(ctx, conversationID, line); err != nil {
			return err
		}
	}
}
