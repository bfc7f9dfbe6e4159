// Package config loads and exposes application configuration (TOML).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath      = "config.toml"
	DefaultHTTPAddr        = ":8080"
	DefaultJWTExpiresIn    = "24h"
	DefaultRequestsPerSec  = 20
	DefaultLLMBaseURL      = "https://api.openai.com/v1"
	DefaultLLMModel        = "gpt-4o"
	DefaultLLMTimeout      = "60s"
	DefaultMaxToolRounds   = 8
	DefaultHistoryWindow   = 20
	DefaultSessionBackend  = "memory"
	DefaultSessionTTL      = "24h"
	DefaultSessionCapacity = 100
	DefaultSweepInterval   = "10m"
	DefaultSQLitePath      = "toolgate.db"
	DefaultPGHost          = "127.0.0.1"
	DefaultPGPort          = 5432
	DefaultPGUser          = "postgres"
	DefaultPGDatabase      = "toolgate"
	DefaultPGSSLMode       = "disable"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	LLM      LLMConfig      `toml:"llm"`
	Session  SessionConfig  `toml:"session"`
	Postgres PostgresConfig `toml:"postgres"`
	SQLite   SQLiteConfig   `toml:"sqlite"`
	Policy   PolicyConfig   `toml:"policy"`
	MCP      MCPConfig      `toml:"mcp"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address and per-client request rate.
type ServerConfig struct {
	Addr           string  `toml:"addr"`
	RequestsPerSec float64 `toml:"requests_per_sec"`
}

// AuthConfig holds the JWT secret, token expiry, and the operator account.
// PasswordHash is a bcrypt hash; an empty Username disables the login endpoint.
type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
	Username     string `toml:"username"`
	PasswordHash string `toml:"password_hash"`
}

// LLMConfig holds the chat-completions backend connection and loop bounds.
type LLMConfig struct {
	BaseURL       string            `toml:"base_url"`
	APIKey        string            `toml:"api_key"`
	Model         string            `toml:"model"`
	Timeout       string            `toml:"timeout"`
	SystemPrompt  string            `toml:"system_prompt"`
	MaxToolRounds int               `toml:"max_tool_rounds"`
	HistoryWindow int               `toml:"history_window"`
	GatewayAuth   GatewayAuthConfig `toml:"gateway_auth"`
}

// GatewayAuthConfig enables RSA-signed request headers for gateways that
// require consumer signing instead of bearer keys. Empty ConsumerID disables it.
type GatewayAuthConfig struct {
	ConsumerID     string `toml:"consumer_id"`
	PrivateKeyPath string `toml:"private_key_path"`
	KeyVersion     string `toml:"key_version"`
}

// SessionConfig selects the session store backend and its bounds.
// Backend is one of "memory", "sqlite", "postgres".
type SessionConfig struct {
	Backend       string `toml:"backend"`
	TTL           string `toml:"ttl"`
	Capacity      int    `toml:"capacity"`
	SweepInterval string `toml:"sweep_interval"`
}

// TTLDuration parses the configured TTL, falling back to the default on error.
func (c SessionConfig) TTLDuration() time.Duration {
	return parseDuration(c.TTL, 24*time.Hour)
}

// SweepEvery parses the configured sweep interval, falling back to the default on error.
func (c SessionConfig) SweepEvery() time.Duration {
	return parseDuration(c.SweepInterval, 10*time.Minute)
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// SQLiteConfig holds the SQLite database file path.
type SQLiteConfig struct {
	Path string `toml:"path"`
}

// PolicyConfig holds the default tool policy, per-tool overrides, and an
// optional YAML overlay file applied on top of the TOML-declared tools.
type PolicyConfig struct {
	File    string                 `toml:"file"`
	Default PolicyEntry            `toml:"default"`
	Tools   map[string]PolicyEntry `toml:"tools"`
}

// PolicyEntry is one tool policy as declared in configuration.
type PolicyEntry struct {
	RequiresApproval  bool `toml:"requires_approval"`
	MaxCallsPerMinute int  `toml:"max_calls_per_minute"`
}

// MCPConfig holds the MCP servers the gateway connects to, keyed by name.
type MCPConfig struct {
	Servers map[string]MCPServerConfig `toml:"servers"`
}

// MCPServerConfig declares one MCP server. Command/Args/Env/Cwd describe a
// stdio server; URL (plus optional Transport and Headers) describes an HTTP
// one. Command and URL are mutually exclusive.
type MCPServerConfig struct {
	Command   string            `toml:"command"`
	Args      []string          `toml:"args"`
	Env       map[string]string `toml:"env"`
	Cwd       string            `toml:"cwd"`
	URL       string            `toml:"url"`
	Transport string            `toml:"transport"`
	Headers   map[string]string `toml:"headers"`
}

// LLMTimeout parses the configured LLM request timeout.
func (c LLMConfig) LLMTimeout() time.Duration {
	return parseDuration(c.Timeout, 60*time.Second)
}

// JWTExpiry parses the configured token expiry.
func (c AuthConfig) JWTExpiry() (time.Duration, error) {
	raw := c.JWTExpiresIn
	if raw == "" {
		raw = DefaultJWTExpiresIn
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid jwt_expires_in %q: %w", raw, err)
	}
	return d, nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:           DefaultHTTPAddr,
			RequestsPerSec: DefaultRequestsPerSec,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		LLM: LLMConfig{
			BaseURL:       DefaultLLMBaseURL,
			Model:         DefaultLLMModel,
			Timeout:       DefaultLLMTimeout,
			MaxToolRounds: DefaultMaxToolRounds,
			HistoryWindow: DefaultHistoryWindow,
		},
		Session: SessionConfig{
			Backend:       DefaultSessionBackend,
			TTL:           DefaultSessionTTL,
			Capacity:      DefaultSessionCapacity,
			SweepInterval: DefaultSweepInterval,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		SQLite: SQLiteConfig{
			Path: DefaultSQLitePath,
		},
		Policy: PolicyConfig{
			Default: PolicyEntry{
				RequiresApproval:  true,
				MaxCallsPerMinute: 5,
			},
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
