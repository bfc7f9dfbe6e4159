package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrUnknownTool is returned when no connected server advertises the tool.
var ErrUnknownTool = errors.New("unknown tool")

// Router aggregates several named servers behind a single Client-shaped
// surface. When two servers advertise the same tool name the first registered
// server wins and the conflict is logged.
type Router struct {
	logger *slog.Logger

	mu        sync.RWMutex
	order     []string
	clients   map[string]Client
	catalog   []Tool
	byTool    map[string]string
	refreshed bool
}

func NewRouter(log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		logger:  log.With(slog.String("service", "mcp_router")),
		clients: map[string]Client{},
		byTool:  map[string]string{},
	}
}

// Register adds a connected server. Registration order decides which server
// wins a tool name conflict; call Refresh afterwards to rebuild the catalog.
func (r *Router) Register(server string, client Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[server]; exists {
		return fmt.Errorf("mcp server %q already registered", server)
	}
	r.order = append(r.order, server)
	r.clients[server] = client
	return nil
}

// Refresh rebuilds the tool catalog from every registered server.
func (r *Router) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	catalog := make([]Tool, 0)
	byTool := map[string]string{}
	for _, server := range r.order {
		tools, err := r.clients[server].ListTools(ctx)
		if err != nil {
			return err
		}
		for _, tool := range tools {
			if owner, taken := byTool[tool.Name]; taken {
				r.logger.Warn("duplicate tool name; keeping first registration",
					slog.String("tool", tool.Name),
					slog.String("kept", owner),
					slog.String("ignored", server),
				)
				continue
			}
			byTool[tool.Name] = server
			catalog = append(catalog, tool)
		}
	}
	sort.Slice(catalog, func(i, j int) bool { return catalog[i].Name < catalog[j].Name })

	r.catalog = catalog
	r.byTool = byTool
	r.refreshed = true
	r.logger.Info("tool catalog refreshed",
		slog.Int("servers", len(r.order)),
		slog.Int("tools", len(catalog)),
	)
	return nil
}

// Ready reports whether the router can serve tool calls. A router with
// registered servers is not ready until the first Refresh succeeds; a router
// with no servers is trivially ready.
func (r *Router) Ready() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) > 0 && !r.refreshed {
		return errors.New("tool catalog not loaded")
	}
	return nil
}

// Tools returns the cached catalog, sorted by tool name.
func (r *Router) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Tool(nil), r.catalog...)
}

// CallTool routes the call to the server owning the tool name.
func (r *Router) CallTool(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	r.mu.RLock()
	server, ok := r.byTool[name]
	client := r.clients[server]
	r.mu.RUnlock()

	if !ok || client == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return client.CallTool(ctx, name, args)
}

// Close closes every registered client, returning the first error.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	for _, server := range r.order {
		if err := r.clients[server].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
