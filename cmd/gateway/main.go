// The gateway binary serves the Toolgate HTTP API: a governed conversation
// loop between an LLM backend and the tools advertised by configured MCP
// servers. It also carries the schema migration subcommand for the PostgreSQL
// session backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"sort"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	migrations "github.com/toolgate/toolgate/db"
	"github.com/toolgate/toolgate/internal/auth"
	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/conversation"
	"github.com/toolgate/toolgate/internal/db"
	"github.com/toolgate/toolgate/internal/governor"
	"github.com/toolgate/toolgate/internal/handlers"
	"github.com/toolgate/toolgate/internal/llm"
	"github.com/toolgate/toolgate/internal/logger"
	"github.com/toolgate/toolgate/internal/mcp"
	"github.com/toolgate/toolgate/internal/policy"
	"github.com/toolgate/toolgate/internal/ratelimit"
	"github.com/toolgate/toolgate/internal/server"
	"github.com/toolgate/toolgate/internal/session"
	"github.com/toolgate/toolgate/internal/version"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrateCommand(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,

			provideStore,
			providePolicyTable,
			provideGovernor,
			provideRouter,
			fx.Annotate(provideLLMClient, fx.As(new(llm.Backend))),
			provideConversation,
			provideOperator,
			provideJanitor,

			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideAuthHandler),
			provideServerHandler(handlers.NewPromptHandler),
			provideServerHandler(handlers.NewHistoryHandler),
			provideServerHandler(handlers.NewPoliciesHandler),
			provideServerHandler(handlers.NewToolsHandler),
			provideServerHandler(handlers.NewSwaggerHandler),

			provideServer,
		),
		fx.Invoke(
			startJanitor,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func runMigrateCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: gateway migrate <up|down|version|force N>")
	}
	cfg, err := provideConfig()
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	source, err := fs.Sub(migrations.MigrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	return db.RunMigrate(logger.L, cfg.Postgres, source, args[0], args[1:])
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

// provideStore selects the session backend. The postgres backend applies
// pending migrations before first use.
func provideStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (session.Store, error) {
	capacity := cfg.Session.Capacity
	ttl := cfg.Session.TTLDuration()

	var store session.Store
	switch cfg.Session.Backend {
	case "", "memory":
		store = session.NewMemoryStore(capacity, ttl)

	case "sqlite":
		s, err := session.NewSQLiteStore(context.Background(), cfg.SQLite.Path, capacity, ttl)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		store = s

	case "postgres":
		pool, err := db.Open(context.Background(), cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		source, err := fs.Sub(migrations.MigrationsFS, "migrations")
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations fs: %w", err)
		}
		if err := db.RunMigrate(log, cfg.Postgres, source, "up", nil); err != nil {
			pool.Close()
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				pool.Close()
				return nil
			},
		})
		store = session.NewPostgresStore(pool, capacity, ttl)

	default:
		return nil, fmt.Errorf("unknown session backend %q (use: memory, sqlite, postgres)", cfg.Session.Backend)
	}

	log.Info("session store ready",
		slog.String("backend", cfg.Session.Backend),
		slog.Int("capacity", capacity),
		slog.Duration("ttl", ttl),
	)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

func providePolicyTable(cfg config.Config) (*policy.Table, error) {
	table, err := policy.FromConfig(cfg.Policy)
	if err != nil {
		return nil, fmt.Errorf("policy table: %w", err)
	}
	return table, nil
}

func provideGovernor(log *slog.Logger, table *policy.Table) *governor.Service {
	return governor.NewService(log, table, ratelimit.New())
}

// provideRouter dials every configured MCP server and registers it with the
// router. The tool catalog is built once the application starts.
func provideRouter(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (*mcp.Router, error) {
	router := mcp.NewRouter(log)

	names := make([]string, 0, len(cfg.MCP.Servers))
	for name := range cfg.MCP.Servers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		client, err := mcp.Dial(context.Background(), name, cfg.MCP.Servers[name])
		if err != nil {
			return nil, fmt.Errorf("mcp dial: %w", err)
		}
		if err := router.Register(name, client); err != nil {
			return nil, err
		}
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if len(names) == 0 {
				log.Warn("no mcp servers configured; tool catalog is empty")
				return nil
			}
			return router.Refresh(ctx)
		},
		OnStop: func(context.Context) error {
			return router.Close()
		},
	})
	return router, nil
}

func provideLLMClient(log *slog.Logger, cfg config.Config) (*llm.Client, error) {
	return llm.NewClient(log, cfg.LLM)
}

func provideConversation(log *slog.Logger, store session.Store, gov *governor.Service, router *mcp.Router, backend llm.Backend, cfg config.Config) *conversation.Service {
	return conversation.NewService(log, store, gov, router, backend, conversation.Options{
		SystemPrompt:  cfg.LLM.SystemPrompt,
		HistoryWindow: cfg.LLM.HistoryWindow,
		MaxToolRounds: cfg.LLM.MaxToolRounds,
	})
}

func provideOperator(cfg config.Config) *auth.Operator {
	return auth.NewOperator(cfg.Auth)
}

func provideJanitor(log *slog.Logger, store session.Store, cfg config.Config) *session.Janitor {
	return session.NewJanitor(log, store, cfg.Session.SweepEvery())
}

func provideAuthHandler(log *slog.Logger, operator *auth.Operator, cfg config.Config) (*handlers.AuthHandler, error) {
	expiry, err := cfg.Auth.JWTExpiry()
	if err != nil {
		return nil, err
	}
	return handlers.NewAuthHandler(log, operator, cfg.Auth.JWTSecret, expiry), nil
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(
		params.Logger,
		params.Config.Server.Addr,
		params.Config.Auth.JWTSecret,
		params.Config.Server.RequestsPerSec,
		params.ServerHandlers...,
	)
}

func startJanitor(lc fx.Lifecycle, janitor *session.Janitor) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return janitor.Start()
		},
		OnStop: func(ctx context.Context) error {
			return janitor.Stop(ctx)
		},
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	fmt.Printf("Starting Toolgate %s\n", version.GetInfo())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
