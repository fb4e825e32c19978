package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/arandu-gateway/internal/activity"
	"github.com/p-n-ai/arandu-gateway/internal/ai"
	"github.com/p-n-ai/arandu-gateway/internal/aicontent"
	"github.com/p-n-ai/arandu-gateway/internal/backend"
	"github.com/p-n-ai/arandu-gateway/internal/courses"
	"github.com/p-n-ai/arandu-gateway/internal/httpapi"
	"github.com/p-n-ai/arandu-gateway/internal/notify"
	"github.com/p-n-ai/arandu-gateway/internal/platform/cache"
	"github.com/p-n-ai/arandu-gateway/internal/platform/config"
	"github.com/p-n-ai/arandu-gateway/internal/platform/database"
	"github.com/p-n-ai/arandu-gateway/internal/session"
)

const budgetWindow = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stdout))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func run(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	go func() {
		if err := a.hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("notification bus stopped", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "fixture", cfg.FixturePath != "", "ai", cfg.HasAIProvider())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// app holds the wired services and the resources to release on exit.
type app struct {
	handler http.Handler
	hub     *notify.Hub
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	var checks []httpapi.Check

	upstream, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	checks = append(checks, httpapi.Check{Name: "backend", Fn: upstream.HealthCheck})

	var activityLog activity.Logger = activity.NopLogger{}
	if cfg.Database.URL != "" {
		db, err := database.New(ctx, database.Options{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		pg := activity.NewPostgresLogger(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			a.close()
			return nil, err
		}
		activityLog = pg
		checks = append(checks, httpapi.Check{Name: "database", Fn: db.HealthCheck})
	}

	var (
		store      session.Store = session.NewMemoryStore()
		courseOpts = []courses.Option{courses.WithFetchTimeout(cfg.Backend.Timeout)}
		hubOpts    = []notify.Option{notify.WithRecentLimit(cfg.Notify.RecentLimit)}
		budget     ai.BudgetChecker
	)
	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, func() { c.Close() })
		checks = append(checks, httpapi.Check{Name: "cache", Fn: c.HealthCheck})

		if cfg.Session.Store == "redis" {
			store = session.NewRedisStore(c.Client)
		}
		courseOpts = append(courseOpts, courses.WithCache(c, cfg.Cache.CourseTTL))
		hubOpts = append(hubOpts, notify.WithBus(notify.NewRedisBus(c.Client, cfg.Notify.Channel)))
		budget = newBudget(cfg.AI, c.Client)
	} else {
		budget = newBudget(cfg.AI, nil)
	}

	contentOpts := []aicontent.Option{}
	if router := newAIRouter(cfg.AI); router.HasProvider() {
		contentOpts = append(contentOpts, aicontent.WithAI(router, budget, cfg.AI.TenantID))
	}

	a.hub = notify.NewHub(hubOpts...)
	srv := httpapi.New(httpapi.Deps{
		Backend: upstream,
		Sessions: session.NewManager(store, upstream, []byte(cfg.Auth.JWTSecret),
			session.WithTTL(cfg.Session.TTL),
			session.WithIssuer(cfg.Auth.Issuer),
		),
		Courses:    courses.NewService(upstream, courseOpts...),
		Content:    aicontent.NewService(upstream, contentOpts...),
		Activity:   activityLog,
		Hub:        a.hub,
		Checks:     checks,
		LoginRoute: cfg.Routes.Login,
	})
	a.handler = srv.Handler()
	return a, nil
}

func newBackend(cfg *config.Config) (backend.API, error) {
	if cfg.FixturePath != "" {
		f, err := backend.LoadFixture(cfg.FixturePath)
		if err != nil {
			return nil, fmt.Errorf("fixture backend: %w", err)
		}
		return f, nil
	}
	return backend.NewHTTPClient(strings.TrimRight(cfg.Backend.URL, "/"),
		backend.WithTimeout(cfg.Backend.Timeout)), nil
}

// newBudget meters AI usage in Redis when a client is given. Without one each
// instance meters its own usage.
func newBudget(cfg config.AIConfig, client redis.UniversalClient) ai.BudgetChecker {
	if client != nil {
		return ai.NewRedisBudget(client, budgetWindow, int64(cfg.DailyTokenBudget))
	}
	return ai.NewInMemoryBudget(budgetWindow, int64(cfg.DailyTokenBudget))
}

// newAIRouter registers every configured provider in fallback order.
func newAIRouter(cfg config.AIConfig) *ai.Router {
	client := &http.Client{Timeout: cfg.Timeout}
	router := ai.NewRouter()
	if cfg.OpenAI.APIKey != "" {
		router.Register("openai", ai.NewOpenAIProvider(cfg.OpenAI.APIKey,
			ai.WithDefaultModel(cfg.OpenAI.Model), ai.WithHTTPClient(client)))
	}
	if cfg.OpenRouter.APIKey != "" {
		router.Register("openrouter", ai.NewOpenRouterProvider(cfg.OpenRouter.APIKey,
			ai.WithDefaultModel(cfg.OpenRouter.Model), ai.WithHTTPClient(client)))
	}
	if cfg.Ollama.Enabled {
		router.Register("ollama", ai.NewOllamaProvider(ai.WithBaseURL(cfg.Ollama.URL),
			ai.WithDefaultModel(cfg.Ollama.Model), ai.WithHTTPClient(client)))
	}
	return router
}
