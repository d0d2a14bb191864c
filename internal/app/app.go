// Package app wires gourdianauthd: flags, logging, the session registry,
// the token coordinator and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gourdian25/gourdianauth"
	"github.com/gourdian25/gourdianauth/internal/server"
	"github.com/gourdian25/gourdianauth/internal/users"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// App owns the daemon's long-lived resources.
type App struct {
	opts Options
	log  *slog.Logger

	redis       *redis.Client
	registry    gourdianauth.SessionRegistry
	coordinator *gourdianauth.Coordinator
	handler     http.Handler
}

// Run is the CLI entrypoint used by cmd/gourdianauthd.
func Run(args []string) error {
	opts := &Options{}
	if _, err := flags.ParseArgs(opts, args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil
		}
		return err
	}

	log := NewLogger(os.Stdout, opts.LogLevel)
	slog.SetDefault(log)

	a, err := New(*opts, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.Run(ctx)
}

// New builds a fully wired App. Configuration errors are returned before
// anything starts listening.
func New(opts Options, log *slog.Logger) (*App, error) {
	config, err := opts.TokenConfig()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := gourdianauth.NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	tokenOpts := []gourdianauth.Option{
		gourdianauth.WithLogger(log),
		gourdianauth.WithMetrics(metrics),
	}

	a := &App{opts: opts, log: log}

	if opts.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		a.registry, err = gourdianauth.NewRedisSessionRegistry(a.redis, opts.RedisPrefix, tokenOpts...)
		if err != nil {
			_ = a.redis.Close()
			return nil, err
		}
	} else {
		a.registry = gourdianauth.NewMemorySessionRegistry(opts.PurgeInterval, tokenOpts...)
	}

	a.coordinator, err = gourdianauth.NewCoordinator(config, a.registry, tokenOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}

	hasher := users.NewBcryptHasher(opts.BcryptCost)
	store := users.NewMemoryStore()
	for _, seed := range opts.Users {
		user, err := users.ParseSeed(seed, hasher)
		if err != nil {
			a.Close()
			return nil, err
		}
		if _, err := store.Add(user); err != nil {
			a.Close()
			return nil, fmt.Errorf("seed user %q: %w", user.Login, err)
		}
	}
	if len(opts.Users) == 0 {
		log.Warn("users.seed.empty", "hint", "pass --user login:password[:role] to create accounts")
	}

	h := server.NewHandler(log, server.Config{
		CookieSecure: opts.CookieSecure,
		CookieDomain: opts.CookieDomain,
	}, a.coordinator, users.NewAuthenticator(store, hasher, log))
	a.handler, err = server.NewMux(log, h, reg)
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run starts the HTTP server and blocks until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.opts.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.log.Info("server.start", "addr", a.opts.HTTPAddr, "redis", a.opts.RedisAddr != "")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("server.stopped")
	return nil
}

// Close releases the registry and the Redis client.
func (a *App) Close() {
	if a.registry != nil {
		if err := a.registry.Close(); err != nil {
			a.log.Error("registry.close.fail", "err", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
	}
}
