// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/noriauth/nori/internal/auth"
	"github.com/noriauth/nori/internal/auth/postgres"
	"github.com/noriauth/nori/internal/config"
	"github.com/noriauth/nori/internal/observability"
	"github.com/noriauth/nori/internal/store"
	"github.com/noriauth/nori/internal/web"
	"github.com/noriauth/nori/pkg/errutil"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd(root *rootOptions, deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication API server",
		Long: `Start the HTTP API that handles registration, login, logout and
session lookup. Pending migrations are applied first when auto_migrate
is enabled. SIGINT or SIGTERM triggers a graceful shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.setup(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, cfg, cmd, logger, deps)
		},
	}
}

// runServeWithDeps runs the API server until ctx is cancelled or a server
// fails. If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg config.Config, cmd *cobra.Command, logger *slog.Logger, deps *Deps) error {
	deps = deps.withDefaults()

	if err := cfg.RequireDatabase(); err != nil {
		return err
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shut down tracer provider", "error", err)
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := applyMigrations(cmd, deps, cfg.Database.URL, logger); err != nil {
			return err
		}
	}

	pool, err := deps.PoolFactory(ctx, poolConfig(cfg), logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	registry := observability.NewRegistry()
	metrics := observability.NewMetrics(registry)

	handler, err := buildHandler(cfg, pool, logger, metrics, tp)
	if err != nil {
		return err
	}

	listener, err := deps.ListenerFactory("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	srv := &http.Server{
		Handler:           handler.Routes(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	serveErr := make(chan error, 1)
	go func() {
		var err error
		if cfg.HTTP.TLSEnabled() {
			err = srv.ServeTLS(listener, cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile)
		} else {
			err = srv.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		ready := func(ctx context.Context) bool { return pool.Ping(ctx) == nil }
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, registry, ready, logger)
		obsErr, err := obsServer.Start()
		if err != nil {
			shutdownHTTP(srv, cfg.HTTP.ShutdownTimeout, logger)
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErr, "observability", logger)
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	scheme := "http"
	if cfg.HTTP.TLSEnabled() {
		scheme = "https"
	}
	cmd.Printf("nori listening on %s://%s\n", scheme, listener.Addr())
	logger.Info("server ready", "addr", listener.Addr().String(), "tls", cfg.HTTP.TLSEnabled())

	var result error
	select {
	case err := <-serveErr:
		result = oops.Code("HTTP_SERVE_FAILED").With("addr", listener.Addr().String()).Wrap(err)
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownHTTP(srv, cfg.HTTP.ShutdownTimeout, logger)
	if obsServer != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer stopCancel()
		if err := obsServer.Stop(stopCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return result
}

func buildHandler(
	cfg config.Config,
	pool Pool,
	logger *slog.Logger,
	metrics *observability.Metrics,
	tp *sdktrace.TracerProvider,
) (*web.Handler, error) {
	hasher, err := auth.NewArgon2idHasherWithParams(cfg.Argon2Params())
	if err != nil {
		return nil, err
	}
	creds, err := auth.NewCredentialStoreWithLogger(postgres.NewUserRepository(pool), hasher, logger)
	if err != nil {
		return nil, err
	}
	sessions, err := auth.NewSessionManager(postgres.NewSessionRepository(pool), cfg.SessionConfig(),
		auth.WithSessionLogger(logger))
	if err != nil {
		return nil, err
	}
	return web.NewHandler(creds, sessions,
		web.WithLogger(logger),
		web.WithMetrics(metrics),
		web.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
		web.WithTracerProvider(tp),
	)
}

func poolConfig(cfg config.Config) store.PoolConfig {
	return store.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		ConnectAttempts: cfg.Database.ConnectAttempts,
		ConnectBackoff:  cfg.Database.ConnectBackoff,
	}
}

func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error. It exits
// when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok || err == nil {
			return
		}
		errutil.LogError(ctx, logger.With("server", serverName), "server error, triggering shutdown", err)
		cancel()
	case <-ctx.Done():
	}
}
