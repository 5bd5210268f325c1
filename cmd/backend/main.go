package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	blobstoreimpl "github.com/carewire/consultscribe/external/blobstore"
	configloader "github.com/carewire/consultscribe/external/config"
	notifyimpl "github.com/carewire/consultscribe/external/notify"
	repositoryimpl "github.com/carewire/consultscribe/external/repository"
	transcriberimpl "github.com/carewire/consultscribe/external/transcriber"
	"github.com/carewire/consultscribe/internal/config"
	"github.com/carewire/consultscribe/internal/gateway"
	"github.com/carewire/consultscribe/internal/metrics"
	"github.com/carewire/consultscribe/internal/notify"
	"github.com/carewire/consultscribe/internal/session"
	"github.com/joho/godotenv"
	"github.com/samber/do/v2"
)

const shutdownTimeout = 20 * time.Second

func main() {
	_ = godotenv.Load()

	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching http server")
	runServer(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	blobstoreimpl.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	notifyimpl.RegisterDI(injector)
	metrics.RegisterDI(injector)
	notify.RegisterDI(injector)
	session.RegisterDI(injector)
	gateway.RegisterDI(injector)

	return injector
}

func runServer(cfg *config.Config, injector do.Injector) {
	server, err := do.Invoke[*gateway.Server](injector)
	if err != nil {
		slog.Error("failed to resolve http server", "error", err)
		os.Exit(1)
	}
	manager, err := do.Invoke[*session.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve session manager", "error", err)
		os.Exit(1)
	}

	done := make(chan struct{})
	go func() {
		slog.Info("startup: listening", "addr", cfg.HTTPListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
	manager.Close()
}
