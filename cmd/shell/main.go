// Command cs-shell serves the contest client over a local HTTP shell.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/and161185/contest-shell/internal/app"
	"github.com/and161185/contest-shell/internal/config"
	"github.com/and161185/contest-shell/internal/limiter"
	"github.com/and161185/contest-shell/internal/logging"
	httpserver "github.com/and161185/contest-shell/internal/server/http"
	"github.com/and161185/contest-shell/internal/storage"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, restores the session and serves the shell until SIGINT/SIGTERM.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}

	// Flags override env
	flag.StringVar(&cfg.ShellAddr, "addr", cfg.ShellAddr, "listen address")
	flag.StringVar(&cfg.APIURL, "api", cfg.APIURL, "collaborator base URL")
	flag.StringVar(&cfg.ConfigDir, "config-dir", cfg.ConfigDir, "session storage directory")
	ephemeral := flag.Bool("ephemeral", false, "keep the session in memory only")
	flag.BoolVar(&cfg.Dev, "dev", cfg.Dev, "development logging")
	flag.Parse()

	logger, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.ShellAddr),
		zap.String("api", cfg.APIURL),
	)

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	var st storage.Storage = storage.NewFile(cfg.ConfigDir)
	if *ephemeral {
		st = storage.NewMemory()
	}

	a, err := app.New(cfg, st, logger)
	if err != nil {
		logger.Fatal("build app", zap.Error(err))
	}
	defer a.Close()

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shell := httpserver.New(a.Session, a.Contests, a.Notes, a.Guard,
		httpserver.WithLogger(logger.Named("http")),
		httpserver.WithPageSize(cfg.PageSize),
		httpserver.WithLimiter(limiter.NewMemory(cfg.LoginWindow, cfg.LoginMaxFails, cfg.LoginBlock)),
	)
	srv := &http.Server{
		Handler:           shell.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.ShellAddr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", lis.Addr().String()))
		errCh <- srv.Serve(lis)
	}()

	// Routes answer with a placeholder until this completes.
	go a.Load(ctx)

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forced shutdown", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			a.Close()
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
