package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/wolfman30/grooming-booking/cmd/mainconfig"
	"github.com/wolfman30/grooming-booking/internal/app/bootstrap"
	appconfig "github.com/wolfman30/grooming-booking/internal/config"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

func main() {
	cfg := mainconfig.LoadConfig()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting grooming booking API",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{
		LoadAWS:     mainconfig.AWSLoader(cfg),
		VerifyRedis: true,
	})
	if err != nil {
		logger.Error("failed to build runtime", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	waitBackground, err := app.StartBackground(ctx)
	if err != nil {
		logger.Error("failed to start background jobs", "error", err)
		os.Exit(1)
	}

	srv := newServer(cfg, app.Handler())

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()
	waitWithTimeout(shutdownCtx, waitBackground, logger)

	logger.Info("server stopped")
}

func newServer(cfg *appconfig.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// waitWithTimeout blocks on wait until it returns or ctx ends.
func waitWithTimeout(ctx context.Context, wait func(), logger *logging.Logger) {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Error("background jobs shutdown timed out", "error", ctx.Err())
	}
}
