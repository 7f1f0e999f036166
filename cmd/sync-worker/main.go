package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/wolfman30/grooming-booking/cmd/mainconfig"
	"github.com/wolfman30/grooming-booking/internal/app/bootstrap"
	"github.com/wolfman30/grooming-booking/internal/syncjobs"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

func main() {
	cfg := mainconfig.LoadConfig()
	logger := logging.New(cfg.LogLevel)

	if cfg.SyncMode != "queue" || cfg.SyncQueueURL == "" {
		logger.Error("sync worker requires SYNC_MODE=queue and SYNC_QUEUE_URL")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{LoadAWS: mainconfig.AWSLoader(cfg)})
	if err != nil {
		logger.Error("failed to build runtime", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	worker := app.NewSyncWorker(syncjobs.WithReceiveWaitSeconds(20))
	worker.Start(ctx)

	var sweeper *syncjobs.Sweeper
	if cfg.SyncSweepEnabled {
		if sweeper, err = app.NewSweeper(nil, nil); err != nil {
			logger.Error("failed to build sweeper", "error", err)
			os.Exit(1)
		}
		go sweeper.Start(ctx)
	}
	logger.Info("sync worker started", "workers", cfg.SyncWorkerCount, "sweeper", sweeper != nil)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down sync worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("sync worker stopped")
	case <-doneCtx.Done():
		logger.Error("sync worker shutdown timed out", "error", doneCtx.Err())
	}
}
