package syncjobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/grooming-booking/internal/bookings"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

const (
	defaultWorkerCount    = 2
	defaultWaitSeconds    = 2
	defaultBatchSize      = 5
	defaultMaxAttempts    = 5
	defaultReconcileLimit = 30 * time.Second

	// SQS limits.
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10

	ackTimeout     = 5 * time.Second
	minPollBackoff = time.Second
	maxPollBackoff = 8 * time.Second
)

// WorkerOption tunes a Worker.
type WorkerOption func(*workerConfig)

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	maxAttempts      int
	jobTimeout       time.Duration
}

func defaultWorkerConfig() workerConfig {
	return workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
		maxAttempts:      defaultMaxAttempts,
		jobTimeout:       defaultReconcileLimit,
	}
}

// WithWorkerCount sets how many goroutines poll the queue. Values below one
// keep the default.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait, capped at the SQS maximum.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds >= 0 {
			cfg.receiveWaitSecs = min(seconds, maxWaitSeconds)
		}
	}
}

// WithReceiveBatchSize sets how many jobs one poll may return.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size > 0 {
			cfg.receiveBatchSize = min(size, maxReceiveBatchSize)
		}
	}
}

// WithMaxAttempts caps redeliveries of a job whose reconcile keeps failing.
// The job is dropped once its delivery count reaches n; the booking stays
// failed or pending in the store and the sweeper can pick it up later.
func WithMaxAttempts(n int) WorkerOption {
	return func(cfg *workerConfig) {
		if n > 0 {
			cfg.maxAttempts = n
		}
	}
}

// WithJobTimeout bounds a single reconcile.
func WithJobTimeout(d time.Duration) WorkerOption {
	return func(cfg *workerConfig) {
		if d > 0 {
			cfg.jobTimeout = d
		}
	}
}

// Worker drains the sync queue and reconciles each booking against the ERP.
type Worker struct {
	reconciler Reconciler
	queue      queueClient
	logger     *logging.Logger
	cfg        workerConfig
	wg         sync.WaitGroup
}

// NewWorker builds a Worker. reconciler is usually *bookings.Service.
func NewWorker(reconciler Reconciler, queue queueClient, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if reconciler == nil {
		panic("syncjobs: reconciler required")
	}
	if queue == nil {
		panic("syncjobs: queue required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := defaultWorkerConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Worker{reconciler: reconciler, queue: queue, logger: logger, cfg: cfg}
}

// Start launches the polling goroutines. They exit when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for id := 1; id <= w.cfg.workers; id++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.poll(ctx, w.logger.With("worker_id", id))
		}()
	}
}

// Wait blocks until every polling goroutine has returned.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) poll(ctx context.Context, logger *logging.Logger) {
	logger.Debug("sync worker polling")
	defer logger.Debug("sync worker stopped")

	backoff := minPollBackoff
	for ctx.Err() == nil {
		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("receive sync jobs", "error", err, "retry_in", backoff.String())
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, maxPollBackoff)
			continue
		}
		backoff = minPollBackoff

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

// handleMessage acks a job once reconcile has run, whatever the ERP said: a
// failed push is recorded on the booking itself. Store errors leave the job
// for redelivery until it has been seen maxAttempts times.
func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	logger := w.logger.With("message_id", msg.ID, "attempt", msg.Attempt)

	job, err := decodeJob(msg.Body)
	if err != nil {
		logger.Error("dropping malformed sync job", "error", err)
		w.ack(msg)
		return
	}
	logger = logger.With("job_id", job.ID, "booking_number", job.BookingNumber)

	jctx, cancel := context.WithTimeout(ctx, w.cfg.jobTimeout)
	booking, err := w.reconciler.Reconcile(jctx, job.BookingNumber, bookings.ReconcileOptions{Notify: job.Notify})
	cancel()

	switch {
	case err == nil:
		logger.Info("sync job processed", "sync_status", booking.SyncStatus)
	case errors.Is(err, bookings.ErrBookingNotFound):
		logger.Warn("sync job for unknown booking")
	case msg.Attempt >= w.cfg.maxAttempts:
		logger.Error("giving up on sync job", "error", err, "max_attempts", w.cfg.maxAttempts)
	default:
		logger.Warn("sync job failed, leaving for redelivery", "error", err)
		return
	}
	w.ack(msg)
}

// ack deletes msg on a fresh context so shutdown does not strand handled jobs.
func (w *Worker) ack(msg queueMessage) {
	if msg.ReceiptHandle == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ackTimeout)
	defer cancel()
	if err := w.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		w.logger.Error("delete sync job", "error", err, "message_id", msg.ID)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
