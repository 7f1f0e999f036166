// Package bootstrap assembles the booking service and its collaborators from
// configuration. Every binary builds its runtime through App.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/grooming-booking/internal/api/router"
	"github.com/wolfman30/grooming-booking/internal/archive"
	"github.com/wolfman30/grooming-booking/internal/bookings"
	appconfig "github.com/wolfman30/grooming-booking/internal/config"
	httpmiddleware "github.com/wolfman30/grooming-booking/internal/http/middleware"
	"github.com/wolfman30/grooming-booking/internal/observability/metrics"
	"github.com/wolfman30/grooming-booking/internal/pricing"
	"github.com/wolfman30/grooming-booking/internal/syncjobs"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

// Options supplies process-level dependencies to New.
type Options struct {
	// LoadAWS is only invoked when a component needs AWS (dynamodb store,
	// SQS queue, S3 archive, SES email).
	LoadAWS func(ctx context.Context) (aws.Config, error)
	// Registry receives the booking metrics; a fresh registry is used when nil.
	Registry *prometheus.Registry
	// VerifyRedis pings Redis at startup and disables idempotency on failure.
	VerifyRedis bool
}

// App is the assembled runtime.
type App struct {
	Config   *appconfig.Config
	Logger   *logging.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.BookingMetrics

	Pricing   *pricing.Table
	Store     *bookings.Store
	Service   *bookings.Service
	ERP       *ERP
	Redis     *redis.Client
	Archive   *archive.Store
	Publisher bookings.JobPublisher

	queue       syncQueue
	memoryQueue *syncjobs.MemoryQueue
	repository  repository
	limiter     *httpmiddleware.RateLimiter

	awsOnce sync.Once
	awsCfg  aws.Config
	awsErr  error
}

type syncQueue interface {
	Send(ctx context.Context, body string) error
}

// New builds the App described by cfg.
func New(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  metrics.NewBookingMetrics(reg),
		Pricing:  pricing.DefaultTable(),
	}
	loadAWS := a.awsLoader(opts.LoadAWS)

	repo, err := buildRepository(ctx, cfg, loadAWS, logger)
	if err != nil {
		return nil, err
	}
	a.repository = repo
	a.Store = bookings.NewStore(repo.repo, logger)

	validator := bookings.NewValidator(businessLocation(cfg.BusinessTimezone, logger))
	svc := bookings.NewService(a.Store, validator, a.Pricing, logger).
		WithMetrics(a.Metrics).
		WithTimeouts(bookings.Timeouts{
			Availability: cfg.ERPTimeout,
			Store:        cfg.StoreTimeout,
			ERP:          cfg.ERPTimeout,
			Notify:       cfg.NotifyTimeout,
		})

	if a.ERP, err = BuildERP(cfg, a.Metrics, logger); err != nil {
		a.Close()
		return nil, err
	}
	if a.ERP.Syncer != nil {
		svc.WithERP(a.ERP.Syncer).WithAvailability(a.ERP.Availability)
	}

	dispatcher, err := BuildNotifier(ctx, cfg, loadAWS, a.Metrics, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if dispatcher != nil {
		svc.WithNotifier(dispatcher)
	}

	if bucket := strings.TrimSpace(cfg.FailedSyncBucket); bucket != "" {
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("bootstrap: load AWS config: %w", err)
		}
		pathStyle := cfg.AWSEndpointOverride != ""
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) { o.UsePathStyle = pathStyle })
		a.Archive = archive.NewStore(client, bucket, logger)
		svc.WithArchiver(a.Archive)
	}

	if err := a.buildQueue(ctx, loadAWS); err != nil {
		a.Close()
		return nil, err
	}
	if a.Publisher != nil {
		svc.WithQueue(a.Publisher)
	}

	a.Redis = BuildRedisClient(ctx, cfg, logger, opts.VerifyRedis)
	a.Service = svc

	logger.Info("booking runtime ready",
		"store", repo.label,
		"sync_mode", cfg.SyncMode,
		"erp", a.ERP.Client != nil,
		"notifications", dispatcher != nil,
		"archive", a.Archive.Enabled(),
		"idempotency", a.Redis != nil,
	)
	return a, nil
}

func (a *App) buildQueue(ctx context.Context, loadAWS func(context.Context) (aws.Config, error)) error {
	switch bookings.SyncMode(a.Config.SyncMode) {
	case "", bookings.SyncInline:
		return nil
	case bookings.SyncQueue:
	default:
		return fmt.Errorf("bootstrap: unknown SYNC_MODE %q", a.Config.SyncMode)
	}

	if url := strings.TrimSpace(a.Config.SyncQueueURL); url != "" {
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return fmt.Errorf("bootstrap: load AWS config: %w", err)
		}
		q := syncjobs.NewSQSQueue(sqs.NewFromConfig(awsCfg), url)
		a.queue = q
		a.Publisher = syncjobs.NewPublisher(q, a.Logger)
		return nil
	}

	a.Logger.Warn("SYNC_QUEUE_URL not set; using in-process memory queue")
	a.memoryQueue = syncjobs.NewMemoryQueue(256)
	a.queue = a.memoryQueue
	a.Publisher = syncjobs.NewPublisher(a.memoryQueue, a.Logger)
	return nil
}

// SQSQueue returns the SQS-backed queue, or nil when jobs do not go through SQS.
func (a *App) SQSQueue() *syncjobs.SQSQueue {
	q, _ := a.queue.(*syncjobs.SQSQueue)
	return q
}

// NewSyncWorker builds a worker over the configured queue, or nil in inline mode.
func (a *App) NewSyncWorker(opts ...syncjobs.WorkerOption) *syncjobs.Worker {
	opts = append([]syncjobs.WorkerOption{
		syncjobs.WithWorkerCount(a.Config.SyncWorkerCount),
		syncjobs.WithMaxAttempts(a.Config.SyncMaxAttempts),
	}, opts...)
	switch q := a.queue.(type) {
	case *syncjobs.SQSQueue:
		return syncjobs.NewWorker(a.Service, q, a.Logger, opts...)
	case *syncjobs.MemoryQueue:
		return syncjobs.NewWorker(a.Service, q, a.Logger, opts...)
	default:
		return nil
	}
}

// NewSweeper builds the failed-sync sweeper. Jobs go to the queue when one is
// configured and are reconciled in place otherwise.
func (a *App) NewSweeper(tick <-chan time.Time, stop func()) (*syncjobs.Sweeper, error) {
	var publisher bookings.JobPublisher = syncjobs.InlinePublisher{Reconciler: a.Service}
	if a.Publisher != nil {
		publisher = a.Publisher
	}
	return syncjobs.NewSweeper(syncjobs.SweeperConfig{
		Store:     a.Store,
		Publisher: publisher,
		Logger:    a.Logger,
		Window:    a.Config.SyncSweepWindow,
		Interval:  a.Config.SyncSweepInterval,
		Tick:      tick,
		Stop:      stop,
	})
}

// StartBackground runs what must live next to the API process: a worker for
// the in-process memory queue and, when enabled, the sweeper. The returned
// wait function blocks until both have stopped after ctx is cancelled.
func (a *App) StartBackground(ctx context.Context) (wait func(), err error) {
	var wg sync.WaitGroup
	if a.memoryQueue != nil {
		worker := a.NewSyncWorker()
		worker.Start(ctx)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Wait()
		}()
	}
	if a.Config.SyncSweepEnabled {
		sweeper, err := a.NewSweeper(nil, nil)
		if err != nil {
			return nil, err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweeper.Start(ctx)
		}()
		a.Logger.Info("failed-sync sweeper enabled",
			"interval", a.Config.SyncSweepInterval.String(),
			"window", a.Config.SyncSweepWindow.String(),
		)
	}
	return wg.Wait, nil
}

// Handler builds the HTTP router for the API process.
func (a *App) Handler() http.Handler {
	handler := bookings.NewHandler(a.Service, a.Logger)
	if a.Redis != nil {
		handler.WithIdempotency(bookings.NewIdempotencyStore(a.Redis, a.Config.IdempotencyTTL))
	}

	if a.Config.RateLimitRPS > 0 && a.limiter == nil {
		a.limiter = httpmiddleware.NewRateLimiter(a.Config.RateLimitRPS, a.Config.RateLimitBurst)
	}

	var metricsHandler http.Handler
	if a.Config.MetricsEnabled {
		metricsHandler = promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
	}

	return router.New(&router.Config{
		Logger:             a.Logger,
		BookingsHandler:    handler,
		PricesHandler:      pricing.NewHandler(a.Pricing, a.Logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: a.Config.CORSAllowedOrigins,
		RateLimiter:        a.limiter,
		ReadinessChecks:    a.readinessChecks(),
	})
}

func (a *App) readinessChecks() map[string]router.ReadinessCheck {
	checks := map[string]router.ReadinessCheck{}
	if a.repository.pool != nil {
		pool := a.repository.pool
		checks["postgres"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	}
	if a.Redis != nil {
		client := a.Redis
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return checks
}

// Close releases pooled connections.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.repository.pool != nil {
		a.repository.pool.Close()
	}
}

// awsLoader memoizes the AWS config so it is loaded at most once.
func (a *App) awsLoader(load func(context.Context) (aws.Config, error)) func(context.Context) (aws.Config, error) {
	return func(ctx context.Context) (aws.Config, error) {
		if load == nil {
			return aws.Config{}, errors.New("bootstrap: no AWS config loader")
		}
		a.awsOnce.Do(func() {
			a.awsCfg, a.awsErr = load(ctx)
		})
		return a.awsCfg, a.awsErr
	}
}

func businessLocation(name string, logger *logging.Logger) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("unknown BUSINESS_TIMEZONE, falling back to UTC+3", "timezone", name, "error", err)
		return time.FixedZone("EAT", 3*60*60)
	}
	return loc
}
