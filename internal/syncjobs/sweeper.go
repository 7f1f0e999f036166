package syncjobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/grooming-booking/internal/bookings"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

const (
	defaultSweepInterval = 15 * time.Minute
	defaultSweepWindow   = 72 * time.Hour
	defaultSweepLimit    = 100
)

// FailedLister returns bookings whose ERP sync failed.
type FailedLister interface {
	ListFailedSince(ctx context.Context, since time.Time, limit int) ([]*bookings.Booking, error)
}

// SweeperConfig configures a Sweeper.
type SweeperConfig struct {
	Store     FailedLister
	Publisher bookings.JobPublisher
	Logger    *logging.Logger

	Window   time.Duration
	Interval time.Duration
	Limit    int

	Now  func() time.Time
	Tick <-chan time.Time
	Stop func()
}

// Sweeper periodically re-enqueues failed syncs created within a window.
// Re-enqueued jobs never notify again.
type Sweeper struct {
	store     FailedLister
	publisher bookings.JobPublisher
	logger    *logging.Logger
	window    time.Duration
	limit     int
	now       func() time.Time

	tick <-chan time.Time
	stop func()
}

// NewSweeper validates cfg and fills defaults.
func NewSweeper(cfg SweeperConfig) (*Sweeper, error) {
	if cfg.Store == nil {
		return nil, errors.New("syncjobs: sweeper requires store")
	}
	if cfg.Publisher == nil {
		return nil, errors.New("syncjobs: sweeper requires publisher")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	window := cfg.Window
	if window <= 0 {
		window = defaultSweepWindow
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	tick, stop := cfg.Tick, cfg.Stop
	if tick == nil {
		interval := cfg.Interval
		if interval <= 0 {
			interval = defaultSweepInterval
		}
		ticker := time.NewTicker(interval)
		tick = ticker.C
		stop = ticker.Stop
	}

	return &Sweeper{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		logger:    logger,
		window:    window,
		limit:     limit,
		now:       now,
		tick:      tick,
		stop:      stop,
	}, nil
}

// Start sweeps once, then on every tick until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	if s == nil {
		return
	}
	defer func() {
		if s.stop != nil {
			s.stop()
		}
	}()

	s.sweepAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.tick:
			s.sweepAndLog(ctx)
		}
	}
}

func (s *Sweeper) sweepAndLog(ctx context.Context) {
	n, err := s.SweepOnce(ctx)
	if err != nil {
		s.logger.Warn("sync sweep incomplete", "requeued", n, "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("sync sweep requeued failed bookings", "requeued", n)
	}
}

// SweepOnce publishes one job per failed booking and reports how many were
// published. The first publish error is returned after the rest are tried.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	since := s.now().Add(-s.window)
	failed, err := s.store.ListFailedSince(ctx, since, s.limit)
	if err != nil {
		return 0, fmt.Errorf("syncjobs: list failed: %w", err)
	}

	var (
		published int
		firstErr  error
	)
	for _, b := range failed {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		if err := s.publisher.PublishSync(ctx, b.BookingNumber, false); err != nil {
			s.logger.Warn("sync sweep publish failed", "booking_number", b.BookingNumber, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("syncjobs: publish %s: %w", b.BookingNumber, err)
			}
			continue
		}
		published++
	}
	return published, firstErr
}
