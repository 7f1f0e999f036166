package syncjobs

import (
	"context"

	"github.com/wolfman30/grooming-booking/internal/bookings"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

// Publisher enqueues reconciliation jobs.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

var _ bookings.JobPublisher = (*Publisher)(nil)

// NewPublisher builds a Publisher on top of a queue.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("syncjobs: queue required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// PublishSync enqueues a reconciliation job for bookingNumber.
func (p *Publisher) PublishSync(ctx context.Context, bookingNumber string, notify bool) error {
	job, body, err := encodeJob(Job{BookingNumber: bookingNumber, Notify: notify})
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return err
	}
	p.logger.Debug("sync job enqueued", "job_id", job.ID, "booking_number", bookingNumber, "notify", notify)
	return nil
}

// Reconciler runs phase 2 for one booking.
type Reconciler interface {
	Reconcile(ctx context.Context, bookingNumber string, opts bookings.ReconcileOptions) (*bookings.Booking, error)
}

// InlinePublisher runs reconciliation immediately instead of queueing it.
// The sweeper uses it when no queue is configured.
type InlinePublisher struct {
	Reconciler Reconciler
}

// PublishSync reconciles bookingNumber in the caller's goroutine.
func (p InlinePublisher) PublishSync(ctx context.Context, bookingNumber string, notify bool) error {
	_, err := p.Reconciler.Reconcile(ctx, bookingNumber, bookings.ReconcileOptions{Notify: notify})
	return err
}
