package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/grooming-booking/internal/observability/metrics"
	"github.com/wolfman30/grooming-booking/internal/pricing"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

var bookingsTracer = otel.Tracer("grooming.internal.bookings")

// Stage names a step of the creation state machine.
type Stage string

const (
	StageValidating           Stage = "validating"
	StagePriceResolving       Stage = "price_resolving"
	StageAvailabilityChecking Stage = "availability_checking"
	StagePersisting           Stage = "persisting"
	StageSyncing              Stage = "syncing"
	StageNotifying            Stage = "notifying"
	StageDone                 Stage = "done"

	StageRejectedValidation  Stage = "rejected_validation"
	StageRejectedPricing     Stage = "rejected_pricing"
	StageRejectedUnavailable Stage = "rejected_unavailable"
	StageFailedPersisting    Stage = "failed_persisting"
)

// SyncMode selects how the post-commit phase runs.
type SyncMode string

const (
	// SyncInline runs ERP sync and notification in the request after commit.
	SyncInline SyncMode = "inline"
	// SyncQueue hands the post-commit phase to the sync worker.
	SyncQueue SyncMode = "queue"
)

// Pricer resolves the authoritative price of a booking.
type Pricer interface {
	Resolve(species pricing.Species, tier pricing.PackageTier, size pricing.SizeClass, addOns pricing.AddOns) (int64, bool)
}

// AvailabilityChecker answers whether a slot is free. Implementations decide
// how to treat their own transport errors.
type AvailabilityChecker interface {
	IsAvailable(ctx context.Context, at time.Time) bool
}

// ERPPusher mirrors a committed booking into the ERP and returns the
// external appointment id.
type ERPPusher interface {
	Push(ctx context.Context, b *Booking) (string, error)
}

// Notifier sends the customer confirmation. It must swallow its own failures.
type Notifier interface {
	NotifyConfirmation(ctx context.Context, b *Booking)
}

// JobPublisher enqueues a post-commit reconciliation job keyed by booking number.
type JobPublisher interface {
	PublishSync(ctx context.Context, bookingNumber string, notify bool) error
}

// FailureArchiver keeps a copy of bookings whose ERP sync failed.
type FailureArchiver interface {
	ArchiveFailedSync(ctx context.Context, b *Booking, syncErr error) error
}

// Timeouts bounds each external call made by the service.
type Timeouts struct {
	Availability time.Duration
	Store        time.Duration
	ERP          time.Duration
	Notify       time.Duration
	Publish      time.Duration
}

// DefaultTimeouts returns a few seconds per external call.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Availability: 5 * time.Second,
		Store:        5 * time.Second,
		ERP:          10 * time.Second,
		Notify:       5 * time.Second,
		Publish:      3 * time.Second,
	}
}

// CreateResult reports how far a creation request got.
type CreateResult struct {
	Booking *Booking
	Stage   Stage
}

// ReconcileOptions controls a phase-2 run.
type ReconcileOptions struct {
	// Notify sends the confirmation after the sync attempt. Set only for the
	// first run after creation; sweeper retries leave it false.
	Notify bool
}

// Service orchestrates booking creation: validate, price, check availability,
// persist, then the best-effort sync and notification phase.
type Service struct {
	store        *Store
	validator    *Validator
	pricer       Pricer
	availability AvailabilityChecker
	erp          ERPPusher
	notifier     Notifier
	publisher    JobPublisher
	archiver     FailureArchiver
	metrics      *metrics.BookingMetrics
	logger       *logging.Logger
	syncMode     SyncMode
	timeouts     Timeouts
}

// NewService constructs a bookings service.
func NewService(store *Store, validator *Validator, pricer Pricer, logger *logging.Logger) *Service {
	if store == nil {
		panic("bookings: store required")
	}
	if validator == nil {
		panic("bookings: validator required")
	}
	if pricer == nil {
		panic("bookings: pricer required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:     store,
		validator: validator,
		pricer:    pricer,
		logger:    logger,
		syncMode:  SyncInline,
		timeouts:  DefaultTimeouts(),
	}
}

func (s *Service) WithAvailability(c AvailabilityChecker) *Service {
	s.availability = c
	return s
}

func (s *Service) WithERP(p ERPPusher) *Service {
	s.erp = p
	return s
}

func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

func (s *Service) WithArchiver(a FailureArchiver) *Service {
	s.archiver = a
	return s
}

func (s *Service) WithMetrics(m *metrics.BookingMetrics) *Service {
	s.metrics = m
	return s
}

// WithQueue switches the post-commit phase to queue mode.
func (s *Service) WithQueue(p JobPublisher) *Service {
	if p != nil {
		s.publisher = p
		s.syncMode = SyncQueue
	}
	return s
}

// WithTimeouts overrides per-call timeouts; zero fields keep their defaults.
func (s *Service) WithTimeouts(t Timeouts) *Service {
	if t.Availability > 0 {
		s.timeouts.Availability = t.Availability
	}
	if t.Store > 0 {
		s.timeouts.Store = t.Store
	}
	if t.ERP > 0 {
		s.timeouts.ERP = t.ERP
	}
	if t.Notify > 0 {
		s.timeouts.Notify = t.Notify
	}
	if t.Publish > 0 {
		s.timeouts.Publish = t.Publish
	}
	return s
}

// Store exposes the underlying booking store for read paths.
func (s *Service) Store() *Store {
	return s.store
}

// Create runs the creation state machine. Only validation, pricing,
// availability conflicts and the primary-store write can fail the call;
// once the booking is persisted the result is a success whatever happens to
// the ERP sync or the notification.
func (s *Service) Create(ctx context.Context, req BookingRequest) (*CreateResult, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.create")
	defer span.End()

	stage := StageValidating
	normalized, err := s.validator.Validate(req)
	if err != nil {
		return s.reject(StageRejectedValidation, err)
	}
	span.SetAttributes(
		attribute.String("grooming.species", string(normalized.Species)),
		attribute.String("grooming.package", string(normalized.PackageTier)),
	)

	stage = StagePriceResolving
	price, ok := s.pricer.Resolve(normalized.Species, normalized.PackageTier, normalized.SizeClass, normalized.AddOns)
	if !ok {
		s.logger.Error("no price for validated booking",
			"species", normalized.Species,
			"package", normalized.PackageTier,
			"size", normalized.SizeClass,
		)
		return s.reject(StageRejectedPricing, ErrPricingUnavailable)
	}

	stage = StageAvailabilityChecking
	if s.availability != nil {
		actx, cancel := context.WithTimeout(ctx, s.timeouts.Availability)
		available := s.availability.IsAvailable(actx, normalized.AppointmentAt)
		cancel()
		if !available {
			s.logger.Info("slot unavailable", "appointment_at", normalized.AppointmentAt)
			return s.reject(StageRejectedUnavailable, ErrSlotUnavailable)
		}
	}

	stage = StagePersisting
	sctx, cancel := context.WithTimeout(ctx, s.timeouts.Store)
	booking, err := s.store.Create(sctx, normalized, price)
	cancel()
	if err != nil {
		span.RecordError(err)
		s.logger.Error("failed to persist booking", "error", err)
		s.metrics.ObserveBooking(string(StageFailedPersisting))
		return &CreateResult{Stage: StageFailedPersisting}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	span.SetAttributes(attribute.String("grooming.booking_number", booking.BookingNumber))
	s.logger.Info("booking created",
		"booking_id", booking.ID,
		"booking_number", booking.BookingNumber,
		"price", booking.Price,
		"stage", stage,
	)

	// Committed. The caller may go away now; phase 2 keeps running on a
	// context that ignores the caller's cancellation.
	detached := context.WithoutCancel(ctx)
	if s.enqueue(detached, booking) {
		s.metrics.ObserveBooking(string(StageDone))
		return &CreateResult{Booking: booking, Stage: StageDone}, nil
	}
	booking = s.runPhaseTwo(detached, booking, true)
	s.metrics.ObserveBooking(string(StageDone))
	return &CreateResult{Booking: booking, Stage: StageDone}, nil
}

// Reconcile is the idempotent phase-2 job keyed by booking number. A booking
// already synced is not pushed again.
func (s *Service) Reconcile(ctx context.Context, bookingNumber string, opts ReconcileOptions) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("grooming.booking_number", bookingNumber))

	sctx, cancel := context.WithTimeout(ctx, s.timeouts.Store)
	booking, err := s.store.GetByNumber(sctx, bookingNumber)
	cancel()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("bookings: reconcile load: %w", err)
	}
	return s.runPhaseTwo(ctx, booking, opts.Notify), nil
}

func (s *Service) runPhaseTwo(ctx context.Context, booking *Booking, notify bool) *Booking {
	if booking.SyncStatus != SyncSuccess {
		booking = s.sync(ctx, booking)
	}
	if notify && s.notifier != nil {
		nctx, cancel := context.WithTimeout(ctx, s.timeouts.Notify)
		s.notifier.NotifyConfirmation(nctx, booking)
		cancel()
	}
	return booking
}

func (s *Service) sync(ctx context.Context, booking *Booking) *Booking {
	if s.erp == nil {
		s.logger.Debug("erp sync disabled", "booking_number", booking.BookingNumber)
		return booking
	}

	ectx, cancel := context.WithTimeout(ctx, s.timeouts.ERP)
	externalID, pushErr := s.erp.Push(ectx, booking)
	cancel()

	update := SyncUpdate{Status: SyncSuccess, ERPAppointmentID: externalID}
	if pushErr != nil {
		update = SyncUpdate{Status: SyncFailed, Error: pushErr.Error()}
		s.logger.Warn("erp sync failed",
			"booking_number", booking.BookingNumber,
			"error", pushErr,
		)
		s.metrics.ObserveSync(string(SyncFailed))
	} else {
		s.logger.Info("erp sync succeeded",
			"booking_number", booking.BookingNumber,
			"erp_appointment_id", externalID,
		)
		s.metrics.ObserveSync(string(SyncSuccess))
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeouts.Store)
	_ = s.store.UpdateSyncStatus(sctx, booking.ID, update)
	cancel()

	out := booking.clone()
	out.SyncStatus = update.Status
	out.ERPAppointmentID = update.ERPAppointmentID
	out.SyncError = update.Error

	if pushErr != nil && s.archiver != nil {
		actx, cancel := context.WithTimeout(ctx, s.timeouts.Store)
		if err := s.archiver.ArchiveFailedSync(actx, out, pushErr); err != nil {
			s.logger.Warn("failed to archive failed sync", "booking_number", out.BookingNumber, "error", err)
		}
		cancel()
	}
	return out
}

// enqueue hands phase 2 to the worker. It reports false when the job could
// not be published so the caller falls back to running it inline.
func (s *Service) enqueue(ctx context.Context, booking *Booking) bool {
	if s.syncMode != SyncQueue || s.publisher == nil {
		return false
	}
	pctx, cancel := context.WithTimeout(ctx, s.timeouts.Publish)
	defer cancel()
	if err := s.publisher.PublishSync(pctx, booking.BookingNumber, true); err != nil {
		s.logger.Warn("sync job publish failed, running inline",
			"booking_number", booking.BookingNumber,
			"error", err,
		)
		return false
	}
	return true
}

func (s *Service) reject(stage Stage, err error) (*CreateResult, error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		s.logger.Info("booking rejected", "stage", stage, "field", verr.Field, "reason", verr.Message)
	}
	s.metrics.ObserveBooking(string(stage))
	return &CreateResult{Stage: stage}, err
}
