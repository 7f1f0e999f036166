package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/grooming-booking/internal/pricing"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

const maxNumberAttempts = 3

// Store owns the Booking record: it allocates booking numbers, writes new
// bookings and applies the sync-status patch. Nothing else writes bookings.
type Store struct {
	repo    Repository
	numbers *NumberGenerator
	now     func() time.Time
	logger  *logging.Logger
}

// NewStore wraps a repository.
func NewStore(repo Repository, logger *logging.Logger) *Store {
	if repo == nil {
		panic("bookings: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		repo:    repo,
		numbers: NewNumberGenerator(),
		now:     time.Now,
		logger:  logger,
	}
}

// Create persists a new booking with status pending and syncStatus pending.
func (s *Store) Create(ctx context.Context, n NormalizedBooking, price int64) (*Booking, error) {
	b := &Booking{
		ID:              uuid.NewString(),
		Species:         n.Species,
		PetName:         n.PetName,
		SizeClass:       n.SizeClass,
		PackageTier:     n.PackageTier,
		AppointmentAt:   n.AppointmentAt,
		AppointmentDate: n.AppointmentDate,
		AppointmentTime: n.AppointmentTime,
		CustomerName:    n.CustomerName,
		CustomerEmail:   n.CustomerEmail,
		CustomerPhone:   n.CustomerPhone,
		SpecialNotes:    n.SpecialNotes,
		AddOns:          n.AddOns,
		CallerUserID:    n.CallerUserID,
		Price:           price,
		Currency:        pricing.Currency,
		Status:          StatusPending,
		SyncStatus:      SyncPending,
		CreatedAt:       s.now().UTC(),
	}

	var err error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		b.BookingNumber = s.numbers.Next()
		err = s.repo.Insert(ctx, b)
		if err == nil {
			return b.clone(), nil
		}
		if !errors.Is(err, ErrDuplicateBookingNumber) {
			break
		}
		s.logger.Warn("booking number collision, regenerating", "booking_number", b.BookingNumber)
	}
	return nil, fmt.Errorf("bookings: create: %w", err)
}

// UpdateSyncStatus applies a sync outcome. The update is a plain set of the
// sync fields, so repeating it is harmless. Errors are logged and returned;
// the orchestrator never fails a committed booking because of them.
func (s *Store) UpdateSyncStatus(ctx context.Context, id string, update SyncUpdate) error {
	if err := s.repo.UpdateSync(ctx, id, update); err != nil {
		s.logger.Error("failed to record sync status",
			"booking_id", id,
			"sync_status", update.Status,
			"error", err,
		)
		return fmt.Errorf("bookings: update sync status: %w", err)
	}
	return nil
}

// GetByID loads a booking by its store id.
func (s *Store) GetByID(ctx context.Context, id string) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByNumber loads a booking by its booking number.
func (s *Store) GetByNumber(ctx context.Context, bookingNumber string) (*Booking, error) {
	return s.repo.GetByNumber(ctx, bookingNumber)
}

// ListForCaller returns a caller's bookings, newest appointment first.
func (s *Store) ListForCaller(ctx context.Context, callerUserID string, limit int) ([]*Booking, error) {
	if callerUserID == "" {
		return nil, nil
	}
	return s.repo.List(ctx, Filter{CallerUserID: callerUserID, Limit: limit})
}

// ListFailedSince returns bookings whose ERP sync failed and that were created after since.
func (s *Store) ListFailedSince(ctx context.Context, since time.Time, limit int) ([]*Booking, error) {
	return s.repo.List(ctx, Filter{SyncStatus: SyncFailed, CreatedAfter: &since, Limit: limit})
}
