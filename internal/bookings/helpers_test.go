package bookings

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/grooming-booking/internal/pricing"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

var fixedNow = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func testLogger() *logging.Logger {
	return logging.New("error")
}

func testValidator() *Validator {
	return NewValidator(time.UTC).WithClock(func() time.Time { return fixedNow })
}

func validRequest() BookingRequest {
	return BookingRequest{
		Species:         "dog",
		PetName:         "Rex",
		SizeClass:       "medium",
		PackageTier:     "premium",
		AppointmentDate: "2025-03-10",
		AppointmentTime: "10:00",
		CustomerName:    "Amina Juma",
		CustomerEmail:   "Amina@Example.com",
		CustomerPhone:   "+255 712 345 678",
	}
}

func newTestService() (*Service, *InMemoryRepository) {
	repo := NewInMemoryRepository()
	store := NewStore(repo, testLogger())
	return NewService(store, testValidator(), pricing.DefaultTable(), testLogger()), repo
}

type stubAvailability struct {
	available bool
	calls     int
	mu        sync.Mutex
}

func (s *stubAvailability) IsAvailable(context.Context, time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.available
}

type stubERP struct {
	mu       sync.Mutex
	id       string
	err      error
	pushed   []string
	ctxErrs  []error
	blockFor time.Duration
}

func (s *stubERP) Push(ctx context.Context, b *Booking) (string, error) {
	if s.blockFor > 0 {
		time.Sleep(s.blockFor)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushed = append(s.pushed, b.BookingNumber)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	if s.err != nil {
		return "", s.err
	}
	return s.id, nil
}

func (s *stubERP) pushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pushed)
}

type stubNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (s *stubNotifier) NotifyConfirmation(_ context.Context, b *Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, b.BookingNumber)
}

func (s *stubNotifier) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type stubPublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (s *stubPublisher) PublishSync(_ context.Context, bookingNumber string, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, bookingNumber)
	return nil
}

type stubArchiver struct {
	archived []string
}

func (s *stubArchiver) ArchiveFailedSync(_ context.Context, b *Booking, _ error) error {
	s.archived = append(s.archived, b.BookingNumber)
	return nil
}

type failingRepository struct {
	*InMemoryRepository
	insertErr error
	updateErr error
}

func (f *failingRepository) Insert(ctx context.Context, b *Booking) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.InMemoryRepository.Insert(ctx, b)
}

func (f *failingRepository) UpdateSync(ctx context.Context, id string, update SyncUpdate) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.InMemoryRepository.UpdateSync(ctx, id, update)
}

var errBoom = errors.New("boom")

func newTestTable() *pricing.Table {
	return pricing.DefaultTable()
}
