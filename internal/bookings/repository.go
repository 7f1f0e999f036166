package bookings

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Repository is the persistence contract for the primary booking store.
// Implementations: InMemoryRepository, PostgresRepository, DynamoRepository.
type Repository interface {
	Insert(ctx context.Context, b *Booking) error
	UpdateSync(ctx context.Context, id string, update SyncUpdate) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	GetByNumber(ctx context.Context, bookingNumber string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, error)
}

// InMemoryRepository is a process-local Repository used in development and tests.
type InMemoryRepository struct {
	mu       sync.RWMutex
	byID     map[string]*Booking
	byNumber map[string]string
}

var _ Repository = (*InMemoryRepository)(nil)

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:     make(map[string]*Booking),
		byNumber: make(map[string]string),
	}
}

func (r *InMemoryRepository) Insert(_ context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byNumber[b.BookingNumber]; exists {
		return ErrDuplicateBookingNumber
	}
	r.byID[b.ID] = b.clone()
	r.byNumber[b.BookingNumber] = b.ID
	return nil
}

func (r *InMemoryRepository) UpdateSync(_ context.Context, id string, update SyncUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.byID[id]
	if !ok {
		return ErrBookingNotFound
	}
	b.SyncStatus = update.Status
	b.ERPAppointmentID = update.ERPAppointmentID
	b.SyncError = update.Error
	return nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byID[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return b.clone(), nil
}

func (r *InMemoryRepository) GetByNumber(_ context.Context, bookingNumber string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byNumber[strings.TrimSpace(bookingNumber)]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return r.byID[id].clone(), nil
}

func (r *InMemoryRepository) List(_ context.Context, filter Filter) ([]*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Booking
	for _, b := range r.byID {
		if !filter.matches(b) {
			continue
		}
		out = append(out, b.clone())
	}
	sortByAppointmentDesc(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f Filter) matches(b *Booking) bool {
	if f.CallerUserID != "" && b.CallerUserID != f.CallerUserID {
		return false
	}
	if f.SyncStatus != "" && b.SyncStatus != f.SyncStatus {
		return false
	}
	if f.CreatedAfter != nil && b.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && !b.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	return true
}

func sortByAppointmentDesc(list []*Booking) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].AppointmentAt.Equal(list[j].AppointmentAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].AppointmentAt.After(list[j].AppointmentAt)
	})
}
