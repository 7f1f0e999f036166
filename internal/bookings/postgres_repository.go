package bookings

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/grooming-booking/internal/pricing"
)

const (
	bookingsTable       = "grooming_bookings"
	uniqueViolationCode = "23505"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var bookingColumns = []string{
	"id",
	"booking_number",
	"species",
	"pet_name",
	"size_class",
	"package_tier",
	"appointment_at",
	"appointment_date",
	"appointment_time",
	"customer_name",
	"customer_email",
	"customer_phone",
	"special_notes",
	"detangling",
	"caller_user_id",
	"price",
	"currency",
	"status",
	"sync_status",
	"erp_appointment_id",
	"sync_error",
	"created_at",
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository stores bookings in the grooming_bookings table.
type PostgresRepository struct {
	db rowQuerier
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithExec(exec rowQuerier) *PostgresRepository {
	if exec == nil {
		panic("bookings: exec required")
	}
	return &PostgresRepository{db: exec}
}

func (r *PostgresRepository) Insert(ctx context.Context, b *Booking) error {
	query, args, err := psql.Insert(bookingsTable).
		Columns(bookingColumns...).
		Values(
			b.ID,
			b.BookingNumber,
			string(b.Species),
			b.PetName,
			string(b.SizeClass),
			string(b.PackageTier),
			b.AppointmentAt,
			b.AppointmentDate,
			b.AppointmentTime,
			b.CustomerName,
			b.CustomerEmail,
			b.CustomerPhone,
			b.SpecialNotes,
			b.AddOns.Detangling,
			b.CallerUserID,
			b.Price,
			b.Currency,
			string(b.Status),
			string(b.SyncStatus),
			b.ERPAppointmentID,
			b.SyncError,
			b.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("bookings: build insert: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrDuplicateBookingNumber
		}
		return fmt.Errorf("bookings: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateSync(ctx context.Context, id string, update SyncUpdate) error {
	query, args, err := psql.Update(bookingsTable).
		Set("sync_status", string(update.Status)).
		Set("erp_appointment_id", update.ERPAppointmentID).
		Set("sync_error", update.Error).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("bookings: build update: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("bookings: update sync: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

func (r *PostgresRepository) GetByNumber(ctx context.Context, bookingNumber string) (*Booking, error) {
	return r.getOne(ctx, squirrel.Eq{"booking_number": bookingNumber})
}

func (r *PostgresRepository) getOne(ctx context.Context, where squirrel.Eq) (*Booking, error) {
	query, args, err := psql.Select(bookingColumns...).
		From(bookingsTable).
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("bookings: build select: %w", err)
	}

	b, err := scanBooking(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("bookings: select: %w", err)
	}
	return b, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter Filter) ([]*Booking, error) {
	builder := psql.Select(bookingColumns...).
		From(bookingsTable).
		OrderBy("appointment_at DESC", "created_at DESC")
	if filter.CallerUserID != "" {
		builder = builder.Where(squirrel.Eq{"caller_user_id": filter.CallerUserID})
	}
	if filter.SyncStatus != "" {
		builder = builder.Where(squirrel.Eq{"sync_status": string(filter.SyncStatus)})
	}
	if filter.CreatedAfter != nil {
		builder = builder.Where(squirrel.GtOrEq{"created_at": *filter.CreatedAfter})
	}
	if filter.CreatedBefore != nil {
		builder = builder.Where(squirrel.Lt{"created_at": *filter.CreatedBefore})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("bookings: build list: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("bookings: list: %w", err)
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("bookings: scan: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: list rows: %w", err)
	}
	return out, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var (
		b                   Booking
		species, size, tier string
		status, syncStatus  string
		detangling          bool
	)
	if err := row.Scan(
		&b.ID,
		&b.BookingNumber,
		&species,
		&b.PetName,
		&size,
		&tier,
		&b.AppointmentAt,
		&b.AppointmentDate,
		&b.AppointmentTime,
		&b.CustomerName,
		&b.CustomerEmail,
		&b.CustomerPhone,
		&b.SpecialNotes,
		&detangling,
		&b.CallerUserID,
		&b.Price,
		&b.Currency,
		&status,
		&syncStatus,
		&b.ERPAppointmentID,
		&b.SyncError,
		&b.CreatedAt,
	); err != nil {
		return nil, err
	}
	b.Species = pricing.Species(species)
	b.SizeClass = pricing.SizeClass(size)
	b.PackageTier = pricing.PackageTier(tier)
	b.AddOns = pricing.AddOns{Detangling: detangling}
	b.Status = Status(status)
	b.SyncStatus = SyncStatus(syncStatus)
	return &b, nil
}
