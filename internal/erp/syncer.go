package erp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/grooming-booking/internal/bookings"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

var erpTracer = otel.Tracer("grooming.internal.erp")

const (
	serviceTypeFullGrooming = "full_grooming"
	appointmentStatePending = "pending"
)

// Syncer pushes committed bookings into the ERP: partner, then service,
// then appointment. It never retries; a failed step aborts the push and is
// reported as a *SyncError.
type Syncer struct {
	rpc     RPC
	catalog *CatalogMapping
	logger  *logging.Logger
}

var _ bookings.ERPPusher = (*Syncer)(nil)

// NewSyncer wires a syncer. A nil catalog means DefaultCatalog.
func NewSyncer(rpc RPC, catalog *CatalogMapping, logger *logging.Logger) *Syncer {
	if rpc == nil {
		panic("erp: rpc required")
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Syncer{rpc: rpc, catalog: catalog, logger: logger}
}

// Push creates the ERP appointment for b and returns its id.
func (s *Syncer) Push(ctx context.Context, b *bookings.Booking) (string, error) {
	ctx, span := erpTracer.Start(ctx, "erp.push", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("grooming.booking_number", b.BookingNumber))

	log := s.logger.With("booking_number", b.BookingNumber)

	partnerID, err := s.resolvePartner(ctx, b)
	if err != nil {
		span.RecordError(err)
		return "", s.fail(log, "partner", OutcomePartnerFailed, err)
	}

	serviceID, err := s.resolveService(ctx, b)
	if err != nil {
		span.RecordError(err)
		outcome := OutcomeServiceFailed
		if errors.Is(err, ErrUnmappedService) {
			outcome = OutcomeServiceUnmapped
		}
		return "", s.fail(log, "service", outcome, err)
	}

	notes := "Web Booking Ref: " + b.BookingNumber + "\n" + b.SpecialNotes
	raw, err := s.rpc.Execute(ctx, ModelAppointment, "create", []any{map[string]any{
		"partner_id":       partnerID,
		"pet_name":         b.PetName,
		"pet_type":         string(b.Species),
		"pet_category":     string(b.SizeClass),
		"service_type":     serviceTypeFullGrooming,
		"service_id":       serviceID,
		"appointment_date": FormatTimestamp(b.AppointmentAt),
		"preferred_time":   b.AppointmentTime,
		"has_detangling":   b.AddOns.Detangling,
		"notes":            notes,
		"state":            appointmentStatePending,
	}}, nil)
	if err != nil {
		span.RecordError(err)
		return "", s.fail(log, "appointment", OutcomeAppointmentFailed, err)
	}
	appointmentID, err := decodeInt64(raw)
	if err != nil {
		span.RecordError(err)
		return "", s.fail(log, "appointment", OutcomeMalformed, err)
	}

	log.Info("erp appointment created",
		"partner_id", partnerID,
		"service_id", serviceID,
		"erp_appointment_id", appointmentID,
	)
	return strconv.FormatInt(appointmentID, 10), nil
}

func (s *Syncer) resolvePartner(ctx context.Context, b *bookings.Booking) (int64, error) {
	rows, err := s.rpc.SearchRead(ctx, ModelPartner, Where("email", "=", b.CustomerEmail), []string{"id"}, 1)
	if err != nil {
		return 0, fmt.Errorf("search partner: %w", err)
	}
	if len(rows) > 0 {
		id, ok := rows[0].ID()
		if !ok {
			return 0, fmt.Errorf("%w: partner record without id", ErrMalformedResponse)
		}
		return id, nil
	}

	raw, err := s.rpc.Execute(ctx, ModelPartner, "create", []any{map[string]any{
		"name":          b.CustomerName,
		"email":         b.CustomerEmail,
		"phone":         b.CustomerPhone,
		"customer_rank": 1,
	}}, nil)
	if err != nil {
		return 0, fmt.Errorf("create partner: %w", err)
	}
	return decodeInt64(raw)
}

func (s *Syncer) resolveService(ctx context.Context, b *bookings.Booking) (int64, error) {
	name, ok := s.catalog.ServiceName(b.PackageTier)
	if !ok {
		return 0, fmt.Errorf("%w: no mapping for package %q", ErrUnmappedService, b.PackageTier)
	}
	// "=ilike" is a case-insensitive exact match; plain "ilike" would also
	// hit "Super Premium Package" when looking for "Premium Package".
	rows, err := s.rpc.SearchRead(ctx, s.catalog.ServiceModel, Where("name", "=ilike", name), []string{"id", "name"}, 0)
	if err != nil {
		return 0, fmt.Errorf("search service: %w", err)
	}
	row, found := exactName(rows, name)
	if !found {
		return 0, fmt.Errorf("%w: no service named %q", ErrUnmappedService, name)
	}
	id, ok := row.ID()
	if !ok {
		return 0, fmt.Errorf("%w: service record without id", ErrMalformedResponse)
	}
	return id, nil
}

// exactName picks the row whose name equals want, ignoring case. Rows that
// carry no name are trusted to the server-side filter.
func exactName(rows []Record, want string) (Record, bool) {
	var fallback Record
	for _, row := range rows {
		got, ok := row["name"].(string)
		if !ok {
			if fallback == nil {
				fallback = row
			}
			continue
		}
		if strings.EqualFold(strings.TrimSpace(got), want) {
			return row, true
		}
	}
	return fallback, fallback != nil
}

func (s *Syncer) fail(log *logging.Logger, step string, outcome Outcome, err error) error {
	if errors.Is(err, ErrMalformedResponse) {
		outcome = OutcomeMalformed
	}
	log.Warn("erp push failed", "step", step, "outcome", outcome, "error", err)
	return &SyncError{Step: step, Outcome: outcome, Err: err}
}
