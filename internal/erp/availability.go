package erp

import (
	"context"
	"time"

	"github.com/wolfman30/grooming-booking/internal/bookings"
	"github.com/wolfman30/grooming-booking/internal/observability/metrics"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

// AvailabilityChecker asks the ERP whether a non-cancelled appointment
// already exists at the exact timestamp. Appointment duration is not modelled;
// only identical start times conflict.
type AvailabilityChecker struct {
	rpc     RPC
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

var _ bookings.AvailabilityChecker = (*AvailabilityChecker)(nil)

func NewAvailabilityChecker(rpc RPC, m *metrics.BookingMetrics, logger *logging.Logger) *AvailabilityChecker {
	if rpc == nil {
		panic("erp: rpc required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AvailabilityChecker{rpc: rpc, metrics: m, logger: logger}
}

// IsAvailable reports whether the slot at is free.
//
// Fail-open: if the ERP cannot be reached, times out or answers with garbage,
// the slot is reported as available. An ERP outage must not block sales, so
// a possible double booking is accepted in exchange for never turning a
// customer away because the mirror is down.
func (c *AvailabilityChecker) IsAvailable(ctx context.Context, at time.Time) bool {
	ts := FormatTimestamp(at)
	domain := Where("appointment_date", "=", ts).And("state", "!=", "cancelled")

	raw, err := c.rpc.Execute(ctx, ModelAppointment, "search_count", []any{domain}, nil)
	if err != nil {
		c.logger.Warn("availability check failed, allowing booking", "appointment_date", ts, "error", err)
		c.metrics.ObserveAvailability("fail_open")
		return true
	}
	count, err := decodeInt64(raw)
	if err != nil {
		c.logger.Warn("availability check returned unexpected payload, allowing booking", "appointment_date", ts, "error", err)
		c.metrics.ObserveAvailability("fail_open")
		return true
	}
	if count > 0 {
		c.metrics.ObserveAvailability("taken")
		return false
	}
	c.metrics.ObserveAvailability("available")
	return true
}
