package bookings

import "errors"

var (
	// ErrBookingNotFound is returned when no booking matches the lookup.
	ErrBookingNotFound = errors.New("bookings: booking not found")

	// ErrPricingUnavailable signals a catalog gap: the request is well-formed
	// but no price is tabulated for it.
	ErrPricingUnavailable = errors.New("bookings: no price for requested combination")

	// ErrSlotUnavailable is returned when the ERP reports a conflicting appointment.
	ErrSlotUnavailable = errors.New("bookings: requested slot unavailable")

	// ErrStoreUnavailable wraps a failed primary-store write.
	ErrStoreUnavailable = errors.New("bookings: primary store unavailable")

	// ErrDuplicateBookingNumber is returned by a repository when the number is taken.
	ErrDuplicateBookingNumber = errors.New("bookings: duplicate booking number")
)

// Caller-facing messages. Internal error text is logged, never returned.
const (
	MessagePricing     = "Could not calculate price. Please verify the pet type, size, and package."
	MessageUnavailable = "This time slot was just booked. Please pick another time."
	MessageGeneric     = "Failed to create booking. Please try again."
	MessageNotFound    = "Booking not found."
)

// ValidationError reports the first rule a request violated.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// PublicMessage maps an orchestrator error to the short message shown to callers.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, ErrPricingUnavailable):
		return MessagePricing
	case errors.Is(err, ErrSlotUnavailable):
		return MessageUnavailable
	case errors.Is(err, ErrBookingNotFound):
		return MessageNotFound
	default:
		return MessageGeneric
	}
}
