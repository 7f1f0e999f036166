package bookings

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/wolfman30/grooming-booking/internal/pricing"
)

// DefaultTimeSlots are the appointment start times the salon accepts.
var DefaultTimeSlots = []string{"09:00", "10:00", "11:00", "12:00", "14:00", "15:00", "16:00"}

const dateLayout = "2006-01-02"

// Validator checks a BookingRequest and normalizes it. It does no I/O and
// never consults the price table.
type Validator struct {
	now   func() time.Time
	loc   *time.Location
	slots []string
}

// NewValidator builds a validator for the given business timezone.
// A nil location means UTC.
func NewValidator(loc *time.Location) *Validator {
	if loc == nil {
		loc = time.UTC
	}
	slots := make([]string, len(DefaultTimeSlots))
	copy(slots, DefaultTimeSlots)
	return &Validator{now: time.Now, loc: loc, slots: slots}
}

// WithClock overrides the validator's notion of now.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	if now != nil {
		v.now = now
	}
	return v
}

// WithTimeSlots overrides the accepted appointment times (HH:MM).
func (v *Validator) WithTimeSlots(slots []string) *Validator {
	if len(slots) > 0 {
		v.slots = append([]string(nil), slots...)
	}
	return v
}

// Location returns the business timezone appointments are interpreted in.
func (v *Validator) Location() *time.Location {
	return v.loc
}

// Validate returns the normalized booking or the first violated rule.
func (v *Validator) Validate(req BookingRequest) (NormalizedBooking, error) {
	species, ok := pricing.ParseSpecies(req.Species)
	if !ok {
		return NormalizedBooking{}, invalid("species", "Please choose a pet type: dog or cat.")
	}

	petName := strings.TrimSpace(req.PetName)
	if petName == "" {
		return NormalizedBooking{}, invalid("petName", "Pet name is required.")
	}

	size, ok := pricing.ParseSize(species, req.SizeClass)
	if !ok {
		return NormalizedBooking{}, invalid("sizeClass", sizeMessage(species))
	}

	tier, ok := pricing.ParseTier(req.PackageTier)
	if !ok {
		return NormalizedBooking{}, invalid("packageTier", "Invalid package. Please choose: standard, premium, or super_premium.")
	}

	dateStr := strings.TrimSpace(req.AppointmentDate)
	day, err := time.ParseInLocation(dateLayout, dateStr, v.loc)
	if err != nil {
		return NormalizedBooking{}, invalid("appointmentDate", "Appointment date must be in YYYY-MM-DD format.")
	}

	timeStr := strings.TrimSpace(req.AppointmentTime)
	if !v.isSlot(timeStr) {
		return NormalizedBooking{}, invalid("appointmentTime", fmt.Sprintf("Appointment time must be one of: %s.", strings.Join(v.slots, ", ")))
	}
	clock, _ := time.Parse("15:04", timeStr)
	at := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, v.loc)
	if !at.After(v.now()) {
		return NormalizedBooking{}, invalid("appointmentDate", "Appointment must be in the future.")
	}

	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return NormalizedBooking{}, invalid("customerName", "Customer name is required.")
	}

	email, ok := normalizeEmail(req.CustomerEmail)
	if !ok {
		return NormalizedBooking{}, invalid("customerEmail", "A valid email address is required.")
	}

	phone := strings.TrimSpace(req.CustomerPhone)
	if phone == "" {
		return NormalizedBooking{}, invalid("customerPhone", "Customer phone number is required.")
	}
	if countDigits(phone) < 7 {
		return NormalizedBooking{}, invalid("customerPhone", "A valid phone number is required.")
	}

	return NormalizedBooking{
		Species:         species,
		PetName:         petName,
		SizeClass:       size,
		PackageTier:     tier,
		AppointmentAt:   at,
		AppointmentDate: dateStr,
		AppointmentTime: timeStr,
		CustomerName:    name,
		CustomerEmail:   email,
		CustomerPhone:   phone,
		SpecialNotes:    strings.TrimSpace(req.SpecialNotes),
		AddOns:          req.AddOns,
		CallerUserID:    strings.TrimSpace(req.CallerUserID),
	}, nil
}

func (v *Validator) isSlot(value string) bool {
	for _, slot := range v.slots {
		if slot == value {
			return true
		}
	}
	return false
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func sizeMessage(species pricing.Species) string {
	sizes := pricing.SizesFor(species)
	names := make([]string, len(sizes))
	for i, s := range sizes {
		names[i] = string(s)
	}
	var list string
	switch len(names) {
	case 0:
		list = ""
	case 1:
		list = names[0]
	case 2:
		list = names[0] + " or " + names[1]
	default:
		list = strings.Join(names[:len(names)-1], ", ") + ", or " + names[len(names)-1]
	}
	return fmt.Sprintf("Invalid size for %s. Please specify: %s.", species, list)
}

func normalizeEmail(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw || addr.Name != "" {
		return "", false
	}
	at := strings.LastIndex(raw, "@")
	if at <= 0 || !strings.Contains(raw[at+1:], ".") {
		return "", false
	}
	return strings.ToLower(raw), true
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
