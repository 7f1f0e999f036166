package bookings

import (
	"time"

	"github.com/wolfman30/grooming-booking/internal/pricing"
)

// Status is the business lifecycle of a booking. Fulfillment workflows move it
// past pending; the creation pipeline only ever writes StatusPending.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// SyncStatus tracks propagation to the ERP independently of Status.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSuccess SyncStatus = "success"
	SyncFailed  SyncStatus = "failed"
)

// BookingRequest is the caller-supplied payload. It deliberately has no price
// field; unknown JSON keys such as "price" are dropped by the decoder.
type BookingRequest struct {
	Species         string         `json:"species"`
	PetName         string         `json:"petName"`
	SizeClass       string         `json:"sizeClass"`
	PackageTier     string         `json:"packageTier"`
	AppointmentDate string         `json:"appointmentDate"`
	AppointmentTime string         `json:"appointmentTime"`
	CustomerName    string         `json:"customerName"`
	CustomerEmail   string         `json:"customerEmail"`
	CustomerPhone   string         `json:"customerPhone"`
	SpecialNotes    string         `json:"specialNotes,omitempty"`
	AddOns          pricing.AddOns `json:"addOns"`
	CallerUserID    string         `json:"callerUserId,omitempty"`
}

// NormalizedBooking is a validated request with enums parsed and the
// appointment resolved to an instant in the business timezone.
type NormalizedBooking struct {
	Species         pricing.Species
	PetName         string
	SizeClass       pricing.SizeClass
	PackageTier     pricing.PackageTier
	AppointmentAt   time.Time
	AppointmentDate string
	AppointmentTime string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	SpecialNotes    string
	AddOns          pricing.AddOns
	CallerUserID    string
}

// Booking is the durable record owned by Store.
type Booking struct {
	ID               string              `json:"id" dynamodbav:"id"`
	BookingNumber    string              `json:"bookingNumber" dynamodbav:"bookingNumber"`
	Species          pricing.Species     `json:"species" dynamodbav:"species"`
	PetName          string              `json:"petName" dynamodbav:"petName"`
	SizeClass        pricing.SizeClass   `json:"sizeClass" dynamodbav:"sizeClass"`
	PackageTier      pricing.PackageTier `json:"packageTier" dynamodbav:"packageTier"`
	AppointmentAt    time.Time           `json:"appointmentAt" dynamodbav:"appointmentAt"`
	AppointmentDate  string              `json:"appointmentDate" dynamodbav:"appointmentDate"`
	AppointmentTime  string              `json:"appointmentTime" dynamodbav:"appointmentTime"`
	CustomerName     string              `json:"customerName" dynamodbav:"customerName"`
	CustomerEmail    string              `json:"customerEmail" dynamodbav:"customerEmail"`
	CustomerPhone    string              `json:"customerPhone" dynamodbav:"customerPhone"`
	SpecialNotes     string              `json:"specialNotes,omitempty" dynamodbav:"specialNotes,omitempty"`
	AddOns           pricing.AddOns      `json:"addOns" dynamodbav:"addOns"`
	CallerUserID     string              `json:"callerUserId,omitempty" dynamodbav:"callerUserId,omitempty"`
	Price            int64               `json:"price" dynamodbav:"price"`
	Currency         string              `json:"currency" dynamodbav:"currency"`
	Status           Status              `json:"status" dynamodbav:"status"`
	SyncStatus       SyncStatus          `json:"syncStatus" dynamodbav:"syncStatus"`
	ERPAppointmentID string              `json:"erpAppointmentId,omitempty" dynamodbav:"erpAppointmentId,omitempty"`
	SyncError        string              `json:"syncError,omitempty" dynamodbav:"syncError,omitempty"`
	CreatedAt        time.Time           `json:"createdAt" dynamodbav:"createdAt"`
}

// AdditionalServices lists the add-on codes selected on the booking.
func (b *Booking) AdditionalServices() []string {
	var out []string
	if b.AddOns.Detangling {
		out = append(out, "detangling")
	}
	return out
}

func (b *Booking) clone() *Booking {
	if b == nil {
		return nil
	}
	cp := *b
	return &cp
}

// SyncUpdate is the only mutation the sync step performs on a booking.
// Applying the same update twice yields the same record.
type SyncUpdate struct {
	Status           SyncStatus
	ERPAppointmentID string
	Error            string
}

// Filter selects bookings for List. Results are ordered by appointment time, newest first.
type Filter struct {
	CallerUserID  string
	SyncStatus    SyncStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
}
