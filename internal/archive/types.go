package archive

import "time"

// FailedSyncRecord is the document written to S3 for one failed ERP push.
type FailedSyncRecord struct {
	Version       string        `json:"version"` // "1.0"
	BookingID     string        `json:"booking_id"`
	BookingNumber string        `json:"booking_number"`
	ArchivedAt    time.Time     `json:"archived_at"`
	Failure       Failure       `json:"failure"`
	Booking       BookingDigest `json:"booking"`
}

// Failure describes why the push failed.
type Failure struct {
	Step      string `json:"step,omitempty"`
	Outcome   string `json:"outcome"` // partner_failed|service_unmapped|service_lookup_failed|appointment_failed|malformed_response|timeout|unknown
	Retryable bool   `json:"retryable"`
	Error     string `json:"error"`
}

// BookingDigest is the booking with customer contact details hashed.
type BookingDigest struct {
	Species         string    `json:"species"`
	PetName         string    `json:"pet_name"`
	SizeClass       string    `json:"size_class"`
	PackageTier     string    `json:"package_tier"`
	Detangling      bool      `json:"detangling"`
	AppointmentAt   time.Time `json:"appointment_at"`
	AppointmentDate string    `json:"appointment_date"`
	AppointmentTime string    `json:"appointment_time"`
	CustomerName    string    `json:"customer_name"`
	EmailHash       string    `json:"email_hash"`
	PhoneHash       string    `json:"phone_hash"`
	SpecialNotes    string    `json:"special_notes,omitempty"`
	Price           int64     `json:"price"`
	Currency        string    `json:"currency"`
	CreatedAt       time.Time `json:"created_at"`
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	BookingNumber string `json:"booking_number"`
	S3Key         string `json:"s3_key"`
	Outcome       string `json:"outcome"`
	Retryable     bool   `json:"retryable"`
	ArchivedAt    string `json:"archived_at"`
}
