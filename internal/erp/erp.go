// Package erp mirrors bookings into the salon ERP. Entity and method names are
// passed to the transport as plain strings; the transport is an RPC
// implementation such as odoo.Client.
package erp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ERP entity names.
const (
	ModelPartner     = "res.partner"
	ModelService     = "grooming.service"
	ModelAppointment = "grooming.appointment"
	ModelPrice       = "grooming.price"
)

const timestampLayout = "2006-01-02 15:04:05"

var (
	// ErrUnmappedService means no ERP service matches the package tier.
	ErrUnmappedService = errors.New("erp: unmapped service")
	// ErrMalformedResponse means the ERP answered with an unexpected shape.
	ErrMalformedResponse = errors.New("erp: malformed response")
	// ErrRemote wraps an error object returned by the ERP.
	ErrRemote = errors.New("erp: remote error")
	// ErrSessionExpired means the cached session must be re-established.
	ErrSessionExpired = errors.New("erp: session expired")
)

// RPC is the generic ERP transport.
type RPC interface {
	SearchRead(ctx context.Context, model string, domain Domain, fields []string, limit int) ([]Record, error)
	Execute(ctx context.Context, model, method string, args []any, kwargs map[string]any) (json.RawMessage, error)
}

// Record is one row returned by SearchRead.
type Record map[string]any

// ID returns the integer "id" field of a record.
func (r Record) ID() (int64, bool) {
	return asInt64(r["id"])
}

// Condition is a single [field, operator, value] domain term.
type Condition struct {
	Field    string
	Operator string
	Value    any
}

func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Field, c.Operator, c.Value})
}

// Domain is a conjunction of conditions.
type Domain []Condition

// Where is shorthand for a one-condition domain.
func Where(field, operator string, value any) Domain {
	return Domain{{Field: field, Operator: operator, Value: value}}
}

// And appends a condition.
func (d Domain) And(field, operator string, value any) Domain {
	return append(d, Condition{Field: field, Operator: operator, Value: value})
}

// FormatTimestamp renders t the way the ERP stores datetimes: UTC, second precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Outcome classifies where a push failed.
type Outcome string

const (
	OutcomePartnerFailed     Outcome = "partner_failed"
	OutcomeServiceUnmapped   Outcome = "service_unmapped"
	OutcomeServiceFailed     Outcome = "service_lookup_failed"
	OutcomeAppointmentFailed Outcome = "appointment_failed"
	OutcomeMalformed         Outcome = "malformed_response"
)

// SyncError is the structured result of a failed push.
type SyncError struct {
	Step    string
	Outcome Outcome
	Err     error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("erp: %s: %s: %v", e.Step, e.Outcome, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

func decodeInt64(raw json.RawMessage) (int64, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	n, ok := asInt64(v)
	if !ok {
		return 0, fmt.Errorf("%w: expected integer, got %s", ErrMalformedResponse, string(raw))
	}
	return n, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case []any:
		// many2one fields come back as [id, display_name]
		if len(n) > 0 {
			return asInt64(n[0])
		}
	}
	return 0, false
}
