// Package notify sends booking confirmations to customers. Delivery is best
// effort: every failure is logged and counted, and nothing is returned to
// the booking pipeline.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/grooming-booking/internal/bookings"
	"github.com/wolfman30/grooming-booking/internal/messaging"
	"github.com/wolfman30/grooming-booking/internal/messaging/templates"
	"github.com/wolfman30/grooming-booking/internal/observability/metrics"
	"github.com/wolfman30/grooming-booking/internal/pricing"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

const (
	channelMessage = "message"
	channelEmail   = "email"
)

var speciesLabels = map[pricing.Species]string{
	pricing.SpeciesDog: "Dog",
	pricing.SpeciesCat: "Cat",
}

// Dispatcher renders the confirmation and sends it over the phone channel
// and, when configured, by email.
type Dispatcher struct {
	sender   messaging.Sender
	email    EmailSender
	renderer templates.Renderer
	location string
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
}

var _ bookings.Notifier = (*Dispatcher)(nil)

// NewDispatcher builds a dispatcher. Either channel may be nil.
func NewDispatcher(sender messaging.Sender, email EmailSender, location string, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		sender:   sender,
		email:    email,
		location: location,
		logger:   logger,
	}
}

// WithMetrics records per-channel delivery outcomes.
func (d *Dispatcher) WithMetrics(m *metrics.BookingMetrics) *Dispatcher {
	d.metrics = m
	return d
}

// NotifyConfirmation sends the confirmation for b. It never panics and never
// reports failure to the caller.
func (d *Dispatcher) NotifyConfirmation(ctx context.Context, b *bookings.Booking) {
	if d == nil || b == nil {
		return
	}
	log := d.logger.With("booking_number", b.BookingNumber)
	defer func() {
		if r := recover(); r != nil {
			log.Error("confirmation dispatch panicked", "panic", fmt.Sprint(r))
		}
	}()

	data := confirmationData(b, d.location)
	body, err := d.renderer.RenderConfirmation(data)
	if err != nil {
		log.Error("render confirmation failed", "error", err)
		return
	}

	if d.sender != nil {
		err := d.sender.Send(ctx, b.CustomerPhone, body)
		d.metrics.ObserveNotification(channelMessage, err == nil)
		if err != nil {
			log.Warn("confirmation message failed", "error", err)
		} else {
			log.Info("confirmation message sent")
		}
	}

	if d.email != nil && b.CustomerEmail != "" {
		subject, err := d.renderer.RenderConfirmationSubject(data)
		if err != nil {
			log.Error("render confirmation subject failed", "error", err)
			return
		}
		err = d.email.Send(ctx, EmailMessage{
			To:            b.CustomerEmail,
			ToName:        b.CustomerName,
			Subject:       subject,
			Body:          body,
			BookingNumber: b.BookingNumber,
		})
		d.metrics.ObserveNotification(channelEmail, err == nil)
		if err != nil {
			log.Warn("confirmation email failed", "error", err)
		}
	}
}

func confirmationData(b *bookings.Booking, location string) templates.ConfirmationData {
	date := b.AppointmentDate
	if parsed, err := time.Parse("2006-01-02", b.AppointmentDate); err == nil {
		date = parsed.Format("Monday, 2 January 2006")
	}
	species, ok := speciesLabels[b.Species]
	if !ok {
		species = string(b.Species)
	}
	return templates.ConfirmationData{
		CustomerName:  b.CustomerName,
		PetName:       b.PetName,
		Species:       species,
		Package:       pricing.TierLabel(b.PackageTier),
		Size:          pricing.SizeLabel(b.SizeClass),
		Date:          date,
		Time:          b.AppointmentTime,
		Price:         pricing.FormatPrice(b.Price),
		Detangling:    b.AddOns.Detangling,
		BookingNumber: b.BookingNumber,
		Location:      location,
	}
}
