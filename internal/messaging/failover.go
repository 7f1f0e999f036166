package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/grooming-booking/pkg/logging"
)

// Route is a named provider in a failover chain.
type Route struct {
	Name   string
	Sender Sender
}

// FailoverSender walks its routes in order until one accepts the message.
// WhatsApp via UltraMsg usually goes first with Telnyx SMS behind it.
type FailoverSender struct {
	routes []Route
	logger *logging.Logger
}

var _ Sender = (*FailoverSender)(nil)

// NewFailoverSender builds a chain from routes, skipping any without a sender.
func NewFailoverSender(logger *logging.Logger, routes ...Route) *FailoverSender {
	if logger == nil {
		logger = logging.Default()
	}
	f := &FailoverSender{logger: logger}
	for _, r := range routes {
		if r.Sender != nil {
			f.routes = append(f.routes, r)
		}
	}
	return f
}

// Send stops at the first success. A cancelled context ends the walk early
// since every later provider would fail the same way. When all routes fail
// the returned error joins each provider's error.
func (f *FailoverSender) Send(ctx context.Context, to, body string) error {
	if f == nil || len(f.routes) == 0 {
		return errors.New("messaging: no providers configured")
	}

	var errs []error
	for i, r := range f.routes {
		err := r.Sender.Send(ctx, to, body)
		if err == nil {
			if i > 0 {
				f.logger.Info("message delivered by fallback provider", "provider", r.Name)
			}
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", r.Name, err))
		if ctx.Err() != nil {
			break
		}
		if i+1 < len(f.routes) {
			f.logger.Warn("provider send failed, trying next",
				"provider", r.Name,
				"next", f.routes[i+1].Name,
				"error", err,
			)
		}
	}

	err := errors.Join(errs...)
	f.logger.Error("all providers failed", "error", err)
	return err
}
