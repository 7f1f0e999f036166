package messaging

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/grooming-booking/internal/messaging/telnyxclient"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

var telnyxSendTracer = otel.Tracer("grooming.internal.messaging.telnyx_send")

type telnyxAPI interface {
	SendMessage(ctx context.Context, req telnyxclient.SendMessageRequest) (*telnyxclient.MessageResponse, error)
}

// TelnyxSender posts SMS messages through the Telnyx V2 API.
type TelnyxSender struct {
	client             telnyxAPI
	fromNumber         string
	messagingProfileID string
	logger             *logging.Logger
}

var _ Sender = (*TelnyxSender)(nil)

// NewTelnyxSender builds a sender around a configured Telnyx client.
func NewTelnyxSender(client telnyxAPI, fromNumber, messagingProfileID string, logger *logging.Logger) *TelnyxSender {
	if client == nil {
		panic("messaging: telnyx client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TelnyxSender{
		client:             client,
		fromNumber:         NormalizePhone(fromNumber),
		messagingProfileID: strings.TrimSpace(messagingProfileID),
		logger:             logger,
	}
}

// Send dispatches a single SMS. The client decides whether to retry.
func (s *TelnyxSender) Send(ctx context.Context, to, body string) error {
	to = NormalizePhone(to)
	if to == "" {
		return errors.New("messaging: to required")
	}

	ctx, span := telnyxSendTracer.Start(ctx, "messaging.telnyx.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(recipientAttr(to))

	resp, err := s.client.SendMessage(ctx, telnyxclient.SendMessageRequest{
		From:               s.fromNumber,
		To:                 to,
		Body:               body,
		MessagingProfileID: s.messagingProfileID,
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.Debug("telnyx message queued", "customer_phone", to, "message_id", resp.ID, "status", resp.Status)
	return nil
}
