package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/grooming-booking/pkg/logging"
)

const sendGridMailPath = "/v3/mail/send"

// SendGridConfig configures SendGridSender. Host is only set in tests or for
// a regional endpoint such as https://api.eu.sendgrid.com.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	ReplyTo   string
	Host      string
}

// SendGridSender delivers confirmations through the SendGrid v3 mail API.
type SendGridSender struct {
	apiKey string
	host   string
	from   sender
	logger *logging.Logger
}

var _ EmailSender = (*SendGridSender)(nil)

// NewSendGridSender returns nil when no API key is set.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridSender{
		apiKey: cfg.APIKey,
		host:   cfg.Host,
		from:   newSender(cfg.FromEmail, cfg.FromName, cfg.ReplyTo),
		logger: logger,
	}
}

// Send builds a fresh request per message; sendgrid.Client keeps the body on
// the shared request and cannot be used from several goroutines.
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.apiKey == "" {
		return fmt.Errorf("notify: sendgrid not configured")
	}

	req := sendgrid.GetRequest(s.apiKey, sendGridMailPath, s.host)
	req.Method = http.MethodPost
	req.Body = mail.GetRequestBody(s.message(msg))

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("notify: sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		s.logger.Warn("sendgrid rejected email", "status", resp.StatusCode, "body", resp.Body, "booking_number", msg.BookingNumber)
		return fmt.Errorf("notify: sendgrid returned status %d", resp.StatusCode)
	}
	s.logger.Info("email sent via sendgrid", "booking_number", msg.BookingNumber, "status", resp.StatusCode)
	return nil
}

func (s *SendGridSender) message(msg EmailMessage) *mail.SGMailV3 {
	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.ToName, msg.To))
	if msg.BookingNumber != "" {
		p.SetCustomArg("booking_number", msg.BookingNumber)
	}

	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(s.from.name, s.from.email))
	if s.from.replyTo != "" {
		m.SetReplyTo(mail.NewEmail(s.from.name, s.from.replyTo))
	}
	m.Subject = msg.Subject
	m.AddPersonalizations(p)
	m.AddContent(mail.NewContent("text/plain", msg.Body))
	m.AddCategories(emailCategory)
	return m
}
