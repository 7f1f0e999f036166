package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/grooming-booking/pkg/logging"
)

var ultraMsgTracer = otel.Tracer("grooming.internal.messaging.ultramsg")

// DefaultUltraMsgURL is the public UltraMsg API host.
const DefaultUltraMsgURL = "https://api.ultramsg.com"

// UltraMsgConfig holds the WhatsApp gateway credentials.
type UltraMsgConfig struct {
	BaseURL    string
	InstanceID string
	Token      string
	HTTPClient *http.Client
}

// UltraMsgSender posts WhatsApp chat messages through UltraMsg.
type UltraMsgSender struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

var _ Sender = (*UltraMsgSender)(nil)

// NewUltraMsgSender builds a sender for {base}/{instance}/messages/chat.
func NewUltraMsgSender(cfg UltraMsgConfig, logger *logging.Logger) (*UltraMsgSender, error) {
	if strings.TrimSpace(cfg.InstanceID) == "" || strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("messaging: ultramsg instance id and token required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultUltraMsgURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &UltraMsgSender{
		endpoint:   fmt.Sprintf("%s/%s/messages/chat", base, url.PathEscape(strings.TrimSpace(cfg.InstanceID))),
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type ultraMsgResponse struct {
	Sent    string `json:"sent"`
	Message string `json:"message"`
	ID      any    `json:"id"`
	Error   any    `json:"error"`
}

// Send delivers body to the normalized phone number.
func (s *UltraMsgSender) Send(ctx context.Context, to, body string) error {
	to = NormalizePhone(to)
	if to == "" {
		return errors.New("messaging: to required")
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("messaging: body required")
	}

	ctx, span := ultraMsgTracer.Start(ctx, "messaging.ultramsg.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(recipientAttr(to))

	form := url.Values{}
	form.Set("token", s.token)
	form.Set("to", to)
	form.Set("body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("messaging: ultramsg build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("messaging: ultramsg send: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("messaging: ultramsg read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("messaging: ultramsg status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		span.RecordError(err)
		return err
	}

	var parsed ultraMsgResponse
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error != nil {
		err := fmt.Errorf("messaging: ultramsg rejected message: %v", parsed.Error)
		span.RecordError(err)
		return err
	}
	s.logger.Debug("ultramsg message accepted", "customer_phone", to, "message_id", parsed.ID)
	return nil
}
