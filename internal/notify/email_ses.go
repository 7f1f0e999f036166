package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/wolfman30/grooming-booking/pkg/logging"
)

type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig configures SESSender.
type SESConfig struct {
	FromEmail string
	FromName  string
	ReplyTo   string
	// ConfigurationSet routes delivery events (bounces, complaints) when set.
	ConfigurationSet string
}

// SESSender delivers confirmations through Amazon SES v2.
type SESSender struct {
	client    sesAPI
	from      sender
	configSet string
	logger    *logging.Logger
}

var _ EmailSender = (*SESSender)(nil)

// NewSESSender returns nil when client is nil.
func NewSESSender(client sesAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SESSender{
		client:    client,
		from:      newSender(cfg.FromEmail, cfg.FromName, cfg.ReplyTo),
		configSet: cfg.ConfigurationSet,
		logger:    logger,
	}
}

func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: SES not configured")
	}

	charset := aws.String("UTF-8")
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from.address()),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: charset},
				Body:    &types.Body{Text: &types.Content{Data: aws.String(msg.Body), Charset: charset}},
			},
		},
		EmailTags: []types.MessageTag{{Name: aws.String("category"), Value: aws.String(emailCategory)}},
	}
	if s.from.replyTo != "" {
		input.ReplyToAddresses = []string{s.from.replyTo}
	}
	if s.configSet != "" {
		input.ConfigurationSetName = aws.String(s.configSet)
	}
	if msg.BookingNumber != "" {
		input.EmailTags = append(input.EmailTags, types.MessageTag{
			Name:  aws.String("booking_number"),
			Value: aws.String(msg.BookingNumber),
		})
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("notify: SES send: %w", err)
	}
	s.logger.Info("email sent via SES", "booking_number", msg.BookingNumber, "message_id", aws.ToString(out.MessageId))
	return nil
}
