package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/grooming-booking/internal/config"
	"github.com/wolfman30/grooming-booking/internal/messaging"
	"github.com/wolfman30/grooming-booking/internal/notify"
	"github.com/wolfman30/grooming-booking/internal/observability/metrics"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

// Email providers accepted in EMAIL_PROVIDER.
const (
	EmailNone     = "none"
	EmailSendGrid = "sendgrid"
	EmailSES      = "ses"
)

// BuildNotifier creates the confirmation dispatcher. It returns nil when
// neither a phone nor an email channel could be configured.
func BuildNotifier(
	ctx context.Context,
	cfg *appconfig.Config,
	loadAWS func(context.Context) (aws.Config, error),
	m *metrics.BookingMetrics,
	logger *logging.Logger,
) (*notify.Dispatcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	sender, provider, reason := messaging.BuildSender(messaging.ProviderSelectionConfig{
		Preference:               cfg.SMSProvider,
		UltraMsgBaseURL:          cfg.UltraMsgAPIURL,
		UltraMsgInstanceID:       cfg.UltraMsgInstanceID,
		UltraMsgToken:            cfg.UltraMsgToken,
		TelnyxAPIKey:             cfg.TelnyxAPIKey,
		TelnyxMessagingProfileID: cfg.TelnyxMessagingProfileID,
		TelnyxFromNumber:         cfg.TelnyxFromNumber,
		Timeout:                  cfg.NotifyTimeout,
	}, logger)
	if sender == nil {
		logger.Warn("phone confirmations disabled", "reason", reason)
	} else {
		logger.Info("phone confirmations enabled", "provider", provider)
	}

	email, err := buildEmailSender(ctx, cfg, loadAWS, logger)
	if err != nil {
		return nil, err
	}

	if sender == nil && email == nil {
		return nil, nil
	}
	return notify.NewDispatcher(sender, email, cfg.SalonLocation, logger).WithMetrics(m), nil
}

func buildEmailSender(ctx context.Context, cfg *appconfig.Config, loadAWS func(context.Context) (aws.Config, error), logger *logging.Logger) (notify.EmailSender, error) {
	switch cfg.EmailProvider {
	case "", EmailNone:
		return nil, nil
	case EmailSendGrid:
		s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
			ReplyTo:   cfg.EmailReplyTo,
		}, logger)
		if s == nil {
			logger.Warn("email confirmations disabled", "reason", "SENDGRID_API_KEY missing")
			return nil, nil
		}
		return s, nil
	case EmailSES:
		if cfg.SESFromEmail == "" {
			logger.Warn("email confirmations disabled", "reason", "SES_FROM_EMAIL missing")
			return nil, nil
		}
		if loadAWS == nil {
			return nil, fmt.Errorf("bootstrap: AWS config required for ses email")
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load AWS config: %w", err)
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail:        cfg.SESFromEmail,
			FromName:         cfg.SendGridFromName,
			ReplyTo:          cfg.EmailReplyTo,
			ConfigurationSet: cfg.SESConfigurationSet,
		}, logger), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown EMAIL_PROVIDER %q", cfg.EmailProvider)
	}
}
