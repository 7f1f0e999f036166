package messaging

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/grooming-booking/internal/messaging/telnyxclient"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

const (
	// ProviderAuto prefers UltraMsg (WhatsApp) and falls back to Telnyx SMS.
	ProviderAuto = "auto"
	// ProviderUltraMsg forces the UltraMsg sender when credentials exist.
	ProviderUltraMsg = "ultramsg"
	// ProviderTelnyx forces the Telnyx sender when credentials exist.
	ProviderTelnyx = "telnyx"
)

// ProviderSelectionConfig captures the credentials required to build outbound senders.
type ProviderSelectionConfig struct {
	Preference               string
	UltraMsgBaseURL          string
	UltraMsgInstanceID       string
	UltraMsgToken            string
	TelnyxBaseURL            string
	TelnyxAPIKey             string
	TelnyxMessagingProfileID string
	TelnyxFromNumber         string
	Timeout                  time.Duration
}

// BuildSender instantiates a Sender based on the preferred provider.
// It returns the sender, the provider that was selected, and a reason when no provider could be initialized.
func BuildSender(cfg ProviderSelectionConfig, logger *logging.Logger) (Sender, string, string) {
	if logger == nil {
		logger = logging.Default()
	}
	preference := strings.ToLower(strings.TrimSpace(cfg.Preference))
	if preference == "" {
		preference = ProviderAuto
	}

	missing := map[string]string{}
	var ultraMsg Sender
	var telnyx Sender

	if cfg.UltraMsgInstanceID != "" && cfg.UltraMsgToken != "" {
		sender, err := NewUltraMsgSender(UltraMsgConfig{
			BaseURL:    cfg.UltraMsgBaseURL,
			InstanceID: cfg.UltraMsgInstanceID,
			Token:      cfg.UltraMsgToken,
		}, logger)
		if err != nil {
			missing[ProviderUltraMsg] = err.Error()
		} else {
			ultraMsg = sender
		}
	} else {
		var reasons []string
		if cfg.UltraMsgInstanceID == "" {
			reasons = append(reasons, "ULTRAMSG_INSTANCE_ID missing")
		}
		if cfg.UltraMsgToken == "" {
			reasons = append(reasons, "ULTRAMSG_TOKEN missing")
		}
		missing[ProviderUltraMsg] = strings.Join(reasons, ", ")
	}

	if cfg.TelnyxAPIKey != "" && (cfg.TelnyxMessagingProfileID != "" || cfg.TelnyxFromNumber != "") {
		client, err := telnyxclient.New(telnyxclient.Config{
			BaseURL: cfg.TelnyxBaseURL,
			APIKey:  cfg.TelnyxAPIKey,
			Timeout: cfg.Timeout,
			// Confirmations run inside the booking request; a failed send is
			// logged, not retried.
			MaxRetries: 0,
			Logger:     logger,
		})
		if err != nil {
			missing[ProviderTelnyx] = err.Error()
		} else {
			telnyx = NewTelnyxSender(client, cfg.TelnyxFromNumber, cfg.TelnyxMessagingProfileID, logger)
		}
	} else {
		var reasons []string
		if cfg.TelnyxAPIKey == "" {
			reasons = append(reasons, "TELNYX_API_KEY missing")
		}
		if cfg.TelnyxMessagingProfileID == "" && cfg.TelnyxFromNumber == "" {
			reasons = append(reasons, "TELNYX_MESSAGING_PROFILE_ID or TELNYX_FROM_NUMBER missing")
		}
		missing[ProviderTelnyx] = strings.Join(reasons, ", ")
	}

	if preference != ProviderAuto {
		if preference == ProviderUltraMsg && ultraMsg != nil {
			return ultraMsg, ProviderUltraMsg, ""
		}
		if preference == ProviderTelnyx && telnyx != nil {
			return telnyx, ProviderTelnyx, ""
		}
		reason := missing[preference]
		if reason == "" {
			reason = fmt.Sprintf("%s sender not configured", preference)
		}
		return nil, "", reason
	}

	if ultraMsg != nil && telnyx != nil {
		return NewFailoverSender(logger, Route{ProviderUltraMsg, ultraMsg}, Route{ProviderTelnyx, telnyx}), ProviderUltraMsg + "+" + ProviderTelnyx, ""
	}
	if ultraMsg != nil {
		return ultraMsg, ProviderUltraMsg, ""
	}
	if telnyx != nil {
		return telnyx, ProviderTelnyx, ""
	}

	var reasons []string
	for _, provider := range []string{ProviderUltraMsg, ProviderTelnyx} {
		if msg := missing[provider]; msg != "" {
			reasons = append(reasons, fmt.Sprintf("%s: %s", provider, msg))
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "no message providers configured")
	}
	return nil, "", strings.Join(reasons, "; ")
}
