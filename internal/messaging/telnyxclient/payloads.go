package telnyxclient

import (
	"errors"
	"strings"
	"time"
)

// SendMessageRequest describes an outbound SMS. From may be empty when the
// messaging profile owns a number pool.
type SendMessageRequest struct {
	From               string
	To                 string
	Body               string
	MessagingProfileID string
}

type sendMessagePayload struct {
	From               string `json:"from,omitempty"`
	To                 string `json:"to"`
	Text               string `json:"text"`
	MessagingProfileID string `json:"messaging_profile_id,omitempty"`
}

func (r SendMessageRequest) payload() sendMessagePayload {
	return sendMessagePayload{
		From:               strings.TrimSpace(r.From),
		To:                 strings.TrimSpace(r.To),
		Text:               r.Body,
		MessagingProfileID: strings.TrimSpace(r.MessagingProfileID),
	}
}

func (r SendMessageRequest) validate() error {
	switch {
	case strings.TrimSpace(r.To) == "":
		return errors.New("telnyxclient: destination number required")
	case strings.TrimSpace(r.From) == "" && strings.TrimSpace(r.MessagingProfileID) == "":
		return errors.New("telnyxclient: from number or messaging profile required")
	case strings.TrimSpace(r.Body) == "":
		return errors.New("telnyxclient: body required")
	}
	return nil
}

// Recipient is the per-destination delivery state.
type Recipient struct {
	PhoneNumber string `json:"phone_number"`
	Status      string `json:"status"`
}

// MessageResponse is the subset of the Telnyx message resource we log.
type MessageResponse struct {
	ID        string      `json:"id"`
	Status    string      `json:"-"`
	Parts     int         `json:"parts"`
	To        []Recipient `json:"to"`
	CreatedAt time.Time   `json:"created_at"`
}

// withStatus lifts the first recipient's status to the top level, which is
// where single-recipient callers look for it.
func (m MessageResponse) withStatus() *MessageResponse {
	if m.Status == "" && len(m.To) > 0 {
		m.Status = m.To[0].Status
	}
	return &m
}
