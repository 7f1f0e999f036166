package notify

import (
	"context"
	"strings"
)

const (
	defaultFromName = "Pet Grooming"

	// emailCategory groups confirmation mail in provider dashboards.
	emailCategory = "booking-confirmation"
)

// EmailSender delivers one plain-text email.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a rendered confirmation. BookingNumber is attached as
// provider metadata so bounces can be traced back to the booking.
type EmailMessage struct {
	To            string
	ToName        string
	Subject       string
	Body          string
	BookingNumber string
}

// sender is the From/Reply-To identity shared by the email providers.
type sender struct {
	email   string
	name    string
	replyTo string
}

func newSender(email, name, replyTo string) sender {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultFromName
	}
	return sender{
		email:   strings.TrimSpace(email),
		name:    name,
		replyTo: strings.TrimSpace(replyTo),
	}
}

// address renders `Name <email>` with the name quoted when it contains
// characters that are not allowed in a bare display name.
func (s sender) address() string {
	if strings.ContainsAny(s.name, `",:;<>@[]\`) {
		return `"` + strings.ReplaceAll(s.name, `"`, `\"`) + `" <` + s.email + `>`
	}
	return s.name + " <" + s.email + ">"
}
