package templates

// ConfirmationData is everything the booking confirmation shows.
type ConfirmationData struct {
	CustomerName  string
	PetName       string
	Species       string
	Package       string
	Size          string
	Date          string
	Time          string
	Price         string
	Detangling    bool
	BookingNumber string
	Location      string
}

const (
	confirmationTemplate        = "confirmation.txt.tmpl"
	confirmationSubjectTemplate = "confirmation_subject.txt.tmpl"
)

// RenderConfirmation renders the WhatsApp/SMS confirmation, which doubles as
// the email body.
func (r Renderer) RenderConfirmation(data ConfirmationData) (string, error) {
	return r.execute(builtin.Lookup(confirmationTemplate), data)
}

// RenderConfirmationSubject renders the email subject line.
func (r Renderer) RenderConfirmationSubject(data ConfirmationData) (string, error) {
	return r.execute(builtin.Lookup(confirmationSubjectTemplate), data)
}
