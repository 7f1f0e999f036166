package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/wolfman30/grooming-booking/internal/messaging"
)

// redactions run in order; emails go first so their digits are not mistaken
// for a phone number.
var redactions = []struct {
	pattern *regexp.Regexp
	mask    string
}{
	{regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`), "[EMAIL]"},
	{regexp.MustCompile(`\+?\d(?:[\s\-().]?\d){8,}`), "[PHONE]"},
}

// HashContact fingerprints an email address so archived records can be
// matched without storing it. Empty input yields "".
func HashContact(value string) string {
	return fingerprint(strings.ToLower(strings.TrimSpace(value)))
}

// HashPhone fingerprints a phone number after normalizing it, so local and
// international spellings of one number hash alike.
func HashPhone(value string) string {
	return fingerprint(messaging.NormalizePhone(value))
}

func fingerprint(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// ScrubPII masks email addresses and phone numbers in free text.
func ScrubPII(text string) string {
	for _, r := range redactions {
		text = r.pattern.ReplaceAllString(text, r.mask)
	}
	return text
}
