package messaging

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultCountryCode is prepended to numbers written in the national format
// used on Tanzanian booking forms ("0712 345 678").
const DefaultCountryCode = "255"

// NormalizePhone returns value as "+<digits>". Punctuation is dropped, a "00"
// international prefix is treated like "+", and a single leading trunk zero
// is replaced with DefaultCountryCode. It returns "" when no digits remain.
func NormalizePhone(value string) string {
	trimmed := strings.TrimSpace(value)
	digits := digitsOnly(trimmed)
	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(trimmed, "+"):
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	case len(digits) == 10 && digits[0] == '0':
		digits = DefaultCountryCode + digits[1:]
	}
	if digits == "" {
		return ""
	}
	return "+" + digits
}

func digitsOnly(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// recipientAttr identifies a recipient on a span without exposing the number:
// a short SHA-256 fingerprint of the normalized phone.
func recipientAttr(phone string) attribute.KeyValue {
	sum := sha256.Sum256([]byte(phone))
	return attribute.String("grooming.to_hash", hex.EncodeToString(sum[:8]))
}
