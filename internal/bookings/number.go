package bookings

import (
	"encoding/base32"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const bookingNumberPrefix = "GRM"

var numberEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NumberGenerator allocates human-readable booking numbers of the form
// GRM-<base36 unix millis>-<8 random base32 chars>. The random part carries
// 40 bits so numbers minted in the same millisecond stay distinct without a
// central sequence.
type NumberGenerator struct {
	now func() time.Time
}

// NewNumberGenerator returns a generator using the wall clock.
func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{now: time.Now}
}

// Next returns a fresh booking number.
func (g *NumberGenerator) Next() string {
	now := time.Now
	if g != nil && g.now != nil {
		now = g.now
	}
	id := uuid.New()
	ts := strings.ToUpper(strconv.FormatInt(now().UnixMilli(), 36))
	return bookingNumberPrefix + "-" + ts + "-" + numberEncoding.EncodeToString(id[:5])
}
