package archive

import (
	"context"
	"errors"

	"github.com/wolfman30/grooming-booking/internal/erp"
)

// Outcome labels that do not come from erp.Outcome.
const (
	OutcomeTimeout = "timeout"
	OutcomeUnknown = "unknown"
)

// Classify labels a push error for the archive. Unmapped services and
// malformed responses need an operator; everything else may succeed on retry.
func Classify(err error) Failure {
	if err == nil {
		return Failure{Outcome: OutcomeUnknown}
	}
	f := Failure{Outcome: OutcomeUnknown, Retryable: true, Error: ScrubPII(err.Error())}

	var syncErr *erp.SyncError
	if errors.As(err, &syncErr) {
		f.Step = syncErr.Step
		f.Outcome = string(syncErr.Outcome)
		switch syncErr.Outcome {
		case erp.OutcomeServiceUnmapped, erp.OutcomeMalformed:
			f.Retryable = false
		}
	}
	if errors.Is(err, context.DeadlineExceeded) && f.Outcome == OutcomeUnknown {
		f.Outcome = OutcomeTimeout
	}
	return f
}
