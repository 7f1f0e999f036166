// Package syncjobs carries phase-2 booking reconciliation (ERP push and
// confirmation) over a queue so it can run outside the request path.
package syncjobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// queueMessage is one delivery. Attempt starts at 1 and grows each time the
// queue hands the same message out again.
type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
	Attempt       int
}

// jobType tags queued messages so other consumers of a shared queue can
// filter them out.
const jobType = "booking-sync"

// Job is the payload published for one booking.
type Job struct {
	ID            string `json:"id"`
	BookingNumber string `json:"bookingNumber"`
	Notify        bool   `json:"notify"`
}

func encodeJob(job Job) (Job, string, error) {
	if strings.TrimSpace(job.BookingNumber) == "" {
		return Job{}, "", fmt.Errorf("syncjobs: booking number required")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return Job{}, "", fmt.Errorf("syncjobs: encode job: %w", err)
	}
	return job, string(body), nil
}

func decodeJob(body string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return Job{}, fmt.Errorf("syncjobs: decode job: %w", err)
	}
	if strings.TrimSpace(job.BookingNumber) == "" {
		return Job{}, fmt.Errorf("syncjobs: decode job: missing booking number")
	}
	return job, nil
}
