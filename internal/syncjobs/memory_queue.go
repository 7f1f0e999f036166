package syncjobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultMemoryVisibility = 30 * time.Second
	// recentDeletesKept bounds the acknowledged handles remembered for Deleted.
	recentDeletesKept = 64
)

// MemoryQueue is an in-process queue for local runs and tests. Like SQS, a
// received message that is not deleted within the visibility timeout is
// delivered again with a higher Attempt. Messages are lost on exit.
type MemoryQueue struct {
	ch         chan queueMessage
	visibility time.Duration

	mu       sync.Mutex
	inflight map[string]queueMessage
	deleted  []string
	acked    int
}

// NewMemoryQueue creates a MemoryQueue holding up to buffer pending jobs.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemoryQueue{
		ch:         make(chan queueMessage, buffer),
		visibility: defaultMemoryVisibility,
		inflight:   map[string]queueMessage{},
	}
}

// Send blocks while the buffer is full.
func (q *MemoryQueue) Send(ctx context.Context, body string) error {
	msg := queueMessage{ID: uuid.NewString(), Body: body}
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive waits up to waitSeconds (forever when 0) for the first message and
// then drains whatever else is ready, up to maxMessages.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	maxMessages = max(maxMessages, 1)

	var timeout <-chan time.Time
	if waitSeconds > 0 {
		timer := time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
		timeout = timer.C
	}

	var first queueMessage
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, nil
	case first = <-q.ch:
	}

	batch := []queueMessage{q.lease(first)}
	for len(batch) < maxMessages {
		select {
		case msg := <-q.ch:
			batch = append(batch, q.lease(msg))
		default:
			return batch, nil
		}
	}
	return batch, nil
}

// lease hands msg out under a fresh receipt handle and schedules redelivery.
func (q *MemoryQueue) lease(msg queueMessage) queueMessage {
	msg.Attempt++
	msg.ReceiptHandle = uuid.NewString()

	q.mu.Lock()
	q.inflight[msg.ReceiptHandle] = msg
	q.mu.Unlock()

	time.AfterFunc(q.visibility, func() { q.expire(msg.ReceiptHandle) })
	return msg
}

func (q *MemoryQueue) expire(handle string) {
	q.mu.Lock()
	msg, ok := q.inflight[handle]
	delete(q.inflight, handle)
	q.mu.Unlock()
	if ok {
		q.ch <- msg
	}
}

// Delete acknowledges a leased message.
func (q *MemoryQueue) Delete(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	delete(q.inflight, receiptHandle)
	q.acked++
	if len(q.deleted) == recentDeletesKept {
		copy(q.deleted, q.deleted[1:])
		q.deleted = q.deleted[:len(q.deleted)-1]
	}
	q.deleted = append(q.deleted, receiptHandle)
	q.mu.Unlock()
	return nil
}

// Len reports the number of messages waiting to be received.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

// Deleted returns the most recently acknowledged receipt handles, oldest
// first. Only the last recentDeletesKept are remembered.
func (q *MemoryQueue) Deleted() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.deleted...)
}

// DeletedCount reports how many messages have been acknowledged in total.
func (q *MemoryQueue) DeletedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.acked
}
