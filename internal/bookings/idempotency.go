package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyKeyPrefix = "grooming:idempotency:"

// ErrIdempotencyInFlight is returned when another request holding the same
// key has not finished yet.
var ErrIdempotencyInFlight = errors.New("bookings: request with this idempotency key is in progress")

// CachedResponse is the stored outcome of the first request for a key.
type CachedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// IdempotencyStore remembers the response of a booking submission by its
// Idempotency-Key so retried submissions do not create a second booking.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore wraps a redis client. A non-positive ttl means 24h.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if client == nil {
		panic("bookings: redis client required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Begin claims the key. It returns the cached response when the key already
// completed, ErrIdempotencyInFlight when it is claimed but unfinished, and
// (nil, nil) when the caller now owns the key.
func (s *IdempotencyStore) Begin(ctx context.Context, key string) (*CachedResponse, error) {
	redisKey := idempotencyKeyPrefix + strings.TrimSpace(key)
	claimed, err := s.client.SetNX(ctx, redisKey, "", s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("bookings: idempotency claim: %w", err)
	}
	if claimed {
		return nil, nil
	}

	raw, err := s.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SetNX and Get; try once more
		return s.Begin(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: idempotency lookup: %w", err)
	}
	if raw == "" {
		return nil, ErrIdempotencyInFlight
	}
	var cached CachedResponse
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, fmt.Errorf("bookings: idempotency decode: %w", err)
	}
	return &cached, nil
}

// Complete stores the final response for a claimed key.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, resp CachedResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("bookings: idempotency encode: %w", err)
	}
	if err := s.client.Set(ctx, idempotencyKeyPrefix+strings.TrimSpace(key), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("bookings: idempotency store: %w", err)
	}
	return nil
}

// Release drops a claim so the caller may retry with the same key.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, idempotencyKeyPrefix+strings.TrimSpace(key)).Err(); err != nil {
		return fmt.Errorf("bookings: idempotency release: %w", err)
	}
	return nil
}
