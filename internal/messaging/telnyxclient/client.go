// Package telnyxclient is a minimal client for the Telnyx v2 messaging API.
// Only outbound SMS is supported.
package telnyxclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/grooming-booking/pkg/logging"
)

const (
	defaultBaseURL   = "https://api.telnyx.com/v2"
	defaultUserAgent = "grooming-booking-notify/0.1"
	defaultTimeout   = 10 * time.Second
	defaultBackoff   = 250 * time.Millisecond

	// maxRetryAfter caps a server-supplied Retry-After when retries are
	// enabled.
	maxRetryAfter = 5 * time.Second
)

// Config controls how the Telnyx client behaves. Only APIKey is required.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	UserAgent  string
}

// Client sends SMS through Telnyx.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *logging.Logger
	userAgent  string
}

// New validates cfg and fills in defaults.
func New(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("telnyxclient: API key is required")
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: cfg.HTTPClient,
		maxRetries: max(cfg.MaxRetries, 0),
		backoff:    cfg.Backoff,
		logger:     cfg.Logger,
		userAgent:  strings.TrimSpace(cfg.UserAgent),
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.backoff <= 0 {
		c.backoff = defaultBackoff
	}
	if c.logger == nil {
		c.logger = logging.Default()
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	return c, nil
}

// SendMessage queues one outbound SMS.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*MessageResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(req.payload())
	if err != nil {
		return nil, fmt.Errorf("telnyxclient: encode message: %w", err)
	}
	raw, err := c.post(ctx, "/messages", body)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Data MessageResponse `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("telnyxclient: decode message: %w", err)
	}
	return envelope.Data.withStatus(), nil
}

// post sends body and retries transport failures, 429s and 5xx responses.
func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	for attempt := 0; ; attempt++ {
		raw, wait, err := c.attempt(ctx, endpoint, body)
		if err == nil {
			return raw, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt >= c.maxRetries || !retryable(err) {
			return nil, err
		}
		if wait <= 0 {
			wait = c.backoff << attempt
		}
		c.logger.Warn("telnyx request retrying", "path", path, "attempt", attempt+1, "wait", wait.String(), "error", err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// attempt performs one request. wait is the server's Retry-After hint, if any.
func (c *Client) attempt(ctx context.Context, endpoint string, body []byte) (raw []byte, wait time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("telnyxclient: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &transportError{err: err}
	}
	defer resp.Body.Close()

	raw, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("telnyxclient: read response: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, 0, nil
	}
	return nil, retryAfter(resp.Header.Get("Retry-After")), parseAPIError(resp.StatusCode, raw)
}

func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, maxRetryAfter)
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var tErr *transportError
	if errors.As(err, &tErr) {
		var netErr net.Error
		if errors.As(tErr.err, &netErr) && netErr.Timeout() {
			return true
		}
		return !errors.Is(tErr.err, context.Canceled)
	}
	return false
}
