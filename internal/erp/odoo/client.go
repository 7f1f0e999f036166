// Package odoo is a JSON-RPC transport for the Odoo ERP. It implements
// erp.RPC over POST {url}/jsonrpc.
package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wolfman30/grooming-booking/internal/erp"
	"github.com/wolfman30/grooming-booking/internal/observability/metrics"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

const defaultUserAgent = "grooming-booking-erp/0.1"

// Config controls how the Odoo client behaves.
type Config struct {
	URL        string
	Database   string
	Username   string
	Password   string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Metrics    *metrics.BookingMetrics
	Logger     *logging.Logger
	UserAgent  string
}

// Client speaks Odoo's JSON-RPC dialect. The authenticated uid is cached for
// the lifetime of the client and re-established once when the server reports
// an expired session.
type Client struct {
	endpoint   string
	database   string
	username   string
	password   string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	metrics    *metrics.BookingMetrics
	logger     *logging.Logger
	userAgent  string

	requestID atomic.Int64

	mu  sync.Mutex
	uid int64
}

var _ erp.RPC = (*Client)(nil)

// New creates a configured Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("odoo: url is required")
	}
	if strings.TrimSpace(cfg.Database) == "" || strings.TrimSpace(cfg.Username) == "" {
		return nil, errors.New("odoo: database and username are required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		endpoint:   base + "/jsonrpc",
		database:   cfg.Database,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
		metrics:    cfg.Metrics,
		logger:     logger,
		userAgent:  userAgent,
	}, nil
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is the error object of a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (e *RPCError) Error() string {
	detail := e.Data.Message
	if detail == "" {
		detail = e.Message
	}
	if e.Data.Name != "" {
		return fmt.Sprintf("odoo: rpc error %d (%s): %s", e.Code, e.Data.Name, detail)
	}
	return fmt.Sprintf("odoo: rpc error %d: %s", e.Code, detail)
}

func (e *RPCError) Unwrap() error {
	return erp.ErrRemote
}

// Is matches erp.ErrSessionExpired for session and access faults.
func (e *RPCError) Is(target error) bool {
	if target != erp.ErrSessionExpired {
		return false
	}
	return e.Code == 100 ||
		strings.Contains(e.Data.Name, "SessionExpired") ||
		strings.Contains(e.Data.Name, "AccessDenied")
}

// HTTPError is returned for non-2xx transport responses.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("odoo: http %d: %s", e.StatusCode, e.Body)
}

// call performs one JSON-RPC round trip and returns the raw result.
func (c *Client) call(ctx context.Context, service, method string, args []any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.requestID.Add(1),
	})
	if err != nil {
		return nil, fmt.Errorf("odoo: marshal request: %w", err)
	}
	data, err := c.invoke(ctx, body)
	if err != nil {
		return nil, err
	}
	var resp rpcResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", erp.ErrMalformedResponse, err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

func (c *Client) invoke(ctx context.Context, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("odoo: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !shouldRetry(0, err) || attempt == c.maxRetries {
				return nil, fmt.Errorf("odoo: http error: %w", err)
			}
			lastErr = err
			c.logRetry(attempt, 0, err)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("odoo: read response: %w", readErr)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(data), 256)}
		if attempt < c.maxRetries && shouldRetry(resp.StatusCode, nil) {
			lastErr = httpErr
			c.logRetry(attempt, resp.StatusCode, httpErr)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		return nil, httpErr
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("odoo: request failed without response")
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) logRetry(attempt int, status int, err error) {
	c.logger.Warn("odoo retry",
		"attempt", attempt+1,
		"status", status,
		"error", err,
	)
}

func shouldRetry(status int, err error) bool {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return !errors.Is(err, context.Canceled)
	}
	if status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500 && status <= 599
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
