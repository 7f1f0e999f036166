package telnyxclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response. Telnyx reports failures as a list; the
// first entry is surfaced in Error.
type APIError struct {
	StatusCode int
	Code       string
	Title      string
	Detail     string
}

func (e *APIError) Error() string {
	msg := e.Title
	if msg == "" {
		msg = e.Detail
	}
	if msg == "" {
		return fmt.Sprintf("telnyxclient: http status %d", e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("telnyxclient: %s (code=%s status=%d)", msg, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("telnyxclient: %s (status=%d)", msg, e.StatusCode)
}

// Retryable reports whether resending the same request may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return "telnyxclient: http error: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func parseAPIError(status int, body []byte) *APIError {
	out := &APIError{StatusCode: status}
	var envelope struct {
		Errors []struct {
			Code   string `json:"code"`
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Errors) == 0 {
		out.Detail = strings.TrimSpace(string(body))
		if len(out.Detail) > 200 {
			out.Detail = out.Detail[:200]
		}
		return out
	}
	first := envelope.Errors[0]
	out.Code, out.Title, out.Detail = first.Code, first.Title, first.Detail
	return out
}
