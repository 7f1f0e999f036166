package odoo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/grooming-booking/internal/erp"
	"github.com/wolfman30/grooming-booking/internal/observability/metrics"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

type recordedCall struct {
	Service string
	Method  string
	Args    []json.RawMessage
}

type fakeOdoo struct {
	mu      sync.Mutex
	calls   []recordedCall
	handler func(call recordedCall) (result any, rpcErr map[string]any, status int)
}

func (f *fakeOdoo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/jsonrpc" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req struct {
		ID     int64 `json:"id"`
		Params struct {
			Service string            `json:"service"`
			Method  string            `json:"method"`
			Args    []json.RawMessage `json:"args"`
		} `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	call := recordedCall{Service: req.Params.Service, Method: req.Params.Method, Args: req.Params.Args}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	result, rpcErr, status := f.handler(call)
	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("upstream unavailable"))
		return
	}
	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeOdoo) snapshot() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func newTestClient(t *testing.T, fake *fakeOdoo, mutate func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	cfg := Config{
		URL:      srv.URL + "/",
		Database: "petstore",
		Username: "bot@example.com",
		Password: "secret",
		Backoff:  time.Millisecond,
		Logger:   logging.New("error"),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	client, err := New(cfg)
	require.NoError(t, err)
	return client
}

func objectMethod(call recordedCall) string {
	if call.Service != "object" || len(call.Args) < 5 {
		return ""
	}
	var model, method string
	_ = json.Unmarshal(call.Args[3], &model)
	_ = json.Unmarshal(call.Args[4], &method)
	return model + "." + method
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
	_, err = New(Config{URL: "https://erp.example.com"})
	assert.Error(t, err)
}

func TestExecuteAuthenticatesOnceAndReusesUID(t *testing.T) {
	fake := &fakeOdoo{handler: func(call recordedCall) (any, map[string]any, int) {
		if call.Method == "authenticate" {
			return 7, nil, 0
		}
		return 3, nil, 0
	}}
	client := newTestClient(t, fake, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		raw, err := client.Execute(ctx, erp.ModelAppointment, "search_count", []any{erp.Where("state", "!=", "cancelled")}, nil)
		require.NoError(t, err)
		assert.JSONEq(t, "3", string(raw))
	}

	calls := fake.snapshot()
	require.Len(t, calls, 3)
	assert.Equal(t, "common", calls[0].Service)
	assert.JSONEq(t, `"petstore"`, string(calls[0].Args[0]))
	assert.JSONEq(t, `{}`, string(calls[0].Args[3]))

	exec := calls[1]
	assert.Equal(t, "execute_kw", exec.Method)
	require.Len(t, exec.Args, 7)
	assert.JSONEq(t, `7`, string(exec.Args[1]))
	assert.JSONEq(t, `"secret"`, string(exec.Args[2]))
	assert.Equal(t, "grooming.appointment.search_count", objectMethod(exec))
	assert.JSONEq(t, `[[["state","!=","cancelled"]]]`, string(exec.Args[5]))
	assert.JSONEq(t, `{}`, string(exec.Args[6]))
}

func TestAuthenticateRejectsFalse(t *testing.T) {
	fake := &fakeOdoo{handler: func(recordedCall) (any, map[string]any, int) {
		return false, nil, 0
	}}
	client := newTestClient(t, fake, nil)
	_, err := client.Authenticate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestExecuteReauthenticatesOnExpiredSession(t *testing.T) {
	var mu sync.Mutex
	logins := 0
	expired := true
	fake := &fakeOdoo{handler: func(call recordedCall) (any, map[string]any, int) {
		mu.Lock()
		defer mu.Unlock()
		if call.Method == "authenticate" {
			logins++
			return logins, nil, 0
		}
		if expired {
			expired = false
			return nil, map[string]any{
				"code":    100,
				"message": "Odoo Session Expired",
				"data":    map[string]any{"name": "odoo.http.SessionExpiredException", "message": "Session expired"},
			}, 0
		}
		return 11, nil, 0
	}}
	client := newTestClient(t, fake, nil)

	raw, err := client.Execute(context.Background(), erp.ModelPartner, "create", []any{map[string]any{"name": "Amina"}}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, "11", string(raw))

	calls := fake.snapshot()
	require.Len(t, calls, 4)
	assert.Equal(t, "authenticate", calls[2].Method)
	assert.JSONEq(t, `2`, string(calls[3].Args[1]))
}

func TestExecuteSurfacesRemoteErrors(t *testing.T) {
	fake := &fakeOdoo{handler: func(call recordedCall) (any, map[string]any, int) {
		if call.Method == "authenticate" {
			return 1, nil, 0
		}
		return nil, map[string]any{
			"code":    200,
			"message": "Odoo Server Error",
			"data":    map[string]any{"name": "odoo.exceptions.ValidationError", "message": "Invalid field 'pet_size'"},
		}, 0
	}}
	client := newTestClient(t, fake, nil)

	_, err := client.Execute(context.Background(), erp.ModelAppointment, "create", []any{map[string]any{}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, erp.ErrRemote)
	assert.NotErrorIs(t, err, erp.ErrSessionExpired)

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, "odoo.exceptions.ValidationError", rpcErr.Data.Name)
	assert.Contains(t, err.Error(), "Invalid field 'pet_size'")
	assert.Len(t, fake.snapshot(), 2)
}

func TestSearchReadDecodesRecords(t *testing.T) {
	fake := &fakeOdoo{handler: func(call recordedCall) (any, map[string]any, int) {
		if call.Method == "authenticate" {
			return 1, nil, 0
		}
		return []map[string]any{{"id": 42, "name": "Premium Package"}}, nil, 0
	}}
	client := newTestClient(t, fake, nil)

	rows, err := client.SearchRead(context.Background(), erp.ModelService, erp.Where("name", "=ilike", "Premium Package"), []string{"id", "name"}, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	id, ok := rows[0].ID()
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	exec := fake.snapshot()[1]
	assert.Equal(t, "grooming.service.search_read", objectMethod(exec))
	assert.JSONEq(t, `[[["name","=ilike","Premium Package"]]]`, string(exec.Args[5]))
	assert.JSONEq(t, `{"fields":["id","name"],"limit":1}`, string(exec.Args[6]))
}

func TestSearchReadRejectsUnexpectedShape(t *testing.T) {
	fake := &fakeOdoo{handler: func(call recordedCall) (any, map[string]any, int) {
		if call.Method == "authenticate" {
			return 1, nil, 0
		}
		return "not a list", nil, 0
	}}
	client := newTestClient(t, fake, nil)

	_, err := client.SearchRead(context.Background(), erp.ModelPartner, nil, nil, 0)
	assert.ErrorIs(t, err, erp.ErrMalformedResponse)

	exec := fake.snapshot()[1]
	assert.JSONEq(t, `[[]]`, string(exec.Args[5]))
	assert.JSONEq(t, `{}`, string(exec.Args[6]))
}

func TestInvokeRetriesServerErrors(t *testing.T) {
	var mu sync.Mutex
	failures := 1
	fake := &fakeOdoo{handler: func(call recordedCall) (any, map[string]any, int) {
		mu.Lock()
		defer mu.Unlock()
		if failures > 0 {
			failures--
			return nil, nil, http.StatusBadGateway
		}
		return 5, nil, 0
	}}
	client := newTestClient(t, fake, func(c *Config) { c.MaxRetries = 1 })

	uid, err := client.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), uid)
	assert.Len(t, fake.snapshot(), 2)
}

func TestInvokeReturnsHTTPErrorWithoutRetries(t *testing.T) {
	fake := &fakeOdoo{handler: func(recordedCall) (any, map[string]any, int) {
		return nil, nil, http.StatusServiceUnavailable
	}}
	client := newTestClient(t, fake, nil)

	_, err := client.Authenticate(context.Background())
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Len(t, fake.snapshot(), 1)
}

func TestExecuteHonoursContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	client, err := New(Config{URL: srv.URL, Database: "petstore", Username: "bot", Password: "x", Logger: logging.New("error")})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Execute(ctx, erp.ModelAppointment, "search_count", nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecuteObservesLatency(t *testing.T) {
	fake := &fakeOdoo{handler: func(call recordedCall) (any, map[string]any, int) {
		return 1, nil, 0
	}}
	reg := prometheus.NewRegistry()
	client := newTestClient(t, fake, func(c *Config) { c.Metrics = metrics.NewBookingMetrics(reg) })

	_, err := client.Execute(context.Background(), erp.ModelPartner, "search_read", nil, nil)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "grooming_erp_call_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestVersion(t *testing.T) {
	fake := &fakeOdoo{handler: func(call recordedCall) (any, map[string]any, int) {
		return map[string]any{"server_version": "17.0"}, nil, 0
	}}
	client := newTestClient(t, fake, nil)

	v, err := client.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "17.0", v)
	assert.Equal(t, "version", fake.snapshot()[0].Method)
}
