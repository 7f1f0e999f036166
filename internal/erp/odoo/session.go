package odoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/grooming-booking/internal/erp"
)

// Authenticate logs in and caches the uid. A false result from the server
// means bad credentials.
func (c *Client) Authenticate(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticateLocked(ctx)
}

func (c *Client) authenticateLocked(ctx context.Context) (int64, error) {
	raw, err := c.call(ctx, "common", "authenticate", []any{c.database, c.username, c.password, map[string]any{}})
	if err != nil {
		return 0, fmt.Errorf("odoo: authenticate: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("odoo: authenticate: %w: %v", erp.ErrMalformedResponse, err)
	}
	uid, ok := v.(float64)
	if !ok || uid <= 0 {
		return 0, errors.New("odoo: authenticate: invalid credentials")
	}
	c.uid = int64(uid)
	c.logger.Debug("odoo session established", "uid", c.uid)
	return c.uid, nil
}

func (c *Client) session(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uid > 0 {
		return c.uid, nil
	}
	return c.authenticateLocked(ctx)
}

func (c *Client) invalidate(uid int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uid == uid {
		c.uid = 0
	}
}

// Execute calls model.method through execute_kw.
func (c *Client) Execute(ctx context.Context, model, method string, args []any, kwargs map[string]any) (json.RawMessage, error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveERPCall(model, method, time.Since(start).Seconds())
	}()

	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}

	for attempt := 0; ; attempt++ {
		uid, err := c.session(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := c.call(ctx, "object", "execute_kw", []any{c.database, uid, c.password, model, method, args, kwargs})
		if err == nil {
			return raw, nil
		}
		if attempt == 0 && errors.Is(err, erp.ErrSessionExpired) {
			c.logger.Info("odoo session expired, re-authenticating", "model", model, "method", method)
			c.invalidate(uid)
			continue
		}
		return nil, fmt.Errorf("odoo: %s.%s: %w", model, method, err)
	}
}

// SearchRead runs search_read with the given domain. limit <= 0 means no limit.
func (c *Client) SearchRead(ctx context.Context, model string, domain erp.Domain, fields []string, limit int) ([]erp.Record, error) {
	if domain == nil {
		domain = erp.Domain{}
	}
	kwargs := map[string]any{}
	if len(fields) > 0 {
		kwargs["fields"] = fields
	}
	if limit > 0 {
		kwargs["limit"] = limit
	}
	raw, err := c.Execute(ctx, model, "search_read", []any{domain}, kwargs)
	if err != nil {
		return nil, err
	}
	var records []erp.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("odoo: %s.search_read: %w: %v", model, erp.ErrMalformedResponse, err)
	}
	return records, nil
}

// Version returns the server_version reported by the common service. It does
// not require a session.
func (c *Client) Version(ctx context.Context) (string, error) {
	raw, err := c.call(ctx, "common", "version", []any{})
	if err != nil {
		return "", fmt.Errorf("odoo: version: %w", err)
	}
	var info struct {
		ServerVersion string `json:"server_version"`
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return "", fmt.Errorf("odoo: version: %w: %v", erp.ErrMalformedResponse, err)
	}
	return info.ServerVersion, nil
}
