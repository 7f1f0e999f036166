package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wolfman30/grooming-booking/internal/app/bootstrap"
	appconfig "github.com/wolfman30/grooming-booking/internal/config"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

func TestNewServerServesHealth(t *testing.T) {
	logger := logging.NewWithWriter("error", io.Discard)
	cfg := &appconfig.Config{
		Port:             "8081",
		BusinessTimezone: "UTC",
		StoreBackend:     bootstrap.StoreMemory,
		SyncMode:         "inline",
		EmailProvider:    bootstrap.EmailNone,
	}
	app, err := bootstrap.New(context.Background(), cfg, logger, bootstrap.Options{})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer app.Close()

	srv := newServer(cfg, app.Handler())
	if srv.Addr != ":8081" {
		t.Fatalf("expected addr :8081, got %s", srv.Addr)
	}

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestWaitWithTimeoutReturnsOnDeadline(t *testing.T) {
	logger := logging.NewWithWriter("error", io.Discard)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	block := make(chan struct{})
	defer close(block)

	start := time.Now()
	waitWithTimeout(ctx, func() { <-block }, logger)
	if time.Since(start) > time.Second {
		t.Fatalf("expected wait to give up at the deadline")
	}
}
