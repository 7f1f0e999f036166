package bootstrap

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/grooming-booking/internal/config"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

func quietLogger() *logging.Logger {
	return logging.NewWithWriter("error", io.Discard)
}

func baseConfig() *appconfig.Config {
	return &appconfig.Config{
		BusinessTimezone:  "Africa/Dar_es_Salaam",
		StoreBackend:      StoreMemory,
		StoreTimeout:      time.Second,
		ERPTimeout:        time.Second,
		NotifyTimeout:     time.Second,
		SMSProvider:       "auto",
		EmailProvider:     EmailNone,
		SyncMode:          "inline",
		IdempotencyTTL:    time.Hour,
		MetricsEnabled:    true,
		SyncSweepWindow:   72 * time.Hour,
		SyncSweepInterval: time.Hour,
	}
}

func failingAWS(t *testing.T) func(context.Context) (aws.Config, error) {
	return func(context.Context) (aws.Config, error) {
		t.Fatalf("AWS config should not be loaded")
		return aws.Config{}, nil
	}
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, quietLogger(), Options{})
	assert.Error(t, err)
}

func TestNewMemoryInlineRuntime(t *testing.T) {
	app, err := New(context.Background(), baseConfig(), quietLogger(), Options{LoadAWS: failingAWS(t)})
	require.NoError(t, err)
	t.Cleanup(app.Close)

	assert.NotNil(t, app.Service)
	assert.Nil(t, app.ERP.Client)
	assert.Nil(t, app.Publisher)
	assert.Nil(t, app.NewSyncWorker())
	assert.Nil(t, app.SQSQueue())

	rr := httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	cases := map[string]func(*appconfig.Config){
		"store":    func(c *appconfig.Config) { c.StoreBackend = "mysql" },
		"postgres": func(c *appconfig.Config) { c.StoreBackend = StorePostgres },
		"sync":     func(c *appconfig.Config) { c.SyncMode = "cron" },
		"email":    func(c *appconfig.Config) { c.EmailProvider = "smtp" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := baseConfig()
			mutate(cfg)
			_, err := New(context.Background(), cfg, quietLogger(), Options{LoadAWS: failingAWS(t)})
			assert.Error(t, err)
		})
	}
}

func TestNewSurfacesAWSLoadFailure(t *testing.T) {
	cfg := baseConfig()
	cfg.StoreBackend = StoreDynamo
	calls := 0
	_, err := New(context.Background(), cfg, quietLogger(), Options{LoadAWS: func(context.Context) (aws.Config, error) {
		calls++
		return aws.Config{}, errors.New("no credentials")
	}})
	assert.ErrorContains(t, err, "no credentials")
	assert.Equal(t, 1, calls)
}

func TestNewQueueModeWithoutURLUsesMemoryQueue(t *testing.T) {
	cfg := baseConfig()
	cfg.SyncMode = "queue"
	cfg.SyncWorkerCount = 1

	app, err := New(context.Background(), cfg, quietLogger(), Options{LoadAWS: failingAWS(t)})
	require.NoError(t, err)
	t.Cleanup(app.Close)

	require.NotNil(t, app.Publisher)
	assert.NotNil(t, app.NewSyncWorker())

	ctx, cancel := context.WithCancel(context.Background())
	wait, err := app.StartBackground(ctx)
	require.NoError(t, err)
	cancel()
	wait()
}

func TestNewQueueModeWithURLUsesSQS(t *testing.T) {
	cfg := baseConfig()
	cfg.SyncMode = "queue"
	cfg.SyncQueueURL = "http://localhost:4566/000000000000/grooming-sync"

	app, err := New(context.Background(), cfg, quietLogger(), Options{LoadAWS: func(context.Context) (aws.Config, error) {
		return aws.Config{Region: "us-east-1"}, nil
	}})
	require.NoError(t, err)
	t.Cleanup(app.Close)

	assert.NotNil(t, app.SQSQueue())
	assert.NotNil(t, app.NewSyncWorker())
}

func TestHandlerEnablesIdempotencyAndReadinessWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.RedisAddr = mr.Addr()

	app, err := New(context.Background(), cfg, quietLogger(), Options{VerifyRedis: true})
	require.NoError(t, err)
	t.Cleanup(app.Close)
	require.NotNil(t, app.Redis)

	rr := httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `"redis":"ok"`))
}

func TestBuildRedisClientUnreachableReturnsNil(t *testing.T) {
	cfg := baseConfig()
	cfg.RedisAddr = "127.0.0.1:1"
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.Nil(t, BuildRedisClient(ctx, cfg, quietLogger(), true))
	assert.Nil(t, BuildRedisClient(ctx, baseConfig(), quietLogger(), true))
}

func TestBuildERPConfigured(t *testing.T) {
	cfg := baseConfig()
	assert.Nil(t, mustBuildERP(t, cfg).Syncer)

	cfg.ERPURL = "http://odoo.local:8069"
	cfg.ERPDatabase = "grooming"
	cfg.ERPUser = "api@example.com"
	cfg.ERPPassword = "secret"
	built := mustBuildERP(t, cfg)
	assert.NotNil(t, built.Client)
	assert.NotNil(t, built.Syncer)
	assert.NotNil(t, built.Availability)

	cfg.ERPCatalogFile = "/does/not/exist.toml"
	_, err := BuildERP(cfg, nil, quietLogger())
	assert.Error(t, err)
}

func TestOdooConfigCarriesRetrySettings(t *testing.T) {
	cfg := baseConfig()
	cfg.ERPURL = "http://odoo.local:8069"
	cfg.ERPTimeout = 3 * time.Second
	assert.Zero(t, odooConfig(cfg, nil, quietLogger()).MaxRetries)

	cfg.ERPMaxRetries = 2
	cfg.ERPRetryBackoff = 100 * time.Millisecond
	oc := odooConfig(cfg, nil, quietLogger())
	assert.Equal(t, 2, oc.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, oc.Backoff)
	assert.Equal(t, 3*time.Second, oc.Timeout)
}

func mustBuildERP(t *testing.T, cfg *appconfig.Config) *ERP {
	t.Helper()
	built, err := BuildERP(cfg, nil, quietLogger())
	require.NoError(t, err)
	return built
}

func TestBuildNotifier(t *testing.T) {
	cfg := baseConfig()
	d, err := BuildNotifier(context.Background(), cfg, nil, nil, quietLogger())
	require.NoError(t, err)
	assert.Nil(t, d)

	cfg.EmailProvider = EmailSendGrid
	cfg.SendGridAPIKey = "SG.test"
	cfg.SendGridFromEmail = "bookings@example.com"
	d, err = BuildNotifier(context.Background(), cfg, nil, nil, quietLogger())
	require.NoError(t, err)
	assert.NotNil(t, d)

	cfg.EmailProvider = EmailSES
	cfg.SESFromEmail = "bookings@example.com"
	_, err = BuildNotifier(context.Background(), cfg, nil, nil, quietLogger())
	assert.Error(t, err)
}

func TestBusinessLocationFallsBack(t *testing.T) {
	loc := businessLocation("Mars/Olympus_Mons", quietLogger())
	_, offset := time.Date(2025, 3, 10, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 3*60*60, offset)
}
