package bootstrap

import (
	"fmt"
	"strings"

	appconfig "github.com/wolfman30/grooming-booking/internal/config"
	"github.com/wolfman30/grooming-booking/internal/erp"
	"github.com/wolfman30/grooming-booking/internal/erp/odoo"
	"github.com/wolfman30/grooming-booking/internal/observability/metrics"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

// ERP bundles the ERP client with the components built on it. All fields are
// nil when the ERP is not configured.
type ERP struct {
	Client       *odoo.Client
	Catalog      *erp.CatalogMapping
	Syncer       *erp.Syncer
	Availability *erp.AvailabilityChecker
}

// BuildERP wires the Odoo client, booking syncer and availability checker.
func BuildERP(cfg *appconfig.Config, m *metrics.BookingMetrics, logger *logging.Logger) (*ERP, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if !cfg.ERPConfigured() {
		logger.Warn("ERP not configured; bookings will not be mirrored and slots are not checked")
		return &ERP{}, nil
	}

	catalog := erp.DefaultCatalog()
	if path := strings.TrimSpace(cfg.ERPCatalogFile); path != "" {
		loaded, err := erp.LoadCatalog(path)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		catalog = loaded
	}

	client, err := odoo.New(odooConfig(cfg, m, logger))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	logger.Info("ERP configured", "url", cfg.ERPURL, "database", cfg.ERPDatabase)
	return &ERP{
		Client:       client,
		Catalog:      catalog,
		Syncer:       erp.NewSyncer(client, catalog, logger),
		Availability: erp.NewAvailabilityChecker(client, m, logger),
	}, nil
}

// odooConfig maps ERP settings onto the client. Retries stay off unless
// ERP_MAX_RETRIES is set, since phase 2 may run inside a booking request.
func odooConfig(cfg *appconfig.Config, m *metrics.BookingMetrics, logger *logging.Logger) odoo.Config {
	return odoo.Config{
		URL:        cfg.ERPURL,
		Database:   cfg.ERPDatabase,
		Username:   cfg.ERPUser,
		Password:   cfg.ERPPassword,
		Timeout:    cfg.ERPTimeout,
		MaxRetries: cfg.ERPMaxRetries,
		Backoff:    cfg.ERPRetryBackoff,
		Metrics:    m,
		Logger:     logger,
	}
}
