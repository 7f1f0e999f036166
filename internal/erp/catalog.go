package erp

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wolfman30/grooming-booking/internal/pricing"
)

//go:embed catalog.toml
var defaultCatalog string

// CatalogMapping maps package tiers to ERP service names. It is a versioned
// artifact; lookups for tiers it does not list yield ErrUnmappedService.
type CatalogMapping struct {
	Version      int               `toml:"version"`
	ServiceModel string            `toml:"service_model"`
	Services     map[string]string `toml:"services"`
}

// DefaultCatalog returns the mapping shipped with the binary.
func DefaultCatalog() *CatalogMapping {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("erp: embedded catalog invalid: %v", err))
	}
	return c
}

// LoadCatalog reads a mapping file. An empty path returns DefaultCatalog.
func LoadCatalog(path string) (*CatalogMapping, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	var c CatalogMapping
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, fmt.Errorf("erp: load catalog %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ParseCatalog decodes a mapping from TOML text.
func ParseCatalog(data string) (*CatalogMapping, error) {
	var c CatalogMapping
	if _, err := toml.Decode(data, &c); err != nil {
		return nil, fmt.Errorf("erp: parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *CatalogMapping) validate() error {
	if c.Version <= 0 {
		return fmt.Errorf("erp: catalog version must be positive")
	}
	if c.ServiceModel == "" {
		c.ServiceModel = ModelService
	}
	if len(c.Services) == 0 {
		return fmt.Errorf("erp: catalog has no services")
	}
	return nil
}

// ServiceName returns the ERP display name for a tier.
func (c *CatalogMapping) ServiceName(tier pricing.PackageTier) (string, bool) {
	if c == nil {
		return "", false
	}
	name, ok := c.Services[string(tier)]
	name = strings.TrimSpace(name)
	return name, ok && name != ""
}

// TierForService maps an ERP service name back to a tier. Matching is
// case-insensitive; longer names win so "Super Premium Package" is not
// mistaken for "Premium Package".
func (c *CatalogMapping) TierForService(name string) (pricing.PackageTier, bool) {
	if c == nil {
		return "", false
	}
	needle := strings.ToLower(strings.TrimSpace(name))
	var (
		best    pricing.PackageTier
		bestLen int
	)
	for tier, service := range c.Services {
		s := strings.ToLower(strings.TrimSpace(service))
		if s == "" || !strings.Contains(needle, s) {
			continue
		}
		if len(s) > bestLen {
			best, bestLen = pricing.PackageTier(tier), len(s)
		}
	}
	return best, bestLen > 0
}
