package erp

import (
	"context"
	"fmt"

	"github.com/wolfman30/grooming-booking/internal/pricing"
)

// PriceMatrix is species -> tier -> size -> amount.
type PriceMatrix map[pricing.Species]map[pricing.PackageTier]map[pricing.SizeClass]int64

// PriceReader reads the price list maintained in the ERP. The local price
// table stays the authority for bookings; this is used to report drift.
type PriceReader struct {
	rpc     RPC
	catalog *CatalogMapping
}

func NewPriceReader(rpc RPC, catalog *CatalogMapping) *PriceReader {
	if rpc == nil {
		panic("erp: rpc required")
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &PriceReader{rpc: rpc, catalog: catalog}
}

// Fetch loads package services and their prices. Rows for unknown services,
// species or sizes are skipped.
func (r *PriceReader) Fetch(ctx context.Context) (PriceMatrix, error) {
	services, err := r.rpc.SearchRead(ctx, r.catalog.ServiceModel, Where("is_addon", "=", false), []string{"id", "name"}, 0)
	if err != nil {
		return nil, fmt.Errorf("erp: fetch services: %w", err)
	}
	tierByService := make(map[int64]pricing.PackageTier, len(services))
	for _, s := range services {
		id, ok := s.ID()
		name, _ := s["name"].(string)
		if !ok || name == "" {
			continue
		}
		if tier, ok := r.catalog.TierForService(name); ok {
			tierByService[id] = tier
		}
	}

	rows, err := r.rpc.SearchRead(ctx, ModelPrice, Domain{}, []string{"service_id", "species", "size_category", "price"}, 0)
	if err != nil {
		return nil, fmt.Errorf("erp: fetch prices: %w", err)
	}

	out := PriceMatrix{}
	for _, row := range rows {
		serviceID, ok := asInt64(row["service_id"])
		if !ok {
			continue
		}
		tier, ok := tierByService[serviceID]
		if !ok {
			continue
		}
		speciesRaw, _ := row["species"].(string)
		species, ok := pricing.ParseSpecies(speciesRaw)
		if !ok {
			continue
		}
		sizeRaw, _ := row["size_category"].(string)
		size, ok := pricing.ParseSize(species, sizeRaw)
		if !ok {
			continue
		}
		amount, ok := asInt64(row["price"])
		if !ok {
			continue
		}
		if out[species] == nil {
			out[species] = map[pricing.PackageTier]map[pricing.SizeClass]int64{}
		}
		if out[species][tier] == nil {
			out[species][tier] = map[pricing.SizeClass]int64{}
		}
		out[species][tier][size] = amount
	}
	return out, nil
}

// PriceDrift is a cell where the ERP and the local table disagree.
type PriceDrift struct {
	Species pricing.Species
	Tier    pricing.PackageTier
	Size    pricing.SizeClass
	Local   int64
	ERP     int64
	Missing bool
}

// Diff compares the ERP matrix against the local table for every tabulated cell.
func (m PriceMatrix) Diff(table *pricing.Table) []PriceDrift {
	var drift []PriceDrift
	for _, species := range pricing.AllSpecies() {
		for _, tier := range pricing.Tiers() {
			for _, size := range pricing.SizesFor(species) {
				local, ok := table.Base(species, tier, size)
				if !ok {
					continue
				}
				remote, found := m[species][tier][size]
				if !found {
					drift = append(drift, PriceDrift{Species: species, Tier: tier, Size: size, Local: local, Missing: true})
					continue
				}
				if remote != local {
					drift = append(drift, PriceDrift{Species: species, Tier: tier, Size: size, Local: local, ERP: remote})
				}
			}
		}
	}
	return drift
}
