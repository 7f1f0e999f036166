package pricing

import (
	"strings"
)

// Species identifies the kind of pet being groomed.
type Species string

const (
	SpeciesDog Species = "dog"
	SpeciesCat Species = "cat"
)

// SizeClass is a species-dependent size bucket.
type SizeClass string

const (
	SizeMini     SizeClass = "mini"
	SizeSmall    SizeClass = "small"
	SizeMedium   SizeClass = "medium"
	SizeLarge    SizeClass = "large"
	SizeKitten   SizeClass = "kitten"
	SizeAdultCat SizeClass = "adult_cat"
)

// PackageTier is the grooming package level.
type PackageTier string

const (
	TierStandard     PackageTier = "standard"
	TierPremium      PackageTier = "premium"
	TierSuperPremium PackageTier = "super_premium"
)

// Currency is the ISO code all prices are expressed in. Amounts have no minor unit.
const Currency = "TZS"

// DetanglingFee is the flat surcharge for the detangling add-on.
const DetanglingFee int64 = 30000

// AddOns captures optional extras on a booking.
type AddOns struct {
	Detangling bool `json:"detangling" dynamodbav:"detangling"`
}

var (
	allSpecies = []Species{SpeciesDog, SpeciesCat}
	allTiers   = []PackageTier{TierStandard, TierPremium, TierSuperPremium}
)

var sizesBySpecies = map[Species][]SizeClass{
	SpeciesDog: {SizeMini, SizeSmall, SizeMedium, SizeLarge},
	SpeciesCat: {SizeKitten, SizeAdultCat},
}

var sizeAliases = map[string]SizeClass{
	"adult": SizeAdultCat,
}

// ParseSpecies normalizes s and reports whether it names a known species.
func ParseSpecies(s string) (Species, bool) {
	sp := Species(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range allSpecies {
		if sp == known {
			return sp, true
		}
	}
	return "", false
}

// ParseTier normalizes s and reports whether it names a known package tier.
// Spaces and dashes are accepted in place of underscores.
func ParseTier(s string) (PackageTier, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	tier := PackageTier(normalized)
	for _, known := range allTiers {
		if tier == known {
			return tier, true
		}
	}
	return "", false
}

// ParseSize normalizes s against the size enumeration of the given species.
func ParseSize(species Species, s string) (SizeClass, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	size := SizeClass(normalized)
	if alias, ok := sizeAliases[normalized]; ok {
		size = alias
	}
	for _, known := range sizesBySpecies[species] {
		if size == known {
			return size, true
		}
	}
	return "", false
}

// SizesFor returns the ordered size enumeration for a species.
func SizesFor(species Species) []SizeClass {
	sizes := sizesBySpecies[species]
	out := make([]SizeClass, len(sizes))
	copy(out, sizes)
	return out
}

// Tiers returns the ordered package tiers.
func Tiers() []PackageTier {
	out := make([]PackageTier, len(allTiers))
	copy(out, allTiers)
	return out
}

// AllSpecies returns every supported species.
func AllSpecies() []Species {
	out := make([]Species, len(allSpecies))
	copy(out, allSpecies)
	return out
}

// Table is an immutable species -> tier -> size price mapping.
type Table struct {
	prices        map[Species]map[PackageTier]map[SizeClass]int64
	detanglingFee int64
}

// NewTable deep-copies prices so later mutation of the input cannot change quotes.
func NewTable(prices map[Species]map[PackageTier]map[SizeClass]int64, detanglingFee int64) *Table {
	copied := make(map[Species]map[PackageTier]map[SizeClass]int64, len(prices))
	for sp, tiers := range prices {
		copiedTiers := make(map[PackageTier]map[SizeClass]int64, len(tiers))
		for tier, sizes := range tiers {
			copiedSizes := make(map[SizeClass]int64, len(sizes))
			for size, amount := range sizes {
				copiedSizes[size] = amount
			}
			copiedTiers[tier] = copiedSizes
		}
		copied[sp] = copiedTiers
	}
	return &Table{prices: copied, detanglingFee: detanglingFee}
}

// DefaultTable returns the salon's published price list.
func DefaultTable() *Table {
	return NewTable(map[Species]map[PackageTier]map[SizeClass]int64{
		SpeciesDog: {
			TierStandard:     {SizeMini: 45000, SizeSmall: 50000, SizeMedium: 60000, SizeLarge: 70000},
			TierPremium:      {SizeMini: 50000, SizeSmall: 60000, SizeMedium: 70000, SizeLarge: 80000},
			TierSuperPremium: {SizeMini: 60000, SizeSmall: 75000, SizeMedium: 85000, SizeLarge: 90000},
		},
		SpeciesCat: {
			TierStandard:     {SizeKitten: 45000, SizeAdultCat: 60000},
			TierPremium:      {SizeKitten: 60000, SizeAdultCat: 75000},
			TierSuperPremium: {SizeKitten: 75000, SizeAdultCat: 85000},
		},
	}, DetanglingFee)
}

// Base returns the tabulated price without add-ons.
func (t *Table) Base(species Species, tier PackageTier, size SizeClass) (int64, bool) {
	if t == nil {
		return 0, false
	}
	amount, ok := t.prices[species][tier][size]
	if !ok || amount <= 0 {
		return 0, false
	}
	return amount, true
}

// Resolve is the only authority for a booking price. A missing entry is
// reported with ok=false and never defaults to zero.
func (t *Table) Resolve(species Species, tier PackageTier, size SizeClass, addOns AddOns) (int64, bool) {
	base, ok := t.Base(species, tier, size)
	if !ok {
		return 0, false
	}
	if addOns.Detangling {
		base += t.detanglingFee
	}
	return base, true
}

// DetanglingFee returns the configured detangling surcharge.
func (t *Table) DetanglingFee() int64 {
	if t == nil {
		return 0
	}
	return t.detanglingFee
}
