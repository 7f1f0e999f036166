package pricing

import (
	"errors"
	"slices"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrUnknownSpecies is returned when a catalog filter names an unsupported species.
var ErrUnknownSpecies = errors.New("pricing: unknown species")

var amountPrinter = message.NewPrinter(language.English)

// FormatPrice renders an amount with thousands separators, e.g. "60,000 TZS".
func FormatPrice(amount int64) string {
	return amountPrinter.Sprintf("%d", amount) + " " + Currency
}

var tierLabels = map[PackageTier]string{
	TierStandard:     "Standard",
	TierPremium:      "Premium",
	TierSuperPremium: "Super Premium",
}

var tierDescriptions = map[PackageTier]string{
	TierStandard:     "Bath, blow dry, ear cleaning",
	TierPremium:      "Standard + nail trim, teeth brushing",
	TierSuperPremium: "Premium + flea treatment, paw balm, cologne",
}

// tierServices lists what each package includes. Dogs and cats get the same
// services; only the prices differ.
var tierServices = map[PackageTier][]string{
	TierStandard: {
		"Warm bath",
		"Blow dry",
		"Ear cleaning",
		"Brush out",
		"Sanitary trim (if needed)",
	},
	TierPremium: {
		"Warm Deep Clean Bath",
		"Blow dry",
		"Ear cleaning",
		"Full Hair Cut or Styling",
		"Nail Trim",
		"Teeth Brushing",
	},
	TierSuperPremium: {
		"Warm Deep Clean Bath",
		"Blow dry",
		"Ear cleaning",
		"Full Hair Cut or Styling",
		"Nail Trim",
		"Teeth Brushing",
		"De-shedding",
		"Flea & Tick Treatment",
		"Soothing Paw Balm",
		"Finishing Touches",
	},
}

var sizeLabels = map[SizeClass]string{
	SizeMini:     "Mini",
	SizeSmall:    "Small",
	SizeMedium:   "Medium",
	SizeLarge:    "Large",
	SizeKitten:   "Kitten",
	SizeAdultCat: "Adult cat",
}

// TierLabel returns the customer-facing name of a package tier.
func TierLabel(tier PackageTier) string {
	if label, ok := tierLabels[tier]; ok {
		return label
	}
	return string(tier)
}

// SizeLabel returns the customer-facing name of a size class.
func SizeLabel(size SizeClass) string {
	if label, ok := sizeLabels[size]; ok {
		return label
	}
	return string(size)
}

// SizePrice is one priced size within a package.
type SizePrice struct {
	Size           SizeClass `json:"size"`
	Label          string    `json:"label"`
	Price          int64     `json:"price"`
	PriceFormatted string    `json:"priceFormatted"`
}

// PackageInfo describes one tier for a species.
type PackageInfo struct {
	Tier        PackageTier `json:"tier"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Services    []string    `json:"services"`
	Prices      []SizePrice `json:"prices"`
}

// SpeciesCatalog lists the packages offered for one species.
type SpeciesCatalog struct {
	Species  Species       `json:"species"`
	Packages []PackageInfo `json:"packages"`
}

// AddOn is a flat-fee extra service.
type AddOn struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	Price          int64  `json:"price"`
	PriceFormatted string `json:"priceFormatted"`
}

// Catalog is the read-only view of the price table served to the UI and the agent.
type Catalog struct {
	Currency string           `json:"currency"`
	Species  []SpeciesCatalog `json:"prices"`
	AddOns   []AddOn          `json:"additionalServices"`
	Note     string           `json:"note"`
}

// Catalog builds the catalog view, optionally filtered to one species.
// An empty filter returns every species.
func (t *Table) Catalog(filter string) (Catalog, error) {
	species := AllSpecies()
	if strings.TrimSpace(filter) != "" {
		sp, ok := ParseSpecies(filter)
		if !ok {
			return Catalog{}, ErrUnknownSpecies
		}
		species = []Species{sp}
	}

	out := Catalog{
		Currency: Currency,
		Note:     "Prices are in Tanzania Shillings (TZS).",
	}
	for _, sp := range species {
		entry := SpeciesCatalog{Species: sp}
		for _, tier := range Tiers() {
			pkg := PackageInfo{
				Tier:        tier,
				Name:        TierLabel(tier),
				Description: tierDescriptions[tier],
				Services:    slices.Clone(tierServices[tier]),
			}
			for _, size := range SizesFor(sp) {
				amount, ok := t.Base(sp, tier, size)
				if !ok {
					continue
				}
				pkg.Prices = append(pkg.Prices, SizePrice{
					Size:           size,
					Label:          SizeLabel(size),
					Price:          amount,
					PriceFormatted: FormatPrice(amount),
				})
			}
			if len(pkg.Prices) > 0 {
				entry.Packages = append(entry.Packages, pkg)
			}
		}
		out.Species = append(out.Species, entry)
	}
	fee := t.DetanglingFee()
	out.AddOns = []AddOn{{
		Code:           "detangling",
		Name:           "Detangling",
		Price:          fee,
		PriceFormatted: FormatPrice(fee),
	}}
	return out, nil
}
