package pricing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveReturnsTabulatedPrices(t *testing.T) {
	table := DefaultTable()
	tests := []struct {
		species Species
		tier    PackageTier
		size    SizeClass
		want    int64
	}{
		{SpeciesDog, TierStandard, SizeMini, 45000},
		{SpeciesDog, TierStandard, SizeLarge, 70000},
		{SpeciesDog, TierPremium, SizeMedium, 70000},
		{SpeciesDog, TierSuperPremium, SizeSmall, 75000},
		{SpeciesDog, TierSuperPremium, SizeLarge, 90000},
		{SpeciesCat, TierStandard, SizeKitten, 45000},
		{SpeciesCat, TierPremium, SizeAdultCat, 75000},
		{SpeciesCat, TierSuperPremium, SizeAdultCat, 85000},
	}
	for _, tt := range tests {
		t.Run(string(tt.species)+"/"+string(tt.tier)+"/"+string(tt.size), func(t *testing.T) {
			got, ok := table.Resolve(tt.species, tt.tier, tt.size, AddOns{})
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDetanglingAddsFlatSurcharge(t *testing.T) {
	table := DefaultTable()
	for _, sp := range AllSpecies() {
		for _, tier := range Tiers() {
			for _, size := range SizesFor(sp) {
				base, ok := table.Resolve(sp, tier, size, AddOns{})
				require.True(t, ok, "missing price for %s/%s/%s", sp, tier, size)
				withAddOn, ok := table.Resolve(sp, tier, size, AddOns{Detangling: true})
				require.True(t, ok)
				assert.Equal(t, DetanglingFee, withAddOn-base)
			}
		}
	}
}

func TestResolveCatKittenStandardWithDetangling(t *testing.T) {
	got, ok := DefaultTable().Resolve(SpeciesCat, TierStandard, SizeKitten, AddOns{Detangling: true})
	require.True(t, ok)
	assert.Equal(t, int64(75000), got)
}

func TestResolveMissingEntryIsNotZero(t *testing.T) {
	table := NewTable(map[Species]map[PackageTier]map[SizeClass]int64{
		SpeciesDog: {TierStandard: {SizeMini: 45000}},
	}, DetanglingFee)

	tests := []struct {
		name    string
		species Species
		tier    PackageTier
		size    SizeClass
	}{
		{"unknown size", SpeciesDog, TierStandard, SizeLarge},
		{"unknown tier", SpeciesDog, TierPremium, SizeMini},
		{"unknown species", SpeciesCat, TierStandard, SizeKitten},
		{"cross species size", SpeciesDog, TierStandard, SizeKitten},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := table.Resolve(tt.species, tt.tier, tt.size, AddOns{Detangling: true})
			assert.False(t, ok)
			assert.Zero(t, got)
		})
	}
}

func TestNewTableCopiesInput(t *testing.T) {
	prices := map[Species]map[PackageTier]map[SizeClass]int64{
		SpeciesDog: {TierStandard: {SizeMini: 45000}},
	}
	table := NewTable(prices, DetanglingFee)
	prices[SpeciesDog][TierStandard][SizeMini] = 1

	got, ok := table.Resolve(SpeciesDog, TierStandard, SizeMini, AddOns{})
	require.True(t, ok)
	assert.Equal(t, int64(45000), got)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		species Species
		input   string
		want    SizeClass
		ok      bool
	}{
		{SpeciesDog, "Medium", SizeMedium, true},
		{SpeciesDog, "giant", "", false},
		{SpeciesDog, "kitten", "", false},
		{SpeciesCat, "adult", SizeAdultCat, true},
		{SpeciesCat, "adult-cat", SizeAdultCat, true},
		{SpeciesCat, "large", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseSize(tt.species, tt.input)
		assert.Equal(t, tt.ok, ok, "%s/%s", tt.species, tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseTierAcceptsDisplayForms(t *testing.T) {
	tier, ok := ParseTier("Super Premium")
	require.True(t, ok)
	assert.Equal(t, TierSuperPremium, tier)

	_, ok = ParseTier("platinum")
	assert.False(t, ok)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "60,000 TZS", FormatPrice(60000))
	assert.Equal(t, "500 TZS", FormatPrice(500))
}

func TestCatalogFilter(t *testing.T) {
	table := DefaultTable()

	all, err := table.Catalog("")
	require.NoError(t, err)
	require.Len(t, all.Species, 2)
	require.Len(t, all.AddOns, 1)
	assert.Equal(t, "detangling", all.AddOns[0].Code)
	assert.Equal(t, DetanglingFee, all.AddOns[0].Price)

	cats, err := table.Catalog("CAT")
	require.NoError(t, err)
	require.Len(t, cats.Species, 1)
	assert.Equal(t, SpeciesCat, cats.Species[0].Species)
	require.Len(t, cats.Species[0].Packages, 3)
	assert.Len(t, cats.Species[0].Packages[0].Prices, 2)
	assert.Equal(t, "45,000 TZS", cats.Species[0].Packages[0].Prices[0].PriceFormatted)

	_, err = table.Catalog("hamster")
	assert.ErrorIs(t, err, ErrUnknownSpecies)
}

func TestCatalogListsIncludedServices(t *testing.T) {
	catalog, err := DefaultTable().Catalog("")
	require.NoError(t, err)

	for _, sc := range catalog.Species {
		require.Len(t, sc.Packages, 3, sc.Species)
		assert.Len(t, sc.Packages[0].Services, 5)
		assert.Contains(t, sc.Packages[0].Services, "Sanitary trim (if needed)")
		assert.Len(t, sc.Packages[1].Services, 6)
		assert.Contains(t, sc.Packages[1].Services, "Teeth Brushing")
		assert.Len(t, sc.Packages[2].Services, 10)
		assert.Contains(t, sc.Packages[2].Services, "Flea & Tick Treatment")
	}

	catalog.Species[0].Packages[0].Services[0] = "changed"
	again, err := DefaultTable().Catalog("dog")
	require.NoError(t, err)
	assert.Equal(t, "Warm bath", again.Species[0].Packages[0].Services[0])
}

func TestHandlerGetPrices(t *testing.T) {
	h := NewHandler(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/grooming/prices?species=dog", nil)
	rec := httptest.NewRecorder()
	h.GetPrices(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body Catalog
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Species, 1)
	assert.Equal(t, SpeciesDog, body.Species[0].Species)
	assert.Equal(t, Currency, body.Currency)

	req = httptest.NewRequest(http.MethodGet, "/api/grooming/prices?species=fish", nil)
	rec = httptest.NewRecorder()
	h.GetPrices(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
