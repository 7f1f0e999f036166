package erp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/grooming-booking/internal/bookings"
	"github.com/wolfman30/grooming-booking/internal/observability/metrics"
	"github.com/wolfman30/grooming-booking/internal/pricing"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

type rpcCall struct {
	model  string
	method string
	domain Domain
	args   []any
	limit  int
}

type fakeRPC struct {
	calls      []rpcCall
	searchRead func(model string, domain Domain) ([]Record, error)
	execute    func(model, method string, args []any) (json.RawMessage, error)
}

func (f *fakeRPC) SearchRead(_ context.Context, model string, domain Domain, _ []string, limit int) ([]Record, error) {
	f.calls = append(f.calls, rpcCall{model: model, method: "search_read", domain: domain, limit: limit})
	if f.searchRead == nil {
		return nil, nil
	}
	return f.searchRead(model, domain)
}

func (f *fakeRPC) Execute(_ context.Context, model, method string, args []any, _ map[string]any) (json.RawMessage, error) {
	f.calls = append(f.calls, rpcCall{model: model, method: method, args: args})
	if f.execute == nil {
		return json.RawMessage("1"), nil
	}
	return f.execute(model, method, args)
}

func testBooking() *bookings.Booking {
	return &bookings.Booking{
		ID:              "b-1",
		BookingNumber:   "GRM-M5D4RUO0-ABCDEFGH",
		Species:         pricing.SpeciesDog,
		PetName:         "Rex",
		SizeClass:       pricing.SizeMedium,
		PackageTier:     pricing.TierPremium,
		AppointmentAt:   time.Date(2025, 3, 10, 10, 0, 0, 0, time.FixedZone("EAT", 3*60*60)),
		AppointmentTime: "10:00",
		CustomerName:    "Amina Juma",
		CustomerEmail:   "amina@example.com",
		CustomerPhone:   "+255712345678",
		SpecialNotes:    "Nervous around dryers",
		AddOns:          pricing.AddOns{Detangling: true},
	}
}

func quietLogger() *logging.Logger {
	return logging.New("error")
}

func TestFormatTimestampIsUTC(t *testing.T) {
	at := time.Date(2025, 3, 10, 10, 0, 0, 0, time.FixedZone("EAT", 3*60*60))
	assert.Equal(t, "2025-03-10 07:00:00", FormatTimestamp(at))
}

func TestDomainMarshalsAsTriples(t *testing.T) {
	d := Where("appointment_date", "=", "2025-03-10 07:00:00").And("state", "!=", "cancelled")
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `[["appointment_date","=","2025-03-10 07:00:00"],["state","!=","cancelled"]]`, string(raw))
}

func TestPushCreatesPartnerServiceAndAppointment(t *testing.T) {
	var appointment map[string]any
	rpc := &fakeRPC{
		searchRead: func(model string, _ Domain) ([]Record, error) {
			if model == ModelService {
				return []Record{{"id": float64(3)}}, nil
			}
			return nil, nil
		},
		execute: func(model, method string, args []any) (json.RawMessage, error) {
			switch model {
			case ModelPartner:
				return json.RawMessage("17"), nil
			case ModelAppointment:
				appointment = args[0].(map[string]any)
				return json.RawMessage("501"), nil
			}
			return nil, errors.New("unexpected model")
		},
	}

	id, err := NewSyncer(rpc, nil, quietLogger()).Push(context.Background(), testBooking())
	require.NoError(t, err)
	assert.Equal(t, "501", id)

	require.Len(t, rpc.calls, 4)
	assert.Equal(t, rpcCall{model: ModelPartner, method: "search_read", domain: Where("email", "=", "amina@example.com"), limit: 1}, rpc.calls[0])
	assert.Equal(t, "create", rpc.calls[1].method)
	partner := rpc.calls[1].args[0].(map[string]any)
	assert.Equal(t, 1, partner["customer_rank"])
	assert.Equal(t, Where("name", "=ilike", "Premium Package"), rpc.calls[2].domain)

	assert.Equal(t, int64(17), appointment["partner_id"])
	assert.Equal(t, int64(3), appointment["service_id"])
	assert.Equal(t, "2025-03-10 07:00:00", appointment["appointment_date"])
	assert.Equal(t, "full_grooming", appointment["service_type"])
	assert.Equal(t, "pending", appointment["state"])
	assert.Equal(t, "medium", appointment["pet_category"])
	assert.Equal(t, true, appointment["has_detangling"])
	assert.Equal(t, "Web Booking Ref: GRM-M5D4RUO0-ABCDEFGH\nNervous around dryers", appointment["notes"])
}

func TestPushReusesExistingPartner(t *testing.T) {
	rpc := &fakeRPC{
		searchRead: func(model string, _ Domain) ([]Record, error) {
			return []Record{{"id": float64(9)}}, nil
		},
		execute: func(model, method string, args []any) (json.RawMessage, error) {
			if model == ModelPartner {
				t.Fatalf("partner should not be created")
			}
			return json.RawMessage("1"), nil
		},
	}
	_, err := NewSyncer(rpc, nil, quietLogger()).Push(context.Background(), testBooking())
	require.NoError(t, err)
}

func TestPushResolvesServiceByExactName(t *testing.T) {
	services := []Record{
		{"id": float64(7), "name": "Super Premium Package"},
		{"id": float64(8), "name": "Premium Package"},
	}
	var appointment map[string]any
	rpc := &fakeRPC{
		searchRead: func(model string, domain Domain) ([]Record, error) {
			if model == ModelPartner {
				return []Record{{"id": float64(9)}}, nil
			}
			// Substring semantics, as a server would apply for "ilike".
			want := strings.ToLower(domain[0].Value.(string))
			var out []Record
			for _, s := range services {
				if strings.Contains(strings.ToLower(s["name"].(string)), want) {
					out = append(out, s)
				}
			}
			return out, nil
		},
		execute: func(model, method string, args []any) (json.RawMessage, error) {
			if model == ModelAppointment {
				appointment = args[0].(map[string]any)
			}
			return json.RawMessage("1"), nil
		},
	}

	_, err := NewSyncer(rpc, nil, quietLogger()).Push(context.Background(), testBooking())
	require.NoError(t, err)
	assert.Equal(t, int64(8), appointment["service_id"])
}

func TestPushRejectsServiceWithOnlyPartialNameMatch(t *testing.T) {
	rpc := &fakeRPC{
		searchRead: func(model string, _ Domain) ([]Record, error) {
			if model == ModelPartner {
				return []Record{{"id": float64(9)}}, nil
			}
			return []Record{{"id": float64(7), "name": "Super Premium Package"}}, nil
		},
	}
	_, err := NewSyncer(rpc, nil, quietLogger()).Push(context.Background(), testBooking())
	assert.ErrorIs(t, err, ErrUnmappedService)
}

func TestPushReportsUnmappedService(t *testing.T) {
	rpc := &fakeRPC{
		searchRead: func(model string, _ Domain) ([]Record, error) {
			if model == ModelPartner {
				return []Record{{"id": float64(9)}}, nil
			}
			return nil, nil
		},
	}
	_, err := NewSyncer(rpc, nil, quietLogger()).Push(context.Background(), testBooking())

	var syncErr *SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, OutcomeServiceUnmapped, syncErr.Outcome)
	assert.ErrorIs(t, err, ErrUnmappedService)
	for _, c := range rpc.calls {
		assert.NotEqual(t, ModelAppointment, c.model)
	}
}

func TestPushReportsTierMissingFromCatalog(t *testing.T) {
	catalog, err := ParseCatalog("version = 2\n[services]\nstandard = \"Standard Package\"\n")
	require.NoError(t, err)
	rpc := &fakeRPC{searchRead: func(string, Domain) ([]Record, error) { return []Record{{"id": float64(1)}}, nil }}

	_, err = NewSyncer(rpc, catalog, quietLogger()).Push(context.Background(), testBooking())
	var syncErr *SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, OutcomeServiceUnmapped, syncErr.Outcome)
}

func TestPushToleratesMalformedResponses(t *testing.T) {
	rpc := &fakeRPC{
		searchRead: func(string, Domain) ([]Record, error) { return []Record{{"id": "not-a-number"}}, nil },
	}
	_, err := NewSyncer(rpc, nil, quietLogger()).Push(context.Background(), testBooking())
	var syncErr *SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, OutcomeMalformed, syncErr.Outcome)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestPushStopsOnTransportError(t *testing.T) {
	rpc := &fakeRPC{
		searchRead: func(model string, _ Domain) ([]Record, error) {
			return nil, errors.New("dial tcp: i/o timeout")
		},
	}
	_, err := NewSyncer(rpc, nil, quietLogger()).Push(context.Background(), testBooking())
	var syncErr *SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, "partner", syncErr.Step)
	assert.Len(t, rpc.calls, 1)
}

func TestAvailabilityChecker(t *testing.T) {
	at := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		execute func(string, string, []any) (json.RawMessage, error)
		want    bool
		outcome string
	}{
		{"free", func(string, string, []any) (json.RawMessage, error) { return json.RawMessage("0"), nil }, true, "available"},
		{"taken", func(string, string, []any) (json.RawMessage, error) { return json.RawMessage("2"), nil }, false, "taken"},
		{"timeout fails open", func(string, string, []any) (json.RawMessage, error) {
			return nil, context.DeadlineExceeded
		}, true, "fail_open"},
		{"garbage fails open", func(string, string, []any) (json.RawMessage, error) {
			return json.RawMessage(`"lots"`), nil
		}, true, "fail_open"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			rpc := &fakeRPC{execute: tc.execute}
			checker := NewAvailabilityChecker(rpc, metrics.NewBookingMetrics(reg), quietLogger())

			assert.Equal(t, tc.want, checker.IsAvailable(context.Background(), at))
			require.Len(t, rpc.calls, 1)
			assert.Equal(t, "search_count", rpc.calls[0].method)
			assert.Equal(t, []any{Where("appointment_date", "=", "2025-03-10 07:00:00").And("state", "!=", "cancelled")}, rpc.calls[0].args)

			families, err := reg.Gather()
			require.NoError(t, err)
			found := false
			for _, f := range families {
				if f.GetName() != "grooming_erp_availability_checks_total" {
					continue
				}
				for _, m := range f.GetMetric() {
					if m.GetLabel()[0].GetValue() == tc.outcome && m.GetCounter().GetValue() == 1 {
						found = true
					}
				}
			}
			assert.True(t, found, "expected %s to be counted", tc.outcome)
		})
	}
}

func TestCatalogMapping(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, 1, c.Version)
	assert.Equal(t, ModelService, c.ServiceModel)

	name, ok := c.ServiceName(pricing.TierSuperPremium)
	require.True(t, ok)
	assert.Equal(t, "Super Premium Package", name)

	tier, ok := c.TierForService("SUPER PREMIUM PACKAGE")
	require.True(t, ok)
	assert.Equal(t, pricing.TierSuperPremium, tier)

	tier, ok = c.TierForService("Premium Package (dogs)")
	require.True(t, ok)
	assert.Equal(t, pricing.TierPremium, tier)

	_, ok = c.TierForService("Nail trim")
	assert.False(t, ok)

	_, err := ParseCatalog("version = 0\n")
	assert.Error(t, err)
}

func TestPriceReaderFetchAndDiff(t *testing.T) {
	rpc := &fakeRPC{
		searchRead: func(model string, _ Domain) ([]Record, error) {
			switch model {
			case ModelService:
				return []Record{
					{"id": float64(1), "name": "Standard Package"},
					{"id": float64(2), "name": "Premium Package"},
					{"id": float64(3), "name": "Super Premium Package"},
				}, nil
			case ModelPrice:
				return []Record{
					{"service_id": []any{float64(2), "Premium Package"}, "species": "dog", "size_category": "medium", "price": float64(70000)},
					{"service_id": []any{float64(1), "Standard Package"}, "species": "cat", "size_category": "kitten", "price": float64(50000)},
					{"service_id": float64(99), "species": "dog", "size_category": "mini", "price": float64(1)},
					{"service_id": float64(3), "species": "parrot", "size_category": "mini", "price": float64(1)},
				}, nil
			}
			return nil, nil
		},
	}

	matrix, err := NewPriceReader(rpc, nil).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(70000), matrix[pricing.SpeciesDog][pricing.TierPremium][pricing.SizeMedium])
	assert.Equal(t, int64(50000), matrix[pricing.SpeciesCat][pricing.TierStandard][pricing.SizeKitten])

	drift := matrix.Diff(pricing.DefaultTable())
	var changed []PriceDrift
	missing := 0
	for _, d := range drift {
		if d.Missing {
			missing++
			continue
		}
		changed = append(changed, d)
	}
	require.Len(t, changed, 1)
	assert.Equal(t, PriceDrift{Species: pricing.SpeciesCat, Tier: pricing.TierStandard, Size: pricing.SizeKitten, Local: 45000, ERP: 50000}, changed[0])
	assert.Equal(t, 18-2, missing)
}
