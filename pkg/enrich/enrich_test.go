package enrich

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/oschwald/geoip2-golang"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdsecurity/go-cs-lib/cstest"

	"github.com/sentinelhq/sentinel/pkg/cache"
	"github.com/sentinelhq/sentinel/pkg/csconfig"
	"github.com/sentinelhq/sentinel/pkg/types"
)

type fakeCity struct {
	calls int
}

func (f *fakeCity) City(ip net.IP) (*geoip2.City, error) {
	f.calls++

	record := &geoip2.City{}

	switch ip.String() {
	case "198.51.100.7":
		record.Country.IsoCode = "FR"
		record.City.Names = map[string]string{"en": "Paris"}
	case "203.0.113.9":
		record.RegisteredCountry.IsoCode = "JP"
	case "192.0.2.66":
		return nil, errors.New("corrupt record")
	}

	return record, nil
}

func (*fakeCity) Close() error { return nil }

type fakeASN struct{}

func (fakeASN) ASN(ip net.IP) (*geoip2.ASN, error) {
	if ip.String() == "198.51.100.7" {
		return &geoip2.ASN{AutonomousSystemNumber: 64500, AutonomousSystemOrganization: "Example Transit"}, nil
	}

	return &geoip2.ASN{}, nil
}

func (fakeASN) Close() error { return nil }

type fakeRanges struct{}

func (fakeRanges) LookupNetwork(ip net.IP, _ any) (*net.IPNet, bool, error) {
	if ip.String() != "198.51.100.7" {
		return nil, false, nil
	}

	_, network, err := net.ParseCIDR("198.51.100.0/24")

	return network, true, err
}

func (fakeRanges) Close() error { return nil }

type memStore struct {
	mu   sync.Mutex
	rows map[string]types.IPEnrichment
	err  error
}

func (m *memStore) SetIPEnrichment(_ context.Context, e *types.IPEnrichment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	m.rows[e.IPAddress] = *e

	return nil
}

func newTestEnricher(store Store) (*Enricher, *fakeCity) {
	city := &fakeCity{}

	return &Enricher{
		city:   city,
		asn:    fakeASN{},
		ranges: fakeRanges{},
		store:  store,
		seen:   cache.New(cache.Config{Size: 10, TTL: time.Hour}),
		logger: log.WithField("test", "enrich"),
		now:    func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) },
	}, city
}

func TestLookup(t *testing.T) {
	e, _ := newTestEnricher(nil)

	tests := []struct {
		ip    string
		found bool
		want  types.IPEnrichment
	}{
		{
			ip:    "198.51.100.7",
			found: true,
			want: types.IPEnrichment{
				IPAddress: "198.51.100.7",
				Country:   "FR",
				City:      "Paris",
				ASNumber:  64500,
				ASOrg:     "Example Transit",
				IPRange:   "198.51.100.0/24",
			},
		},
		{
			ip:    "203.0.113.9",
			found: true,
			want:  types.IPEnrichment{IPAddress: "203.0.113.9", Country: "JP"},
		},
		{
			ip:   "192.0.2.66",
			want: types.IPEnrichment{IPAddress: "192.0.2.66"},
		},
		{
			ip:   "10.1.1.1",
			want: types.IPEnrichment{IPAddress: "10.1.1.1"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.ip, func(t *testing.T) {
			got, found := e.Lookup(tc.ip)
			assert.Equal(t, tc.found, found)
			require.NotNil(t, got)
			assert.Equal(t, tc.want, *got)
		})
	}

	got, found := e.Lookup("not-an-ip")
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestOnEventStoresOnce(t *testing.T) {
	store := &memStore{rows: map[string]types.IPEnrichment{}}
	e, city := newTestEnricher(store)

	evt := &types.AttackEvent{SourceIP: "198.51.100.7"}

	for range 3 {
		require.NoError(t, e.OnEvent(t.Context(), evt))
	}

	assert.Equal(t, 1, city.calls)
	require.Contains(t, store.rows, "198.51.100.7")
	assert.Equal(t, "FR", store.rows["198.51.100.7"].Country)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), store.rows["198.51.100.7"].UpdatedAt)

	// unknown addresses are not stored, and not looked up again
	require.NoError(t, e.OnEvent(t.Context(), &types.AttackEvent{SourceIP: "192.0.2.200"}))
	require.NoError(t, e.OnEvent(t.Context(), &types.AttackEvent{SourceIP: "192.0.2.200"}))
	assert.NotContains(t, store.rows, "192.0.2.200")
	assert.Equal(t, 2, city.calls)

	require.NoError(t, e.Reset())
	require.NoError(t, e.OnEvent(t.Context(), evt))
	assert.Equal(t, 3, city.calls)
}

func TestInternalAddressesAreSkipped(t *testing.T) {
	store := &memStore{rows: map[string]types.IPEnrichment{}}
	e, city := newTestEnricher(store)

	for _, ip := range []string{"10.1.1.1", "192.168.0.4", "172.16.3.3", "127.0.0.1", "::1", "fe80::1", "fd00::5"} {
		t.Run(ip, func(t *testing.T) {
			got, found := e.Lookup(ip)
			assert.False(t, found)
			assert.Equal(t, &types.IPEnrichment{IPAddress: ip}, got)

			require.NoError(t, e.OnEvent(t.Context(), &types.AttackEvent{SourceIP: ip}))
			assert.False(t, e.seen.Has(ip))
		})
	}

	assert.Equal(t, 0, city.calls)
	assert.Empty(t, store.rows)
}

func TestOnEventStoreFailureIsSilent(t *testing.T) {
	store := &memStore{rows: map[string]types.IPEnrichment{}, err: errors.New("database is locked")}
	e, city := newTestEnricher(store)

	evt := &types.AttackEvent{SourceIP: "198.51.100.7"}

	require.NoError(t, e.OnEvent(t.Context(), evt))

	// a failed write is retried with the next event
	store.err = nil

	require.NoError(t, e.OnEvent(t.Context(), evt))
	assert.Equal(t, 2, city.calls)
	assert.Contains(t, store.rows, "198.51.100.7")
}

func TestNewEnricherMissingDatabases(t *testing.T) {
	dir := t.TempDir()

	_, err := NewEnricher(&csconfig.EnrichmentCfg{
		CityDB:    filepath.Join(dir, "GeoLite2-City.mmdb"),
		ASNDB:     filepath.Join(dir, "GeoLite2-ASN.mmdb"),
		CacheSize: 10,
	}, nil, nil)
	cstest.RequireErrorContains(t, err, "city database")
	cstest.RequireErrorContains(t, err, "asn database")
}

func TestCloseWithoutReaders(t *testing.T) {
	e := &Enricher{}
	require.NoError(t, e.Close())
}
