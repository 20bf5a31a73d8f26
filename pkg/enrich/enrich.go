// Package enrich attaches GeoIP data to source addresses. It is optional
// and never on the persistence path: every failure is logged and ignored.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/bluele/gcache"
	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"
	log "github.com/sirupsen/logrus"

	"github.com/sentinelhq/sentinel/pkg/cache"
	"github.com/sentinelhq/sentinel/pkg/csconfig"
	"github.com/sentinelhq/sentinel/pkg/metrics"
	"github.com/sentinelhq/sentinel/pkg/types"
)

type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

type asnReader interface {
	ASN(ip net.IP) (*geoip2.ASN, error)
	Close() error
}

type networkReader interface {
	LookupNetwork(ip net.IP, result any) (*net.IPNet, bool, error)
	Close() error
}

// Store is where lookups end up.
type Store interface {
	SetIPEnrichment(ctx context.Context, e *types.IPEnrichment) error
}

type Enricher struct {
	city   cityReader
	asn    asnReader
	ranges networkReader
	store  Store
	seen   gcache.Cache
	logger *log.Entry
	now    func() time.Time
}

// NewEnricher opens the configured databases. At least one of them must open.
func NewEnricher(cfg *csconfig.EnrichmentCfg, store Store, logger *log.Entry) (*Enricher, error) {
	if logger == nil {
		logger = log.StandardLogger().WithField("component", "enrich")
	}

	e := &Enricher{
		store:  store,
		seen:   cache.New(cache.Config{Size: cfg.CacheSize, TTL: cfg.CacheTTLDuration}),
		logger: logger,
		now:    time.Now,
	}

	var errs []error

	if cfg.CityDB != "" {
		r, err := geoip2.Open(cfg.CityDB)
		if err != nil {
			errs = append(errs, fmt.Errorf("city database: %w", err))
		} else {
			e.city = r
		}
	}

	if cfg.ASNDB != "" {
		r, err := geoip2.Open(cfg.ASNDB)
		if err != nil {
			errs = append(errs, fmt.Errorf("asn database: %w", err))
		} else {
			e.asn = r

			// same file, raw reader for the network range
			if nr, err := maxminddb.Open(cfg.ASNDB); err == nil {
				e.ranges = nr
			}
		}
	}

	if e.city == nil && e.asn == nil {
		return nil, errors.Join(errs...)
	}

	for _, err := range errs {
		logger.Warningf("enrichment partially disabled: %s", err)
	}

	return e, nil
}

func (*Enricher) Name() string { return "enrich" }

// internal addresses are never in the GeoIP databases
func isInternal(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}

// Lookup resolves ip without touching the store. ok is false when no
// database knows the address.
func (e *Enricher) Lookup(ip string) (*types.IPEnrichment, bool) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		e.logger.Debugf("can't parse ip %q, no enrichment", ip)
		return nil, false
	}

	ret := &types.IPEnrichment{IPAddress: ip}

	if isInternal(parsed) {
		return ret, false
	}

	found := false

	if e.city != nil {
		if record, err := e.city.City(parsed); err != nil {
			e.logger.Debugf("city lookup of %s: %s", ip, err)
		} else {
			ret.Country = countryCode(record)
			ret.City = record.City.Names["en"]
			found = found || ret.Country != "" || ret.City != ""
		}
	}

	if e.asn != nil {
		if record, err := e.asn.ASN(parsed); err != nil {
			e.logger.Debugf("asn lookup of %s: %s", ip, err)
		} else {
			ret.ASNumber = record.AutonomousSystemNumber
			ret.ASOrg = record.AutonomousSystemOrganization
			found = found || ret.ASNumber != 0
		}
	}

	if e.ranges != nil {
		var dummy any

		network, ok, err := e.ranges.LookupNetwork(parsed, &dummy)

		switch {
		case err != nil:
			e.logger.Debugf("range lookup of %s: %s", ip, err)
		case ok:
			ret.IPRange = network.String()
		}
	}

	return ret, found
}

func countryCode(record *geoip2.City) string {
	switch {
	case record.Country.IsoCode != "":
		return record.Country.IsoCode
	case record.RegisteredCountry.IsoCode != "":
		return record.RegisteredCountry.IsoCode
	default:
		return record.RepresentedCountry.IsoCode
	}
}

// OnEvent looks each address up once per cache lifetime. It never fails.
func (e *Enricher) OnEvent(ctx context.Context, evt *types.AttackEvent) error {
	if parsed := net.ParseIP(evt.SourceIP); parsed == nil || isInternal(parsed) {
		return nil
	}

	if e.seen.Has(evt.SourceIP) {
		return nil
	}

	defer func() {
		metrics.EnrichmentCacheSize.Set(float64(e.seen.Len(false)))
	}()

	// remembered even on a miss, unknown addresses stay unknown
	_ = e.seen.Set(evt.SourceIP, struct{}{})

	enr, ok := e.Lookup(evt.SourceIP)
	if !ok {
		return nil
	}

	enr.UpdatedAt = e.now().UTC()

	if err := e.store.SetIPEnrichment(ctx, enr); err != nil {
		e.logger.Debugf("unable to store enrichment of %s: %s", evt.SourceIP, err)
		// retry on the next event of this address
		e.seen.Remove(evt.SourceIP)
	}

	return nil
}

// Reset forgets which addresses were already enriched.
func (e *Enricher) Reset() error {
	e.seen.Purge()
	metrics.EnrichmentCacheSize.Set(0)

	return nil
}

func (e *Enricher) Close() error {
	var errs []error

	for _, c := range []interface{ Close() error }{e.city, e.asn, e.ranges} {
		if c == nil {
			continue
		}

		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
