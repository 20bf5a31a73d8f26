package csconfig

import (
	"errors"
	"time"

	"github.com/crowdsecurity/go-cs-lib/ptr"
)

// EnrichmentCfg configures the optional GeoIP lookup of source addresses.
type EnrichmentCfg struct {
	Enabled   *bool  `yaml:"enabled,omitempty"`
	CityDB    string `yaml:"geoip_city_db,omitempty"`
	ASNDB     string `yaml:"geoip_asn_db,omitempty"`
	CacheSize int    `yaml:"cache_size,omitempty"`
	CacheTTL  string `yaml:"cache_ttl,omitempty"`

	CacheTTLDuration time.Duration `yaml:"-"`
}

func (c *Config) LoadEnrichment() error {
	if c.Enrichment == nil {
		c.Enrichment = &EnrichmentCfg{}
	}

	ec := c.Enrichment

	if ec.Enabled == nil {
		ec.Enabled = ptr.Of(false)
	}

	if !*ec.Enabled {
		return nil
	}

	if ec.CityDB == "" && ec.ASNDB == "" {
		return errors.New("enrichment is enabled but neither geoip_city_db nor geoip_asn_db is set")
	}

	for _, p := range []*string{&ec.CityDB, &ec.ASNDB} {
		if err := ensureAbsolutePath(p); err != nil {
			return err
		}
	}

	if ec.CacheSize == 0 {
		ec.CacheSize = 1000
	}

	if ec.CacheSize < 0 {
		return errors.New("cache_size can't be negative")
	}

	var err error

	ec.CacheTTLDuration, err = parsePositiveDuration("cache_ttl", &ec.CacheTTL, "1h")

	return err
}
