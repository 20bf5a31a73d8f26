// Package cache builds the expiring in-memory caches used by the
// enrichment step.
package cache

import (
	"time"

	"github.com/bluele/gcache"
)

const (
	StrategyLRU = "LRU"
	StrategyLFU = "LFU"
	StrategyARC = "ARC"
)

type Config struct {
	Size int
	TTL  time.Duration
	// Strategy defaults to LRU.
	Strategy string
}

func New(cfg Config) gcache.Cache {
	size := cfg.Size
	if size <= 0 {
		size = 1
	}

	builder := gcache.New(size)

	switch cfg.Strategy {
	case StrategyLFU:
		builder = builder.LFU()
	case StrategyARC:
		builder = builder.ARC()
	default:
		builder = builder.LRU()
	}

	if cfg.TTL > 0 {
		builder = builder.Expiration(cfg.TTL)
	}

	return builder.Build()
}
