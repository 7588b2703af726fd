package pmtiles

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dgraph-io/ristretto/v2"
)

const (
	DefaultRistrettoNumCounters = 10 * 500 * 1024
	DefaultRistrettoMaxCost     = 500 * 1024
	DefaultRistrettoBufferItems = 64

	cacheKeyTemplate = "%s:%d:%d" // etag:offset:length
)

// NewDefaultCache builds the Ristretto directory cache Repository uses,
// sized by the PMTILES_RISTRETTO_* environment variables when set.
func NewDefaultCache() (*ristretto.Cache[string, *Directory], error) {
	cfg := &ristretto.Config[string, *Directory]{
		NumCounters: getEnv(
			"PMTILES_RISTRETTO_NUM_COUNTERS",
			DefaultRistrettoNumCounters,
		), // number of keys to track frequency of (5,120,000).
		MaxCost: getEnv(
			"PMTILES_RISTRETTO_MAX_COST",
			DefaultRistrettoMaxCost,
		), // Repository sets each directory at cost 1, so this caps the entry count.
		BufferItems: getEnv(
			"PMTILES_RISTRETTO_BUFFER_ITEMS",
			DefaultRistrettoBufferItems,
		), // number of keys per Get buffer.
	}

	cache, err := ristretto.NewCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating ristretto cache: %w", err)
	}

	return cache, nil
}

func getEnv(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fallback
		}
		return i
	}
	return fallback
}
