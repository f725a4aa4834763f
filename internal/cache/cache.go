// Package cache provides a content-addressable store for parsed workbook
// results. Keys are digests of the uploaded bytes, so byte-identical
// uploads always collide and a re-upload of the same file skips parsing
// entirely.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/nukk-pain/smpain-hr/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// ParsedResult is the cached outcome of one parse+validate pass.
// CalculatedAt is the digest time of the original pass, so a cache hit
// reproduces the first response's summary exactly.
type ParsedResult struct {
	Rows         []domain.DecodedRow     `json:"rows"`
	Report       domain.ProcessingReport `json:"report"`
	Stats        domain.ReadStats        `json:"stats"`
	Digest       string                  `json:"digest"`
	CalculatedAt time.Time               `json:"calculated_at"`
}

// Stats is a point-in-time snapshot of cache accounting.
type Stats struct {
	Entries   int    `json:"entries"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

type entry struct {
	result    *ParsedResult
	createdAt time.Time
	expiresAt time.Time
}

// Cache is a TTL'd content-addressed map, safe for concurrent use.
// Eviction is expiry-driven: expired entries are purged on every access,
// and under capacity pressure the entry closest to expiry goes first.
// With short TTLs expiry order is a sufficient proxy for recency, so no
// LRU bookkeeping is kept.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]entry
	capacity int
	now      func() time.Time

	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter

	rawHits, rawMisses, rawEvictions uint64
}

// New creates a cache with the given capacity. A nil registerer skips
// metric registration, which is what the tests use.
func New(capacity int, reg prometheus.Registerer) *Cache {
	c := &Cache{
		entries:  make(map[string]entry),
		capacity: capacity,
		now:      time.Now,
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payroll_parse_cache_hits_total",
			Help: "Parse cache lookups served from a cached result.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payroll_parse_cache_misses_total",
			Help: "Parse cache lookups that required a fresh parse.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payroll_parse_cache_evictions_total",
			Help: "Parse cache entries evicted by expiry or capacity.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.hits, c.misses, c.evictions)
	}
	return c
}

// Key returns the content address for a file: hex(sha256(bytes)).
func Key(fileBytes []byte) string {
	digest := sha256.Sum256(fileBytes)
	return hex.EncodeToString(digest[:])
}

// Get looks up the parse result for the file's content. The file is never
// decoded here; only its digest is computed.
func (c *Cache) Get(fileBytes []byte) (*ParsedResult, bool) {
	key := Key(fileBytes)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeExpiredLocked()

	stored, ok := c.entries[key]
	if !ok {
		c.misses.Inc()
		c.rawMisses++
		return nil, false
	}
	c.hits.Inc()
	c.rawHits++
	return stored.result, true
}

// Put stores a parse result under the file's content address.
func (c *Cache) Put(fileBytes []byte, result *ParsedResult, ttl time.Duration) {
	key := Key(fileBytes)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeExpiredLocked()

	if _, exists := c.entries[key]; !exists && c.capacity > 0 && len(c.entries) >= c.capacity {
		c.evictEarliestLocked()
	}

	c.entries[key] = entry{
		result:    result,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
}

// Sweep purges expired entries; used by the periodic background sweep.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeExpiredLocked()
}

// CacheStats returns the current accounting snapshot.
func (c *Cache) CacheStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   len(c.entries),
		Hits:      c.rawHits,
		Misses:    c.rawMisses,
		Evictions: c.rawEvictions,
	}
}

func (c *Cache) purgeExpiredLocked() int {
	now := c.now()
	purged := 0
	for key, stored := range c.entries {
		if stored.expiresAt.Before(now) {
			delete(c.entries, key)
			c.evictions.Inc()
			c.rawEvictions++
			purged++
		}
	}
	return purged
}

func (c *Cache) evictEarliestLocked() {
	var victim string
	var earliest time.Time
	for key, stored := range c.entries {
		if victim == "" || stored.expiresAt.Before(earliest) {
			victim = key
			earliest = stored.expiresAt
		}
	}
	if victim != "" {
		delete(c.entries, victim)
		c.evictions.Inc()
		c.rawEvictions++
	}
}
