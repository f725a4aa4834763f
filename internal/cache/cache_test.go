package cache

import (
	"testing"
	"time"

	"github.com/nukk-pain/smpain-hr/internal/domain"
)

func result(digest string) *ParsedResult {
	return &ParsedResult{
		Report: domain.ProcessingReport{TotalRows: 1, ValidRows: 1},
		Digest: digest,
	}
}

func TestCacheKeyIsContentAddressed(t *testing.T) {
	a := Key([]byte("payroll-a"))
	b := Key([]byte("payroll-b"))

	if a == b {
		t.Fatalf("different content produced the same key")
	}
	if a != Key([]byte("payroll-a")) {
		t.Fatalf("identical content must produce identical keys")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256 key, got %q", a)
	}
}

func TestCacheHitAndMissAccounting(t *testing.T) {
	c := New(4, nil)
	payload := []byte("workbook")

	if _, ok := c.Get(payload); ok {
		t.Fatalf("empty cache cannot hit")
	}
	c.Put(payload, result("d1"), time.Minute)
	got, ok := c.Get(payload)
	if !ok || got.Digest != "d1" {
		t.Fatalf("expected cached result, got %+v ok=%v", got, ok)
	}

	stats := c.CacheStats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestCacheExpiresEntriesOnAccess(t *testing.T) {
	c := New(4, nil)
	current := time.Now()
	c.now = func() time.Time { return current }

	payload := []byte("workbook")
	c.Put(payload, result("d1"), 10*time.Minute)

	current = current.Add(11 * time.Minute)
	if _, ok := c.Get(payload); ok {
		t.Fatalf("expired entry must not be served")
	}

	stats := c.CacheStats()
	if stats.Entries != 0 || stats.Evictions != 1 {
		t.Fatalf("expected expiry eviction, got %+v", stats)
	}
}

func TestCacheEvictsEarliestExpiryUnderPressure(t *testing.T) {
	c := New(2, nil)
	current := time.Now()
	c.now = func() time.Time { return current }

	// "soon" expires before "late" even though it was stored second.
	c.Put([]byte("late"), result("late"), 30*time.Minute)
	c.Put([]byte("soon"), result("soon"), 5*time.Minute)

	c.Put([]byte("next"), result("next"), 30*time.Minute)

	if _, ok := c.Get([]byte("soon")); ok {
		t.Fatalf("entry closest to expiry should have been evicted")
	}
	if _, ok := c.Get([]byte("late")); !ok {
		t.Fatalf("entry furthest from expiry should have survived")
	}
	if _, ok := c.Get([]byte("next")); !ok {
		t.Fatalf("newly stored entry must be present")
	}
}

func TestCacheSweepPurgesExpired(t *testing.T) {
	c := New(8, nil)
	current := time.Now()
	c.now = func() time.Time { return current }

	c.Put([]byte("a"), result("a"), time.Minute)
	c.Put([]byte("b"), result("b"), time.Hour)

	current = current.Add(10 * time.Minute)
	if purged := c.Sweep(); purged != 1 {
		t.Fatalf("expected 1 purged entry, got %d", purged)
	}
	if stats := c.CacheStats(); stats.Entries != 1 {
		t.Fatalf("expected 1 surviving entry, got %+v", stats)
	}
}

func TestCacheOverwriteDoesNotEvict(t *testing.T) {
	c := New(1, nil)
	payload := []byte("workbook")

	c.Put(payload, result("v1"), time.Minute)
	c.Put(payload, result("v2"), time.Minute)

	got, ok := c.Get(payload)
	if !ok || got.Digest != "v2" {
		t.Fatalf("expected overwrite to win, got %+v", got)
	}
	if stats := c.CacheStats(); stats.Evictions != 0 {
		t.Fatalf("overwriting an existing key must not evict, got %+v", stats)
	}
}
