package kvstore

import (
	"testing"
	"time"
)

func TestMemorySetGetDelete(t *testing.T) {
	store := NewMemory()

	if err := store.Set("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set returned error: %v", err)
	}
	value, ok, err := store.Get("k")
	if err != nil || !ok || string(value) != "v" {
		t.Fatalf("get = %q, %v, %v", value, ok, err)
	}

	if err := store.Delete("k"); err != nil {
		t.Fatalf("delete returned error: %v", err)
	}
	if _, ok, _ := store.Get("k"); ok {
		t.Fatalf("deleted key still present")
	}
	// Deleting an absent key is a no-op.
	if err := store.Delete("k"); err != nil {
		t.Fatalf("deleting absent key returned error: %v", err)
	}
}

func TestMemoryExpiry(t *testing.T) {
	store := NewMemory()
	current := time.Now()
	store.now = func() time.Time { return current }

	store.Set("k", []byte("v"), time.Minute)
	current = current.Add(2 * time.Minute)

	if _, ok, _ := store.Get("k"); ok {
		t.Fatalf("expired key still served")
	}
}

func TestMemorySetNXFirstWriterWins(t *testing.T) {
	store := NewMemory()

	won, err := store.SetNX("k", []byte("first"), time.Minute)
	if err != nil || !won {
		t.Fatalf("first SetNX should win: %v, %v", won, err)
	}
	won, err = store.SetNX("k", []byte("second"), time.Minute)
	if err != nil || won {
		t.Fatalf("second SetNX should lose: %v, %v", won, err)
	}

	value, _, _ := store.Get("k")
	if string(value) != "first" {
		t.Fatalf("loser overwrote the winner: %q", value)
	}
}

func TestMemorySetNXReclaimsExpiredKey(t *testing.T) {
	store := NewMemory()
	current := time.Now()
	store.now = func() time.Time { return current }

	store.SetNX("k", []byte("old"), time.Minute)
	current = current.Add(2 * time.Minute)

	won, err := store.SetNX("k", []byte("new"), time.Minute)
	if err != nil || !won {
		t.Fatalf("SetNX should win over an expired key: %v, %v", won, err)
	}
}

func TestMemorySweepCountsPurged(t *testing.T) {
	store := NewMemory()
	current := time.Now()
	store.now = func() time.Time { return current }

	store.Set("a", []byte("1"), time.Minute)
	store.Set("b", []byte("2"), time.Hour)
	current = current.Add(10 * time.Minute)

	if purged := store.Sweep(); purged != 1 {
		t.Fatalf("expected 1 purged entry, got %d", purged)
	}
	if _, ok, _ := store.Get("b"); !ok {
		t.Fatalf("unexpired entry swept away")
	}
}
