package kvstore

import (
	"testing"
	"time"
)

func openTestBadger(t *testing.T) *Badger {
	t.Helper()
	store, err := OpenBadger(BadgerConfig{InMemory: true}, "test")
	if err != nil {
		t.Fatalf("failed to open in-memory badger: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerSetGetDelete(t *testing.T) {
	store := openTestBadger(t)

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
}

func TestBadgerSetNXFirstWriterWins(t *testing.T) {
	store := openTestBadger(t)

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

func TestBadgerPrefixesIsolateNamespaces(t *testing.T) {
	sessions := openTestBadger(t)
	idempotency := sessions.WithPrefix("idem")

	if err := sessions.Set("shared", []byte("session"), time.Minute); err != nil {
		t.Fatalf("set returned error: %v", err)
	}
	if err := idempotency.Set("shared", []byte("record"), time.Minute); err != nil {
		t.Fatalf("set returned error: %v", err)
	}

	sessionValue, _, _ := sessions.Get("shared")
	idemValue, _, _ := idempotency.Get("shared")
	if string(sessionValue) != "session" || string(idemValue) != "record" {
		t.Fatalf("namespaces bled into each other: %q / %q", sessionValue, idemValue)
	}

	if err := sessions.Delete("shared"); err != nil {
		t.Fatalf("delete returned error: %v", err)
	}
	if _, ok, _ := idempotency.Get("shared"); !ok {
		t.Fatalf("delete in one namespace removed the other's key")
	}
}
