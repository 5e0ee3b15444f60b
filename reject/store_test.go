package reject

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xiaolou86/ckb/util"
)

func openTestStore(t *testing.T, capacity int, ttl time.Duration) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recent_reject.db")
	s, err := New(path, capacity, ttl)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func hashOf(b byte) util.Hash {
	var h util.Hash
	h[0] = b
	return h
}

func TestInsertAndContains(t *testing.T) {
	s := openTestStore(t, 10, time.Hour)
	h := hashOf(1)

	if s.Contains(h) {
		t.Fatal("expected miss before insert")
	}
	if err := s.Insert(h, "duplicated"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !s.Contains(h) {
		t.Fatal("expected hit after insert")
	}
	reason, ok := s.Reason(h)
	if !ok || reason != "duplicated" {
		t.Fatalf("Reason = %q, %v, want duplicated, true", reason, ok)
	}
}

func TestExpiry(t *testing.T) {
	s := openTestStore(t, 10, -time.Second)
	h := hashOf(2)
	if err := s.Insert(h, "stale"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if s.Contains(h) {
		t.Fatal("expected entry inserted with a past TTL to already read as expired")
	}
	removed, err := s.Sweep()
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
}

func TestEvictOverCapacity(t *testing.T) {
	s := openTestStore(t, 3, time.Hour)
	for i := byte(0); i < 5; i++ {
		if err := s.Insert(hashOf(i), "full"); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	live := 0
	for i := byte(0); i < 5; i++ {
		if s.Contains(hashOf(i)) {
			live++
		}
	}
	if live != 3 {
		t.Fatalf("live entries = %d, want 3 (capacity bound)", live)
	}
	// The earliest-inserted hashes should be the ones evicted.
	if s.Contains(hashOf(0)) || s.Contains(hashOf(1)) {
		t.Fatal("expected oldest entries evicted first")
	}
	if !s.Contains(hashOf(4)) {
		t.Fatal("expected most recent entry to survive eviction")
	}
}
