package store

import (
	"path/filepath"
	"testing"

	"github.com/okiba/tstap/internal/treesitter"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGetMissThenHit(t *testing.T) {
	c := openTestCache(t)

	hash := HashText("export const a = 1;")
	if _, ok := c.Get("a.ts", hash); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	want := []treesitter.Export{{Name: "a", Pos: 13}}
	c.Put("a.ts", hash, want)

	got, ok := c.Get("a.ts", hash)
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if len(got) != 1 || got[0].Name != "a" || got[0].Pos != 13 {
		t.Errorf("got = %+v, want %+v", got, want)
	}
}

func TestChangedContentMisses(t *testing.T) {
	c := openTestCache(t)

	c.Put("a.ts", HashText("v1"), []treesitter.Export{{Name: "old"}})
	if _, ok := c.Get("a.ts", HashText("v2")); ok {
		t.Fatal("stale hash must miss")
	}
}

func TestPutEvictsOlderHashes(t *testing.T) {
	c := openTestCache(t)

	h1, h2 := HashText("v1"), HashText("v2")
	c.Put("a.ts", h1, []treesitter.Export{{Name: "old"}})
	c.Put("a.ts", h2, []treesitter.Export{{Name: "new"}})

	if _, ok := c.Get("a.ts", h1); ok {
		t.Error("older hash should be evicted")
	}
	if _, ok := c.Get("a.ts", h2); !ok {
		t.Error("latest hash should hit")
	}
}

func TestNilCacheIsAMiss(t *testing.T) {
	var c *Cache
	c.Put("a.ts", "h", nil)
	if _, ok := c.Get("a.ts", "h"); ok {
		t.Fatal("nil cache must miss")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close on nil: %v", err)
	}
}

func TestHashTextDistinguishesContent(t *testing.T) {
	if HashText("a") == HashText("b") {
		t.Fatal("hash collision on trivially different inputs")
	}
	if HashText("same") != HashText("same") {
		t.Fatal("hash not deterministic")
	}
}
