package streamcache_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/vodharvest/vod-harvest/internal/catalog"
	"github.com/vodharvest/vod-harvest/internal/streamcache"
)

func openCache(t *testing.T) *streamcache.Cache {
	t.Helper()
	c, err := streamcache.Open(filepath.Join(t.TempDir(), "streams.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPutGetRoundTrip(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()

	in := catalog.ResolvedStream{
		ID:         "kara-gun-s1e2",
		Title:      "Kara Gun 2. Bolum",
		StreamURL:  "https://cdn.example/kg/s1e2.m3u8",
		GroupLabel: "Kara Gun",
		ImageURL:   "https://cdn.example/kg.jpg",
		Season:     1,
		Episode:    2,
	}
	if err := c.Put(ctx, in); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := c.Get(ctx, in.ID, 0)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got != in {
		t.Fatalf("got %+v, want %+v", got, in)
	}
}

func TestGetMiss(t *testing.T) {
	c := openCache(t)
	_, ok, err := c.Get(context.Background(), "nope", 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected miss")
	}
}

func TestGetExpired(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()
	if err := c.Put(ctx, catalog.ResolvedStream{ID: "x", StreamURL: "https://s/x"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "x", time.Millisecond); ok {
		t.Fatal("entry past ttl should miss")
	}
	if _, ok, _ := c.Get(ctx, "x", time.Hour); !ok {
		t.Fatal("entry inside ttl should hit")
	}
}

func TestPutUpsert(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()
	c.Put(ctx, catalog.ResolvedStream{ID: "x", StreamURL: "https://s/old"})
	c.Put(ctx, catalog.ResolvedStream{ID: "x", StreamURL: "https://s/new"})
	got, ok, err := c.Get(ctx, "x", 0)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.StreamURL != "https://s/new" {
		t.Fatalf("stream = %q, want the upserted URL", got.StreamURL)
	}
}

func TestPrune(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()
	c.Put(ctx, catalog.ResolvedStream{ID: "old", StreamURL: "https://s/old"})
	time.Sleep(20 * time.Millisecond)
	n, err := c.Prune(ctx, time.Millisecond)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned = %d, want 1", n)
	}
	if _, ok, _ := c.Get(ctx, "old", 0); ok {
		t.Fatal("pruned entry still present")
	}
}
