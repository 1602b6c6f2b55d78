package catalog

import (
	"path/filepath"
	"sync"
	"testing"
)

func TestSortStreams(t *testing.T) {
	streams := []ResolvedStream{
		{ID: "c", Season: 2, Episode: 1},
		{ID: "a", Season: 1, Episode: 2},
		{ID: "b", Season: 1, Episode: 1},
		{ID: "d", Season: 2, Episode: 3},
	}
	SortStreams(streams)
	want := []string{"b", "a", "c", "d"}
	for i, w := range want {
		if streams[i].ID != w {
			t.Fatalf("order[%d] = %s, want %s", i, streams[i].ID, w)
		}
	}
}

func TestCatalogAppendGroups(t *testing.T) {
	c := New()
	item := Item{ID: "https://x/dizi/a", Title: "A", Kind: KindSeries}
	c.Append(item, ResolvedStream{ID: "e1", StreamURL: "https://s/1.m3u8"})
	c.Append(item, ResolvedStream{ID: "e2", StreamURL: "https://s/2.m3u8"})
	c.Append(Item{ID: "https://x/film/b", Kind: KindMovie}, ResolvedStream{ID: "b", StreamURL: "https://s/b.m3u8"})

	groups := c.Snapshot()
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if len(groups[0].Streams) != 2 {
		t.Fatalf("first group streams = %d, want 2", len(groups[0].Streams))
	}
}

func TestCatalogAppendConcurrent(t *testing.T) {
	c := New()
	item := Item{ID: "https://x/dizi/a", Kind: KindSeries}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c.Append(item, ResolvedStream{ID: "e", Episode: n, StreamURL: "https://s/e.m3u8"})
		}(i)
	}
	wg.Wait()
	groups := c.Snapshot()
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	if len(groups[0].Streams) != 50 {
		t.Fatalf("streams = %d, want 50", len(groups[0].Streams))
	}
}

func TestCatalogSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	c := New()
	c.Append(
		Item{ID: "https://x/dizi/a", Title: "A", Kind: KindSeries},
		ResolvedStream{ID: "e1", Title: "1. Bölüm", StreamURL: "https://s/1.m3u8", Season: 1, Episode: 1},
	)
	if err := c.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := New()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	groups := loaded.Snapshot()
	if len(groups) != 1 || len(groups[0].Streams) != 1 {
		t.Fatalf("round trip lost data: %+v", groups)
	}
	if groups[0].Streams[0].Title != "1. Bölüm" {
		t.Fatalf("title = %q", groups[0].Streams[0].Title)
	}
}

func TestKind(t *testing.T) {
	if !KindMovie.Terminal() {
		t.Fatal("movie should be terminal")
	}
	if KindSeries.Terminal() || KindProgram.Terminal() {
		t.Fatal("series/program should not be terminal")
	}
	if Kind("channel").Valid() {
		t.Fatal("unknown kind should be invalid")
	}
}
