package sink_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vodharvest/vod-harvest/internal/catalog"
	"github.com/vodharvest/vod-harvest/internal/sink"
)

func TestDirSinkWritesGroupFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := sink.NewDir(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	item := catalog.Item{ID: "kara-gun", Title: "Kara Gün", Kind: catalog.KindSeries, Source: "demo"}
	// out of order on purpose, Close must sort by season/episode
	s.Emit(item, catalog.ResolvedStream{
		ID: "kara-gun-s1e2", Title: "Kara Gün 2. Bölüm",
		StreamURL: "https://cdn.example/kg/e2.m3u8", GroupLabel: "Kara Gün",
		ImageURL: "https://cdn.example/kg.jpg", Season: 1, Episode: 2,
	})
	s.Emit(item, catalog.ResolvedStream{
		ID: "kara-gun-s1e1", Title: "Kara Gün 1. Bölüm",
		StreamURL: "https://cdn.example/kg/e1.m3u8", GroupLabel: "Kara Gün",
		Season: 1, Episode: 1,
	})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "kara-gun.json"))
	if err != nil {
		t.Fatalf("group json: %v", err)
	}
	var g catalog.Group
	if err := json.Unmarshal(raw, &g); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(g.Streams) != 2 || g.Streams[0].Episode != 1 {
		t.Fatalf("streams out of order: %+v", g.Streams)
	}

	m3u, err := os.ReadFile(filepath.Join(dir, "kara-gun.m3u"))
	if err != nil {
		t.Fatalf("group m3u: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(m3u)), "\n")
	if lines[0] != "#EXTM3U" {
		t.Errorf("header = %q", lines[0])
	}
	want := `#EXTINF:-1 tvg-logo="" group-title="Kara Gün",Kara Gün 1. Bölüm`
	if lines[1] != want {
		t.Errorf("extinf = %q, want %q", lines[1], want)
	}
	if lines[2] != "https://cdn.example/kg/e1.m3u8" {
		t.Errorf("url = %q", lines[2])
	}
}

func TestDirSinkCombinedOutputs(t *testing.T) {
	dir := t.TempDir()
	s, err := sink.NewDir(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Emit(catalog.Item{ID: "zebra", Title: "Zebra", Kind: catalog.KindMovie},
		catalog.ResolvedStream{ID: "zebra", Title: "Zebra", StreamURL: "https://s/z.m3u8"})
	s.Emit(catalog.Item{ID: "anka", Title: "Anka", Kind: catalog.KindMovie},
		catalog.ResolvedStream{ID: "anka", Title: "Anka", StreamURL: "https://s/a.m3u8"})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	all, err := os.ReadFile(filepath.Join(dir, "all.m3u"))
	if err != nil {
		t.Fatalf("all.m3u: %v", err)
	}
	if ia, iz := strings.Index(string(all), "Anka"), strings.Index(string(all), "Zebra"); ia < 0 || iz < 0 || ia > iz {
		t.Errorf("combined playlist not title-sorted:\n%s", all)
	}

	var combined struct {
		Groups []catalog.Group `json:"groups"`
	}
	raw, err := os.ReadFile(filepath.Join(dir, "catalog.json"))
	if err != nil {
		t.Fatalf("catalog.json: %v", err)
	}
	if err := json.Unmarshal(raw, &combined); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(combined.Groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(combined.Groups))
	}

	// no temp files left behind
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestMulti(t *testing.T) {
	dir := t.TempDir()
	ds, err := sink.NewDir(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	cs := sink.NewCatalog(filepath.Join(dir, "state", "catalog.json"))
	m := sink.Multi{ds, cs}

	m.Emit(catalog.Item{ID: "a", Title: "A", Kind: catalog.KindMovie},
		catalog.ResolvedStream{ID: "a", Title: "A", StreamURL: "https://s/a"})
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if cs.Catalog.Len() != 1 {
		t.Errorf("catalog len = %d, want 1", cs.Catalog.Len())
	}
	if _, err := os.Stat(filepath.Join(dir, "state", "catalog.json")); err != nil {
		t.Errorf("saved catalog missing: %v", err)
	}
}
