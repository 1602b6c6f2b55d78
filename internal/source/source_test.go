package source_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vodharvest/vod-harvest/internal/catalog"
	"github.com/vodharvest/vod-harvest/internal/fetch"
	"github.com/vodharvest/vod-harvest/internal/paginate"
	"github.com/vodharvest/vod-harvest/internal/source"
)

const goodConfig = `{
  "sources": [
    {
      "name": "kanal-dizi",
      "catalog_url": "https://vod.example/diziler",
      "kind": "series",
      "pagination": {"param": "page", "start": 1, "page_size": 24},
      "headers": {"Referer": "https://vod.example/"},
      "items": [
        {"type": "selector", "item": "div.card", "link": "a", "title": "h3"},
        {"type": "jsonld"}
      ],
      "episodes": {
        "url_template": "%s/bolumler",
        "pagination": {"param": "page", "start": 1},
        "strategies": [
          {"item": "div.ep", "link": "a", "season_episode_re": "(\\d+)-sezon/(\\d+)-bolum"}
        ]
      },
      "resolve": [
        {"type": "attr_json", "selector": "div.player", "attr": "data-media", "path": "media.m3u8.0.src"},
        {"type": "regex", "pattern": "\"Path\":\"([^\"]+)\""}
      ],
      "deny_hosts": ["www.dailymotion.com"]
    },
    {
      "name": "kanal-film",
      "catalog_url": "https://vod.example/filmler",
      "kind": "movie",
      "pagination": {"style": "offset", "param": "skip", "page_size": 20},
      "items": [{"type": "apilist", "list": "data", "id": "slug", "title": "title", "url": "href"}],
      "resolve": [{"type": "template", "pattern": "imdb\\.com/title/(tt\\d+)", "template": "https://player.example/%s"}]
    }
  ]
}`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	sources, err := source.LoadFile(writeConfig(t, goodConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(sources))
	}
	s := sources[0]
	if s.Name != "kanal-dizi" || s.Kind != catalog.KindSeries {
		t.Errorf("first = %q/%v", s.Name, s.Kind)
	}
	if got := len(s.ItemStrategies()); got != 2 {
		t.Errorf("item strategies = %d, want 2", got)
	}
	if got := len(s.EpisodeStrategies("parent")); got != 1 {
		t.Errorf("episode strategies = %d, want 1", got)
	}
	if r := s.Resolver(nil, time.Second); r == nil {
		t.Error("resolver is nil")
	}
}

func TestLoadFileRejectsUnknownField(t *testing.T) {
	bad := strings.Replace(goodConfig, `"deny_hosts"`, `"deny_hostz"`, 1)
	if _, err := source.LoadFile(writeConfig(t, bad)); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestLoadFileRejectsDuplicateNames(t *testing.T) {
	dup := strings.Replace(goodConfig, `"kanal-film"`, `"kanal-dizi"`, 1)
	if _, err := source.LoadFile(writeConfig(t, dup)); err == nil {
		t.Fatal("duplicate name accepted")
	}
}

func TestValidate(t *testing.T) {
	base := func() source.Source {
		return source.Source{
			Name:       "s",
			CatalogURL: "https://vod.example/list",
			Kind:       catalog.KindMovie,
			Items:      []source.ItemStrategySpec{{Type: "jsonld"}},
			Resolve:    []source.ResolveStrategySpec{{Type: "regex", Pattern: `x(y)`}},
		}
	}

	valid := base()
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid source rejected: %v", err)
	}

	cases := map[string]func(*source.Source){
		"missing name":        func(s *source.Source) { s.Name = "" },
		"bad catalog url":     func(s *source.Source) { s.CatalogURL = "ftp://x" },
		"bad kind":            func(s *source.Source) { s.Kind = "podcast" },
		"no items":            func(s *source.Source) { s.Items = nil },
		"unknown item type":   func(s *source.Source) { s.Items[0].Type = "xpath" },
		"no resolve":          func(s *source.Source) { s.Resolve = nil },
		"bad regex":           func(s *source.Source) { s.Resolve[0].Pattern = "([" },
		"series w/o episodes": func(s *source.Source) { s.Kind = catalog.KindSeries },
		"unknown pagination style": func(s *source.Source) {
			s.Pagination.Style = "scroll"
		},
		"cursor w/o extractor": func(s *source.Source) {
			s.Pagination.Style = "cursor"
		},
		"cursor with both extractors": func(s *source.Source) {
			s.Pagination = source.PaginationSpec{Style: "cursor", CursorPath: "next", CursorPattern: `next="([^"]+)"`}
		},
		"cursor pattern w/o group": func(s *source.Source) {
			s.Pagination = source.PaginationSpec{Style: "cursor", CursorPattern: `next=\w+`}
		},
		"cursor path w/o cursor style": func(s *source.Source) {
			s.Pagination.CursorPath = "next"
		},
	}
	for name, mutate := range cases {
		s := base()
		mutate(&s)
		if err := s.Validate(); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}

func TestWalkerConfigDefaults(t *testing.T) {
	sources, err := source.LoadFile(writeConfig(t, goodConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := sources[0].WalkerConfig(5*time.Second, 50)
	if cfg.URL != "https://vod.example/diziler" || cfg.PageSize != 24 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.MaxPages != 50 {
		t.Errorf("max pages = %d, want fallback 50", cfg.MaxPages)
	}
	if cfg.Headers["Referer"] == "" {
		t.Error("headers not carried")
	}

	offset := sources[1].WalkerConfig(time.Second, 0)
	if offset.Style != paginate.StyleOffset || offset.Param != "skip" {
		t.Errorf("offset cfg = %+v", offset)
	}
}

func TestWalkerConfigCursor(t *testing.T) {
	s := source.Source{
		Name:       "api",
		CatalogURL: "https://vod.example/api/list",
		Kind:       catalog.KindMovie,
		Pagination: source.PaginationSpec{Style: "cursor", Param: "after", CursorPath: "meta.next"},
		Items:      []source.ItemStrategySpec{{Type: "apilist", URL: "href"}},
		Resolve:    []source.ResolveStrategySpec{{Type: "regex", Pattern: `x(y)`}},
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	cfg := s.WalkerConfig(time.Second, 0)
	if cfg.Style != paginate.StyleCursor || cfg.NextCursor == nil {
		t.Fatalf("cfg = %+v", cfg)
	}
	doc := &fetch.Document{Body: []byte(`{"meta": {"next": "tok-9"}}`)}
	if tok, ok := cfg.NextCursor(doc); !ok || tok != "tok-9" {
		t.Errorf("cursor = %q/%v, want tok-9", tok, ok)
	}
	if _, ok := cfg.NextCursor(&fetch.Document{Body: []byte(`{"meta": {}}`)}); ok {
		t.Error("cursor found on final page")
	}

	s.Pagination = source.PaginationSpec{Style: "cursor", CursorPattern: `data-next="([^"]+)"`}
	cfg = s.WalkerConfig(time.Second, 0)
	doc = &fetch.Document{Body: []byte(`<a data-next="p2">more</a>`)}
	if tok, ok := cfg.NextCursor(doc); !ok || tok != "p2" {
		t.Errorf("pattern cursor = %q/%v, want p2", tok, ok)
	}
}

func TestEpisodeWalkerConfig(t *testing.T) {
	sources, err := source.LoadFile(writeConfig(t, goodConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	item := catalog.Item{ID: "kara-gun", DetailURL: "https://vod.example/dizi/kara-gun"}
	cfg := sources[0].EpisodeWalkerConfig(item, time.Second, 10)
	if cfg.URL != "https://vod.example/dizi/kara-gun/bolumler" {
		t.Errorf("url = %q", cfg.URL)
	}

	// movie source has no episode pagination: single page
	cfg = sources[1].EpisodeWalkerConfig(item, time.Second, 10)
	if cfg.URL != item.DetailURL || cfg.MaxPages != 1 {
		t.Errorf("cfg = %+v", cfg)
	}
}
