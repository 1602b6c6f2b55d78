package extract_test

import (
	"testing"

	"github.com/vodharvest/vod-harvest/internal/catalog"
	"github.com/vodharvest/vod-harvest/internal/extract"
	"github.com/vodharvest/vod-harvest/internal/fetch"
)

func doc(body string) *fetch.Document {
	return &fetch.Document{Body: []byte(body), FinalURL: "https://vod.example/listing"}
}

const listingHTML = `<html><body>
<div class="card"><a href="/dizi/kara-gun"><img data-src="/img/kara-gun.jpg" alt="Kara Gun"><h3>Kara Gun</h3></a></div>
<div class="card"><a href="/dizi/mavi-ruzgar"><img src="/img/mavi-ruzgar.jpg" alt="Mavi Ruzgar"><h3>Mavi Ruzgar</h3></a></div>
<div class="card"><a href=""><h3>broken</h3></a></div>
</body></html>`

func TestSelectorItems(t *testing.T) {
	s := extract.Selector("demo", catalog.KindSeries, extract.SelectorSpec{
		Item: "div.card",
		Link: "a",
	})
	items := s.Fn(doc(listingHTML))
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	first := items[0]
	if first.ID != "kara-gun" {
		t.Errorf("id = %q, want kara-gun", first.ID)
	}
	if first.Title != "Kara Gun" {
		t.Errorf("title = %q", first.Title)
	}
	if first.DetailURL != "https://vod.example/dizi/kara-gun" {
		t.Errorf("detail = %q", first.DetailURL)
	}
	if first.ImageURL != "https://vod.example/img/kara-gun.jpg" {
		t.Errorf("image = %q (data-src should win)", first.ImageURL)
	}
	if first.Kind != catalog.KindSeries || first.Source != "demo" {
		t.Errorf("kind/source = %v/%q", first.Kind, first.Source)
	}
}

func TestSelectorNoMatchIsEmptyNotError(t *testing.T) {
	s := extract.Selector("demo", catalog.KindMovie, extract.SelectorSpec{Item: "div.nothing"})
	if items := s.Fn(doc(listingHTML)); len(items) != 0 {
		t.Fatalf("items = %d, want 0", len(items))
	}
}

func TestItemsChainFirstNonEmptyWins(t *testing.T) {
	var secondRan bool
	chain := []extract.ItemStrategy{
		{Name: "miss", Fn: func(*fetch.Document) []catalog.Item { return nil }},
		{Name: "hit", Fn: func(*fetch.Document) []catalog.Item {
			return []catalog.Item{{ID: "a", Title: "A", Kind: catalog.KindMovie}}
		}},
		{Name: "late", Fn: func(*fetch.Document) []catalog.Item {
			secondRan = true
			return []catalog.Item{{ID: "b", Title: "B", Kind: catalog.KindMovie}}
		}},
	}
	items := extract.Items(doc(""), chain)
	if len(items) != 1 || items[0].ID != "a" {
		t.Fatalf("items = %v", items)
	}
	if secondRan {
		t.Fatal("strategy after the first hit ran")
	}
}

func TestJSONLDItems(t *testing.T) {
	body := `<html><head><script type="application/ld+json">
{"@type":"ItemList","itemListElement":[
 {"item":{"url":"/dizi/ilk","name":"Ilk Dizi","image":"https://cdn.example/ilk.jpg"}},
 {"item":{"url":"/dizi/ikinci","name":"Ikinci Dizi"}}
]}</script></head></html>`
	s := extract.JSONLD("demo", catalog.KindSeries)
	items := s.Fn(doc(body))
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].ID != "ilk" || items[0].ImageURL != "https://cdn.example/ilk.jpg" {
		t.Errorf("first = %+v", items[0])
	}
}

func TestAPIListItems(t *testing.T) {
	body := `{"data":{"results":[
 {"slug":"film-bir","title":"Film Bir","poster":"/p/1.jpg","href":"/film/film-bir"},
 {"slug":"film-iki","title":"Film Iki","poster":"/p/2.jpg","href":"/film/film-iki"}
]}}`
	s := extract.APIList("demo", catalog.KindMovie, extract.APIListSpec{
		List:  "data.results",
		ID:    "slug",
		Title: "title",
		Image: "poster",
		URL:   "href",
	})
	items := s.Fn(doc(body))
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[1].ID != "film-iki" || items[1].DetailURL != "https://vod.example/film/film-iki" {
		t.Errorf("second = %+v", items[1])
	}
}

const seriesHTML = `<html><body>
<div class="ep"><a href="/dizi/kara-gun/1-sezon/2-bolum"><h3>2. Bolum</h3></a></div>
<div class="ep"><a href="/dizi/kara-gun/1-sezon/1-bolum"><h3>1. Bolum</h3></a></div>
<div class="ep"><a href="/dizi/kara-gun/0-sezon/9-bolum"><h3>Fragman</h3></a></div>
</body></html>`

func TestEpisodeSelector(t *testing.T) {
	s := extract.EpisodeSelector("kara-gun", extract.EpisodeSelectorSpec{
		Item:            "div.ep",
		Link:            "a",
		SeasonEpisodeRE: `(\d+)-sezon/(\d+)-bolum`,
	})
	refs := s.Fn(doc(seriesHTML))
	if len(refs) != 2 {
		t.Fatalf("refs = %d, want 2 (season 0 dropped)", len(refs))
	}
	if refs[0].Season != 1 || refs[0].Episode != 2 {
		t.Errorf("first = S%dE%d, want S1E2", refs[0].Season, refs[0].Episode)
	}
	if refs[0].ParentID != "kara-gun" {
		t.Errorf("parent = %q", refs[0].ParentID)
	}
}

func TestEpisodeSelectorPositionalFallback(t *testing.T) {
	body := `<html><body>
<div class="ep"><a href="/izle/abc"><h3>Bolum A</h3></a></div>
<div class="ep"><a href="/izle/def"><h3>Bolum B</h3></a></div>
</body></html>`
	s := extract.EpisodeSelector("p", extract.EpisodeSelectorSpec{Item: "div.ep", Link: "a"})
	refs := s.Fn(doc(body))
	if len(refs) != 2 {
		t.Fatalf("refs = %d, want 2", len(refs))
	}
	if refs[0].Season != 1 || refs[0].Episode != 1 || refs[1].Episode != 2 {
		t.Errorf("numbering = S%dE%d, S%dE%d", refs[0].Season, refs[0].Episode, refs[1].Season, refs[1].Episode)
	}
}

func TestLookupPath(t *testing.T) {
	v := map[string]any{
		"media": map[string]any{
			"m3u8": []any{map[string]any{"src": "https://cdn.example/x.m3u8"}},
		},
	}
	got, ok := extract.LookupPath(v, "media.m3u8.0.src")
	if !ok || got != "https://cdn.example/x.m3u8" {
		t.Fatalf("got %v ok=%v", got, ok)
	}
	if _, ok := extract.LookupPath(v, "media.missing"); ok {
		t.Fatal("expected miss")
	}
}
