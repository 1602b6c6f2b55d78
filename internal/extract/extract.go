// Package extract pulls catalog items and episode references out of
// fetched listing pages. Each strategy is a pure function over a
// Document; strategies are tried in order and the first one that
// yields anything wins. An empty result is not an error, it only
// means the page shape did not match.
package extract

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/vodharvest/vod-harvest/internal/catalog"
	"github.com/vodharvest/vod-harvest/internal/fetch"
	"github.com/vodharvest/vod-harvest/internal/safeurl"
)

// ItemStrategy produces catalog items from a listing page.
type ItemStrategy struct {
	Name string
	Fn   func(doc *fetch.Document) []catalog.Item
}

// EpisodeStrategy produces episode references from a series page.
type EpisodeStrategy struct {
	Name string
	Fn   func(doc *fetch.Document) []catalog.EpisodeRef
}

// Items runs the strategies in order and returns the first non-empty
// result. An empty slice means no strategy matched the page.
func Items(doc *fetch.Document, strategies []ItemStrategy) []catalog.Item {
	for _, s := range strategies {
		if out := s.Fn(doc); len(out) > 0 {
			return out
		}
	}
	return nil
}

// Episodes runs the strategies in order and returns the first
// non-empty result.
func Episodes(doc *fetch.Document, strategies []EpisodeStrategy) []catalog.EpisodeRef {
	for _, s := range strategies {
		if out := s.Fn(doc); len(out) > 0 {
			return out
		}
	}
	return nil
}

// SelectorSpec describes where to find item fields inside a listing
// page. Item is the container selector; the remaining selectors are
// evaluated relative to each container. An empty Link means the
// container itself carries the href.
type SelectorSpec struct {
	Item  string
	Link  string
	Title string
	Image string
}

// Selector builds an item strategy from CSS selectors. URLs are
// absolutized against the document's final URL; containers without a
// usable link are skipped.
func Selector(source string, kind catalog.Kind, spec SelectorSpec) ItemStrategy {
	return ItemStrategy{
		Name: "selector",
		Fn: func(doc *fetch.Document) []catalog.Item {
			root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
			if err != nil {
				return nil
			}
			var items []catalog.Item
			root.Find(spec.Item).Each(func(_ int, sel *goquery.Selection) {
				link := sel
				if spec.Link != "" {
					link = sel.Find(spec.Link).First()
				}
				href, ok := link.Attr("href")
				if !ok || href == "" {
					return
				}
				u, err := safeurl.Absolutize(doc.FinalURL, href)
				if err != nil {
					return
				}
				it := catalog.Item{
					ID:        idFromURL(u),
					Title:     itemTitle(sel, spec.Title),
					ImageURL:  itemImage(doc.FinalURL, sel, spec.Image),
					DetailURL: u,
					Kind:      kind,
					Source:    source,
				}
				if it.ID == "" || it.Title == "" {
					return
				}
				items = append(items, it)
			})
			return items
		},
	}
}

// JSONLD builds an item strategy from schema.org ItemList blocks
// embedded in ld+json script tags.
func JSONLD(source string, kind catalog.Kind) ItemStrategy {
	return ItemStrategy{
		Name: "jsonld",
		Fn: func(doc *fetch.Document) []catalog.Item {
			root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
			if err != nil {
				return nil
			}
			var items []catalog.Item
			root.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
				var block struct {
					Type     string `json:"@type"`
					Elements []struct {
						URL   string `json:"url"`
						Name  string `json:"name"`
						Image string `json:"image"`
						Item  struct {
							URL   string `json:"url"`
							Name  string `json:"name"`
							Image string `json:"image"`
						} `json:"item"`
					} `json:"itemListElement"`
				}
				if err := json.Unmarshal([]byte(sel.Text()), &block); err != nil {
					return
				}
				if block.Type != "ItemList" {
					return
				}
				for _, el := range block.Elements {
					u, name, img := el.URL, el.Name, el.Image
					if u == "" {
						u, name, img = el.Item.URL, el.Item.Name, el.Item.Image
					}
					abs, err := safeurl.Absolutize(doc.FinalURL, u)
					if err != nil || name == "" {
						continue
					}
					items = append(items, catalog.Item{
						ID:        idFromURL(abs),
						Title:     name,
						ImageURL:  img,
						DetailURL: abs,
						Kind:      kind,
						Source:    source,
					})
				}
			})
			return items
		},
	}
}

// APIListSpec maps JSON API list responses onto items. List is a dot
// path to the array ("" when the body itself is the array); the field
// specs are dot paths within each element.
type APIListSpec struct {
	List  string
	ID    string
	Title string
	Image string
	URL   string
}

// APIList builds an item strategy over a JSON list endpoint.
func APIList(source string, kind catalog.Kind, spec APIListSpec) ItemStrategy {
	return ItemStrategy{
		Name: "apilist",
		Fn: func(doc *fetch.Document) []catalog.Item {
			var body any
			if err := doc.JSON(&body); err != nil {
				return nil
			}
			list := body
			if spec.List != "" {
				v, ok := LookupPath(body, spec.List)
				if !ok {
					return nil
				}
				list = v
			}
			arr, ok := list.([]any)
			if !ok {
				return nil
			}
			var items []catalog.Item
			for _, el := range arr {
				u := stringAt(el, spec.URL)
				abs, err := safeurl.Absolutize(doc.FinalURL, u)
				if err != nil {
					continue
				}
				it := catalog.Item{
					ID:        stringAt(el, spec.ID),
					Title:     stringAt(el, spec.Title),
					ImageURL:  stringAt(el, spec.Image),
					DetailURL: abs,
					Kind:      kind,
					Source:    source,
				}
				if it.ID == "" {
					it.ID = idFromURL(abs)
				}
				if it.ID == "" || it.Title == "" {
					continue
				}
				items = append(items, it)
			}
			return items
		},
	}
}

// EpisodeSelectorSpec describes how to lift episode links off a
// series page. SeasonEpisodeRE, when set, is applied to each episode
// URL and must expose two capture groups (season, episode); links it
// does not match fall back to season 1 with positional numbering.
type EpisodeSelectorSpec struct {
	Item            string
	Link            string
	Title           string
	Image           string
	SeasonEpisodeRE string
}

// EpisodeSelector builds an episode strategy from CSS selectors.
// References with a season below 1 are dropped.
func EpisodeSelector(parentID string, spec EpisodeSelectorSpec) EpisodeStrategy {
	var seRe *regexp.Regexp
	if spec.SeasonEpisodeRE != "" {
		seRe = regexp.MustCompile(spec.SeasonEpisodeRE)
	}
	return EpisodeStrategy{
		Name: "selector",
		Fn: func(doc *fetch.Document) []catalog.EpisodeRef {
			root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
			if err != nil {
				return nil
			}
			var refs []catalog.EpisodeRef
			pos := 0
			root.Find(spec.Item).Each(func(_ int, sel *goquery.Selection) {
				link := sel
				if spec.Link != "" {
					link = sel.Find(spec.Link).First()
				}
				href, ok := link.Attr("href")
				if !ok || href == "" {
					return
				}
				u, err := safeurl.Absolutize(doc.FinalURL, href)
				if err != nil {
					return
				}
				pos++
				season, episode := 1, pos
				if seRe != nil {
					if m := seRe.FindStringSubmatch(u); len(m) >= 3 {
						season, _ = strconv.Atoi(m[1])
						episode, _ = strconv.Atoi(m[2])
					}
				}
				if season < 1 || episode < 1 {
					return
				}
				refs = append(refs, catalog.EpisodeRef{
					ParentID: parentID,
					Season:   season,
					Episode:  episode,
					PageURL:  u,
					Title:    itemTitle(sel, spec.Title),
					ImageURL: itemImage(doc.FinalURL, sel, spec.Image),
				})
			})
			return refs
		},
	}
}

// LookupPath walks a decoded JSON value by a dot-separated path.
// Numeric segments index into arrays.
func LookupPath(v any, path string) (any, bool) {
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

func stringAt(v any, path string) string {
	if path == "" {
		return ""
	}
	got, ok := LookupPath(v, path)
	if !ok {
		return ""
	}
	switch s := got.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}

func itemTitle(sel *goquery.Selection, selector string) string {
	if selector != "" {
		if t := strings.TrimSpace(sel.Find(selector).First().Text()); t != "" {
			return t
		}
	}
	for _, fallback := range []string{"h3", "h2", ".title"} {
		if t := strings.TrimSpace(sel.Find(fallback).First().Text()); t != "" {
			return t
		}
	}
	if alt, ok := sel.Find("img").First().Attr("alt"); ok {
		return strings.TrimSpace(alt)
	}
	return ""
}

func itemImage(base string, sel *goquery.Selection, selector string) string {
	img := sel.Find("img").First()
	if selector != "" {
		img = sel.Find(selector).First()
	}
	src, ok := img.Attr("data-src")
	if !ok || src == "" {
		src, _ = img.Attr("src")
	}
	if src == "" {
		return ""
	}
	u, err := safeurl.Absolutize(base, src)
	if err != nil {
		return ""
	}
	return u
}

// idFromURL derives a stable item ID from the last meaningful path
// segment of a detail URL.
func idFromURL(u string) string {
	trimmed := strings.TrimRight(u, "/")
	if i := strings.Index(trimmed, "?"); i >= 0 {
		trimmed = trimmed[:i]
	}
	i := strings.LastIndexByte(trimmed, '/')
	if i < 0 || i == len(trimmed)-1 {
		return ""
	}
	seg := trimmed[i+1:]
	if strings.Contains(seg, ".") || seg == "" {
		return ""
	}
	return seg
}
