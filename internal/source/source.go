// Package source holds the declarative description of one remote
// catalog: where its listing lives, how it paginates, how items and
// episodes are extracted, and which resolution chain turns a watch
// page into a stream URL. Definitions load from a JSON file and
// compile into the strategy types the pipeline runs.
package source

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/vodharvest/vod-harvest/internal/catalog"
	"github.com/vodharvest/vod-harvest/internal/extract"
	"github.com/vodharvest/vod-harvest/internal/fetch"
	"github.com/vodharvest/vod-harvest/internal/paginate"
	"github.com/vodharvest/vod-harvest/internal/safeurl"
)

// PaginationSpec mirrors paginate.Config in config-file form. For the
// cursor style exactly one of CursorPath (dot path into a JSON
// response) or CursorPattern (regex with one capture group over the
// raw body) names where the continuation token lives.
type PaginationSpec struct {
	Style         string            `json:"style,omitempty"`
	Param         string            `json:"param,omitempty"`
	Start         int               `json:"start,omitempty"`
	PageSize      int               `json:"page_size,omitempty"`
	MaxPages      int               `json:"max_pages,omitempty"`
	Form          map[string]string `json:"form,omitempty"`
	CursorPath    string            `json:"cursor_path,omitempty"`
	CursorPattern string            `json:"cursor_pattern,omitempty"`
}

func (p *PaginationSpec) validate() error {
	switch paginate.Style(p.Style) {
	case "", paginate.StylePage, paginate.StyleOffset:
		if p.CursorPath != "" || p.CursorPattern != "" {
			return fmt.Errorf("cursor_path/cursor_pattern need style %q", paginate.StyleCursor)
		}
		return nil
	case paginate.StyleCursor:
	default:
		return fmt.Errorf("unknown pagination style %q", p.Style)
	}
	if (p.CursorPath == "") == (p.CursorPattern == "") {
		return fmt.Errorf("cursor style needs exactly one of cursor_path or cursor_pattern")
	}
	if p.CursorPattern != "" {
		re, err := regexp.Compile(p.CursorPattern)
		if err != nil {
			return fmt.Errorf("bad cursor_pattern: %w", err)
		}
		if re.NumSubexp() < 1 {
			return fmt.Errorf("cursor_pattern needs one capture group")
		}
	}
	return nil
}

// ItemStrategySpec selects one item extraction strategy. Type is one
// of "selector", "jsonld" or "apilist"; the remaining fields feed the
// matching constructor.
type ItemStrategySpec struct {
	Type  string `json:"type"`
	Item  string `json:"item,omitempty"`
	Link  string `json:"link,omitempty"`
	Title string `json:"title,omitempty"`
	Image string `json:"image,omitempty"`
	List  string `json:"list,omitempty"`
	ID    string `json:"id,omitempty"`
	URL   string `json:"url,omitempty"`
}

// EpisodeStrategySpec selects one episode extraction strategy.
type EpisodeStrategySpec struct {
	Item            string `json:"item"`
	Link            string `json:"link,omitempty"`
	Title           string `json:"title,omitempty"`
	Image           string `json:"image,omitempty"`
	SeasonEpisodeRE string `json:"season_episode_re,omitempty"`
}

// EpisodeSpec describes how a series item expands into episodes.
// URLTemplate, when set, must contain one %s verb filled with the
// item's detail URL; otherwise the detail URL is fetched directly.
type EpisodeSpec struct {
	URLTemplate string                `json:"url_template,omitempty"`
	Pagination  *PaginationSpec       `json:"pagination,omitempty"`
	Strategies  []EpisodeStrategySpec `json:"strategies"`
}

// ResolveStrategySpec selects one resolution strategy. Type is one of
// "regex", "attr_json", "media_api" or "template".
type ResolveStrategySpec struct {
	Type        string   `json:"type"`
	Name        string   `json:"name,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
	Selector    string   `json:"selector,omitempty"`
	Attr        string   `json:"attr,omitempty"`
	Path        string   `json:"path,omitempty"`
	APIURL      string   `json:"api_url,omitempty"`
	TypePath    string   `json:"type_path,omitempty"`
	RejectTypes []string `json:"reject_types,omitempty"`
	Template    string   `json:"template,omitempty"`
}

// Source is one remote catalog definition.
type Source struct {
	Name       string                `json:"name"`
	CatalogURL string                `json:"catalog_url"`
	Kind       catalog.Kind          `json:"kind"`
	Pagination PaginationSpec        `json:"pagination"`
	Headers    map[string]string     `json:"headers,omitempty"`
	Items      []ItemStrategySpec    `json:"items"`
	Episodes   *EpisodeSpec          `json:"episodes,omitempty"`
	Resolve    []ResolveStrategySpec `json:"resolve"`
	DenyHosts  []string              `json:"deny_hosts,omitempty"`
}

// LoadFile reads source definitions from a JSON file. Unknown fields
// are rejected so typos in hand-written configs fail loudly.
func LoadFile(path string) ([]Source, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("missing sources path")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var file struct {
		Sources []Source `json:"sources"`
	}
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(file.Sources) == 0 {
		return nil, fmt.Errorf("%s: no sources configured", path)
	}
	seen := map[string]struct{}{}
	for i := range file.Sources {
		s := &file.Sources[i]
		s.Name = strings.TrimSpace(s.Name)
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("%s: source %d: %w", path, i, err)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate source name %q", path, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return file.Sources, nil
}

// Validate checks one definition for the mistakes a hand-written
// config is likely to contain.
func (s *Source) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("missing name")
	}
	if !safeurl.IsHTTPOrHTTPS(s.CatalogURL) {
		return fmt.Errorf("%s: catalog_url %q is not http(s)", s.Name, s.CatalogURL)
	}
	if !s.Kind.Valid() {
		return fmt.Errorf("%s: unknown kind %q", s.Name, s.Kind)
	}
	if err := s.Pagination.validate(); err != nil {
		return fmt.Errorf("%s: pagination: %w", s.Name, err)
	}
	if len(s.Items) == 0 {
		return fmt.Errorf("%s: no item strategies", s.Name)
	}
	for i, spec := range s.Items {
		switch spec.Type {
		case "selector":
			if spec.Item == "" {
				return fmt.Errorf("%s: items[%d]: selector needs item", s.Name, i)
			}
		case "jsonld":
		case "apilist":
			if spec.URL == "" {
				return fmt.Errorf("%s: items[%d]: apilist needs url", s.Name, i)
			}
		default:
			return fmt.Errorf("%s: items[%d]: unknown type %q", s.Name, i, spec.Type)
		}
	}
	if s.Kind == catalog.KindSeries || s.Kind == catalog.KindProgram {
		if s.Episodes == nil || len(s.Episodes.Strategies) == 0 {
			return fmt.Errorf("%s: kind %s needs episode strategies", s.Name, s.Kind)
		}
		if t := s.Episodes.URLTemplate; t != "" && strings.Count(t, "%s") != 1 {
			return fmt.Errorf("%s: episodes.url_template needs exactly one %%s", s.Name)
		}
		if s.Episodes.Pagination != nil {
			if err := s.Episodes.Pagination.validate(); err != nil {
				return fmt.Errorf("%s: episodes.pagination: %w", s.Name, err)
			}
		}
		for i, spec := range s.Episodes.Strategies {
			if spec.Item == "" {
				return fmt.Errorf("%s: episodes.strategies[%d]: needs item", s.Name, i)
			}
			if spec.SeasonEpisodeRE != "" {
				if _, err := regexp.Compile(spec.SeasonEpisodeRE); err != nil {
					return fmt.Errorf("%s: episodes.strategies[%d]: bad season_episode_re: %w", s.Name, i, err)
				}
			}
		}
	}
	if len(s.Resolve) == 0 {
		return fmt.Errorf("%s: no resolve strategies", s.Name)
	}
	for i, spec := range s.Resolve {
		switch spec.Type {
		case "regex":
			if spec.Pattern == "" {
				return fmt.Errorf("%s: resolve[%d]: regex needs pattern", s.Name, i)
			}
		case "attr_json":
			if spec.Selector == "" || spec.Attr == "" || spec.Path == "" {
				return fmt.Errorf("%s: resolve[%d]: attr_json needs selector, attr and path", s.Name, i)
			}
		case "media_api":
			if spec.Pattern == "" || spec.APIURL == "" || spec.Path == "" {
				return fmt.Errorf("%s: resolve[%d]: media_api needs pattern, api_url and path", s.Name, i)
			}
			if strings.Count(spec.APIURL, "%s") != 1 {
				return fmt.Errorf("%s: resolve[%d]: api_url needs exactly one %%s", s.Name, i)
			}
		case "template":
			if spec.Pattern == "" || spec.Template == "" {
				return fmt.Errorf("%s: resolve[%d]: template needs pattern and template", s.Name, i)
			}
			if strings.Count(spec.Template, "%s") != 1 {
				return fmt.Errorf("%s: resolve[%d]: template needs exactly one %%s", s.Name, i)
			}
		default:
			return fmt.Errorf("%s: resolve[%d]: unknown type %q", s.Name, i, spec.Type)
		}
		if spec.Pattern != "" {
			if _, err := regexp.Compile(spec.Pattern); err != nil {
				return fmt.Errorf("%s: resolve[%d]: bad pattern: %w", s.Name, i, err)
			}
		}
	}
	return nil
}

// WalkerConfig compiles the catalog pagination settings. maxPages
// caps the walk when the definition sets no cap of its own.
func (s *Source) WalkerConfig(timeout time.Duration, maxPages int) paginate.Config {
	return walkerConfig(s.CatalogURL, s.Pagination, s.Headers, timeout, maxPages)
}

// EpisodeWalkerConfig compiles the episode-page pagination settings
// for one series item.
func (s *Source) EpisodeWalkerConfig(item catalog.Item, timeout time.Duration, maxPages int) paginate.Config {
	pageURL := item.DetailURL
	if s.Episodes != nil && s.Episodes.URLTemplate != "" {
		pageURL = fmt.Sprintf(s.Episodes.URLTemplate, item.DetailURL)
	}
	var p PaginationSpec
	if s.Episodes != nil && s.Episodes.Pagination != nil {
		p = *s.Episodes.Pagination
	} else {
		// single page, no parameter churn
		p = PaginationSpec{MaxPages: 1}
	}
	return walkerConfig(pageURL, p, s.Headers, timeout, maxPages)
}

func walkerConfig(pageURL string, p PaginationSpec, headers map[string]string, timeout time.Duration, maxPages int) paginate.Config {
	cfg := paginate.Config{
		URL:      pageURL,
		Style:    paginate.Style(p.Style),
		Param:    p.Param,
		Start:    p.Start,
		PageSize: p.PageSize,
		MaxPages: p.MaxPages,
		Headers:  headers,
		Timeout:  timeout,
	}
	if cfg.MaxPages == 0 {
		cfg.MaxPages = maxPages
	}
	if len(p.Form) > 0 {
		form := make(map[string][]string, len(p.Form))
		for k, v := range p.Form {
			form[k] = []string{v}
		}
		cfg.Form = form
	}
	if cfg.Style == paginate.StyleCursor {
		cfg.NextCursor = nextCursor(p)
	}
	return cfg
}

// nextCursor compiles the continuation-token extractor for a cursor
// walk. The pattern variant runs over the raw body, the path variant
// over the decoded JSON response.
func nextCursor(p PaginationSpec) func(*fetch.Document) (string, bool) {
	if p.CursorPattern != "" {
		re := regexp.MustCompile(p.CursorPattern)
		return func(doc *fetch.Document) (string, bool) {
			m := re.FindSubmatch(doc.Body)
			if len(m) < 2 || len(m[1]) == 0 {
				return "", false
			}
			return string(m[1]), true
		}
	}
	return func(doc *fetch.Document) (string, bool) {
		var v any
		if doc.JSON(&v) != nil {
			return "", false
		}
		got, ok := extract.LookupPath(v, p.CursorPath)
		if !ok {
			return "", false
		}
		token, _ := got.(string)
		return token, token != ""
	}
}
