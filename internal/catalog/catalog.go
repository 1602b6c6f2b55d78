// Package catalog defines the data model shared by the harvest pipeline:
// catalog items discovered on listing pages, episode references enumerated
// beneath series items, and the resolved streams that reach the output sink.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Kind classifies a catalog item. Movies are terminal; series and programs
// carry episode listings that are enumerated separately.
type Kind string

const (
	KindMovie   Kind = "movie"
	KindSeries  Kind = "series"
	KindProgram Kind = "program"
)

// Terminal reports whether items of this kind resolve directly (no episode
// enumeration).
func (k Kind) Terminal() bool { return k == KindMovie }

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindMovie || k == KindSeries || k == KindProgram
}

// Item is one entry discovered on a catalog listing page.
// ID is the canonical detail URL and is the dedup identity: it must come out
// identical for the same source data on every run.
type Item struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	ImageURL  string `json:"image_url,omitempty"`
	DetailURL string `json:"detail_url"`
	Kind      Kind   `json:"kind"`
	Source    string `json:"source,omitempty"` // source name this item came from
}

// EpisodeRef points at one episode page beneath a series/program item.
// Season is always >= 1; season-0 specials are dropped at construction.
// (Season, Episode) is the ordering key; gaps are legal and mean an episode
// was skipped, not lost.
type EpisodeRef struct {
	ParentID string `json:"parent_id"`
	Season   int    `json:"season"`
	Episode  int    `json:"episode"`
	PageURL  string `json:"page_url"`
	Title    string `json:"title,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// ResolvedStream is the terminal record: an item (or one episode of it)
// resolved to a playable address. The only type that reaches the sink.
// StreamURL is never empty and ID is unique within a run.
// Season/Episode carry the ordering key for per-series playlist sorting;
// both are zero for movies.
type ResolvedStream struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ImageURL   string `json:"image_url,omitempty"`
	StreamURL  string `json:"stream_url"`
	GroupLabel string `json:"group_label,omitempty"`
	Season     int    `json:"season,omitempty"`
	Episode    int    `json:"episode,omitempty"`
}

// Group is one catalog item together with its resolved streams, in emission
// order (the sink re-sorts by (Season, Episode) before writing).
type Group struct {
	Item    Item             `json:"item"`
	Streams []ResolvedStream `json:"streams"`
}

// SortStreams orders streams by (Season, Episode), tie-breaking on title so
// output files are stable across runs.
func SortStreams(streams []ResolvedStream) {
	sort.SliceStable(streams, func(i, j int) bool {
		a, b := streams[i], streams[j]
		if a.Season != b.Season {
			return a.Season < b.Season
		}
		if a.Episode != b.Episode {
			return a.Episode < b.Episode
		}
		return a.Title < b.Title
	})
}

// SortEpisodeRefs orders refs by (Season, Episode) ascending.
func SortEpisodeRefs(refs []EpisodeRef) {
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Season != refs[j].Season {
			return refs[i].Season < refs[j].Season
		}
		return refs[i].Episode < refs[j].Episode
	})
}

// Catalog is the accumulated output of a run, grouped by parent item.
// Safe for concurrent use by pipeline workers.
type Catalog struct {
	mu     sync.RWMutex
	Groups []Group `json:"groups"`
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{}
}

// Append records one resolved stream under its parent item, creating the
// group on first sight.
func (c *Catalog) Append(item Item, s ResolvedStream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.Groups {
		if c.Groups[i].Item.ID == item.ID {
			c.Groups[i].Streams = append(c.Groups[i].Streams, s)
			return
		}
	}
	c.Groups = append(c.Groups, Group{Item: item, Streams: []ResolvedStream{s}})
}

// Snapshot returns a copy of the groups for read-only use.
func (c *Catalog) Snapshot() []Group {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Group, len(c.Groups))
	copy(out, c.Groups)
	return out
}

// Len returns the number of groups.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.Groups)
}

// Save writes the catalog to path as JSON using a temp-file-then-rename
// strategy so readers never see a partially-written file (atomic on most
// Unix filesystems).
func (c *Catalog) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(filepath.Clean(path))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("catalog save: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".catalog-*.json.tmp")
	if err != nil {
		return fmt.Errorf("catalog save: create temp: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("catalog save: write: %w", writeErr)
		}
		return fmt.Errorf("catalog save: close: %w", closeErr)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("catalog save: chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("catalog save: rename: %w", err)
	}
	return nil
}

// Load replaces the catalog with the contents of path (JSON).
func (c *Catalog) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var out struct {
		Groups []Group `json:"groups"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	c.mu.Lock()
	c.Groups = out.Groups
	c.mu.Unlock()
	return nil
}
