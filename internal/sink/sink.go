// Package sink receives resolved streams and writes the run's
// outputs: per-group JSON records and M3U playlists plus combined
// files covering everything harvested.
package sink

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vodharvest/vod-harvest/internal/catalog"
	"github.com/vodharvest/vod-harvest/internal/slug"
)

// Sink consumes resolved streams. Emit must be safe for concurrent
// use; outputs are not required to be durable until Close returns.
type Sink interface {
	Emit(item catalog.Item, s catalog.ResolvedStream) error
	Close() error
}

// DirSink collects streams per catalog item and writes one JSON file
// and one playlist per group, plus combined catalog.json and all.m3u,
// under its directory on Close.
type DirSink struct {
	dir string

	mu     sync.Mutex
	groups map[string]*catalog.Group
	order  []string
}

// NewDir creates the output directory and returns a sink over it.
func NewDir(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sink: create %s: %w", dir, err)
	}
	return &DirSink{dir: dir, groups: make(map[string]*catalog.Group)}, nil
}

// Emit records one stream under its item's group.
func (d *DirSink) Emit(item catalog.Item, s catalog.ResolvedStream) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[item.ID]
	if !ok {
		g = &catalog.Group{Item: item}
		d.groups[item.ID] = g
		d.order = append(d.order, item.ID)
	}
	g.Streams = append(g.Streams, s)
	return nil
}

// Close sorts every group and writes all output files. Files are
// written to a temp name and renamed into place so readers never see
// a partial file.
func (d *DirSink) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	groups := make([]catalog.Group, 0, len(d.order))
	for _, id := range d.order {
		g := d.groups[id]
		catalog.SortStreams(g.Streams)
		groups = append(groups, *g)
	}
	SortGroups(groups)

	all := []string{"#EXTM3U"}
	for i := range groups {
		g := &groups[i]
		name := slug.Make(g.Item.Title)
		if name == "" {
			name = slug.Make(g.Item.ID)
		}
		if name == "" {
			log.Printf("sink[dir]: skipping group %q, no usable name", g.Item.ID)
			continue
		}
		if err := writeJSON(filepath.Join(d.dir, name+".json"), g); err != nil {
			return err
		}
		lines := playlistLines(g)
		if err := writeFile(filepath.Join(d.dir, name+".m3u"), strings.Join(append([]string{"#EXTM3U"}, lines...), "\n")+"\n"); err != nil {
			return err
		}
		all = append(all, lines...)
	}
	if err := writeJSON(filepath.Join(d.dir, "catalog.json"), struct {
		Groups []catalog.Group `json:"groups"`
	}{groups}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(d.dir, "all.m3u"), strings.Join(all, "\n")+"\n"); err != nil {
		return err
	}
	log.Printf("sink[dir]: wrote %d groups to %s", len(d.order), d.dir)
	return nil
}

func playlistLines(g *catalog.Group) []string {
	lines := make([]string, 0, len(g.Streams)*2)
	for _, s := range g.Streams {
		label := s.GroupLabel
		if label == "" {
			label = g.Item.Title
		}
		lines = append(lines,
			fmt.Sprintf("#EXTINF:-1 tvg-logo=%q group-title=%q,%s", s.ImageURL, label, s.Title),
			s.StreamURL,
		)
	}
	return lines
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("sink: marshal %s: %w", path, err)
	}
	return writeFile(path, string(data)+"\n")
}

func writeFile(path, content string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("sink: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("sink: rename %s: %w", path, err)
	}
	return nil
}

// CatalogSink appends into an in-memory catalog, optionally saving it
// to a JSON file on Close.
type CatalogSink struct {
	Catalog *catalog.Catalog
	Path    string
}

// NewCatalog returns a catalog sink. path may be empty to skip the
// save on Close.
func NewCatalog(path string) *CatalogSink {
	return &CatalogSink{Catalog: catalog.New(), Path: path}
}

func (c *CatalogSink) Emit(item catalog.Item, s catalog.ResolvedStream) error {
	c.Catalog.Append(item, s)
	return nil
}

func (c *CatalogSink) Close() error {
	if c.Path == "" {
		return nil
	}
	return c.Catalog.Save(c.Path)
}

// Multi fans every emit out to each sink in order.
type Multi []Sink

func (m Multi) Emit(item catalog.Item, s catalog.ResolvedStream) error {
	for _, sk := range m {
		if err := sk.Emit(item, s); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Close() error {
	var firstErr error
	for _, sk := range m {
		if err := sk.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SortGroups orders groups by title for stable combined output.
func SortGroups(groups []catalog.Group) {
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Item.Title < groups[j].Item.Title
	})
}
