package source

import (
	"net/http"
	"time"

	"github.com/vodharvest/vod-harvest/internal/extract"
	"github.com/vodharvest/vod-harvest/internal/resolve"
)

// ItemStrategies compiles the item extraction chain. Definitions are
// validated at load time, so compilation cannot fail.
func (s *Source) ItemStrategies() []extract.ItemStrategy {
	out := make([]extract.ItemStrategy, 0, len(s.Items))
	for _, spec := range s.Items {
		switch spec.Type {
		case "selector":
			out = append(out, extract.Selector(s.Name, s.Kind, extract.SelectorSpec{
				Item:  spec.Item,
				Link:  spec.Link,
				Title: spec.Title,
				Image: spec.Image,
			}))
		case "jsonld":
			out = append(out, extract.JSONLD(s.Name, s.Kind))
		case "apilist":
			out = append(out, extract.APIList(s.Name, s.Kind, extract.APIListSpec{
				List:  spec.List,
				ID:    spec.ID,
				Title: spec.Title,
				Image: spec.Image,
				URL:   spec.URL,
			}))
		}
	}
	return out
}

// EpisodeStrategies compiles the episode extraction chain for one
// parent item.
func (s *Source) EpisodeStrategies(parentID string) []extract.EpisodeStrategy {
	if s.Episodes == nil {
		return nil
	}
	out := make([]extract.EpisodeStrategy, 0, len(s.Episodes.Strategies))
	for _, spec := range s.Episodes.Strategies {
		out = append(out, extract.EpisodeSelector(parentID, extract.EpisodeSelectorSpec{
			Item:            spec.Item,
			Link:            spec.Link,
			Title:           spec.Title,
			Image:           spec.Image,
			SeasonEpisodeRE: spec.SeasonEpisodeRE,
		}))
	}
	return out
}

// Resolver compiles the resolution chain into a ready resolver.
func (s *Source) Resolver(client *http.Client, timeout time.Duration) *resolve.Resolver {
	strategies := make([]resolve.Strategy, 0, len(s.Resolve))
	for _, spec := range s.Resolve {
		name := spec.Name
		if name == "" {
			name = spec.Type
		}
		switch spec.Type {
		case "regex":
			strategies = append(strategies, resolve.RegexPattern(name, spec.Pattern))
		case "attr_json":
			strategies = append(strategies, resolve.AttrJSON(name, spec.Selector, spec.Attr, spec.Path))
		case "media_api":
			strategies = append(strategies, resolve.MediaAPI(name, resolve.MediaAPISpec{
				IDPattern:   spec.Pattern,
				APIURL:      spec.APIURL,
				Headers:     s.Headers,
				Path:        spec.Path,
				TypePath:    spec.TypePath,
				RejectTypes: spec.RejectTypes,
			}))
		case "template":
			strategies = append(strategies, resolve.Template(name, spec.Pattern, spec.Template))
		}
	}
	return resolve.New(client, strategies, s.DenyHosts).WithRequest(s.Headers, timeout)
}
