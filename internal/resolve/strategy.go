package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/vodharvest/vod-harvest/internal/extract"
	"github.com/vodharvest/vod-harvest/internal/fetch"
	"github.com/vodharvest/vod-harvest/internal/safeurl"
)

// RegexPattern matches a stream URL directly in the page body. The
// pattern must expose one capture group; JSON-escaped slashes in the
// captured value are unescaped.
func RegexPattern(name, pattern string) Strategy {
	re := regexp.MustCompile(pattern)
	return Strategy{
		Name: name,
		Fn: func(_ context.Context, _ *http.Client, doc *fetch.Document) (string, error) {
			m := re.FindSubmatch(doc.Body)
			if len(m) < 2 {
				return "", nil
			}
			u := strings.ReplaceAll(string(m[1]), `\/`, "/")
			abs, err := safeurl.Absolutize(doc.FinalURL, u)
			if err != nil {
				return "", nil
			}
			return abs, nil
		},
	}
}

// AttrJSON reads a JSON blob from an element attribute and walks a
// dot path to the stream URL. This covers players that park their
// source list in a data attribute on the player div.
func AttrJSON(name, selector, attr, path string) Strategy {
	return Strategy{
		Name: name,
		Fn: func(_ context.Context, _ *http.Client, doc *fetch.Document) (string, error) {
			root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
			if err != nil {
				return "", nil
			}
			raw, ok := root.Find(selector).First().Attr(attr)
			if !ok || raw == "" {
				return "", nil
			}
			var v any
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				return "", nil
			}
			got, ok := extract.LookupPath(v, path)
			if !ok {
				return "", nil
			}
			u, _ := got.(string)
			if u == "" {
				return "", nil
			}
			abs, err := safeurl.Absolutize(doc.FinalURL, u)
			if err != nil {
				return "", nil
			}
			return abs, nil
		},
	}
}

// MediaAPISpec drives a two-step resolution: lift a media ID off the
// page, call a companion API with it, then walk the response for the
// stream URL. TypePath and RejectTypes refuse embeds of providers we
// do not serve.
type MediaAPISpec struct {
	IDPattern   string
	APIURL      string
	Headers     map[string]string
	Path        string
	TypePath    string
	RejectTypes []string
}

// MediaAPI builds a strategy over spec. The API URL must contain one
// %s verb filled with the extracted media ID.
func MediaAPI(name string, spec MediaAPISpec) Strategy {
	idRe := regexp.MustCompile(spec.IDPattern)
	reject := make(map[string]bool, len(spec.RejectTypes))
	for _, t := range spec.RejectTypes {
		reject[strings.ToLower(t)] = true
	}
	return Strategy{
		Name: name,
		Fn: func(ctx context.Context, client *http.Client, doc *fetch.Document) (string, error) {
			m := idRe.FindSubmatch(doc.Body)
			if len(m) < 2 {
				return "", nil
			}
			apiDoc, err := fetch.Fetch(ctx, client, fetch.Request{
				URL:     fmt.Sprintf(spec.APIURL, string(m[1])),
				Headers: spec.Headers,
			})
			if err != nil {
				return "", err
			}
			var v any
			if err := apiDoc.JSON(&v); err != nil {
				return "", nil
			}
			if spec.TypePath != "" {
				if got, ok := extract.LookupPath(v, spec.TypePath); ok {
					if typ, _ := got.(string); reject[strings.ToLower(typ)] {
						return "", fmt.Errorf("%w: media type %q", ErrUnsupportedProvider, typ)
					}
				}
			}
			got, ok := extract.LookupPath(v, spec.Path)
			if !ok {
				return "", nil
			}
			u, _ := got.(string)
			if u == "" {
				return "", nil
			}
			abs, err := safeurl.Absolutize(apiDoc.FinalURL, u)
			if err != nil {
				return "", nil
			}
			return abs, nil
		},
	}
}

// Template captures an external ID from the page and formats it into
// a known player URL without a second fetch.
func Template(name, idPattern, urlTemplate string) Strategy {
	re := regexp.MustCompile(idPattern)
	return Strategy{
		Name: name,
		Fn: func(_ context.Context, _ *http.Client, doc *fetch.Document) (string, error) {
			m := re.FindSubmatch(doc.Body)
			if len(m) < 2 {
				return "", nil
			}
			return fmt.Sprintf(urlTemplate, string(m[1])), nil
		},
	}
}
