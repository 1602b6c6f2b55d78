// Package paginate walks paginated listing endpoints batch by batch.
package paginate

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vodharvest/vod-harvest/internal/fetch"
)

// Style selects how the page parameter advances between requests.
type Style string

const (
	// StylePage sends an incrementing page number.
	StylePage Style = "page"
	// StyleOffset sends a running item offset (start + pages*size).
	StyleOffset Style = "offset"
	// StyleCursor carries an opaque continuation token from each
	// response into the next request. The first request sends no
	// token; NextCursor lifts the token off each fetched document,
	// and a missing token ends the walk.
	StyleCursor Style = "cursor"
)

// Config describes one paginated endpoint. When Form is set the page
// parameter is carried in the POST body instead of the query string.
// NextCursor is required for StyleCursor and ignored otherwise.
type Config struct {
	URL        string
	Style      Style
	Param      string
	Start      int
	PageSize   int
	MaxPages   int
	Headers    map[string]string
	Form       url.Values
	Timeout    time.Duration
	NextCursor func(*fetch.Document) (string, bool)
}

// Walker fetches pages from one endpoint and parses each into a batch.
type Walker[T any] struct {
	cfg    Config
	client *http.Client
	parse  func(*fetch.Document) []T
	cursor string
}

// NewWalker builds a walker over cfg. parse turns one fetched page
// into a batch; returning an empty batch ends the walk.
func NewWalker[T any](client *http.Client, cfg Config, parse func(*fetch.Document) []T) *Walker[T] {
	if cfg.Param == "" {
		cfg.Param = "page"
	}
	if cfg.Style == "" {
		cfg.Style = StylePage
	}
	return &Walker[T]{cfg: cfg, client: client, parse: parse}
}

// Walk fetches pages in order and hands each batch to fn. It stops on
// an empty batch, on a batch shorter than PageSize, when MaxPages is
// reached, when fn returns false, or when ctx is cancelled. It
// returns the number of pages fetched; a fetch error ends the walk
// and is returned alongside the count.
func (w *Walker[T]) Walk(ctx context.Context, fn func(batch []T) bool) (int, error) {
	if w.cfg.Style == StyleCursor && w.cfg.NextCursor == nil {
		return 0, fmt.Errorf("paginate: cursor style needs a NextCursor extractor")
	}
	pages := 0
	for {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		req, err := w.request(pages)
		if err != nil {
			return pages, err
		}
		doc, err := fetch.Fetch(ctx, w.client, req)
		if err != nil {
			return pages, fmt.Errorf("page %d: %w", pages+1, err)
		}
		pages++
		batch := w.parse(doc)
		if len(batch) == 0 {
			return pages, nil
		}
		if !fn(batch) {
			return pages, nil
		}
		if w.cfg.Style == StyleCursor {
			next, ok := w.cfg.NextCursor(doc)
			if !ok || next == "" {
				return pages, nil
			}
			w.cursor = next
		} else if w.cfg.PageSize > 0 && len(batch) < w.cfg.PageSize {
			return pages, nil
		}
		if w.cfg.MaxPages > 0 && pages >= w.cfg.MaxPages {
			log.Printf("paginate[%s]: stopping at page cap %d", w.cfg.Param, w.cfg.MaxPages)
			return pages, nil
		}
	}
}

func (w *Walker[T]) request(pagesDone int) (fetch.Request, error) {
	value, set := w.paramValue(pagesDone)
	req := fetch.Request{
		URL:     w.cfg.URL,
		Headers: w.cfg.Headers,
		Timeout: w.cfg.Timeout,
	}
	if len(w.cfg.Form) > 0 {
		form := url.Values{}
		for k, vs := range w.cfg.Form {
			form[k] = vs
		}
		if set {
			form.Set(w.cfg.Param, value)
		}
		req.Form = form
		return req, nil
	}
	u, err := url.Parse(w.cfg.URL)
	if err != nil {
		return fetch.Request{}, fmt.Errorf("paginate: bad url %q: %w", w.cfg.URL, err)
	}
	if set {
		q := u.Query()
		q.Set(w.cfg.Param, value)
		u.RawQuery = q.Encode()
	}
	req.URL = u.String()
	return req, nil
}

// paramValue returns the page parameter for the next request; set is
// false on a cursor walk's first request, which sends no token.
func (w *Walker[T]) paramValue(pagesDone int) (value string, set bool) {
	switch w.cfg.Style {
	case StyleOffset:
		return strconv.Itoa(w.cfg.Start + pagesDone*w.cfg.PageSize), true
	case StyleCursor:
		return w.cursor, w.cursor != ""
	default:
		return strconv.Itoa(w.cfg.Start + pagesDone), true
	}
}
