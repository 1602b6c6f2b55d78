// Package fetch performs single-shot document retrievals with uniform error
// classification. It never retries: retry policy belongs to the pipeline so
// backoff can be coordinated with per-host rate limiting across workers.
package fetch

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/vodharvest/vod-harvest/internal/httpclient"
)

// DefaultUserAgent is sent when a request carries no User-Agent header.
// Catalog targets routinely reject empty or obviously non-browser agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// maxBodySize caps any single document; oversized responses are a
// decode error, not a silently truncated page. Var so tests can lower it.
var maxBodySize int64 = 32 << 20

// Request describes one retrieval. Headers are applied verbatim on top of
// the defaults; Form, when non-nil, turns the request into a URL-encoded
// POST (some listing APIs are POST-paginated).
type Request struct {
	URL     string
	Method  string // default GET; ignored when Form is set (POST)
	Headers map[string]string
	Form    url.Values
	Timeout time.Duration // per-request bound; 0 = client default
}

// Document is a fetched page or API response. FinalURL is the URL after
// redirects and is the base for resolving relative references found in Body.
type Document struct {
	Body     []byte
	FinalURL string
}

// JSON decodes the document body into v, mapping failure to KindDecode.
func (d *Document) JSON(v any) error {
	if err := json.Unmarshal(d.Body, v); err != nil {
		return &Error{Kind: KindDecode, URL: d.FinalURL, Err: err}
	}
	return nil
}

// Fetch retrieves req and returns the decoded document. client may be nil to
// use the shared default. All failures come back as *Error with exactly one
// Kind; the caller never inspects error strings.
func Fetch(ctx context.Context, client *http.Client, req Request) (*Document, error) {
	if client == nil {
		client = httpclient.Default()
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Form != nil {
		method = http.MethodPost
		body = strings.NewReader(req.Form.Encode())
	}

	hreq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, &Error{Kind: KindConnection, URL: req.URL, Err: err}
	}
	hreq.Header.Set("User-Agent", DefaultUserAgent)
	// Setting Accept-Encoding explicitly disables the transport's automatic
	// gzip handling, so both encodings are decoded below.
	hreq.Header.Set("Accept-Encoding", "gzip, br")
	if req.Form != nil {
		hreq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range req.Headers {
		hreq.Header.Set(k, v)
	}

	resp, err := client.Do(hreq)
	if err != nil {
		return nil, classifyTransport(req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &Error{Kind: KindHTTPStatus, URL: req.URL, Status: resp.StatusCode}
	}

	reader, err := decodeBody(resp)
	if err != nil {
		return nil, &Error{Kind: KindDecode, URL: req.URL, Err: err}
	}
	data, err := io.ReadAll(io.LimitReader(reader, maxBodySize+1))
	if err != nil {
		return nil, classifyTransport(req.URL, err)
	}
	if int64(len(data)) > maxBodySize {
		return nil, &Error{Kind: KindDecode, URL: req.URL, Err: fmt.Errorf("body exceeds %d byte cap", maxBodySize)}
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Document{Body: data, FinalURL: finalURL}, nil
}

func decodeBody(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "", "identity":
		return resp.Body, nil
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return nil, errors.New("unsupported content encoding " + resp.Header.Get("Content-Encoding"))
	}
}

func classifyTransport(rawURL string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, URL: rawURL, Err: err}
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindTimeout, URL: rawURL, Err: err}
	}
	return &Error{Kind: KindConnection, URL: rawURL, Err: err}
}
