package safeurl

import (
	"errors"
	"net/url"
	"strings"
)

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or https.
// Used to reject file://, ftp://, and other schemes that could lead to SSRF or local file access.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := parsed.Scheme
	return s == "http" || s == "https"
}

// ErrBadScheme is returned by Absolutize when the resolved URL is not http(s).
var ErrBadScheme = errors.New("safeurl: scheme is not http or https")

// Absolutize resolves ref against base and requires the result to be an
// absolute http(s) URL. Catalog pages routinely carry root-relative hrefs
// ("/dizi/xyz"); base is the final URL of the page the ref came from so
// redirects are accounted for.
func Absolutize(base, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("safeurl: empty reference")
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	abs := b.ResolveReference(r)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", ErrBadScheme
	}
	if abs.Host == "" {
		return "", errors.New("safeurl: no host after resolution")
	}
	return abs.String(), nil
}

// Host returns the lowercased hostname of u (no port), or "" when unparseable.
func Host(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}
