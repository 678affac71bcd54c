// Package urlkey canonicalizes URLs into the stable identity used for
// deduplication across a run and across the rolling history window.
package urlkey

import (
	"net/url"
	"strings"
)

// Normalize turns a URL into its dedup key: lowercase domain plus path,
// with query string, fragment, port, and a single trailing slash removed.
// Path case is preserved. The empty string means "unkeyable" and is always
// excluded from dedup sets.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	host = strings.TrimPrefix(host, "www.")

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	return host + path
}

// Same reports whether two URLs resolve to the same key. Unkeyable URLs
// never match anything, including each other.
func Same(a, b string) bool {
	ka, kb := Normalize(a), Normalize(b)
	if ka == "" || kb == "" {
		return false
	}
	return ka == kb
}
