// Package urlcheck recovers AI-reported source URLs back to the real
// search results they came from and validates them over HTTP with a
// presumption of innocence: only hard evidence of a dead page rejects.
package urlcheck

import (
	"net/url"
	"strings"

	"market-briefer/internal/jsonx"
	"market-briefer/internal/model"
)

// Recover maps a URL reported by the model back to one of the search
// result items that were actually fetched. Matching is attempted in
// order of strictness: exact case-insensitive, then domain plus path
// containment. When nothing matches, the coerced raw string comes back
// so the validator gets the final word.
func Recover(reported jsonx.URLValue, pool []model.SearchResultItem) (string, bool) {
	raw := strings.TrimSpace(string(reported))
	if raw == "" {
		return "", false
	}

	lower := strings.ToLower(raw)
	for _, it := range pool {
		if strings.ToLower(it.URL) == lower {
			return it.URL, true
		}
	}

	repU, err := url.Parse(raw)
	if err == nil && repU.Host != "" {
		repHost := normalizeHost(repU.Host)
		repPath := strings.Trim(repU.EscapedPath(), "/")
		for _, it := range pool {
			poolU, err := url.Parse(it.URL)
			if err != nil || poolU.Host == "" {
				continue
			}
			if normalizeHost(poolU.Host) != repHost {
				continue
			}
			poolPath := strings.Trim(poolU.EscapedPath(), "/")
			if repPath == "" || poolPath == "" {
				if repPath == poolPath {
					return it.URL, true
				}
				continue
			}
			if strings.Contains(poolPath, repPath) || strings.Contains(repPath, poolPath) {
				return it.URL, true
			}
		}
	}

	return raw, false
}

func normalizeHost(host string) string {
	h := strings.ToLower(host)
	h = strings.TrimPrefix(h, "www.")
	if i := strings.LastIndex(h, ":"); i >= 0 {
		h = h[:i]
	}
	return h
}
