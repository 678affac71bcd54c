// Package sourcequality filters and scores search-result URLs against
// curated deny/allow tables so only quality, non-listing sources reach the
// AI synthesis step.
package sourcequality

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"market-briefer/internal/model"
)

// ScoreDenied marks a hard rejection; it can never be outranked.
const ScoreDenied = -10000

const (
	scoreAllowlisted = 40
	scorePremium     = 10
	scoreListing     = -20
)

var siteOperatorRe = regexp.MustCompile(`(?i)-?site:\S+`)
var spaceRe = regexp.MustCompile(`\s+`)

func normalizeDomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return normalizeDomain(u.Hostname())
}

// IsBlockedFiletype reports whether the URL points at a document filetype
// that cannot be used as a content source.
func IsBlockedFiletype(raw string) bool {
	u := strings.ToLower(raw)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	for _, ext := range blockedExtensions {
		if strings.HasSuffix(u, ext) {
			return true
		}
	}
	return false
}

// IsDenied reports whether a URL comes from a denylisted domain (or a
// subdomain of one), is empty, or matches a deny pattern.
func IsDenied(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return true
	}
	if IsBlockedFiletype(raw) {
		return true
	}
	host := hostOf(raw)
	if host == "" {
		return true
	}
	if _, ok := deniedDomains[host]; ok {
		return true
	}
	for denied := range deniedDomains {
		if strings.HasSuffix(host, "."+denied) {
			return true
		}
	}
	lower := strings.ToLower(raw)
	for _, frag := range denyPathFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// IsAllowed reports whether the URL's domain is on the section's allowlist.
func IsAllowed(section model.Section, raw string) bool {
	host := hostOf(raw)
	if host == "" {
		return false
	}
	for _, d := range allowedDomains[section] {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// AllowedDomains returns the section's allowlist in curated order, or nil
// when the section has none.
func AllowedDomains(section model.Section) []string {
	return allowedDomains[section]
}

// Score rates a URL for a section. Denied URLs score ScoreDenied; everyone
// else starts at zero and collects allowlist, premium, and listing-page
// adjustments.
func Score(section model.Section, raw string) int {
	if IsDenied(raw) {
		return ScoreDenied
	}
	score := 0
	if IsAllowed(section, raw) {
		score += scoreAllowlisted
	}
	if _, ok := premiumDomains[hostOf(raw)]; ok {
		score += scorePremium
	}
	if looksLikeListing(raw) {
		score += scoreListing
	}
	return score
}

func looksLikeListing(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	path := u.EscapedPath()
	if path != "" && path != "/" && strings.HasSuffix(path, "/") {
		return true
	}
	lower := strings.ToLower(path)
	for _, frag := range listingPathFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// PickCandidates filters denied URLs out, applies the allowlist coverage
// gate, and returns at most maxKeep URLs in score-descending order (stable,
// so discovery order breaks ties).
//
// The coverage gate: when at least minAllowlist of the surviving URLs are
// allowlisted for the section, the working set is restricted to allowlisted
// URLs only. Below that bar the full denylist-filtered set is used, so
// strictness never starves a section of every result.
func PickCandidates(section model.Section, urls []string, minAllowlist, maxKeep int) []string {
	type scored struct {
		url     string
		score   int
		allowed bool
	}
	kept := make([]scored, 0, len(urls))
	allowlisted := 0
	for _, u := range urls {
		if IsDenied(u) {
			continue
		}
		s := scored{url: u, score: Score(section, u), allowed: IsAllowed(section, u)}
		if s.allowed {
			allowlisted++
		}
		kept = append(kept, s)
	}

	if minAllowlist > 0 && allowlisted >= minAllowlist {
		strict := kept[:0]
		for _, s := range kept {
			if s.allowed {
				strict = append(strict, s)
			}
		}
		kept = strict
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].score > kept[j].score })

	if maxKeep > 0 && len(kept) > maxKeep {
		kept = kept[:maxKeep]
	}
	out := make([]string, 0, len(kept))
	for _, s := range kept {
		out = append(out, s.url)
	}
	return out
}

// SanitizeQueryForAllowlist strips site: operators from a query so they do
// not conflict with the injected allowlist constraint, collapses
// whitespace, and caps length (the provider is sensitive to long queries).
func SanitizeQueryForAllowlist(query string) string {
	if query == "" {
		return ""
	}
	q := siteOperatorRe.ReplaceAllString(query, " ")
	q = strings.TrimSpace(spaceRe.ReplaceAllString(q, " "))
	if len(q) > 220 {
		q = q[:220]
	}
	return q
}

// BuildAllowlistQuery prefixes the query with an OR-joined site: constraint
// over at most maxDomains allowlist entries.
func BuildAllowlistQuery(query string, domains []string, maxDomains int) string {
	if len(domains) == 0 {
		return query
	}
	if maxDomains > 0 && len(domains) > maxDomains {
		domains = domains[:maxDomains]
	}
	parts := make([]string, 0, len(domains))
	for _, d := range domains {
		parts = append(parts, "site:"+d)
	}
	return strings.Join(parts, " OR ") + " " + query
}
