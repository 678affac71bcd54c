package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"market-briefer/internal/metrics"
	"market-briefer/internal/model"
	"market-briefer/internal/policy"
	"market-briefer/internal/sourcequality"
	"market-briefer/internal/urlkey"
)

const (
	// poolPages are the 1-based page offsets fetched per pool.
	resultsPerPage = 10
	// thinPoolSize triggers the next fetch strategy when an allowlist
	// exists but the constrained query came back nearly empty.
	thinPoolSize = 5
	// maxSelected caps a section's final selection.
	maxSelected = 6
	// maxPerDomain caps how many items one domain contributes per section.
	maxPerDomain = 2
	// maxCandidates bounds the scored candidate list handed to selection.
	maxCandidates = 12
	// maxAllowlistQueryDomains respects provider query-length limits.
	maxAllowlistQueryDomains = 8
	// fallbackMinAllowlist is the looser coverage gate used for
	// fallback-language pools.
	fallbackMinAllowlist = 2
)

var poolPages = []int{1, 11, 21, 31, 41}

// Searcher is the provider dependency; one call returns one result page.
type Searcher interface {
	Search(ctx context.Context, query string, num, start int, lang string) ([]model.SearchResultItem, error)
}

// Metrics summarizes one section fetch for logging and alerting.
type Metrics struct {
	RawByLanguage     map[string]int `json:"raw_by_language"`
	Denied            int            `json:"denied"`
	AllowlistHits     int            `json:"allowlist_hits"`
	Selected          int            `json:"selected"`
	MinNeeded         int            `json:"min_needed"`
	FallbackLanguages []string       `json:"fallback_languages,omitempty"`
	LowCoverage       bool           `json:"low_coverage"`
	LowAllowlistRatio bool           `json:"low_allowlist_ratio"`
}

// Result is a section's selected items plus the fetch metrics.
type Result struct {
	Items   []model.SearchResultItem
	Metrics Metrics
}

// Fetcher runs the paginated, multi-language, allowlist-aware pool fetch
// for one section at a time.
type Fetcher struct {
	searcher Searcher
	log      *slog.Logger
}

// NewFetcher wires a fetcher. A nil logger falls back to slog.Default.
func NewFetcher(s Searcher, log *slog.Logger) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{searcher: s, log: log}
}

// fetchStrategy is one escalation step of the pool fetch. Strategies are
// tried in order; the first pool that is not thin wins and replaces any
// previous attempt.
type fetchStrategy struct {
	name  string
	query string
}

// buildStrategies returns the escalation ladder for a section: the
// allowlist-constrained query, a looser generic query still inside the
// allowlist, then the raw unconstrained query. Sections without an
// allowlist get a single raw-query strategy.
func buildStrategies(section model.Section, query string, profile model.Profile) []fetchStrategy {
	doms := sourcequality.AllowedDomains(section)
	if len(doms) == 0 {
		return []fetchStrategy{{name: "raw", query: query}}
	}
	sanitized := sourcequality.SanitizeQueryForAllowlist(query)
	if sanitized == "" {
		sanitized = query
	}
	generic := sourcequality.SanitizeQueryForAllowlist(fmt.Sprintf(
		"%s cultura organizacional gestão de processos %d",
		profile.Specialization, time.Now().Year(),
	))
	return []fetchStrategy{
		{name: "allowlist", query: sourcequality.BuildAllowlistQuery(sanitized, doms, maxAllowlistQueryDomains)},
		{name: "allowlist_generic", query: sourcequality.BuildAllowlistQuery(generic, doms, maxAllowlistQueryDomains)},
		{name: "raw", query: query},
	}
}

// FetchSection runs the full fetch-filter-select pass for one section.
// usedThisRun is mutated in place: keys of selected items are added so
// later sections of the same run can never reuse them.
func (f *Fetcher) FetchSection(
	ctx context.Context,
	section model.Section,
	query string,
	pol policy.Policy,
	profile model.Profile,
	usedRecent map[string]struct{},
	usedThisRun map[string]struct{},
) Result {
	res := Result{Metrics: Metrics{
		RawByLanguage: map[string]int{},
		MinNeeded:     pol.MinSelected(section),
	}}
	if strings.TrimSpace(query) == "" || f.searcher == nil {
		return res
	}

	strategies := buildStrategies(section, query, profile)
	primary := "lang_pt"
	if len(pol.Languages) > 0 {
		primary = pol.Languages[0]
	}

	pool := f.fetchPool(ctx, section, primary, strategies)
	res.Metrics.RawByLanguage[primary] = len(pool)

	perDomain := map[string]int{}
	f.selectFromPool(section, pool, pol.MinAllowlist(section), maxSelected, usedRecent, usedThisRun, perDomain, &res)

	// Fallback language pass: append, never replace, until the minimum or
	// the selection ceiling is reached.
	if res.Metrics.Selected < res.Metrics.MinNeeded && len(pol.Languages) > 1 {
		fallback := pol.Languages[1]
		fbPool := f.fetchPool(ctx, section, fallback, strategies)
		res.Metrics.RawByLanguage[fallback] = len(fbPool)
		res.Metrics.FallbackLanguages = append(res.Metrics.FallbackLanguages, fallback)
		target := res.Metrics.MinNeeded
		if target > maxSelected {
			target = maxSelected
		}
		f.selectFromPool(section, fbPool, fallbackMinAllowlist, target, usedRecent, usedThisRun, perDomain, &res)
	}

	f.finishMetrics(section, pol, &res)
	return res
}

// fetchPool walks the strategy ladder in one language. Each strategy
// issues the paginated calls; a pool below thinPoolSize (with more
// strategies remaining) is discarded and the next strategy replaces it.
// A failed page is an empty page, never an aborted section.
func (f *Fetcher) fetchPool(ctx context.Context, section model.Section, lang string, strategies []fetchStrategy) []model.SearchResultItem {
	var pool []model.SearchResultItem
	for i, st := range strategies {
		pool = pool[:0]
		for _, start := range poolPages {
			page, err := f.searcher.Search(ctx, st.query, resultsPerPage, start, lang)
			if err != nil {
				metrics.SearchPages.WithLabelValues(lang, "error").Inc()
				f.log.Debug("fetcher: search page failed",
					"section", section, "strategy", st.name, "lang", lang, "start", start, "err", err)
				continue
			}
			metrics.SearchPages.WithLabelValues(lang, "ok").Inc()
			pool = append(pool, page...)
		}
		f.log.Info("fetcher: pool fetched",
			"section", section, "strategy", st.name, "lang", lang, "count", len(pool))
		if len(pool) >= thinPoolSize || i == len(strategies)-1 {
			break
		}
	}
	return pool
}

// selectFromPool applies the quality filter and the three sequential
// selection filters (denied/filetype, dedup, per-domain cap) in score
// order, appending to the result until maxSelected.
func (f *Fetcher) selectFromPool(
	section model.Section,
	pool []model.SearchResultItem,
	minAllowlist, target int,
	usedRecent map[string]struct{},
	usedThisRun map[string]struct{},
	perDomain map[string]int,
	res *Result,
) {
	if len(pool) == 0 || len(res.Items) >= target {
		return
	}
	byURL := make(map[string]model.SearchResultItem, len(pool))
	urls := make([]string, 0, len(pool))
	for _, it := range pool {
		if it.URL == "" {
			continue
		}
		if _, dup := byURL[it.URL]; !dup {
			byURL[it.URL] = it
			urls = append(urls, it.URL)
		}
	}

	candidates := sourcequality.PickCandidates(section, urls, minAllowlist, maxCandidates)
	for _, u := range candidates {
		if !strings.HasPrefix(u, "http") {
			continue
		}
		if sourcequality.IsBlockedFiletype(u) || sourcequality.IsDenied(u) {
			res.Metrics.Denied++
			metrics.DeniedURLs.WithLabelValues(string(section)).Inc()
			continue
		}
		key := urlkey.Normalize(u)
		if key == "" {
			continue
		}
		if _, ok := usedRecent[key]; ok {
			continue
		}
		if _, ok := usedThisRun[key]; ok {
			continue
		}
		domain := domainOf(u)
		perDomain[domain]++
		if perDomain[domain] > maxPerDomain {
			perDomain[domain]--
			continue
		}
		res.Items = append(res.Items, byURL[u])
		usedThisRun[key] = struct{}{}
		res.Metrics.Selected++
		if sourcequality.IsAllowed(section, u) {
			res.Metrics.AllowlistHits++
		}
		metrics.SelectedSources.WithLabelValues(string(section)).Inc()
		if len(res.Items) >= target {
			break
		}
	}
}

func (f *Fetcher) finishMetrics(section model.Section, pol policy.Policy, res *Result) {
	m := &res.Metrics
	f.log.Info("fetcher: section metrics",
		"policy", pol.Key,
		"section", section,
		"raw", m.RawByLanguage,
		"denied", m.Denied,
		"allowlist", m.AllowlistHits,
		"selected", m.Selected,
		"min_needed", m.MinNeeded,
		"fallback", strings.Join(m.FallbackLanguages, ","),
	)

	if m.Selected < m.MinNeeded {
		m.LowCoverage = true
		metrics.CoverageWarnings.WithLabelValues(string(section), "coverage").Inc()
		f.log.Warn("fetcher: low source coverage",
			"policy", pol.Key, "section", section, "selected", m.Selected, "min_needed", m.MinNeeded)
	}

	if len(sourcequality.AllowedDomains(section)) > 0 && m.Selected > 0 {
		ratio := float64(m.AllowlistHits) / float64(m.Selected)
		if ratio < pol.AllowlistRatioThreshold {
			m.LowAllowlistRatio = true
			metrics.CoverageWarnings.WithLabelValues(string(section), "allowlist_ratio").Inc()
			f.log.Warn("fetcher: low allowlist ratio",
				"policy", pol.Key, "section", section,
				"ratio", fmt.Sprintf("%.2f", ratio),
				"allowlist", m.AllowlistHits, "selected", m.Selected)
		}
	}
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
