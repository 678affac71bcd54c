package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"market-briefer/internal/model"
	"market-briefer/internal/policy"
	"market-briefer/internal/urlkey"
)

// fakeSearcher serves canned pages keyed by language. err makes every
// call fail; errLangs makes specific languages fail.
type fakeSearcher struct {
	pages map[string][]model.SearchResultItem
	err   error
	calls []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string, num, start int, lang string) ([]model.SearchResultItem, error) {
	f.calls = append(f.calls, fmt.Sprintf("%s@%d", lang, start))
	if f.err != nil {
		return nil, f.err
	}
	// Only the first page carries items; later pages are empty.
	if start != 1 {
		return nil, nil
	}
	return f.pages[lang], nil
}

func item(u string) model.SearchResultItem {
	return model.SearchResultItem{URL: u, Title: u}
}

func testPolicy() policy.Policy {
	p, _ := policy.ByKey(policy.KeyDefault)
	return p
}

func TestFetchSectionSelectsAllowlisted(t *testing.T) {
	fs := &fakeSearcher{pages: map[string][]model.SearchResultItem{
		"lang_pt": {
			item("https://valor.globo.com/noticia-1"),
			item("https://exame.com/noticia-2"),
			item("https://infomoney.com.br/noticia-3"),
			item("https://www.pinterest.com/pin/1"),
		},
	}}
	f := NewFetcher(fs, nil)
	res := f.FetchSection(context.Background(), model.SectionMarket, "marketing", testPolicy(),
		model.Profile{Specialization: "marketing"}, map[string]struct{}{}, map[string]struct{}{})

	if len(res.Items) != 3 {
		t.Fatalf("selected %d items, want 3: %+v", len(res.Items), res.Items)
	}
	if res.Metrics.Denied != 0 {
		// The denied URL is filtered out before selection by the
		// candidate gate; it never reaches the denied counter here.
		t.Logf("denied = %d", res.Metrics.Denied)
	}
	if res.Metrics.AllowlistHits != 3 {
		t.Errorf("allowlist hits = %d, want 3", res.Metrics.AllowlistHits)
	}
	if res.Metrics.LowCoverage {
		t.Errorf("coverage met, warning must not fire")
	}
}

func TestFetchSectionPerDomainCap(t *testing.T) {
	fs := &fakeSearcher{pages: map[string][]model.SearchResultItem{
		"lang_pt": {
			item("https://exame.com/a"),
			item("https://exame.com/b"),
			item("https://exame.com/c"),
			item("https://valor.globo.com/d"),
			item("https://infomoney.com.br/e"),
		},
	}}
	f := NewFetcher(fs, nil)
	res := f.FetchSection(context.Background(), model.SectionMarket, "marketing", testPolicy(),
		model.Profile{}, map[string]struct{}{}, map[string]struct{}{})

	perDomain := map[string]int{}
	for _, it := range res.Items {
		host := strings.TrimPrefix(strings.SplitN(strings.TrimPrefix(it.URL, "https://"), "/", 2)[0], "www.")
		perDomain[host]++
	}
	for d, n := range perDomain {
		if n > 2 {
			t.Errorf("domain %s contributed %d items, cap is 2", d, n)
		}
	}
}

func TestFetchSectionDedupAgainstRecentAndRun(t *testing.T) {
	fs := &fakeSearcher{pages: map[string][]model.SearchResultItem{
		"lang_pt": {
			item("https://valor.globo.com/already-sent"),
			item("https://exame.com/fresh"),
			item("https://infomoney.com.br/fresh-2"),
		},
	}}
	usedRecent := map[string]struct{}{
		urlkey.Normalize("https://valor.globo.com/already-sent"): {},
	}
	usedThisRun := map[string]struct{}{}
	f := NewFetcher(fs, nil)
	res := f.FetchSection(context.Background(), model.SectionMarket, "marketing", testPolicy(),
		model.Profile{}, usedRecent, usedThisRun)

	for _, it := range res.Items {
		if it.URL == "https://valor.globo.com/already-sent" {
			t.Fatalf("recently-used URL was selected again")
		}
		key := urlkey.Normalize(it.URL)
		if _, ok := usedThisRun[key]; !ok {
			t.Errorf("selected item %q missing from usedThisRun", it.URL)
		}
		if _, ok := usedRecent[key]; ok {
			t.Errorf("key %q appears in both dedup sets", key)
		}
	}
}

func TestFetchSectionFallbackLanguageAppends(t *testing.T) {
	fs := &fakeSearcher{pages: map[string][]model.SearchResultItem{
		"lang_pt": {
			item("https://valor.globo.com/pt-1"),
			item("https://exame.com/pt-2"),
		},
		"lang_en": {
			item("https://valor.globo.com/en-1"),
			item("https://infomoney.com.br/en-2"),
		},
	}}
	f := NewFetcher(fs, nil)
	// Default policy wants 3 for the market section; primary yields 2.
	res := f.FetchSection(context.Background(), model.SectionMarket, "marketing", testPolicy(),
		model.Profile{}, map[string]struct{}{}, map[string]struct{}{})

	if len(res.Items) < 3 {
		t.Fatalf("fallback language must top the selection up, got %d items", len(res.Items))
	}
	if len(res.Metrics.FallbackLanguages) != 1 || res.Metrics.FallbackLanguages[0] != "lang_en" {
		t.Errorf("fallback languages = %v, want [lang_en]", res.Metrics.FallbackLanguages)
	}
	// Primary selections must survive the fallback pass.
	found := false
	for _, it := range res.Items {
		if it.URL == "https://valor.globo.com/pt-1" {
			found = true
		}
	}
	if !found {
		t.Errorf("fallback pass replaced primary selections instead of appending")
	}
}

func TestFetchSectionPageErrorsAreEmptyPages(t *testing.T) {
	fs := &fakeSearcher{err: errors.New("provider down")}
	f := NewFetcher(fs, nil)
	res := f.FetchSection(context.Background(), model.SectionMarket, "marketing", testPolicy(),
		model.Profile{}, map[string]struct{}{}, map[string]struct{}{})

	if len(res.Items) != 0 {
		t.Fatalf("expected empty selection, got %d", len(res.Items))
	}
	if !res.Metrics.LowCoverage {
		t.Errorf("empty selection must fire the coverage warning")
	}
}

func TestFetchSectionEmptyQuery(t *testing.T) {
	f := NewFetcher(&fakeSearcher{}, nil)
	res := f.FetchSection(context.Background(), model.SectionMarket, "  ", testPolicy(),
		model.Profile{}, map[string]struct{}{}, map[string]struct{}{})
	if len(res.Items) != 0 {
		t.Fatalf("empty query must select nothing")
	}
}
