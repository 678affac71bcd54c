package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"market-briefer/internal/ai"
	"market-briefer/internal/model"
	"market-briefer/internal/search"
)

type fakeSearcher struct {
	pages map[string][]model.SearchResultItem
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _, start int, lang string) ([]model.SearchResultItem, error) {
	if start != 1 {
		return nil, nil
	}
	return f.pages[lang], nil
}

type fakeSynthesizer struct {
	requests []ai.SectionRequest
	bySectn  map[model.Section]model.SectionSynthesis
}

func (f *fakeSynthesizer) SynthesizeSection(_ context.Context, req ai.SectionRequest) (model.SectionSynthesis, error) {
	f.requests = append(f.requests, req)
	return f.bySectn[req.Section], nil
}

type fakeAggregator struct {
	groups map[model.Category]*model.OpportunityGroup
	keys   []string
}

func (f *fakeAggregator) Aggregate(
	_ context.Context,
	_ map[model.Section]model.SectionSynthesis,
	_ map[model.Section][]model.SearchResultItem,
	_ map[string]struct{},
) (map[model.Category]*model.OpportunityGroup, []string) {
	return f.groups, f.keys
}

type memHistory struct {
	urls   map[string]struct{}
	topics []string
	marked []string
	briefs []*model.Brief
}

func newMemHistory() *memHistory {
	return &memHistory{urls: map[string]struct{}{}}
}

func (m *memHistory) RecentURLKeys(context.Context, string) (map[string]struct{}, error) {
	return m.urls, nil
}
func (m *memHistory) RecentTopics(context.Context, string) ([]string, error) {
	return m.topics, nil
}
func (m *memHistory) MarkURLKeysUsed(_ context.Context, _ string, keys []string) error {
	m.marked = append(m.marked, keys...)
	return nil
}
func (m *memHistory) MarkTopicsUsed(_ context.Context, _ string, topics []string) error {
	m.topics = append(m.topics, topics...)
	return nil
}
func (m *memHistory) SaveBrief(_ context.Context, b *model.Brief) error {
	m.briefs = append(m.briefs, b)
	return nil
}

func testProfile() model.Profile {
	return model.Profile{
		ID:                  "sub-1",
		Name:                "Estúdio Criativo",
		Specialization:      "marketing digital",
		BusinessDescription: "agência de marketing digital para o varejo de moda brasileiro",
		ProductsServices:    "social media, tráfego pago",
		TargetAudience:      "lojistas de moda",
		Location:            "São Paulo, Brasil",
	}
}

func TestRunProcessesSectionsInOrder(t *testing.T) {
	synth := &fakeSynthesizer{bySectn: map[model.Section]model.SectionSynthesis{}}
	hist := newMemHistory()
	p := New(Deps{
		Fetcher:     search.NewFetcher(&fakeSearcher{}, nil),
		Synthesizer: synth,
		Aggregator:  &fakeAggregator{},
		History:     hist,
	})

	brief, err := p.Run(context.Background(), testProfile())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if brief.RunID == "" || brief.SubscriberID != "sub-1" {
		t.Errorf("unexpected brief identity: %+v", brief)
	}
	if len(synth.requests) != len(model.PipelineOrder) {
		t.Fatalf("synthesized %d sections, want %d", len(synth.requests), len(model.PipelineOrder))
	}
	for i, req := range synth.requests {
		if req.Section != model.PipelineOrder[i] {
			t.Errorf("section %d = %q, want %q", i, req.Section, model.PipelineOrder[i])
		}
	}
	if len(hist.briefs) != 1 {
		t.Errorf("brief was not persisted")
	}
}

func TestRunAudienceBorrowsMarketAndTrends(t *testing.T) {
	fs := &fakeSearcher{pages: map[string][]model.SearchResultItem{
		"lang_pt": {
			{URL: "https://valor.globo.com/mercado-1", Title: "m1"},
			{URL: "https://exame.com/mercado-2", Title: "m2"},
			{URL: "https://infomoney.com.br/mercado-3", Title: "m3"},
		},
	}}
	synth := &fakeSynthesizer{bySectn: map[model.Section]model.SectionSynthesis{}}
	p := New(Deps{
		Fetcher:     search.NewFetcher(fs, nil),
		Synthesizer: synth,
		Aggregator:  &fakeAggregator{},
		History:     newMemHistory(),
	})
	if _, err := p.Run(context.Background(), testProfile()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var audience *ai.SectionRequest
	for i := range synth.requests {
		if synth.requests[i].Section == model.SectionAudience {
			audience = &synth.requests[i]
		}
	}
	if audience == nil {
		t.Fatalf("audience section was never synthesized")
	}
	// The market section selected items before publico ran; those must be
	// borrowed into the audience request.
	if len(audience.Borrowed) == 0 {
		t.Fatalf("audience request carries no borrowed items")
	}
	for _, it := range audience.Borrowed {
		if !strings.Contains(it.URL, "mercado") {
			t.Errorf("unexpected borrowed item %q", it.URL)
		}
	}
}

func TestRunRecordsTopicsAndKeys(t *testing.T) {
	synth := &fakeSynthesizer{bySectn: map[model.Section]model.SectionSynthesis{
		model.SectionTrends: {
			Fields: map[string]json.RawMessage{
				"temas_populares": json.RawMessage(`["ia generativa", "social commerce"]`),
			},
		},
	}}
	hist := newMemHistory()
	p := New(Deps{
		Fetcher:     search.NewFetcher(&fakeSearcher{}, nil),
		Synthesizer: synth,
		Aggregator:  &fakeAggregator{keys: []string{"exame.com/a", "valor.globo.com/b"}},
		History:     hist,
	})
	brief, err := p.Run(context.Background(), testProfile())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(brief.UsedURLKeys) != 2 || len(hist.marked) != 2 {
		t.Errorf("used keys not recorded: brief=%v marked=%v", brief.UsedURLKeys, hist.marked)
	}
	if len(hist.topics) != 2 {
		t.Errorf("topics not recorded: %v", hist.topics)
	}
}

func TestBuildSectionQueries(t *testing.T) {
	now := time.Date(2026, time.November, 15, 0, 0, 0, 0, time.UTC)
	qs := BuildSectionQueries(testProfile(), now)

	if len(qs) != len(model.PipelineOrder) {
		t.Fatalf("got %d queries, want %d", len(qs), len(model.PipelineOrder))
	}
	for section, q := range qs {
		if strings.TrimSpace(q) == "" {
			t.Errorf("section %q query is empty", section)
		}
		if strings.Contains(q, "\n") {
			t.Errorf("section %q query not compacted: %q", section, q)
		}
	}
	market := qs[model.SectionMarket]
	if !strings.Contains(market, "marketing digital") || !strings.Contains(market, "2026 OR 2027") {
		t.Errorf("market query missing profile/time context: %q", market)
	}
	if !strings.Contains(market, "site:br") {
		t.Errorf("market query missing location domain: %q", market)
	}
	// Seasonality must reach into the following year at year end.
	season := qs[model.SectionSeasonality]
	if !strings.Contains(season, "janeiro 2027") {
		t.Errorf("seasonality query missing next-year month: %q", season)
	}
	audience := qs[model.SectionAudience]
	if !strings.Contains(audience, `"lojistas de moda"`) {
		t.Errorf("audience query missing quoted target audience: %q", audience)
	}
}
