package opportunity

import (
	"context"
	"encoding/json"
	"testing"

	"market-briefer/internal/jsonx"
	"market-briefer/internal/model"
	"market-briefer/internal/urlkey"
)

// fakeValidator rejects exactly the listed URLs.
type fakeValidator struct {
	invalid map[string]bool
	calls   []string
}

func (f *fakeValidator) IsValid(_ context.Context, u string) bool {
	f.calls = append(f.calls, u)
	return !f.invalid[u]
}

func source(url string, ops ...model.Opportunity) model.AnalyzedSource {
	return model.AnalyzedSource{URLOriginal: jsonx.URLValue(url), Oportunidades: ops}
}

func opp(title, tipo string, score int) model.Opportunity {
	return model.Opportunity{TituloIdeia: title, Tipo: tipo, Score: model.FlexScore(score)}
}

func items(urls ...string) []model.SearchResultItem {
	out := make([]model.SearchResultItem, 0, len(urls))
	for _, u := range urls {
		out = append(out, model.SearchResultItem{URL: u})
	}
	return out
}

func TestAggregateAttachesValidatedURL(t *testing.T) {
	a := NewAggregator(&fakeValidator{}, nil)
	sections := map[model.Section]model.SectionSynthesis{
		model.SectionMarket: {FontesAnalisadas: []model.AnalyzedSource{
			source("https://exame.com/noticia", opp("Ideia", "Educativo", 80)),
		}},
	}
	results := map[model.Section][]model.SearchResultItem{
		model.SectionMarket: items("https://exame.com/noticia"),
	}

	groups, usedKeys := a.Aggregate(context.Background(), sections, results, map[string]struct{}{})
	g := groups[model.CategoryEducativo]
	if g == nil || len(g.Items) != 1 {
		t.Fatalf("expected one educativo opportunity, got %+v", groups)
	}
	it := g.Items[0]
	if it.URLFonte != "https://exame.com/noticia" {
		t.Errorf("URLFonte = %q", it.URLFonte)
	}
	if it.OrigemSecao != model.SectionMarket {
		t.Errorf("OrigemSecao = %q", it.OrigemSecao)
	}
	if len(usedKeys) != 1 || usedKeys[0] != urlkey.Normalize("https://exame.com/noticia") {
		t.Errorf("usedKeys = %v", usedKeys)
	}
}

func TestAggregateSwapsHallucinatedURLForDomainMatch(t *testing.T) {
	// The AI invents a path; a real same-domain URL exists in the pool.
	v := &fakeValidator{}
	a := NewAggregator(v, nil)
	sections := map[model.Section]model.SectionSynthesis{
		model.SectionMarket: {FontesAnalisadas: []model.AnalyzedSource{
			source("https://forbes.com.br/fake-path", opp("Ideia", "Futuro", 70)),
		}},
	}
	results := map[model.Section][]model.SearchResultItem{
		model.SectionMarket: items("https://forbes.com.br/real-path"),
	}

	groups, _ := a.Aggregate(context.Background(), sections, results, map[string]struct{}{})
	g := groups[model.CategoryFuturo]
	if g == nil || len(g.Items) != 1 {
		t.Fatalf("expected one opportunity, got %+v", groups)
	}
	if g.Items[0].URLFonte != "https://forbes.com.br/real-path" {
		t.Errorf("expected domain-matched pool URL, got %q", g.Items[0].URLFonte)
	}
}

func TestAggregateDuplicateSwapsOrDrops(t *testing.T) {
	used := map[string]struct{}{
		urlkey.Normalize("https://exame.com/ja-usada"): {},
	}
	sections := map[model.Section]model.SectionSynthesis{
		model.SectionMarket: {FontesAnalisadas: []model.AnalyzedSource{
			source("https://exame.com/ja-usada", opp("Ideia", "Educativo", 60)),
		}},
	}

	// An unused alternate exists: substitution.
	a := NewAggregator(&fakeValidator{}, nil)
	results := map[model.Section][]model.SearchResultItem{
		model.SectionMarket: items("https://exame.com/ja-usada", "https://valor.globo.com/alternativa"),
	}
	groups, _ := a.Aggregate(context.Background(), sections, results, used)
	g := groups[model.CategoryEducativo]
	if g == nil || len(g.Items) != 1 {
		t.Fatalf("expected substitution, got %+v", groups)
	}
	if g.Items[0].URLFonte != "https://valor.globo.com/alternativa" {
		t.Errorf("expected the unused alternate, got %q", g.Items[0].URLFonte)
	}

	// No alternate: the source is dropped, zero opportunities.
	a = NewAggregator(&fakeValidator{}, nil)
	results = map[model.Section][]model.SearchResultItem{
		model.SectionMarket: items("https://exame.com/ja-usada"),
	}
	groups, usedKeys := a.Aggregate(context.Background(), sections, results, used)
	if len(groups) != 0 {
		t.Fatalf("expected no groups, got %+v", groups)
	}
	if len(usedKeys) != 0 {
		t.Errorf("dropped source must not consume keys, got %v", usedKeys)
	}
}

func TestAggregateTriesAlternatesOnValidationFailure(t *testing.T) {
	v := &fakeValidator{invalid: map[string]bool{"https://exame.com/morta": true}}
	a := NewAggregator(v, nil)
	sections := map[model.Section]model.SectionSynthesis{
		model.SectionMarket: {FontesAnalisadas: []model.AnalyzedSource{
			source("https://exame.com/morta", opp("Ideia", "Educativo", 60)),
		}},
	}
	results := map[model.Section][]model.SearchResultItem{
		model.SectionMarket: items("https://exame.com/morta", "https://exame.com/viva"),
	}
	groups, _ := a.Aggregate(context.Background(), sections, results, map[string]struct{}{})
	g := groups[model.CategoryEducativo]
	if g == nil || len(g.Items) != 1 {
		t.Fatalf("expected alternate to be used, got %+v", groups)
	}
	if g.Items[0].URLFonte != "https://exame.com/viva" {
		t.Errorf("expected same-domain alternate, got %q", g.Items[0].URLFonte)
	}
}

func TestAggregateTopThreeStable(t *testing.T) {
	a := NewAggregator(&fakeValidator{}, nil)
	sections := map[model.Section]model.SectionSynthesis{
		model.SectionMarket: {FontesAnalisadas: []model.AnalyzedSource{
			source("https://exame.com/a",
				opp("primeira-80", "Educativo", 80),
				opp("empate-1", "Educativo", 50),
				opp("empate-2", "Educativo", 50),
				opp("alta-90", "Educativo", 90),
				opp("baixa-10", "Educativo", 10),
			),
		}},
	}
	results := map[model.Section][]model.SearchResultItem{
		model.SectionMarket: items("https://exame.com/a"),
	}
	groups, _ := a.Aggregate(context.Background(), sections, results, map[string]struct{}{})
	g := groups[model.CategoryEducativo]
	if g == nil || len(g.Items) != 3 {
		t.Fatalf("expected top 3, got %+v", g)
	}
	want := []string{"alta-90", "primeira-80", "empate-1"}
	for i, w := range want {
		if g.Items[i].TituloIdeia != w {
			t.Errorf("position %d = %q, want %q", i, g.Items[i].TituloIdeia, w)
		}
	}
}

func TestCategorize(t *testing.T) {
	cases := []struct {
		label string
		want  model.Category
	}{
		{"🔥 Polêmica", model.CategoryPolemica},
		{"Debate aberto", model.CategoryPolemica},
		{"Educativo", model.CategoryEducativo},
		{"how-to rápido", model.CategoryEducativo},
		{"Newsjacking", model.CategoryNewsjacking},
		{"Estudo de Caso", model.CategoryEstudoCaso},
		{"🔮 Futuro", model.CategoryFuturo},
		{"qualquer coisa", model.CategoryOutros},
		{"", model.CategoryOutros},
	}
	for _, c := range cases {
		if got := categorize(c.label); got.key != c.want {
			t.Errorf("categorize(%q) = %q, want %q", c.label, got.key, c.want)
		}
	}
}

func TestScoreCoercion(t *testing.T) {
	var op model.Opportunity
	cases := map[string]model.FlexScore{
		`{"score": "42"}`:  42,
		`{"score": "abc"}`: 0,
		`{"score": null}`:  0,
		`{}`:               0,
		`{"score": 87.9}`:  87,
	}
	for in, want := range cases {
		op = model.Opportunity{}
		if err := json.Unmarshal([]byte(in), &op); err != nil {
			t.Fatalf("unmarshal %q: %v", in, err)
		}
		if op.Score != want {
			t.Errorf("score from %q = %d, want %d", in, op.Score, want)
		}
	}
}
