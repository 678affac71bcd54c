// Package opportunity turns per-section AI syntheses into the final
// categorized, ranked opportunity groups of a brief.
package opportunity

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"market-briefer/internal/metrics"
	"market-briefer/internal/model"
	"market-briefer/internal/sourcequality"
	"market-briefer/internal/urlcheck"
	"market-briefer/internal/urlkey"
)

const maxPerCategory = 3

// URLValidator is the HTTP check dependency, narrowed for tests.
type URLValidator interface {
	IsValid(ctx context.Context, rawURL string) bool
}

// categoryDef maps AI-provided type labels onto the fixed category set.
// The table is ordered: the first matching keyword wins.
type categoryDef struct {
	key      model.Category
	titulo   string
	keywords []string
}

var categoryTable = []categoryDef{
	{model.CategoryPolemica, "🔥 Polêmicas e Debates", []string{"polêmica", "polemica", "debate", "controvérsia", "controversia"}},
	{model.CategoryEducativo, "🧠 Conteúdo Educativo", []string{"educativo", "educacional", "how-to", "tutorial", "guia"}},
	{model.CategoryNewsjacking, "📰 Newsjacking", []string{"newsjacking", "notícia", "noticia", "atualidade"}},
	{model.CategoryEntretenimento, "😂 Entretenimento", []string{"entretenimento", "humor", "meme", "viral"}},
	{model.CategoryEstudoCaso, "💼 Estudos de Caso", []string{"estudo de caso", "estudo_caso", "case", "caso de sucesso"}},
	{model.CategoryFuturo, "🔮 Tendências e Futuro", []string{"futuro", "tendência", "tendencia", "previsão", "previsao"}},
	{model.CategoryOutros, "💡 Outras Ideias", nil},
}

// emojiMarkers are the decorations the model tends to prepend to type
// labels; they are stripped before keyword matching.
var emojiMarkers = []string{"🔥", "🧠", "📰", "😂", "💼", "🔮", "💡"}

// Aggregator resolves, validates and ranks the opportunities from the
// opportunity-bearing sections.
type Aggregator struct {
	validator URLValidator
	log       *slog.Logger
}

func NewAggregator(validator URLValidator, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{validator: validator, log: log}
}

// Aggregate walks the opportunity sections in pipeline order, attaches a
// verified URL to every surviving source, and groups the nested
// opportunities by category, top 3 per category by score.
//
// usedRecent is read-only history; usedKeys collects the URL keys this
// aggregation consumed so the caller can persist them.
func (a *Aggregator) Aggregate(
	ctx context.Context,
	sections map[model.Section]model.SectionSynthesis,
	searchResults map[model.Section][]model.SearchResultItem,
	usedRecent map[string]struct{},
) (map[model.Category]*model.OpportunityGroup, []string) {
	groups := map[model.Category]*model.OpportunityGroup{}
	usedHere := map[string]struct{}{}
	var usedKeys []string

	for _, section := range model.OpportunitySections {
		syn, ok := sections[section]
		if !ok {
			continue
		}
		pool := searchResults[section]
		candidates := a.candidateURLs(section, pool)

		for _, src := range syn.FontesAnalisadas {
			finalURL, ok := a.resolveSource(ctx, section, src, pool, candidates, usedRecent, usedHere)
			if !ok {
				continue
			}
			key := urlkey.Normalize(finalURL)
			if key != "" {
				usedHere[key] = struct{}{}
				usedKeys = append(usedKeys, key)
			}
			for _, op := range src.Oportunidades {
				op.URLFonte = finalURL
				op.OrigemSecao = section
				a.place(groups, op)
			}
		}
	}

	for _, g := range groups {
		sort.SliceStable(g.Items, func(i, j int) bool {
			return g.Items[i].Score > g.Items[j].Score
		})
		if len(g.Items) > maxPerCategory {
			g.Items = g.Items[:maxPerCategory]
		}
	}
	return groups, usedKeys
}

// candidateURLs re-derives the section's quality-ordered URL list so the
// resolution ladder has alternates to fall back on. The loose gate
// (minimum allowlist 1) keeps the list usable even for thin sections.
func (a *Aggregator) candidateURLs(section model.Section, pool []model.SearchResultItem) []string {
	urls := make([]string, 0, len(pool))
	for _, it := range pool {
		if it.URL != "" {
			urls = append(urls, it.URL)
		}
	}
	return sourcequality.PickCandidates(section, urls, 1, 10)
}

// resolveSource runs the recovery-swap-validate ladder for one analyzed
// source. It returns the publishable URL, or false when the source must
// be dropped.
func (a *Aggregator) resolveSource(
	ctx context.Context,
	section model.Section,
	src model.AnalyzedSource,
	pool []model.SearchResultItem,
	candidates []string,
	usedRecent, usedHere map[string]struct{},
) (string, bool) {
	recovered, matched := urlcheck.Recover(src.URLOriginal, pool)
	if recovered == "" {
		metrics.DroppedSources.WithLabelValues("no_url").Inc()
		return "", false
	}

	// An unmatched AI string is swapped for a same-domain pool candidate
	// when one exists; a real fetched URL beats a possibly invented one.
	if !matched {
		if alt := firstSameDomain(recovered, candidates, nil); alt != "" {
			recovered = alt
		}
	}

	// Dedup collision: try to swap for an unused candidate before
	// giving up on the source.
	if isUsed(recovered, usedRecent, usedHere) {
		alt := firstUnused(candidates, usedRecent, usedHere)
		if alt == "" {
			metrics.DroppedSources.WithLabelValues("duplicate").Inc()
			a.log.Debug("aggregator: source dropped as duplicate", "section", section, "url", recovered)
			return "", false
		}
		recovered = alt
	}

	if a.validator.IsValid(ctx, recovered) {
		return recovered, true
	}

	// Validation failed: same-domain alternates first, then anything
	// left in the candidate list.
	tried := map[string]struct{}{recovered: {}}
	if alt := firstSameDomain(recovered, candidates, func(u string) bool {
		_, seen := tried[u]
		return !seen && !isUsed(u, usedRecent, usedHere) && a.validator.IsValid(ctx, u)
	}); alt != "" {
		return alt, true
	}
	for _, u := range candidates {
		if _, seen := tried[u]; seen {
			continue
		}
		if isUsed(u, usedRecent, usedHere) {
			continue
		}
		if a.validator.IsValid(ctx, u) {
			return u, true
		}
		tried[u] = struct{}{}
	}

	metrics.DroppedSources.WithLabelValues("invalid_url").Inc()
	a.log.Info("aggregator: source dropped, no valid url", "section", section, "url", recovered)
	return "", false
}

// place categorizes one opportunity and appends it to its group.
func (a *Aggregator) place(groups map[model.Category]*model.OpportunityGroup, op model.Opportunity) {
	def := categorize(op.Tipo)
	g, ok := groups[def.key]
	if !ok {
		g = &model.OpportunityGroup{Titulo: def.titulo}
		groups[def.key] = g
	}
	g.Items = append(g.Items, op)
}

func categorize(label string) categoryDef {
	clean := strings.ToLower(strings.TrimSpace(label))
	for _, e := range emojiMarkers {
		clean = strings.ReplaceAll(clean, e, "")
	}
	clean = strings.TrimSpace(clean)
	for _, def := range categoryTable {
		for _, kw := range def.keywords {
			if strings.Contains(clean, kw) {
				return def
			}
		}
	}
	return categoryTable[len(categoryTable)-1]
}

func isUsed(rawURL string, usedRecent, usedHere map[string]struct{}) bool {
	key := urlkey.Normalize(rawURL)
	if key == "" {
		return false
	}
	if _, ok := usedRecent[key]; ok {
		return true
	}
	_, ok := usedHere[key]
	return ok
}

// firstSameDomain returns the first candidate sharing the given URL's
// domain that passes accept (accept nil means any).
func firstSameDomain(rawURL string, candidates []string, accept func(string) bool) string {
	domain := domainOf(rawURL)
	if domain == "" {
		return ""
	}
	for _, c := range candidates {
		if domainOf(c) != domain {
			continue
		}
		if accept == nil || accept(c) {
			return c
		}
	}
	return ""
}

func firstUnused(candidates []string, usedRecent, usedHere map[string]struct{}) string {
	for _, c := range candidates {
		if !isUsed(c, usedRecent, usedHere) {
			return c
		}
	}
	return ""
}

func domainOf(rawURL string) string {
	key := urlkey.Normalize(rawURL)
	if key == "" {
		return ""
	}
	if i := strings.IndexByte(key, '/'); i >= 0 {
		return key[:i]
	}
	return key
}
