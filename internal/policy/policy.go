// Package policy holds the named search-and-filter policies and resolves
// which one applies to a subscriber profile. Policies are versioned in
// code on purpose: a handful of vetted options carries less operational
// risk than free-form configuration.
package policy

import "market-briefer/internal/model"

// Policy bundles the coverage thresholds and language fallback order that
// control how strict the pipeline is for one run. Instances are immutable
// after construction.
type Policy struct {
	Key string

	// Languages in provider lr syntax, primary first. E.g. lang_pt, lang_en.
	Languages []string

	// MinSelectedBySection is the minimum item count per section before
	// coverage is considered sufficient.
	MinSelectedBySection map[model.Section]int

	// AllowlistMinCoverage is the allowlisted-URL count at which a section
	// switches to allowlist-only candidate selection.
	AllowlistMinCoverage map[model.Section]int

	// AllowlistRatioThreshold fires a warning when the allowlisted fraction
	// of selected items drops below it.
	AllowlistRatioThreshold float64
}

// MinSelected returns the section minimum, defaulting to 3.
func (p Policy) MinSelected(section model.Section) int {
	if v, ok := p.MinSelectedBySection[section]; ok {
		return v
	}
	return 3
}

// MinAllowlist returns the section's allowlist coverage gate, defaulting
// to 3.
func (p Policy) MinAllowlist(section model.Section) int {
	if v, ok := p.AllowlistMinCoverage[section]; ok {
		return v
	}
	return 3
}

const (
	KeyDefault        = "default"
	KeyBusinessStrict = "business_strict"
	KeyBroadDiscovery = "broad_discovery"
)

func registry() map[string]Policy {
	defaultMin := map[model.Section]int{
		model.SectionMarket:      3,
		model.SectionTrends:      3,
		model.SectionCompetition: 3,
		model.SectionAudience:    3,
		model.SectionSeasonality: 1,
		model.SectionBrand:       1,
	}
	defaultCoverage := map[model.Section]int{
		model.SectionMarket:      3,
		model.SectionTrends:      3,
		model.SectionCompetition: 3,
		model.SectionAudience:    2,
		model.SectionSeasonality: 2,
		model.SectionBrand:       1,
	}

	def := Policy{
		Key:                     KeyDefault,
		Languages:               []string{"lang_pt", "lang_en"},
		MinSelectedBySection:    defaultMin,
		AllowlistMinCoverage:    defaultCoverage,
		AllowlistRatioThreshold: 0.60,
	}

	// Strict: same minimums, but the allowlist-only gate engages earlier
	// and the ratio alert is tighter.
	strict := Policy{
		Key:       KeyBusinessStrict,
		Languages: []string{"lang_pt", "lang_en"},
		MinSelectedBySection: cloneWith(defaultMin, nil),
		AllowlistMinCoverage: cloneWith(defaultCoverage, map[model.Section]int{
			model.SectionMarket:      2,
			model.SectionTrends:      2,
			model.SectionCompetition: 2,
		}),
		AllowlistRatioThreshold: 0.70,
	}

	// Broad: accepts thinner coverage so sparse niches still get a brief,
	// and rarely restricts to allowlist-only mode.
	broad := Policy{
		Key:       KeyBroadDiscovery,
		Languages: []string{"lang_pt", "lang_en"},
		MinSelectedBySection: cloneWith(defaultMin, map[model.Section]int{
			model.SectionMarket:      2,
			model.SectionTrends:      2,
			model.SectionCompetition: 2,
		}),
		AllowlistMinCoverage: cloneWith(defaultCoverage, map[model.Section]int{
			model.SectionMarket:      4,
			model.SectionTrends:      4,
			model.SectionCompetition: 4,
		}),
		AllowlistRatioThreshold: 0.50,
	}

	return map[string]Policy{
		def.Key:    def,
		strict.Key: strict,
		broad.Key:  broad,
	}
}

func cloneWith(base, overrides map[model.Section]int) map[model.Section]int {
	out := make(map[model.Section]int, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// ByKey looks up a policy by its key.
func ByKey(key string) (Policy, bool) {
	p, ok := registry()[key]
	return p, ok
}

// IsValidKey reports whether key names a known policy.
func IsValidKey(key string) bool {
	_, ok := registry()[key]
	return key != "" && ok
}

// Keys lists the known policy keys.
func Keys() []string {
	return []string{KeyDefault, KeyBusinessStrict, KeyBroadDiscovery}
}
