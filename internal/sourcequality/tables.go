package sourcequality

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"market-briefer/internal/model"
)

// deniedDomains are exact domains (and their subdomains) known to produce
// noise: social platforms, academic/document repositories, and hosts that
// routinely answer soft-404s.
var deniedDomains = map[string]struct{}{
	"pinterest.com":    {},
	"pinterest.com.br": {},
	"facebook.com":     {},
	"instagram.com":    {},
	"twitter.com":      {},
	"x.com":            {},
	"tiktok.com":       {},
	"linkedin.com":     {},
	"reddit.com":       {},
	"quora.com":        {},
	"medium.com":       {},
	"scribd.com":       {},
	"slideshare.net":   {},
	"issuu.com":        {},
	"academia.edu":     {},
	"researchgate.net": {},
	"docplayer.com.br": {},
}

// allowedDomains are the curated per-section allowlists. Order matters:
// the first maxDomains entries feed the site:-constrained query.
var allowedDomains = map[model.Section][]string{
	model.SectionMarket: {
		"valor.globo.com",
		"exame.com",
		"infomoney.com.br",
		"forbes.com.br",
		"estadao.com.br",
		"folha.uol.com.br",
		"g1.globo.com",
		"uol.com.br",
		"terra.com.br",
	},
	model.SectionTrends: {
		"meioemensagem.com.br",
		"tecmundo.com.br",
		"techtudo.com.br",
		"canaltech.com.br",
		"tecnoblog.net",
		"olhardigital.com.br",
		"propmark.com.br",
	},
	model.SectionCompetition: {
		"similarweb.com",
		"semrush.com",
		"ahrefs.com",
		"socialblade.com",
	},
}

// premiumDomains get a small global bonus regardless of section.
var premiumDomains = map[string]struct{}{
	"valor.globo.com":      {},
	"forbes.com.br":        {},
	"exame.com":            {},
	"meioemensagem.com.br": {},
}

// blockedExtensions are document filetypes that never make useful sources.
var blockedExtensions = []string{
	".pdf", ".doc", ".docx", ".ppt", ".pptx", ".xls", ".xlsx",
}

// denyPathFragments reject listing, embed, and download style URLs outright.
var denyPathFragments = []string{
	"/tag/", "/tags/", "/category/", "/categoria/",
	"/search", "/busca", "/embed/", "/download/",
}

// listingPathFragments only penalize the score; the URL stays eligible.
var listingPathFragments = []string{"/page/", "/pagina/"}

// Overrides extends the static tables from configuration. Entries are
// additive; the built-in tables are never shrunk at runtime.
type Overrides struct {
	Deny  []string                   `yaml:"deny"`
	Allow map[model.Section][]string `yaml:"allow"`
}

// LoadOverridesFile reads a YAML overrides file.
func LoadOverridesFile(path string) (Overrides, error) {
	var o Overrides
	raw, err := os.ReadFile(path)
	if err != nil {
		return o, fmt.Errorf("read source tables: %w", err)
	}
	if err := yaml.Unmarshal(raw, &o); err != nil {
		return o, fmt.Errorf("parse source tables: %w", err)
	}
	return o, nil
}

// Merge applies overrides to the package tables.
func Merge(o Overrides) {
	for _, d := range o.Deny {
		deniedDomains[normalizeDomain(d)] = struct{}{}
	}
	for section, domains := range o.Allow {
		for _, d := range domains {
			d = normalizeDomain(d)
			if !containsDomain(allowedDomains[section], d) {
				allowedDomains[section] = append(allowedDomains[section], d)
			}
		}
	}
}

func containsDomain(list []string, d string) bool {
	for _, v := range list {
		if v == d {
			return true
		}
	}
	return false
}
