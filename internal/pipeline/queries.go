package pipeline

import (
	"fmt"
	"strings"
	"time"

	"market-briefer/internal/model"
)

var monthsPT = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

const qualityFilters = "-filetype:pdf -filetype:doc -filetype:docx"

// BuildSectionQueries derives the per-section search queries from a
// subscriber's profile. The queries are deterministic for a given
// profile and date.
func BuildSectionQueries(profile model.Profile, now time.Time) map[model.Section]string {
	timeContext := fmt.Sprintf("%d OR %d", now.Year(), now.Year()+1)

	products := strings.TrimSpace(profile.ProductsServices)
	if products == "" {
		products = profile.BusinessDescription
	}
	productKeywords := orJoin(products, profile.Specialization)
	audienceKeywords := orJoin("", profile.Specialization)

	location := strings.ToLower(profile.Location)
	locationDomain := "com"
	if strings.Contains(location, "brasil") || strings.Contains(location, "br") {
		locationDomain = "br"
	}

	competitors := fmt.Sprintf("principais empresas %s", profile.Specialization)
	benchmarks := fmt.Sprintf("melhores %s referência mundo brasil", profile.Specialization)

	// Three months ahead, for event and seasonality discovery.
	var future []string
	for i := 0; i < 3; i++ {
		m := now.AddDate(0, i, 0)
		future = append(future, fmt.Sprintf("%s %d", monthsPT[m.Month()-1], m.Year()))
	}
	seasonDates := strings.Join(future, " OR ")

	return map[model.Section]string{
		model.SectionMarket: compact(fmt.Sprintf(
			`%s %s %s %s (notícia OR lei OR mudança OR novidade OR lançamento OR regulamentação) site:%s %s -site:medium.com -site:pinterest.* -site:slideshare.net`,
			productKeywords, profile.Specialization, profile.Location, timeContext, locationDomain, qualityFilters)),

		model.SectionCompetition: compact(fmt.Sprintf(
			`(%s OR %s) %s (case de sucesso OR campanha viral OR estratégia de marketing OR lançamento inovador OR "analise de campanha") site:%s %s -site:medium.com -site:pinterest.*`,
			competitors, benchmarks, productKeywords, locationDomain, qualityFilters)),

		model.SectionAudience: compact(fmt.Sprintf(
			`"%s" (%s) comportamento tendências desejos dores %s (pesquisa OR estudo OR relatório OR dados OR estatística) %s -site:pinterest.* -site:slideshare.net`,
			profile.TargetAudience, audienceKeywords, timeContext, qualityFilters)),

		model.SectionTrends: compact(fmt.Sprintf(
			`%s %s (polêmica OR debate OR discussão OR mudança OR "nova regra" OR opinião OR futuro OR desafio) %s ("em alta" OR viral OR trend OR "hot topic") (site:linkedin.com OR site:%s) %s -site:pinterest.* -site:slideshare.net`,
			profile.Specialization, productKeywords, timeContext, locationDomain, qualityFilters)),

		model.SectionSeasonality: compact(fmt.Sprintf(
			`eventos conferências workshops %s %s %s (%s OR eventos %d) (site:sympla.com.br OR site:eventbrite.com.br OR agenda OR calendário) %s`,
			profile.Specialization, productKeywords, profile.Location, seasonDates, now.Year(), qualityFilters)),

		model.SectionBrand: compact(fmt.Sprintf(
			`%s "comportamento do consumidor" "sentimento" %d (tendência de comportamento OR mood do mercado OR clima cultural) %s -site:pinterest.*`,
			profile.Specialization, now.Year(), qualityFilters)),
	}
}

// orJoin turns a comma-separated field into an OR expression, falling
// back to the alternative when the field is empty.
func orJoin(field, fallback string) string {
	f := strings.TrimSpace(field)
	if f == "" {
		return fallback
	}
	parts := strings.Split(f, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, " OR ")
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
