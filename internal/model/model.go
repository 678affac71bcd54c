package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Section identifies one of the six weekly topic areas.
type Section string

const (
	SectionMarket      Section = "mercado"
	SectionCompetition Section = "concorrencia"
	SectionAudience    Section = "publico"
	SectionTrends      Section = "tendencias"
	SectionSeasonality Section = "sazonalidade"
	SectionBrand       Section = "marca"
)

// PipelineOrder is the fixed processing order for a run. The audience
// section borrows search hits from market and trends, so the order is
// load-bearing and must not change.
var PipelineOrder = []Section{
	SectionMarket,
	SectionCompetition,
	SectionAudience,
	SectionTrends,
	SectionSeasonality,
	SectionBrand,
}

// OpportunitySections are the sections whose syntheses carry analyzed
// sources with content opportunities.
var OpportunitySections = []Section{SectionMarket, SectionTrends, SectionCompetition}

// Category is one of the fixed opportunity groupings.
type Category string

const (
	CategoryPolemica       Category = "polemica"
	CategoryEducativo      Category = "educativo"
	CategoryNewsjacking    Category = "newsjacking"
	CategoryEntretenimento Category = "entretenimento"
	CategoryEstudoCaso     Category = "estudo_caso"
	CategoryFuturo         Category = "futuro"
	CategoryOutros         Category = "outros"
)

// SearchResultItem is a single hit from the external search provider.
type SearchResultItem struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	Snippet      string `json:"snippet"`
	SourceDomain string `json:"source_domain"`
}

// Profile carries the subscriber signals the pipeline needs. Anything
// heavier (subscription state, credits) lives outside this core.
type Profile struct {
	ID                  string
	Email               string
	Name                string
	Specialization      string
	BusinessDescription string
	ProductsServices    string
	TargetAudience      string
	Location            string
	PolicyOverride      string
}

// FlexScore is an int that tolerates the shapes the AI actually emits for
// scores: numbers, numeric strings, floats, null, or garbage. Anything
// unparseable becomes 0; unmarshalling never fails.
type FlexScore int

func (s *FlexScore) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = 0
		return nil
	}
	raw := string(b)
	if raw[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			*s = 0
			return nil
		}
		raw = strings.TrimSpace(str)
	}
	if n, err := strconv.Atoi(raw); err == nil {
		*s = FlexScore(n)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*s = FlexScore(int(f))
		return nil
	}
	*s = 0
	return nil
}

// Opportunity is a single AI-proposed content idea tied to one analyzed
// source. URLFonte and OrigemSecao are attached by the aggregator, not by
// the AI.
type Opportunity struct {
	TituloIdeia        string    `json:"titulo_ideia"`
	Tipo               string    `json:"tipo"`
	Score              FlexScore `json:"score"`
	ExplicacaoScore    string    `json:"explicacao_score"`
	TextoBaseAnalisado string    `json:"texto_base_analisado"`
	GatilhoCriativo    string    `json:"gatilho_criativo"`
	URLFonte           string    `json:"url_fonte"`
	OrigemSecao        Section   `json:"origem_secao"`
}

// OpportunityGroup holds the ranked opportunities of one category.
// Items are sorted by score descending, ties kept in insertion order.
type OpportunityGroup struct {
	Titulo string        `json:"titulo"`
	Items  []Opportunity `json:"items"`
}

// Brief is the final in-memory structure handed to the persistence and
// email collaborators.
type Brief struct {
	RunID        string                         `json:"run_id"`
	SubscriberID string                         `json:"subscriber_id"`
	PolicyKey    string                         `json:"policy_key"`
	GeneratedAt  time.Time                      `json:"generated_at"`
	Groups       map[Category]*OpportunityGroup `json:"groups"`
	UsedURLKeys  []string                       `json:"used_url_keys"`
}
