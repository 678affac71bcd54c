package model

import (
	"encoding/json"

	"market-briefer/internal/jsonx"
)

// AnalyzedSource is one source the AI claims to have analyzed for a
// section, together with the opportunities derived from it. URLOriginal is
// asserted by the AI and may be hallucinated; it must go through recovery
// and validation before anything trusts it.
type AnalyzedSource struct {
	URLOriginal    jsonx.URLValue `json:"url_original"`
	TituloOriginal string         `json:"titulo_original"`
	Oportunidades  []Opportunity  `json:"oportunidades"`
}

// SectionSynthesis is the per-section JSON object returned by the AI
// collaborator. Opportunity-bearing sections carry FontesAnalisadas;
// descriptive sections (audience, brand, seasonality) instead carry flat
// narrative fields, kept verbatim in Fields.
type SectionSynthesis struct {
	FontesAnalisadas []AnalyzedSource
	Fontes           []string
	Fields           map[string]json.RawMessage
}

// UnmarshalJSON tolerates every malformed shape seen in production: a
// non-object payload yields the zero synthesis (an empty section) rather
// than an error.
func (s *SectionSynthesis) UnmarshalJSON(b []byte) error {
	*s = SectionSynthesis{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	if v, ok := raw["fontes_analisadas"]; ok {
		var fontes []AnalyzedSource
		if err := json.Unmarshal(v, &fontes); err == nil {
			s.FontesAnalisadas = fontes
		}
		delete(raw, "fontes_analisadas")
	}
	if v, ok := raw["fontes"]; ok {
		var fontes []string
		if err := json.Unmarshal(v, &fontes); err == nil {
			s.Fontes = fontes
		}
		delete(raw, "fontes")
	}
	if len(raw) > 0 {
		s.Fields = raw
	}
	return nil
}

// MarshalJSON reassembles the original object shape.
func (s SectionSynthesis) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Fields)+2)
	for k, v := range s.Fields {
		out[k] = v
	}
	if s.FontesAnalisadas != nil {
		out["fontes_analisadas"] = s.FontesAnalisadas
	}
	if s.Fontes != nil {
		out["fontes"] = s.Fontes
	}
	return json.Marshal(out)
}

// StringList decodes a narrative field that should be a list of strings,
// returning nil when it is absent or malformed.
func (s SectionSynthesis) StringList(field string) []string {
	raw, ok := s.Fields[field]
	if !ok {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return list
}
