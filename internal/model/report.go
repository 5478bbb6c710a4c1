package model

import (
	"time"

	"github.com/ppiankov/compass/internal/reasoning"
)

// Report bundles every decision made for one message together with its
// audit chains. It is what the presentation layer and the generator consume.
type Report struct {
	ID          string    `json:"id"`
	Message     string    `json:"message"`
	ProcessedAt time.Time `json:"processed_at"`

	Classification Classification `json:"classification"`
	Risk           *RiskSummary   `json:"risk,omitempty"` // Only for personal-information tickets
	Retrieval      Retrieval      `json:"retrieval"`

	Advice *Advice `json:"advice,omitempty"` // Optional generated answer, never affects decisions
}

// Classification is the category decision and its chain
type Classification struct {
	Category Category         `json:"category"`
	Chain    reasoning.Record `json:"chain"`
}

// RiskSummary is the severity decision and its chain
type RiskSummary struct {
	Detections       []Detection      `json:"detections"`
	Severity         Severity         `json:"severity"`
	PrimaryFactor    string           `json:"primary_factor,omitempty"`
	SecondaryFactors []string         `json:"secondary_factors,omitempty"`
	Chain            reasoning.Record `json:"chain"`
}

// Retrieval is the assembled reference material and its chain
type Retrieval struct {
	Passages []Passage        `json:"passages"`
	Chain    reasoning.Record `json:"chain"`
}

// Chains returns every concluded chain in the report in decision order
func (r *Report) Chains() []reasoning.Record {
	chains := []reasoning.Record{r.Classification.Chain}
	if r.Risk != nil {
		chains = append(chains, r.Risk.Chain)
	}
	chains = append(chains, r.Retrieval.Chain)
	return chains
}

// Sources returns the distinct passage sources in first-seen order
func (r *Report) Sources() []string {
	seen := make(map[string]bool)
	var sources []string
	for _, p := range r.Retrieval.Passages {
		if p.Source == "" || seen[p.Source] {
			continue
		}
		seen[p.Source] = true
		sources = append(sources, p.Source)
	}
	return sources
}

// Advice contains the optional generated answer
type Advice struct {
	Enabled       bool     `json:"enabled"`
	Provider      string   `json:"provider,omitempty"`
	Model         string   `json:"model,omitempty"`
	StrictSources bool     `json:"strict_sources"`
	Text          string   `json:"text,omitempty"`
	CitedSources  []string `json:"cited_sources,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}
