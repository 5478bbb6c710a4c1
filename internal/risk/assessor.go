package risk

import (
	"fmt"
	"strings"

	"github.com/ppiankov/compass/internal/model"
	"github.com/ppiankov/compass/internal/reasoning"
)

// LinkabilityFactor is the secondary factor recorded when several distinct
// identifier types appear together
const LinkabilityFactor = "high linkability (multiple identifier types)"

// Result is a severity decision with its concluded chain
type Result struct {
	Severity         model.Severity
	PrimaryFactor    string // Empty when no detection drove the decision
	SecondaryFactors []string
	Chain            reasoning.Record
}

// Assessor computes an ordinal severity from extracted detections
type Assessor struct {
	tiers                map[string]model.Severity
	linkabilityThreshold int
	escalationCount      int
}

// New creates an assessor from a tier partition
func New(cfg model.RiskConfig) (*Assessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tiers := make(map[string]model.Severity, len(cfg.Critical)+len(cfg.High)+len(cfg.Medium))
	for _, c := range cfg.Critical {
		tiers[c] = model.SeverityCritical
	}
	for _, c := range cfg.High {
		tiers[c] = model.SeverityHigh
	}
	for _, c := range cfg.Medium {
		tiers[c] = model.SeverityMedium
	}

	return &Assessor{
		tiers:                tiers,
		linkabilityThreshold: cfg.LinkabilityThreshold,
		escalationCount:      cfg.MediumEscalationCount,
	}, nil
}

// Tier returns the configured tier of a detection category; unlisted categories are LOW
func (a *Assessor) Tier(category string) model.Severity {
	return a.tiers[category]
}

// categoryCount is one catalog entry, kept in first-seen order
type categoryCount struct {
	category string
	count    int
	tier     model.Severity
}

// Assess determines the severity of a set of detections. Any CRITICAL-tier
// detection forces CRITICAL; linkability only annotates.
func (a *Assessor) Assess(detections []model.Detection) Result {
	chain := reasoning.New("Risk Level Assessment")

	// 1. Catalog by category
	catalog := a.catalog(detections)
	var catalogFindings []string
	catalogConclusion := "No privacy risk"
	if len(catalog) == 0 {
		catalogFindings = []string{"No detections found"}
	} else {
		for _, entry := range catalog {
			catalogFindings = append(catalogFindings,
				fmt.Sprintf("%s: %d instance(s) [%s tier]", entry.category, entry.count, entry.tier))
		}
		catalogConclusion = fmt.Sprintf("Found %d items across %d categories", len(detections), len(catalog))
	}
	chain.AddStep("Cataloging detected personal information", catalogFindings, catalogConclusion)

	// 2. Highest tier present
	severity, primary, tierFindings := a.determineTier(catalog, len(detections))
	chain.AddStep("Identifying highest risk elements", tierFindings, fmt.Sprintf("Risk level determined: %s", severity))

	// 3. Linkability
	var secondary []string
	var linkFindings []string
	if a.escalated(catalog, len(detections)) {
		secondary = append(secondary, fmt.Sprintf("volume escalation (%d medium-tier items)", len(detections)))
	}
	if len(catalog) >= a.linkabilityThreshold {
		secondary = append(secondary, LinkabilityFactor)
		linkFindings = append(linkFindings,
			fmt.Sprintf("Multiple identifier types (%d) increase linkability risk", len(catalog)))
	} else {
		linkFindings = append(linkFindings,
			fmt.Sprintf("Limited identifier types (%d) reduce linkability", len(catalog)))
	}
	chain.AddStep("Considering context and linkability", linkFindings, "Linkability noted; tier unchanged")

	record, _ := chain.SetConclusion(conclusion(severity, primary, secondary), reasoning.ConfidenceHigh)

	return Result{
		Severity:         severity,
		PrimaryFactor:    primary,
		SecondaryFactors: secondary,
		Chain:            record,
	}
}

func (a *Assessor) catalog(detections []model.Detection) []categoryCount {
	index := make(map[string]int)
	var catalog []categoryCount
	for _, d := range detections {
		if i, ok := index[d.Category]; ok {
			catalog[i].count++
			continue
		}
		index[d.Category] = len(catalog)
		catalog = append(catalog, categoryCount{category: d.Category, count: 1, tier: a.Tier(d.Category)})
	}
	return catalog
}

// determineTier returns the severity, the primary factor (first category of
// the winning tier in detection order) and the findings that explain it
func (a *Assessor) determineTier(catalog []categoryCount, total int) (model.Severity, string, []string) {
	if len(catalog) == 0 {
		return model.SeverityLow, "", []string{"No tiered categories present"}
	}

	highest := highestTier(catalog)
	var members []string
	for _, entry := range catalog {
		if entry.tier == highest {
			members = append(members, entry.category)
		}
	}
	primary := members[0]

	findings := []string{fmt.Sprintf("%s tier categories found: %s", highest, strings.Join(members, ", "))}
	severity := highest
	switch highest {
	case model.SeverityCritical:
		findings = append(findings, "Triggers automatic CRITICAL classification")
	case model.SeverityMedium:
		if a.escalated(catalog, total) {
			findings = append(findings, fmt.Sprintf("Multiple items (%d) escalate risk to HIGH", total))
			severity = model.SeverityHigh
		}
	}
	return severity, primary, findings
}

// escalated reports whether a set topping out at MEDIUM is large enough to count as HIGH
func (a *Assessor) escalated(catalog []categoryCount, total int) bool {
	if a.escalationCount == 0 || total <= a.escalationCount {
		return false
	}
	return highestTier(catalog) == model.SeverityMedium
}

func highestTier(catalog []categoryCount) model.Severity {
	highest := model.SeverityLow
	for _, entry := range catalog {
		if entry.tier > highest {
			highest = entry.tier
		}
	}
	return highest
}

func conclusion(severity model.Severity, primary string, secondary []string) string {
	parts := []string{severity.String()}
	if primary != "" {
		parts = append(parts, "primary factor: "+primary)
	}
	if len(secondary) > 0 {
		parts = append(parts, "secondary factors: "+strings.Join(secondary, ", "))
	}
	return strings.Join(parts, "; ")
}
