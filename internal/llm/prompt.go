package llm

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/compass/internal/model"
)

// ErrCitationLeak is returned when generated text cites a source that was
// not among the retrieved passages
var ErrCitationLeak = errors.New("citation of unretrieved source")

const systemPrompt = "You are a privacy compliance assistant. You answer only from the reference passages you are given and cite them as [Source: <document name>]."

const maxPromptPassages = 10

var citationPattern = regexp.MustCompile(`\[Source:\s*([^\]]+?)\s*\]`)

// BuildPrompt composes the default prompt for a processed report. The
// decisions in the report are stated as facts; the model never revisits them.
func BuildPrompt(report model.Report) string {
	var b strings.Builder

	switch report.Classification.Category {
	case model.CategoryPersonalInformation:
		b.WriteString("A support ticket was flagged as containing personal information.\n\n")
		fmt.Fprintf(&b, "Ticket:\n%s\n\n", report.Message)
		if report.Risk != nil {
			fmt.Fprintf(&b, "Risk level: %s\n", report.Risk.Severity)
			if report.Risk.PrimaryFactor != "" {
				fmt.Fprintf(&b, "Primary factor: %s\n", report.Risk.PrimaryFactor)
			}
			for _, f := range report.Risk.SecondaryFactors {
				fmt.Fprintf(&b, "Secondary factor: %s\n", f)
			}
			b.WriteString("Detected personal information:\n")
			b.WriteString(formatDetections(report.Risk.Detections))
		}
		b.WriteString("\nRecommend handling procedures and the compliance requirements that apply.\n")
	case model.CategoryDevelopment:
		b.WriteString("A developer asked a privacy compliance question about their system.\n\n")
		fmt.Fprintf(&b, "Question:\n%s\n\n", report.Message)
		b.WriteString("Give concrete implementation guidance.\n")
	default:
		fmt.Fprintf(&b, "Question:\n%s\n\n", report.Message)
		b.WriteString("Start with a direct answer, then the relevant obligations.\n")
	}

	b.WriteString("\nReference passages:\n")
	b.WriteString(formatPassages(report.Retrieval.Passages))

	b.WriteString("\nRules:\n")
	b.WriteString("1. Cite only these sources, using [Source: <document name>]:\n")
	b.WriteString(joinSources(report.Sources()))
	b.WriteString("\n2. If the passages do not answer the question, say so.\n")
	b.WriteString("3. Recommend consulting legal counsel for specific situations.\n")

	return b.String()
}

func formatDetections(detections []model.Detection) string {
	if len(detections) == 0 {
		return "- (none)\n"
	}
	counts := make(map[string]int)
	var order []string
	for _, d := range detections {
		if counts[d.Category] == 0 {
			order = append(order, d.Category)
		}
		counts[d.Category]++
	}
	var b strings.Builder
	for _, c := range order {
		fmt.Fprintf(&b, "- %s: %d\n", c, counts[c])
	}
	return b.String()
}

func formatPassages(passages []model.Passage) string {
	if len(passages) == 0 {
		return "No relevant policy context found.\n"
	}
	var b strings.Builder
	for i, p := range passages {
		if i >= maxPromptPassages {
			fmt.Fprintf(&b, "... and %d more passages\n", len(passages)-maxPromptPassages)
			break
		}
		fmt.Fprintf(&b, "[Context %d] Source: %s\n%s\n\n", i+1, p.Source, strings.TrimSpace(p.Text))
	}
	return b.String()
}

func joinSources(sources []string) string {
	if len(sources) == 0 {
		return "   (no sources available)"
	}
	lines := make([]string, len(sources))
	for i, s := range sources {
		lines[i] = "   - " + s
	}
	return strings.Join(lines, "\n")
}

// ExtractCitations returns the distinct [Source: X] names in order of first use
func ExtractCitations(text string) []string {
	seen := make(map[string]bool)
	var cited []string
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		cited = append(cited, name)
	}
	return cited
}

// CheckCitations fails with ErrCitationLeak for the first cited source not
// in allowed
func CheckCitations(cited, allowed []string) error {
	ok := make(map[string]bool, len(allowed))
	for _, s := range allowed {
		ok[s] = true
	}
	for _, c := range cited {
		if !ok[c] {
			return fmt.Errorf("%w: %s", ErrCitationLeak, c)
		}
	}
	return nil
}
