package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ppiankov/compass/internal/model"
)

// Renderer writes reports for people and machines
type Renderer struct {
	includeTranscript bool
}

// NewRenderer creates a renderer. Transcripts of every reasoning chain are
// appended to Markdown output when includeTranscript is set.
func NewRenderer(includeTranscript bool) *Renderer {
	return &Renderer{includeTranscript: includeTranscript}
}

// RenderJSON writes the report as indented JSON. Chains are embedded in
// their canonical form.
func (r *Renderer) RenderJSON(w io.Writer, report *model.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// RenderMarkdown writes the report as a Markdown document. Detected values
// are never written, only their types and offsets.
func (r *Renderer) RenderMarkdown(w io.Writer, report *model.Report) error {
	var b strings.Builder

	b.WriteString("# Compass Report\n\n")
	fmt.Fprintf(&b, "- **Report ID:** %s\n", report.ID)
	fmt.Fprintf(&b, "- **Processed:** %s\n", report.ProcessedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Category:** %s (`%s`)\n\n", report.Classification.Category.Label(), report.Classification.Category)

	b.WriteString("## Message\n\n")
	for _, line := range strings.Split(report.Message, "\n") {
		fmt.Fprintf(&b, "> %s\n", line)
	}
	b.WriteString("\n")

	if report.Risk != nil {
		b.WriteString("## Risk Assessment\n\n")
		fmt.Fprintf(&b, "- **Severity:** %s\n", report.Risk.Severity)
		if report.Risk.PrimaryFactor != "" {
			fmt.Fprintf(&b, "- **Primary factor:** %s\n", report.Risk.PrimaryFactor)
		}
		for _, f := range report.Risk.SecondaryFactors {
			fmt.Fprintf(&b, "- **Secondary factor:** %s\n", f)
		}
		if len(report.Risk.Detections) > 0 {
			b.WriteString("\n| Type | Span |\n|---|---|\n")
			for _, d := range report.Risk.Detections {
				fmt.Fprintf(&b, "| %s | %d–%d |\n", d.Category, d.Start, d.End)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Reference Passages\n\n")
	if len(report.Retrieval.Passages) == 0 {
		b.WriteString("_No reference passages found._\n\n")
	}
	for i, p := range report.Retrieval.Passages {
		fmt.Fprintf(&b, "### %d. %s (relevance %.2f)\n\n%s\n\n", i+1, p.Source, p.Relevance, strings.TrimSpace(p.Text))
	}

	if report.Advice != nil {
		b.WriteString("## Advice\n\n")
		if report.Advice.Enabled && report.Advice.Text != "" {
			b.WriteString(report.Advice.Text)
			b.WriteString("\n\n")
		} else {
			b.WriteString("_No advice generated._\n\n")
		}
		for _, warning := range report.Advice.Warnings {
			fmt.Fprintf(&b, "- ⚠ %s\n", warning)
		}
		if len(report.Advice.Warnings) > 0 {
			b.WriteString("\n")
		}
	}

	if r.includeTranscript {
		b.WriteString("## Reasoning\n\n")
		for _, chain := range report.Chains() {
			b.WriteString("```text\n")
			b.WriteString(chain.Render())
			b.WriteString("\n```\n\n")
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write markdown: %w", err)
	}
	return nil
}

// RenderSummary writes a short terminal summary
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	fmt.Fprintf(w, "Report:   %s\n", report.ID)
	fmt.Fprintf(w, "Category: %s\n", report.Classification.Category)
	if report.Risk != nil {
		line := report.Risk.Severity.String()
		if report.Risk.PrimaryFactor != "" {
			line += " (" + report.Risk.PrimaryFactor + ")"
		}
		fmt.Fprintf(w, "Severity: %s\n", line)
	}
	sources := report.Sources()
	if len(sources) > 0 {
		fmt.Fprintf(w, "Passages: %d from %s\n", len(report.Retrieval.Passages), strings.Join(sources, ", "))
	} else {
		fmt.Fprintf(w, "Passages: %d\n", len(report.Retrieval.Passages))
	}
	if report.Advice != nil && report.Advice.Enabled {
		fmt.Fprintf(w, "Advice:   %s (%d citations)\n", report.Advice.Provider, len(report.Advice.CitedSources))
	}
}
