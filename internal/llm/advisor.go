package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/compass/internal/model"
)

// Pacer delays calls to a named collaborator
type Pacer interface {
	Wait(ctx context.Context, key string) error
}

// PacerKey is the limiter key used for generation calls
const PacerKey = "generate"

// Advisor turns a processed report into optional advisory text. It runs
// after every decision is made and never changes one.
type Advisor struct {
	provider Provider
	config   Config
	pacer    Pacer
}

// NewAdvisor creates an advisor for the configured provider. A disabled
// provider yields an advisor that produces nothing.
func NewAdvisor(config Config) (*Advisor, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return &Advisor{provider: provider, config: config}, nil
}

// NewAdvisorWithProvider wraps an existing provider
func NewAdvisorWithProvider(provider Provider, config Config) *Advisor {
	return &Advisor{provider: provider, config: config}
}

// WithPacer sets the pacer consulted before every generation
func (a *Advisor) WithPacer(p Pacer) *Advisor {
	a.pacer = p
	return a
}

// IsEnabled reports whether a provider is configured
func (a *Advisor) IsEnabled() bool {
	return a != nil && a.provider != nil
}

// ProviderName returns the provider name, or "" when disabled
func (a *Advisor) ProviderName() string {
	if !a.IsEnabled() {
		return ""
	}
	return a.provider.Name()
}

// Advise generates advisory text for report. It returns nil, nil when
// disabled and a disabled Advice with a warning when the provider is
// unreachable. With strict sources, citing a source outside the report's
// passages fails with ErrCitationLeak.
func (a *Advisor) Advise(ctx context.Context, report model.Report) (*model.Advice, error) {
	if !a.IsEnabled() {
		return nil, nil
	}

	if !a.provider.IsAvailable(ctx) {
		return &model.Advice{
			Enabled:       false,
			Provider:      a.provider.Name(),
			StrictSources: a.config.StrictSources,
			Warnings:      []string{fmt.Sprintf("LLM provider %s is not available", a.provider.Name())},
		}, nil
	}

	if a.pacer != nil {
		if err := a.pacer.Wait(ctx, PacerKey); err != nil {
			return nil, fmt.Errorf("wait for generation slot: %w", err)
		}
	}

	resp, err := a.provider.Generate(ctx, GenerateRequest{
		Report:    report,
		Model:     a.config.Model,
		MaxTokens: a.config.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	cited := ExtractCitations(resp.Text)
	if a.config.StrictSources {
		if err := CheckCitations(cited, report.Sources()); err != nil {
			return nil, err
		}
	}

	warnings := []string{fmt.Sprintf("Tokens used: %d", resp.TokensUsed)}
	if a.config.StrictSources {
		warnings = append(warnings, fmt.Sprintf("Verified %d citations", len(cited)))
	}
	if len(cited) == 0 {
		warnings = append(warnings, "Response cites no sources")
	}

	return &model.Advice{
		Enabled:       true,
		Provider:      a.provider.Name(),
		Model:         resp.Model,
		StrictSources: a.config.StrictSources,
		Text:          resp.Text,
		CitedSources:  cited,
		Warnings:      warnings,
	}, nil
}

// RenderSeparateMarkdown renders generated advice as a standalone document
func RenderSeparateMarkdown(advice *model.Advice) string {
	if advice == nil || !advice.Enabled {
		return ""
	}

	var b strings.Builder
	b.WriteString("# Generated Advice\n\n")
	b.WriteString("> **GENERATED CONTENT.** Category, risk level and reference passages were determined independently of this text.\n\n")
	fmt.Fprintf(&b, "- **Provider:** %s\n", advice.Provider)
	if advice.Model != "" {
		fmt.Fprintf(&b, "- **Model:** %s\n", advice.Model)
	}
	fmt.Fprintf(&b, "- **Strict Sources:** %t\n\n", advice.StrictSources)

	if advice.Text == "" {
		b.WriteString("_No advice generated._\n")
	} else {
		b.WriteString(advice.Text)
		b.WriteString("\n")
	}

	if len(advice.CitedSources) > 0 {
		b.WriteString("\n## Cited Sources\n\n")
		for _, s := range advice.CitedSources {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	if len(advice.Warnings) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, w := range advice.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return b.String()
}
