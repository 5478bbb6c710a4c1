package llm

import (
	"context"

	"github.com/ppiankov/compass/internal/model"
)

// Provider generates advisory text from a processed report
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate produces advisory text grounded in the report's passages
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// GenerateRequest contains the input for one generation
type GenerateRequest struct {
	// Report is the processed message with every decision already made
	Report model.Report

	// Prompt overrides the default prompt built from Report
	Prompt string

	// Model is the provider-specific model name
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// GenerateResponse contains the generated text
type GenerateResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds generation provider configuration
type Config struct {
	// Provider name: "openai", "ollama", ""
	Provider string

	Model   string
	APIKey  string
	BaseURL string

	// Timeout for API requests in seconds
	Timeout int

	MaxTokens   int
	Temperature float32

	// StrictSources rejects citations of sources that were not retrieved
	StrictSources bool

	HTTPProxy  string
	HTTPSProxy string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:      "",
		Timeout:       30,
		MaxTokens:     1000,
		Temperature:   0.3,
		StrictSources: true,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(c model.LLMConfig) Config {
	return Config{
		Provider:      c.Provider,
		Model:         c.Model,
		APIKey:        c.APIKey,
		BaseURL:       c.BaseURL,
		Timeout:       c.Timeout,
		MaxTokens:     c.MaxTokens,
		Temperature:   c.Temperature,
		StrictSources: c.StrictSources,
	}
}

func (c Config) maxTokens(requested int) int {
	if requested > 0 {
		return requested
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 1000
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
