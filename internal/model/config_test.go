package model

import (
	"errors"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got %v", err)
	}
}

func TestConfig_ValidateErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty dev keywords", func(c *Config) { c.Classifier.DevKeywords = nil }, "classifier.dev_keywords"},
		{"blank question word", func(c *Config) { c.Classifier.QuestionWords = []string{"what", " "} }, "classifier.question_words"},
		{"zero pattern threshold", func(c *Config) { c.Classifier.PatternThreshold = 0 }, "classifier.pattern_threshold"},
		{"empty partition", func(c *Config) { c.Risk = RiskConfig{LinkabilityThreshold: 2} }, "risk"},
		{"overlapping tiers", func(c *Config) { c.Risk.High = append(c.Risk.High, "SSN") }, "risk.high"},
		{"follow-up above initial", func(c *Config) { c.Retrieval.FollowUpLimit = c.Retrieval.InitialLimit + 1 }, "retrieval.follow_up_limit"},
		{"rule without query", func(c *Config) { c.Retrieval.Rules[0].Query = "" }, "retrieval.rules[0]"},
		{"rule without triggers", func(c *Config) { c.Retrieval.Rules[1].Triggers = nil }, "retrieval.rules[1].triggers"},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "gemini" }, "llm.provider"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			if cfgErr.Field != tc.field {
				t.Errorf("expected field %q, got %q", tc.field, cfgErr.Field)
			}
		})
	}
}

func TestSeverity_Ordering(t *testing.T) {
	if !(SeverityLow < SeverityMedium && SeverityMedium < SeverityHigh && SeverityHigh < SeverityCritical) {
		t.Error("expected severities to be ordered LOW < MEDIUM < HIGH < CRITICAL")
	}
	for _, s := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		if ParseSeverity(s.String()) != s {
			t.Errorf("expected %s to parse back to itself", s)
		}
	}
}
