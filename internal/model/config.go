package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfiguration is matched by every construction-time configuration failure
var ErrConfiguration = errors.New("configuration error")

// ConfigError describes one malformed or missing configuration value
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrConfiguration) match
func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

func configErr(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Config is the complete construction-time configuration.
// Components copy what they need; nothing reads it after construction.
type Config struct {
	Classifier  ClassifierConfig  `yaml:"classifier" mapstructure:"classifier"`
	Risk        RiskConfig        `yaml:"risk" mapstructure:"risk"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" mapstructure:"retrieval"`
	Search      SearchConfig      `yaml:"search" mapstructure:"search"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Audit       AuditConfig       `yaml:"audit" mapstructure:"audit"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// ClassifierConfig holds the vocabularies of the message classifier
type ClassifierConfig struct {
	DevKeywords      []string `yaml:"dev_keywords" mapstructure:"dev_keywords"`
	QuestionWords    []string `yaml:"question_words" mapstructure:"question_words"`
	PatternThreshold int      `yaml:"pattern_threshold" mapstructure:"pattern_threshold"` // Distinct pattern kinds for a personal-information ticket
	KeywordThreshold int      `yaml:"keyword_threshold" mapstructure:"keyword_threshold"` // Distinct dev keywords for a development ticket
}

// RiskConfig partitions detection categories into risk tiers.
// Categories not listed are LOW.
type RiskConfig struct {
	Critical              []string `yaml:"critical" mapstructure:"critical"`
	High                  []string `yaml:"high" mapstructure:"high"`
	Medium                []string `yaml:"medium" mapstructure:"medium"`
	LinkabilityThreshold  int      `yaml:"linkability_threshold" mapstructure:"linkability_threshold"`
	MediumEscalationCount int      `yaml:"medium_escalation_count" mapstructure:"medium_escalation_count"` // 0 disables
}

// FollowUpRule maps trigger substrings to one canonical follow-up query
type FollowUpRule struct {
	Triggers []string `yaml:"triggers" mapstructure:"triggers"`
	Query    string   `yaml:"query" mapstructure:"query"`
}

// RetrievalConfig controls the multi-step retrieval orchestrator
type RetrievalConfig struct {
	InitialLimit           int            `yaml:"initial_limit" mapstructure:"initial_limit"`
	FollowUpLimit          int            `yaml:"follow_up_limit" mapstructure:"follow_up_limit"`
	MaxFollowUps           int            `yaml:"max_follow_ups" mapstructure:"max_follow_ups"` // 0 means unlimited
	ExpandGeneralQuestions bool           `yaml:"expand_general_questions" mapstructure:"expand_general_questions"`
	DedupPrefixLen         int            `yaml:"dedup_prefix_len" mapstructure:"dedup_prefix_len"`
	Rules                  []FollowUpRule `yaml:"rules" mapstructure:"rules"`
}

// SearchConfig configures the local reference corpus and call pacing
type SearchConfig struct {
	CorpusDir         string  `yaml:"corpus_dir" mapstructure:"corpus_dir"`
	MinChunkChars     int     `yaml:"min_chunk_chars" mapstructure:"min_chunk_chars"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 disables pacing
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// CacheConfig configures the search result cache
type CacheConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir           string `yaml:"dir" mapstructure:"dir"`
	MemoryTTLSecs int    `yaml:"memory_ttl_secs" mapstructure:"memory_ttl_secs"`
	DiskTTLSecs   int    `yaml:"disk_ttl_secs" mapstructure:"disk_ttl_secs"`
}

// LLMConfig configures the optional generation engine
type LLMConfig struct {
	Provider      string  `yaml:"provider" mapstructure:"provider"` // openai, ollama, "" (disabled)
	Model         string  `yaml:"model" mapstructure:"model"`
	APIKey        string  `yaml:"-" mapstructure:"api_key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	Timeout       int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens     int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature   float32 `yaml:"temperature" mapstructure:"temperature"`
	StrictSources bool    `yaml:"strict_sources" mapstructure:"strict_sources"`
}

// AuditConfig configures persistence of serialized chains
type AuditConfig struct {
	Path string `yaml:"path" mapstructure:"path"` // SQLite file, "" disables
}

// ConcurrencyConfig controls batch processing
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose           bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeTranscript bool `yaml:"include_transcript" mapstructure:"include_transcript"`
}

// DefaultConfig returns the built-in vocabularies, tier partition and limits
func DefaultConfig() *Config {
	return &Config{
		Classifier: DefaultClassifierConfig(),
		Risk:       DefaultRiskConfig(),
		Retrieval:  DefaultRetrievalConfig(),
		Search: SearchConfig{
			CorpusDir:     "./policies",
			MinChunkChars: 40,
			Burst:         5,
		},
		Cache: CacheConfig{
			Enabled:       true,
			Dir:           "",
			MemoryTTLSecs: 600,
			DiskTTLSecs:   86400,
		},
		LLM: LLMConfig{
			Timeout:       60,
			MaxTokens:     800,
			Temperature:   0.4,
			StrictSources: true,
		},
		Concurrency: ConcurrencyConfig{Workers: 4},
		Output:      OutputConfig{IncludeTranscript: true},
	}
}

// DefaultClassifierConfig returns the built-in development and question vocabularies
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		DevKeywords: []string{
			"pm ", "product manager", "project manager",
			"developing", "building", "creating", "implementing",
			"feature", "functionality", "system", "application",
			"storing", "store", "database", "save",
			"encryption", "encrypt", "security measure",
			"technology", "technical", "architecture",
			"requirement", "compliance", "regulation",
			"chat message", "messaging system", "communication",
			"between user", "between patient", "between client",
		},
		QuestionWords:    []string{"should", "need", "require", "must", "recommend", "what", "how"},
		PatternThreshold: 2,
		KeywordThreshold: 2,
	}
}

// DefaultRiskConfig returns the built-in tier partition
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		Critical: []string{
			"SSN", "Social Insurance Number (SIN)", "MEDICAL_RECORD_NUMBER",
			"HEALTH_PLAN_NUMBER", "Personal Health Number (PHN)",
			"DIAGNOSIS_CODE", "PRESCRIPTION", "Credit Card Number",
		},
		High: []string{
			"CREDIT_CARD", "BANK_ACCOUNT", "DATE_OF_BIRTH",
			"BIOMETRIC", "FULL_FACE_PHOTO",
		},
		Medium: []string{
			"PERSON_NAME", "NAME", "Phone Number", "PHONE_NUMBER", "Email Address", "EMAIL",
			"IP Address", "IP_ADDRESS", "VEHICLE_ID", "Postal Code",
		},
		LinkabilityThreshold: 2,
	}
}

// DefaultRetrievalConfig returns the built-in follow-up rules and limits
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		InitialLimit:   3,
		FollowUpLimit:  2,
		DedupPrefixLen: 200,
		Rules: []FollowUpRule{
			{Triggers: []string{"encryption", "encrypt"}, Query: "encryption standards"},
			{Triggers: []string{"consent"}, Query: "consent requirements"},
			{Triggers: []string{"breach", "incident"}, Query: "breach notification"},
			{Triggers: []string{"retention", "delete", "storing", "store data"}, Query: "data retention requirements"},
		},
	}
}

// Validate checks every section used to construct the decision components
func (c *Config) Validate() error {
	if c == nil {
		return configErr("config", "is nil")
	}
	if err := c.Classifier.Validate(); err != nil {
		return err
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if err := c.Retrieval.Validate(); err != nil {
		return err
	}
	if c.Search.RequestsPerSecond < 0 {
		return configErr("search.requests_per_second", "must not be negative")
	}
	if c.Concurrency.Workers < 0 {
		return configErr("concurrency.workers", "must not be negative")
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "", "openai", "ollama":
	default:
		return configErr("llm.provider", "unknown provider %q (supported: openai, ollama)", c.LLM.Provider)
	}
	return nil
}

// Validate checks the classifier vocabularies and thresholds
func (c ClassifierConfig) Validate() error {
	if err := validateVocabulary("classifier.dev_keywords", c.DevKeywords); err != nil {
		return err
	}
	if err := validateVocabulary("classifier.question_words", c.QuestionWords); err != nil {
		return err
	}
	if c.PatternThreshold < 1 {
		return configErr("classifier.pattern_threshold", "must be at least 1, got %d", c.PatternThreshold)
	}
	if c.KeywordThreshold < 1 {
		return configErr("classifier.keyword_threshold", "must be at least 1, got %d", c.KeywordThreshold)
	}
	return nil
}

// Validate checks that the tier partition is non-empty and disjoint
func (c RiskConfig) Validate() error {
	if len(c.Critical)+len(c.High)+len(c.Medium) == 0 {
		return configErr("risk", "no categories assigned to any tier")
	}

	owner := make(map[string]string)
	tiers := []struct {
		name       string
		categories []string
	}{
		{"risk.critical", c.Critical},
		{"risk.high", c.High},
		{"risk.medium", c.Medium},
	}
	for _, tier := range tiers {
		for _, category := range tier.categories {
			if strings.TrimSpace(category) == "" {
				return configErr(tier.name, "contains a blank category")
			}
			if prev, ok := owner[category]; ok {
				return configErr(tier.name, "category %q already listed in %s", category, prev)
			}
			owner[category] = tier.name
		}
	}

	if c.LinkabilityThreshold < 2 {
		return configErr("risk.linkability_threshold", "must be at least 2, got %d", c.LinkabilityThreshold)
	}
	if c.MediumEscalationCount < 0 {
		return configErr("risk.medium_escalation_count", "must not be negative")
	}
	return nil
}

// Validate checks limits and follow-up rules
func (c RetrievalConfig) Validate() error {
	if c.InitialLimit < 1 {
		return configErr("retrieval.initial_limit", "must be at least 1, got %d", c.InitialLimit)
	}
	if c.FollowUpLimit < 1 || c.FollowUpLimit > c.InitialLimit {
		return configErr("retrieval.follow_up_limit", "must be between 1 and initial_limit (%d), got %d", c.InitialLimit, c.FollowUpLimit)
	}
	if c.MaxFollowUps < 0 {
		return configErr("retrieval.max_follow_ups", "must not be negative")
	}
	if c.DedupPrefixLen < 1 {
		return configErr("retrieval.dedup_prefix_len", "must be at least 1, got %d", c.DedupPrefixLen)
	}
	for i, rule := range c.Rules {
		field := fmt.Sprintf("retrieval.rules[%d]", i)
		if strings.TrimSpace(rule.Query) == "" {
			return configErr(field, "query must be set")
		}
		if err := validateVocabulary(field+".triggers", rule.Triggers); err != nil {
			return err
		}
	}
	return nil
}

func validateVocabulary(field string, terms []string) error {
	if len(terms) == 0 {
		return configErr(field, "must not be empty")
	}
	for _, term := range terms {
		if strings.TrimSpace(term) == "" {
			return configErr(field, "contains a blank term")
		}
	}
	return nil
}
