package classify

import (
	"fmt"
	"strings"

	"github.com/ppiankov/compass/internal/model"
	"github.com/ppiankov/compass/internal/reasoning"
)

// Result is a category decision with its concluded chain
type Result struct {
	Category model.Category
	Chain    reasoning.Record
}

// Classifier decides the category of an inbound message from pattern and
// keyword evidence. It holds only immutable configuration and is safe for
// concurrent use.
type Classifier struct {
	devKeywords      []string
	questionWords    []string
	patternThreshold int
	keywordThreshold int
}

// New creates a classifier from the given vocabularies
func New(cfg model.ClassifierConfig) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{
		devKeywords:      lowerAll(cfg.DevKeywords),
		questionWords:    lowerAll(cfg.QuestionWords),
		patternThreshold: cfg.PatternThreshold,
		keywordThreshold: cfg.KeywordThreshold,
	}, nil
}

// evidence collects the outcome of the three scans
type evidence struct {
	patterns  []string // matched kinds, scan order
	keywords  []string // matched dev terms, vocabulary order
	questions []string // matched question words, vocabulary order
}

// Classify assigns exactly one category. It never fails: empty input runs
// every scan with zero findings and lands on GENERAL_QUESTION.
func (c *Classifier) Classify(message string) Result {
	chain := reasoning.New("Message Classification")
	lower := strings.ToLower(message)

	var ev evidence

	// 1. Personal-information patterns (distinct kinds, not occurrences)
	var patternFindings []string
	for _, p := range piiPatterns {
		if p.re.MatchString(message) {
			ev.patterns = append(ev.patterns, p.kind)
			patternFindings = append(patternFindings, fmt.Sprintf("✓ %s pattern detected", p.kind))
		} else {
			patternFindings = append(patternFindings, fmt.Sprintf("✗ %s pattern not found", p.kind))
		}
	}
	patternFindings = append(patternFindings, fmt.Sprintf("Total patterns matched: %d", len(ev.patterns)))
	chain.AddStep("Scanning for personal-information patterns", patternFindings, c.patternConclusion(len(ev.patterns)))

	// 2. Development-context keywords
	ev.keywords = matchTerms(lower, c.devKeywords)
	keywordFindings := make([]string, 0, len(ev.keywords)+1)
	for _, kw := range ev.keywords {
		keywordFindings = append(keywordFindings, fmt.Sprintf("Found: '%s'", strings.TrimSpace(kw)))
	}
	keywordFindings = append(keywordFindings, fmt.Sprintf("Total development indicators: %d", len(ev.keywords)))
	chain.AddStep("Checking for development/process indicators", keywordFindings,
		fmt.Sprintf("%d of %d required indicators present", len(ev.keywords), c.keywordThreshold))

	// 3. Interrogative tokens
	ev.questions = matchTerms(lower, c.questionWords)
	var questionFindings []string
	questionConclusion := "Not phrased as a question"
	if len(ev.questions) > 0 {
		questionFindings = append(questionFindings, fmt.Sprintf("✓ Contains question words (%s)", strings.Join(ev.questions, ", ")))
		questionConclusion = "Message is asking questions"
	} else {
		questionFindings = append(questionFindings, "✗ No question words found")
	}
	chain.AddStep("Analyzing question patterns", questionFindings, questionConclusion)

	// 4. Decision
	category := c.decide(ev)
	chain.AddStep("Determining message category", c.decisionFindings(ev), fmt.Sprintf("Classified as %s", category.Label()))

	// Cannot fail: the chain is fresh and HIGH is a valid confidence.
	record, _ := chain.SetConclusion(string(category), reasoning.ConfidenceHigh)

	return Result{Category: category, Chain: record}
}

// decide applies the precedence: personal information, then development,
// then general question.
func (c *Classifier) decide(ev evidence) model.Category {
	if len(ev.patterns) >= c.patternThreshold {
		return model.CategoryPersonalInformation
	}
	if len(ev.keywords) >= c.keywordThreshold && len(ev.questions) > 0 {
		return model.CategoryDevelopment
	}
	return model.CategoryGeneralQuestion
}

func (c *Classifier) patternConclusion(count int) string {
	switch {
	case count >= c.patternThreshold:
		return fmt.Sprintf("Contains %d personal-information patterns → likely personal-information ticket", count)
	case count > 0:
		return fmt.Sprintf("Only %d pattern(s) → not enough for a personal-information ticket", count)
	default:
		return "No personal-information patterns"
	}
}

func (c *Classifier) decisionFindings(ev evidence) []string {
	return []string{
		fmt.Sprintf("Pattern count %d (threshold %d)", len(ev.patterns), c.patternThreshold),
		fmt.Sprintf("Development indicators %d (threshold %d)", len(ev.keywords), c.keywordThreshold),
		fmt.Sprintf("Interrogative: %t", len(ev.questions) > 0),
	}
}

// matchTerms returns the distinct vocabulary terms contained in text,
// in vocabulary order
func matchTerms(text string, vocabulary []string) []string {
	var found []string
	seen := make(map[string]bool)
	for _, term := range vocabulary {
		if seen[term] {
			continue
		}
		if strings.Contains(text, term) {
			seen[term] = true
			found = append(found, term)
		}
	}
	return found
}

func lowerAll(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = strings.ToLower(t)
	}
	return out
}
