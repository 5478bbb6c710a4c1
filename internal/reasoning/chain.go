package reasoning

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidState signals a reasoning chain contract violation: a second
// conclusion, a step appended after the conclusion, or a malformed artifact.
var ErrInvalidState = errors.New("invalid reasoning chain state")

// Confidence is the terminal confidence attached to a concluded chain
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// Valid reports whether c is one of the three known confidence levels
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	default:
		return false
	}
}

// Step is one entry of a reasoning chain
type Step struct {
	Number      int      `json:"step"`
	Description string   `json:"description"`
	Findings    []string `json:"findings"`
	Conclusion  string   `json:"conclusion"`
}

func (s Step) clone() Step {
	findings := make([]string, len(s.Findings))
	copy(findings, s.Findings)
	s.Findings = findings
	return s
}

// Chain is the mutable builder a component uses while it reasons.
// It is owned by exactly one producer and is not safe for concurrent use.
// SetConclusion freezes it into a Record.
type Chain struct {
	title     string
	steps     []Step
	concluded bool
	malformed error
}

// New creates an empty chain with the given title
func New(title string) *Chain {
	return &Chain{title: title}
}

// Title returns the chain title
func (c *Chain) Title() string {
	return c.title
}

// Len returns the number of steps appended so far
func (c *Chain) Len() int {
	return len(c.steps)
}

// AddStep appends a step and returns the chain for chaining calls.
// Appending to a concluded chain does not modify it; the chain is marked
// malformed and Render/Serialize report ErrInvalidState from then on.
func (c *Chain) AddStep(description string, findings []string, conclusion string) *Chain {
	if c.concluded {
		if c.malformed == nil {
			c.malformed = fmt.Errorf("%w: step %q appended after conclusion", ErrInvalidState, description)
		}
		return c
	}

	c.steps = append(c.steps, Step{
		Number:      len(c.steps) + 1,
		Description: description,
		Findings:    append([]string{}, findings...),
		Conclusion:  conclusion,
	})
	return c
}

// SetConclusion sets the terminal fields and returns the frozen record.
// It fails with ErrInvalidState when called twice or with an unknown confidence.
func (c *Chain) SetConclusion(conclusion string, confidence Confidence) (Record, error) {
	if c.malformed != nil {
		return Record{}, c.malformed
	}
	if c.concluded {
		return Record{}, fmt.Errorf("%w: chain %q already concluded", ErrInvalidState, c.title)
	}
	if !confidence.Valid() {
		return Record{}, fmt.Errorf("%w: unknown confidence %q", ErrInvalidState, confidence)
	}

	c.concluded = true
	return Record{
		title:      c.title,
		steps:      c.snapshot(),
		conclusion: conclusion,
		confidence: confidence,
		complete:   true,
	}, nil
}

// Render returns the transcript of the chain. Chains without a conclusion
// render with an incomplete marker.
func (c *Chain) Render() (string, error) {
	if c.malformed != nil {
		return "", c.malformed
	}
	return render(c.title, c.steps, "", "", false), nil
}

// Serialize returns the canonical audit representation of the chain as it
// stands; terminal fields are null until concluded.
func (c *Chain) Serialize() ([]byte, error) {
	if c.malformed != nil {
		return nil, c.malformed
	}
	return canonical(c.title, c.steps, nil, nil)
}

func (c *Chain) snapshot() []Step {
	steps := make([]Step, len(c.steps))
	for i, s := range c.steps {
		steps[i] = s.clone()
	}
	return steps
}

const rule = "============================================================"

func render(title string, steps []Step, conclusion string, confidence Confidence, complete bool) string {
	var b strings.Builder

	b.WriteString(rule + "\n")
	b.WriteString(title + "\n")
	b.WriteString(rule + "\n\n")

	for _, s := range steps {
		fmt.Fprintf(&b, "Step %d: %s\n", s.Number, s.Description)
		for _, f := range s.Findings {
			fmt.Fprintf(&b, "  - %s\n", f)
		}
		if s.Conclusion != "" {
			fmt.Fprintf(&b, "  → Conclusion: %s\n", s.Conclusion)
		}
		b.WriteString("\n")
	}

	if !complete {
		b.WriteString("Final Conclusion: [incomplete]\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Final Conclusion: %s\n", conclusion)
	fmt.Fprintf(&b, "Confidence: %s\n", confidence)
	return b.String()
}
