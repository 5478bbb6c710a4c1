package reasoning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Record is a concluded, immutable reasoning chain. Only records are
// surfaced as decisions; the zero Record is not complete.
type Record struct {
	title      string
	steps      []Step
	conclusion string
	confidence Confidence
	complete   bool
}

// Title returns the chain title
func (r Record) Title() string { return r.title }

// Steps returns a copy of the steps in append order
func (r Record) Steps() []Step {
	steps := make([]Step, len(r.steps))
	for i, s := range r.steps {
		steps[i] = s.clone()
	}
	return steps
}

// FinalConclusion returns the terminal conclusion
func (r Record) FinalConclusion() string { return r.conclusion }

// Confidence returns the terminal confidence
func (r Record) Confidence() Confidence { return r.confidence }

// Complete reports whether the record came from a concluded chain
func (r Record) Complete() bool { return r.complete }

// Render returns the deterministic transcript
func (r Record) Render() string {
	return render(r.title, r.steps, r.conclusion, r.confidence, r.complete)
}

// Serialize returns the RFC 8785 canonical JSON form of the record.
// This is the persisted audit artifact: identical records always produce
// identical bytes.
func (r Record) Serialize() ([]byte, error) {
	if !r.complete {
		return nil, fmt.Errorf("%w: record is not concluded", ErrInvalidState)
	}
	conclusion := r.conclusion
	confidence := r.confidence
	return canonical(r.title, r.steps, &conclusion, &confidence)
}

// Digest returns the sha256 hex digest of the canonical form
func (r Record) Digest() (string, error) {
	data, err := r.Serialize()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// MarshalJSON embeds the canonical form when a record is part of a larger document
func (r Record) MarshalJSON() ([]byte, error) {
	if !r.complete {
		return []byte("null"), nil
	}
	return r.Serialize()
}

// UnmarshalJSON restores a record previously written by MarshalJSON
func (r *Record) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Record{}
		return nil
	}
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*r = decoded
	return nil
}

// wireChain is the serialized shape shared by chains and records
type wireChain struct {
	Title           string      `json:"title"`
	Steps           []Step      `json:"steps"`
	FinalConclusion *string     `json:"final_conclusion"`
	Confidence      *Confidence `json:"confidence"`
}

func canonical(title string, steps []Step, conclusion *string, confidence *Confidence) ([]byte, error) {
	wire := wireChain{
		Title:           title,
		Steps:           make([]Step, len(steps)),
		FinalConclusion: conclusion,
		Confidence:      confidence,
	}
	for i, s := range steps {
		wire.Steps[i] = s.clone()
	}

	raw, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal chain: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize chain: %w", err)
	}
	return out, nil
}

// Decode parses a serialized record. Artifacts without a conclusion, with an
// unknown confidence, or with out-of-order step numbers are rejected with
// ErrInvalidState.
func Decode(data []byte) (Record, error) {
	var wire wireChain
	if err := json.Unmarshal(data, &wire); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if wire.FinalConclusion == nil || wire.Confidence == nil {
		return Record{}, fmt.Errorf("%w: chain %q has no conclusion", ErrInvalidState, wire.Title)
	}
	if !wire.Confidence.Valid() {
		return Record{}, fmt.Errorf("%w: unknown confidence %q", ErrInvalidState, *wire.Confidence)
	}

	steps := make([]Step, len(wire.Steps))
	for i, s := range wire.Steps {
		if s.Number != i+1 {
			return Record{}, fmt.Errorf("%w: step %d numbered %d", ErrInvalidState, i+1, s.Number)
		}
		steps[i] = s.clone()
	}

	return Record{
		title:      wire.Title,
		steps:      steps,
		conclusion: *wire.FinalConclusion,
		confidence: *wire.Confidence,
		complete:   true,
	}, nil
}
