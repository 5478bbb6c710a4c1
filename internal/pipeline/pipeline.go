package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/compass/internal/classify"
	"github.com/ppiankov/compass/internal/llm"
	"github.com/ppiankov/compass/internal/model"
	"github.com/ppiankov/compass/internal/retrieve"
	"github.com/ppiankov/compass/internal/risk"
)

// Input is one message to process. Detections come from an external
// extractor and are only assessed for personal-information tickets.
type Input struct {
	Message    string            `json:"message"`
	Detections []model.Detection `json:"detections,omitempty"`
	TopicHints []string          `json:"topic_hints,omitempty"`
}

// Recorder persists every chain of a processed report
type Recorder interface {
	Save(ctx context.Context, report *model.Report) error
}

// Advisor produces optional generated advice for a report
type Advisor interface {
	Advise(ctx context.Context, report model.Report) (*model.Advice, error)
	ProviderName() string
}

// Pipeline orchestrates classify, assess, retrieve and optional generation
type Pipeline struct {
	classifier   *classify.Classifier
	assessor     *risk.Assessor
	orchestrator *retrieve.Orchestrator
	advisor      Advisor
	recorder     Recorder
	strict       bool
	logger       *zap.Logger
	now          func() time.Time
	newID        func() string
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithAdvisor enables generation after every decision is made
func WithAdvisor(a Advisor) Option {
	return func(p *Pipeline) { p.advisor = a }
}

// WithRecorder persists each report's chains
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithClock overrides the processing timestamp source
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithIDs overrides report id generation
func WithIDs(newID func() string) Option {
	return func(p *Pipeline) { p.newID = newID }
}

// New builds the decision components from cfg. Configuration errors match
// model.ErrConfiguration.
func New(cfg *model.Config, searcher retrieve.Searcher, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		strict: cfg.LLM.StrictSources,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(p)
	}

	var err error
	if p.classifier, err = classify.New(cfg.Classifier); err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	if p.assessor, err = risk.New(cfg.Risk); err != nil {
		return nil, fmt.Errorf("assessor: %w", err)
	}
	if p.orchestrator, err = retrieve.New(searcher, cfg.Retrieval, retrieve.WithLogger(p.logger)); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	return p, nil
}

// Process runs one message through every stage and returns the report.
// Retrieval and audit failures fail the run; generation failures are
// recorded as warnings on the report.
func (p *Pipeline) Process(ctx context.Context, in Input) (*model.Report, error) {
	report := &model.Report{
		ID:          p.newID(),
		Message:     in.Message,
		ProcessedAt: p.now(),
	}

	// 1. Classify
	classification := p.classifier.Classify(in.Message)
	report.Classification = model.Classification{
		Category: classification.Category,
		Chain:    classification.Chain,
	}

	// 2. Assess risk for personal-information tickets only
	if classification.Category.HandlesPersonalInformation() {
		assessment := p.assessor.Assess(in.Detections)
		report.Risk = &model.RiskSummary{
			Detections:       in.Detections,
			Severity:         assessment.Severity,
			PrimaryFactor:    assessment.PrimaryFactor,
			SecondaryFactors: assessment.SecondaryFactors,
			Chain:            assessment.Chain,
		}
	} else if len(in.Detections) > 0 {
		p.logger.Debug("detections ignored for non-personal-information category",
			zap.String("report_id", report.ID),
			zap.String("category", string(classification.Category)),
			zap.Int("detections", len(in.Detections)))
	}

	// 3. Retrieve
	retrieval, err := p.orchestrator.Retrieve(ctx, retrieve.Request{
		Message:    in.Message,
		Category:   classification.Category,
		TopicHints: in.TopicHints,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	report.Retrieval = model.Retrieval{Passages: retrieval.Passages, Chain: retrieval.Chain}

	// 4. Generate advice (after every decision, never affects one)
	if p.advisor != nil {
		advice, err := p.advisor.Advise(ctx, *report)
		if err != nil {
			p.logger.Warn("advice generation failed", zap.String("report_id", report.ID), zap.Error(err))
			advice = &model.Advice{
				Enabled:       false,
				Provider:      p.advisor.ProviderName(),
				StrictSources: p.strict,
				Warnings:      []string{fmt.Sprintf("generation failed: %v", err)},
			}
		}
		report.Advice = advice
	}

	// 5. Audit
	if p.recorder != nil {
		if err := p.recorder.Save(ctx, report); err != nil {
			return nil, fmt.Errorf("audit: %w", err)
		}
	}

	fields := []zap.Field{
		zap.String("report_id", report.ID),
		zap.String("category", string(report.Classification.Category)),
		zap.Int("passages", len(report.Retrieval.Passages)),
	}
	if report.Risk != nil {
		fields = append(fields, zap.String("severity", report.Risk.Severity.String()))
	}
	p.logger.Info("message processed", fields...)

	return report, nil
}

var _ Advisor = (*llm.Advisor)(nil)
