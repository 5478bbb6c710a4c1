package retrieve

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/ppiankov/compass/internal/model"
	"github.com/ppiankov/compass/internal/reasoning"
)

// Searcher is the similarity-search collaborator. Results are ordered by
// descending relevance.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]model.Passage, error)
}

// SearchFunc adapts a function to the Searcher interface
type SearchFunc func(ctx context.Context, query string, limit int) ([]model.Passage, error)

// Search calls f
func (f SearchFunc) Search(ctx context.Context, query string, limit int) ([]model.Passage, error) {
	return f(ctx, query, limit)
}

// Request is the input of one retrieval
type Request struct {
	Message    string
	Category   model.Category
	TopicHints []string // Unioned with trigger-derived follow-ups
}

// Result is the deduplicated passage list with its concluded chain
type Result struct {
	Passages []model.Passage
	Chain    reasoning.Record
}

type rule struct {
	triggers []string // case-folded
	query    string
}

// Orchestrator runs initial search, gap analysis, follow-up searches and
// deduplication. It holds no per-call state and is safe for concurrent use.
type Orchestrator struct {
	searcher      Searcher
	initialLimit  int
	followUpLimit int
	maxFollowUps  int
	expandGeneral bool
	prefixLen     int
	rules         []rule
	logger        *zap.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger used for debug tracing
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an orchestrator over the given searcher
func New(searcher Searcher, cfg model.RetrievalConfig, opts ...Option) (*Orchestrator, error) {
	if searcher == nil {
		return nil, &model.ConfigError{Field: "retrieval.searcher", Reason: "must not be nil"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fold := cases.Fold()
	rules := make([]rule, len(cfg.Rules))
	for i, r := range cfg.Rules {
		triggers := make([]string, len(r.Triggers))
		for j, t := range r.Triggers {
			triggers[j] = fold.String(t)
		}
		rules[i] = rule{triggers: triggers, query: r.Query}
	}

	o := &Orchestrator{
		searcher:      searcher,
		initialLimit:  cfg.InitialLimit,
		followUpLimit: cfg.FollowUpLimit,
		maxFollowUps:  cfg.MaxFollowUps,
		expandGeneral: cfg.ExpandGeneralQuestions,
		prefixLen:     cfg.DedupPrefixLen,
		rules:         rules,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Retrieve assembles reference passages for a message. Search failures are
// returned unmodified; an empty result set is a success.
func (o *Orchestrator) Retrieve(ctx context.Context, req Request) (Result, error) {
	chain := reasoning.New("Multi-Step Retrieval")

	// 1. Initial broad search
	initial, err := o.searcher.Search(ctx, req.Message, o.initialLimit)
	if err != nil {
		return Result{}, err
	}
	initial = tag(initial, req.Message)
	o.logger.Debug("initial search", zap.Int("passages", len(initial)), zap.String("category", string(req.Category)))

	initialFindings := []string{fmt.Sprintf("Retrieved %d passages", len(initial))}
	if sources := distinctSources(initial); len(sources) > 0 {
		initialFindings = append(initialFindings, fmt.Sprintf("Sources: %s", strings.Join(sources, ", ")))
	} else {
		initialFindings = append(initialFindings, "No passages found")
	}
	chain.AddStep("Initial broad search", initialFindings, fmt.Sprintf("Found %d relevant passages", len(initial)))

	all := append([]model.Passage{}, initial...)

	// 2-3. Gap analysis and follow-up searches
	if !o.expands(req.Category) {
		chain.AddStep("Checking for gaps",
			[]string{fmt.Sprintf("Category %s does not warrant follow-up queries", req.Category)},
			"No follow-up needed")
	} else {
		queries, skipped := o.followUps(req.Message, req.TopicHints)
		if len(queries) == 0 {
			chain.AddStep("Checking for gaps",
				[]string{"No specific follow-up topics identified"},
				"No follow-up needed")
		} else {
			hits, err := o.searchAll(ctx, queries)
			if err != nil {
				return Result{}, err
			}

			gapFindings := []string{fmt.Sprintf("Identified topics to explore: %s", strings.Join(queries, ", "))}
			for i, q := range queries {
				gapFindings = append(gapFindings, fmt.Sprintf("✓ Follow-up query '%s': %d results", q, len(hits[i])))
				all = append(all, hits[i]...)
			}
			for _, q := range skipped {
				gapFindings = append(gapFindings, fmt.Sprintf("✗ Follow-up query '%s' skipped (limit %d reached)", q, o.maxFollowUps))
			}
			chain.AddStep("Identifying gaps and performing follow-up queries", gapFindings,
				fmt.Sprintf("Total context expanded to %d passages", len(all)))
		}
	}

	// 4. Deduplication
	unique, removed := Dedup(all, o.prefixLen)
	chain.AddStep("Deduplicating context", []string{
		fmt.Sprintf("Total passages retrieved: %d", len(all)),
		fmt.Sprintf("Duplicates removed: %d", removed),
		fmt.Sprintf("Unique passages: %d", len(unique)),
	}, fmt.Sprintf("Final context: %d unique passages", len(unique)))

	o.logger.Debug("retrieval complete", zap.Int("unique", len(unique)), zap.Int("duplicates", removed))

	record, _ := chain.SetConclusion(
		fmt.Sprintf("Retrieval complete with %d unique passages", len(unique)),
		reasoning.ConfidenceHigh,
	)
	return Result{Passages: unique, Chain: record}, nil
}

// expands reports whether a category warrants follow-up queries
func (o *Orchestrator) expands(category model.Category) bool {
	switch category {
	case model.CategoryPersonalInformation:
		return false
	case model.CategoryDevelopment:
		return true
	case model.CategoryGeneralQuestion:
		return o.expandGeneral
	}
	return false
}

// followUps returns the distinct follow-up queries in discovery order (rule
// order, then hints) and the ones dropped by the follow-up cap
func (o *Orchestrator) followUps(message string, hints []string) ([]string, []string) {
	fold := cases.Fold()
	text := fold.String(message)

	var queries []string
	seen := make(map[string]bool)
	add := func(q string) {
		key := fold.String(strings.TrimSpace(q))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		queries = append(queries, strings.TrimSpace(q))
	}

	for _, r := range o.rules {
		for _, trigger := range r.triggers {
			if strings.Contains(text, trigger) {
				add(r.query)
				break
			}
		}
	}
	for _, h := range hints {
		add(h)
	}

	if o.maxFollowUps > 0 && len(queries) > o.maxFollowUps {
		return queries[:o.maxFollowUps], queries[o.maxFollowUps:]
	}
	return queries, nil
}

// searchAll issues the follow-up searches concurrently. hits[i] belongs to
// queries[i], so the merge order never depends on completion order.
func (o *Orchestrator) searchAll(ctx context.Context, queries []string) ([][]model.Passage, error) {
	hits := make([][]model.Passage, len(queries))
	g, gctx := errgroup.WithContext(ctx)

	for i, q := range queries {
		g.Go(func() error {
			passages, err := o.searcher.Search(gctx, q, o.followUpLimit)
			if err != nil {
				return err
			}
			hits[i] = tag(passages, q)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hits, nil
}

// tag records the producing query on passages that do not carry one
func tag(passages []model.Passage, query string) []model.Passage {
	out := make([]model.Passage, len(passages))
	for i, p := range passages {
		if p.Query == "" {
			p.Query = query
		}
		out[i] = p
	}
	return out
}

func distinctSources(passages []model.Passage) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, p := range passages {
		if seen[p.Source] {
			continue
		}
		seen[p.Source] = true
		sources = append(sources, p.Source)
	}
	return sources
}
