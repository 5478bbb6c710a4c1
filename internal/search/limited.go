package search

import (
	"context"

	"github.com/ppiankov/compass/internal/model"
	"github.com/ppiankov/compass/internal/retrieve"
)

// PacerKey is the limiter key used for search calls
const PacerKey = "search"

// Pacer delays calls to a named collaborator
type Pacer interface {
	Wait(ctx context.Context, key string) error
}

// LimitedSearcher paces calls to the wrapped searcher
type LimitedSearcher struct {
	next  retrieve.Searcher
	pacer Pacer
}

// Limited wraps next so every call first waits on pacer
func Limited(next retrieve.Searcher, pacer Pacer) *LimitedSearcher {
	return &LimitedSearcher{next: next, pacer: pacer}
}

// Search waits for a slot, then delegates
func (s *LimitedSearcher) Search(ctx context.Context, query string, limit int) ([]model.Passage, error) {
	if err := s.pacer.Wait(ctx, PacerKey); err != nil {
		return nil, err
	}
	return s.next.Search(ctx, query, limit)
}
