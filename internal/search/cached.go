package search

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/compass/internal/cache"
	"github.com/ppiankov/compass/internal/model"
	"github.com/ppiankov/compass/internal/retrieve"
)

// CachedSearcher memoizes successful searches by namespace, query and
// limit. Failures are never cached.
type CachedSearcher struct {
	next      retrieve.Searcher
	cache     cache.Cache
	ttl       time.Duration
	namespace string
	logger    *zap.Logger
}

// Cached wraps next with c. A zero ttl uses the cache default.
func Cached(next retrieve.Searcher, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachedSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSearcher{next: next, cache: c, ttl: ttl, logger: logger}
}

// WithNamespace scopes cache entries, typically to a corpus fingerprint,
// so a persistent cache never serves results of other content
func (s *CachedSearcher) WithNamespace(namespace string) *CachedSearcher {
	s.namespace = namespace
	return s
}

func (s *CachedSearcher) key(query string, limit int) string {
	return cache.Key("search", s.namespace, query, strconv.Itoa(limit))
}

// Search returns cached passages or delegates and stores the result
func (s *CachedSearcher) Search(ctx context.Context, query string, limit int) ([]model.Passage, error) {
	key := s.key(query, limit)

	if data, ok := s.cache.Get(key); ok {
		var passages []model.Passage
		if err := json.Unmarshal(data, &passages); err == nil {
			s.logger.Debug("search cache hit", zap.Int("limit", limit), zap.Int("passages", len(passages)))
			return passages, nil
		}
		_ = s.cache.Delete(key)
	}

	passages, err := s.next.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(passages); err == nil {
		if err := s.cache.Set(key, data, s.ttl); err != nil {
			s.logger.Warn("search cache write failed", zap.Error(err))
		}
	}
	return passages, nil
}
