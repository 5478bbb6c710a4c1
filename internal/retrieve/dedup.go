package retrieve

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/ppiankov/compass/internal/model"
)

// NormalizedKey is the identity used for deduplication: the text trimmed,
// case-folded and cut to prefixLen runes
func NormalizedKey(text string, prefixLen int) string {
	folded := cases.Fold().String(strings.TrimSpace(text))
	runes := []rune(folded)
	if len(runes) > prefixLen {
		runes = runes[:prefixLen]
	}
	return string(runes)
}

// Dedup keeps the first passage for every normalized key and returns the
// survivors in their original relative order with the number removed.
// First-seen wins regardless of relevance. Dedup is idempotent.
func Dedup(passages []model.Passage, prefixLen int) ([]model.Passage, int) {
	seen := make(map[string]bool, len(passages))
	unique := make([]model.Passage, 0, len(passages))
	removed := 0

	for _, p := range passages {
		key := NormalizedKey(p.Text, prefixLen)
		if seen[key] {
			removed++
			continue
		}
		seen[key] = true
		unique = append(unique, p)
	}

	return unique, removed
}
