package search

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/ppiankov/compass/internal/model"
)

// DefaultMinChunkChars is the paragraph merge threshold when none is configured
const DefaultMinChunkChars = 200

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "can": true, "do": true, "does": true, "for": true,
	"from": true, "how": true, "i": true, "in": true, "is": true, "it": true,
	"of": true, "on": true, "or": true, "our": true, "should": true, "that": true,
	"the": true, "this": true, "to": true, "we": true, "what": true, "when": true,
	"which": true, "who": true, "with": true, "you": true, "your": true,
}

type chunk struct {
	text   string
	source string
	terms  map[string]bool
}

// Corpus is an in-memory lexical index over local policy documents. It is
// read-only after loading and safe for concurrent use.
type Corpus struct {
	chunks      []chunk
	files       int
	fingerprint string
}

// LoadCorpus indexes every .txt, .md and .html document under dir
func LoadCorpus(dir string, minChunkChars int) (*Corpus, error) {
	if minChunkChars <= 0 {
		minChunkChars = DefaultMinChunkChars
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open corpus: %s is not a directory", dir)
	}

	c := &Corpus{}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		var paragraphs []string
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md", ".markdown":
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			paragraphs = textParagraphs(string(data))
		case ".html", ".htm":
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			paragraphs, err = htmlParagraphs(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
		default:
			return nil
		}

		c.files++
		source := filepath.Base(path)
		for _, text := range mergeParagraphs(paragraphs, minChunkChars) {
			c.chunks = append(c.chunks, chunk{text: text, source: source, terms: termSet(text)})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	c.fingerprint = fingerprint(c.chunks)
	return c, nil
}

// NewCorpus indexes in-memory documents keyed by source name. Documents are
// indexed in sorted source order.
func NewCorpus(documents map[string]string, minChunkChars int) *Corpus {
	if minChunkChars <= 0 {
		minChunkChars = DefaultMinChunkChars
	}

	sources := make([]string, 0, len(documents))
	for s := range documents {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	c := &Corpus{files: len(sources)}
	for _, source := range sources {
		for _, text := range mergeParagraphs(textParagraphs(documents[source]), minChunkChars) {
			c.chunks = append(c.chunks, chunk{text: text, source: source, terms: termSet(text)})
		}
	}
	c.fingerprint = fingerprint(c.chunks)
	return c
}

// Len returns the number of indexed chunks
func (c *Corpus) Len() int {
	return len(c.chunks)
}

// Files returns the number of indexed documents
func (c *Corpus) Files() int {
	return c.files
}

// Fingerprint identifies the indexed content. It changes whenever a chunk
// or its source changes.
func (c *Corpus) Fingerprint() string {
	return c.fingerprint
}

func fingerprint(chunks []chunk) string {
	h := sha256.New()
	for _, ch := range chunks {
		h.Write([]byte(ch.source))
		h.Write([]byte{0})
		h.Write([]byte(ch.text))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Search ranks chunks by the share of query terms they contain. Relevance
// is in [0, 1]; chunks sharing no term are never returned. Ties keep index
// order.
func (c *Corpus) Search(ctx context.Context, query string, limit int) ([]model.Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	queryTerms := termSet(query)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	type scored struct {
		index     int
		relevance float64
	}
	var hits []scored
	for i, ch := range c.chunks {
		matched := 0
		for term := range queryTerms {
			if ch.terms[term] {
				matched++
			}
		}
		if matched > 0 {
			hits = append(hits, scored{index: i, relevance: float64(matched) / float64(len(queryTerms))})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].relevance > hits[j].relevance
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	passages := make([]model.Passage, len(hits))
	for i, h := range hits {
		ch := c.chunks[h.index]
		passages[i] = model.Passage{Text: ch.text, Source: ch.source, Relevance: h.relevance}
	}
	return passages, nil
}

// textParagraphs splits plain text or markdown on blank lines
func textParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var paragraphs []string
	for _, block := range strings.Split(text, "\n\n") {
		p := strings.Join(strings.Fields(block), " ")
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// mergeParagraphs joins consecutive short paragraphs until each chunk holds
// at least minChars characters. A trailing short remainder joins the last chunk.
func mergeParagraphs(paragraphs []string, minChars int) []string {
	var chunks []string
	var current strings.Builder

	for _, p := range paragraphs {
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(p)
		if current.Len() >= minChars {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	if current.Len() > 0 {
		if len(chunks) > 0 {
			chunks[len(chunks)-1] += " " + current.String()
		} else {
			chunks = append(chunks, current.String())
		}
	}
	return chunks
}

func termSet(text string) map[string]bool {
	folded := cases.Fold().String(text)
	terms := make(map[string]bool)
	for _, word := range strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(word)) < 2 || stopwords[word] {
			continue
		}
		terms[word] = true
	}
	return terms
}
