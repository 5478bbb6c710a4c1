package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/compass/internal/audit"
	"github.com/ppiankov/compass/internal/cache"
	"github.com/ppiankov/compass/internal/llm"
	"github.com/ppiankov/compass/internal/model"
	"github.com/ppiankov/compass/internal/pipeline"
	"github.com/ppiankov/compass/internal/retrieve"
	"github.com/ppiankov/compass/internal/search"
	"github.com/ppiankov/compass/internal/worker"
)

// loadConfig merges the config file and COMPASS_* variables onto the
// built-in defaults and validates the result
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.LLM.APIKey == "" && strings.EqualFold(cfg.LLM.Provider, "openai") {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// engine owns every long-lived collaborator of one command invocation
type engine struct {
	cfg      *model.Config
	corpus   *search.Corpus
	searcher retrieve.Searcher
	limiter  *worker.Limiter
	advisor  *llm.Advisor
	store    *audit.Store
	pipeline *pipeline.Pipeline
}

// newSearcher loads the corpus and wraps it with pacing and caching.
// Cache hits are not paced.
func newSearcher(cfg *model.Config, limiter *worker.Limiter) (*search.Corpus, retrieve.Searcher, error) {
	corpus, err := search.LoadCorpus(cfg.Search.CorpusDir, cfg.Search.MinChunkChars)
	if err != nil {
		return nil, nil, fmt.Errorf("load corpus: %w", err)
	}
	logger.Debug("corpus loaded",
		zap.String("dir", cfg.Search.CorpusDir),
		zap.Int("files", corpus.Files()),
		zap.Int("chunks", corpus.Len()))

	var searcher retrieve.Searcher = corpus
	if cfg.Search.RequestsPerSecond > 0 {
		limiter.SetRate(search.PacerKey, cfg.Search.RequestsPerSecond, cfg.Search.Burst)
		searcher = search.Limited(searcher, limiter)
	}
	if c := cache.New(cfg.Cache); c != nil {
		searcher = search.Cached(searcher, c, 0, logger).WithNamespace(corpus.Fingerprint())
	}
	return corpus, searcher, nil
}

// newEngine wires the searcher, optional advisor, optional audit store
// and the pipeline. Callers must Close it.
func newEngine(cfg *model.Config) (*engine, error) {
	e := &engine{
		cfg:     cfg,
		limiter: worker.NewLimiter(0, cfg.Search.Burst),
	}

	var err error
	if e.corpus, e.searcher, err = newSearcher(cfg, e.limiter); err != nil {
		return nil, err
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}

	if cfg.LLM.Provider != "" {
		advisor, err := llm.NewAdvisor(llm.ConfigFromModel(cfg.LLM))
		if err != nil {
			return nil, fmt.Errorf("create advisor: %w", err)
		}
		e.advisor = advisor.WithPacer(e.limiter)
		opts = append(opts, pipeline.WithAdvisor(e.advisor))
	}

	if cfg.Audit.Path != "" {
		if e.store, err = audit.Open(cfg.Audit.Path); err != nil {
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		opts = append(opts, pipeline.WithRecorder(e.store))
	}

	if e.pipeline, err = pipeline.New(cfg, e.searcher, opts...); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

// Close releases the audit store, if any
func (e *engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// messageFromArgs joins the positional arguments, or reads stdin when the
// only argument is "-"
func messageFromArgs(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return strings.Join(args, " "), nil
}

// readDetections loads a JSON array of detections. An empty path yields none.
func readDetections(path string) ([]model.Detection, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read detections: %w", err)
	}

	var detections []model.Detection
	if err := json.Unmarshal(data, &detections); err != nil {
		return nil, fmt.Errorf("parse detections %s: %w", path, err)
	}
	for i, d := range detections {
		if d.Category == "" {
			return nil, fmt.Errorf("parse detections %s: entry %d has no type", path, i)
		}
	}
	return detections, nil
}

// writeFile creates path and hands it to render, reporting close errors
func writeFile(path string, render func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()
	return render(f)
}
