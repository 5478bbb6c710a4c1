package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/compass/internal/pipeline"
)

var (
	outJSON        string
	outMD          string
	processTimeout time.Duration
	detectionsFile string
	topicHints     []string
	noCache        bool
	noTranscript   bool
	llmProvider    string
	llmModel       string
	auditPath      string
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process <message | ->",
	Short: "Run a message through classification, risk assessment and retrieval",
	Long: `Process runs the complete decision pipeline for one message:
- Classify the message
- Assess privacy risk when it is a personal information ticket
- Retrieve and deduplicate policy passages, with follow-up searches
- Optionally generate advice grounded only on the retrieved passages
- Optionally persist every reasoning chain for audit

Example:
  compass process "My email is jane@example.com, what do you keep about me?" --detections det.json
  compass process "How should we encrypt chat messages?" --md report.md
  compass process - --json report.json --llm openai < message.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	// Input flags
	processCmd.Flags().StringVar(&detectionsFile, "detections", "", "JSON file with extracted detections")
	processCmd.Flags().StringSliceVar(&topicHints, "hints", nil, "extra follow-up topics (comma separated)")

	// Output flags
	processCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path")
	processCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path")
	processCmd.Flags().BoolVar(&noTranscript, "no-transcript", false, "omit reasoning transcripts from Markdown")

	// Runtime flags
	processCmd.Flags().DurationVar(&processTimeout, "timeout", 2*time.Minute, "overall processing timeout")
	processCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the search cache")
	processCmd.Flags().StringVar(&auditPath, "audit", "", "SQLite audit database (overrides audit.path)")

	// LLM flags
	processCmd.Flags().StringVar(&llmProvider, "llm", "", "generate advice with this provider (openai, ollama)")
	processCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
}

func runProcess(cmd *cobra.Command, args []string) error {
	message, err := messageFromArgs(args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	detections, err := readDetections(detectionsFile)
	if err != nil {
		return err
	}

	e, err := newEngineFromFlags()
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), processTimeout)
	defer cancel()

	report, err := e.pipeline.Process(ctx, pipeline.Input{
		Message:    message,
		Detections: detections,
		TopicHints: topicHints,
	})
	if err != nil {
		return fmt.Errorf("process failed: %w", err)
	}

	renderer := pipeline.NewRenderer(e.cfg.Output.IncludeTranscript)
	if outJSON != "" {
		if err := writeFile(outJSON, func(w io.Writer) error { return renderer.RenderJSON(w, report) }); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
	}
	if outMD != "" {
		if err := writeFile(outMD, func(w io.Writer) error { return renderer.RenderMarkdown(w, report) }); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
	}

	renderer.RenderSummary(cmd.OutOrStdout(), report)
	if outJSON != "" {
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", outJSON)
	}
	if outMD != "" {
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", outMD)
	}
	return nil
}

// newEngineFromFlags loads configuration, applies the runtime flags shared
// by process and batch, and wires the engine
func newEngineFromFlags() (*engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if noCache {
		cfg.Cache.Enabled = false
	}
	if noTranscript {
		cfg.Output.IncludeTranscript = false
	}
	if auditPath != "" {
		cfg.Audit.Path = auditPath
	}
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
		if cfg.LLM.APIKey == "" && llmProvider == "openai" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
			if cfg.LLM.APIKey == "" {
				return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
			}
		}
		if cfg.LLM.BaseURL == "" && llmProvider == "ollama" {
			cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return newEngine(cfg)
}
