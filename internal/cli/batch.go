package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/compass/internal/model"
	"github.com/ppiankov/compass/internal/pipeline"
	"github.com/ppiankov/compass/internal/worker"
)

var (
	workers      int
	outputDir    string
	jsonlPath    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Process many messages from a file in parallel",
	Long: `Batch processes independent messages concurrently:
- Read one message per line (blank lines and # comments are skipped)
- A line starting with "{" is a JSON object with message, detections and topic_hints
- Process messages in parallel with a configurable worker count
- Emit one JSON report per line, in input order

Example:
  compass batch messages.txt
  compass batch messages.jsonl --workers 8 --jsonl reports.jsonl
  compass batch messages.txt --output-dir ./compass-reports`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Concurrency flags
	batchCmd.Flags().IntVar(&workers, "workers", 0, "number of concurrent workers (default: concurrency.workers)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")

	// Output flags
	batchCmd.Flags().StringVar(&jsonlPath, "jsonl", "-", "JSON lines output path (- for stdout)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "", "also write <report-id>.json and .md per message here")
	batchCmd.Flags().BoolVar(&noTranscript, "no-transcript", false, "omit reasoning transcripts from Markdown")

	// Shared with process
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the search cache")
	batchCmd.Flags().StringVar(&auditPath, "audit", "", "SQLite audit database (overrides audit.path)")
	batchCmd.Flags().StringVar(&llmProvider, "llm", "", "generate advice with this provider (openai, ollama)")
	batchCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
}

// batchLine is one JSON line of batch output
type batchLine struct {
	Index  int           `json:"index"`
	Report *model.Report `json:"report,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	inputs, err := worker.ReadInputsFromFile(file)
	if err != nil {
		return fmt.Errorf("read inputs: %w", err)
	}

	e, err := newEngineFromFlags()
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	n := workers
	if n <= 0 {
		n = e.cfg.Concurrency.Workers
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Compass Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Messages:     %d\n", len(inputs))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", n)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	if e.advisor.IsEnabled() {
		fmt.Fprintf(os.Stderr, "  LLM:          %s\n", e.advisor.ProviderName())
	}
	fmt.Fprintf(os.Stderr, "\n")

	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	processor := worker.NewBatchProcessor(e.pipeline, n)
	results := processor.ProcessInputs(ctx, inputs)

	out := cmd.OutOrStdout()
	if jsonlPath != "-" {
		f, err := os.Create(jsonlPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", jsonlPath, err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	successCount, failureCount, err := writeBatchResults(out, results, pipeline.NewRenderer(e.cfg.Output.IncludeTranscript))
	if err != nil {
		return err
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d messages\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	if outputDir != "" {
		fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	}
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d messages failed", failureCount, len(results))
	}
	return nil
}

// writeBatchResults emits one JSON line per result in input order and
// optionally per-report files under outputDir
func writeBatchResults(out io.Writer, results []*worker.MessageResult, renderer *pipeline.Renderer) (int, int, error) {
	enc := json.NewEncoder(out)
	successCount, failureCount := 0, 0

	for _, result := range results {
		line := batchLine{Index: result.Index}
		if result.Error != nil {
			failureCount++
			line.Error = result.Error.Error()
			fmt.Fprintf(os.Stderr, "✗ message %d: %v\n", result.Index+1, result.Error)
		} else {
			successCount++
			line.Report = result.Report
			fmt.Fprintf(os.Stderr, "✓ message %d: %s (%d passages)\n",
				result.Index+1, result.Report.Classification.Category, len(result.Report.Retrieval.Passages))

			if outputDir != "" {
				if err := writeReportFiles(renderer, result.Report); err != nil {
					fmt.Fprintf(os.Stderr, "✗ message %d: %v\n", result.Index+1, err)
				}
			}
		}

		if err := enc.Encode(line); err != nil {
			return successCount, failureCount, fmt.Errorf("write results: %w", err)
		}
	}
	return successCount, failureCount, nil
}

func writeReportFiles(renderer *pipeline.Renderer, report *model.Report) error {
	jsonPath := filepath.Join(outputDir, report.ID+".json")
	if err := writeFile(jsonPath, func(w io.Writer) error { return renderer.RenderJSON(w, report) }); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	mdPath := filepath.Join(outputDir, report.ID+".md")
	if err := writeFile(mdPath, func(w io.Writer) error { return renderer.RenderMarkdown(w, report) }); err != nil {
		return fmt.Errorf("failed to write Markdown: %w", err)
	}
	return nil
}
