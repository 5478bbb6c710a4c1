package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/compass/internal/classify"
	"github.com/ppiankov/compass/internal/model"
	"github.com/ppiankov/compass/internal/retrieve"
	"github.com/ppiankov/compass/internal/worker"
)

var (
	retrieveCategory string
	retrieveHints    []string
	retrieveJSON     bool
	retrieveTimeout  time.Duration
)

// retrieveCmd represents the retrieve command
var retrieveCmd = &cobra.Command{
	Use:   "retrieve <message | ->",
	Short: "Retrieve policy passages for a message",
	Long: `Retrieve searches the reference corpus for a message, analyses what the
first results miss, runs targeted follow-up searches and removes
near-duplicate passages.

The category decides whether follow-ups run. It is classified from the
message unless --category is given.

Example:
  compass retrieve "How should we encrypt stored chat messages?"
  compass retrieve "What is consent?" --category GENERAL_QUESTION
  compass retrieve "Storing patient records" --hints "breach notification"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRetrieve,
}

func init() {
	rootCmd.AddCommand(retrieveCmd)

	retrieveCmd.Flags().StringVar(&retrieveCategory, "category", "", "category to assume (PERSONAL_INFORMATION_TICKET, DEVELOPMENT_TICKET, GENERAL_QUESTION)")
	retrieveCmd.Flags().StringSliceVar(&retrieveHints, "hints", nil, "extra follow-up topics (comma separated)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "print passages and chain as JSON")
	retrieveCmd.Flags().DurationVar(&retrieveTimeout, "timeout", 30*time.Second, "retrieval timeout")
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	message, err := messageFromArgs(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	category := model.Category(strings.ToUpper(retrieveCategory))
	if retrieveCategory == "" {
		classifier, err := classify.New(cfg.Classifier)
		if err != nil {
			return fmt.Errorf("classifier: %w", err)
		}
		category = classifier.Classify(message).Category
	} else if !category.Valid() {
		return fmt.Errorf("unknown category %q", retrieveCategory)
	}

	_, searcher, err := newSearcher(cfg, worker.NewLimiter(0, cfg.Search.Burst))
	if err != nil {
		return err
	}
	orchestrator, err := retrieve.New(searcher, cfg.Retrieval, retrieve.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), retrieveTimeout)
	defer cancel()

	result, err := orchestrator.Retrieve(ctx, retrieve.Request{
		Message:    message,
		Category:   category,
		TopicHints: retrieveHints,
	})
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}

	out := cmd.OutOrStdout()
	if retrieveJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(model.Retrieval{Passages: result.Passages, Chain: result.Chain})
	}

	fmt.Fprintf(out, "Category: %s\n", category)
	fmt.Fprintf(out, "Passages: %d\n\n", len(result.Passages))
	for i, p := range result.Passages {
		fmt.Fprintf(out, "%d. %s (relevance %.2f)\n", i+1, p.Source, p.Relevance)
		fmt.Fprintf(out, "   %s\n\n", truncate(p.Text, 240))
	}
	fmt.Fprintln(out, result.Chain.Render())
	return nil
}

// truncate shortens s to at most n runes, appending an ellipsis
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
