package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/compass/internal/classify"
	"github.com/ppiankov/compass/internal/model"
	"github.com/ppiankov/compass/internal/reasoning"
)

var classifyJSON bool

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify <message | ->",
	Short: "Classify a message and print the reasoning transcript",
	Long: `Classify decides whether a message is a personal information ticket,
a development ticket or a general policy question, and prints every
step that led to the decision.

Example:
  compass classify "My SIN is 123-456-789, can you update my file?"
  echo "How should we store chat messages?" | compass classify -
  compass classify "What is a privacy breach?" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "print the decision as JSON")
}

type classifyOutput struct {
	Category model.Category   `json:"category"`
	Chain    reasoning.Record `json:"chain"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	message, err := messageFromArgs(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	classifier, err := classify.New(cfg.Classifier)
	if err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	result := classifier.Classify(message)

	out := cmd.OutOrStdout()
	if classifyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(classifyOutput{Category: result.Category, Chain: result.Chain})
	}

	fmt.Fprintf(out, "Category: %s (%s)\n\n", result.Category, result.Category.Label())
	fmt.Fprintln(out, result.Chain.Render())
	return nil
}
