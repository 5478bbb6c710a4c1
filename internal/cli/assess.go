package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/compass/internal/model"
	"github.com/ppiankov/compass/internal/reasoning"
	"github.com/ppiankov/compass/internal/risk"
)

var (
	assessDetections string
	assessJSON       bool
)

// assessCmd represents the assess command
var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Assess the privacy risk of extracted detections",
	Long: `Assess computes a severity (LOW, MEDIUM, HIGH, CRITICAL) from detections
produced by an external personal-information extractor.

The detections file is a JSON array:
  [{"type": "Email Address", "value": "a@b.com", "start": 10, "end": 17}]

Detected values are never printed.

Example:
  compass assess --detections detections.json
  compass assess --detections detections.json --json`,
	Args: cobra.NoArgs,
	RunE: runAssess,
}

func init() {
	rootCmd.AddCommand(assessCmd)

	assessCmd.Flags().StringVar(&assessDetections, "detections", "", "JSON file with extracted detections (required)")
	assessCmd.Flags().BoolVar(&assessJSON, "json", false, "print the decision as JSON")
	_ = assessCmd.MarkFlagRequired("detections")
}

type assessOutput struct {
	Severity         model.Severity   `json:"severity"`
	PrimaryFactor    string           `json:"primary_factor,omitempty"`
	SecondaryFactors []string         `json:"secondary_factors,omitempty"`
	Chain            reasoning.Record `json:"chain"`
}

func runAssess(cmd *cobra.Command, args []string) error {
	detections, err := readDetections(assessDetections)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	assessor, err := risk.New(cfg.Risk)
	if err != nil {
		return fmt.Errorf("assessor: %w", err)
	}
	result := assessor.Assess(detections)

	out := cmd.OutOrStdout()
	if assessJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(assessOutput{
			Severity:         result.Severity,
			PrimaryFactor:    result.PrimaryFactor,
			SecondaryFactors: result.SecondaryFactors,
			Chain:            result.Chain,
		})
	}

	fmt.Fprintf(out, "Severity: %s\n", result.Severity)
	if result.PrimaryFactor != "" {
		fmt.Fprintf(out, "Primary:  %s\n", result.PrimaryFactor)
	}
	if len(result.SecondaryFactors) > 0 {
		fmt.Fprintf(out, "Also:     %s\n", strings.Join(result.SecondaryFactors, ", "))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, result.Chain.Render())
	return nil
}
