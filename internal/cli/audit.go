package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/compass/internal/audit"
)

var (
	auditLimit  int
	auditDBPath string
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect persisted reasoning chains",
	Long: `Inspect reasoning chains stored by process and batch when an audit
database is configured (audit.path or --audit).

Every chain is stored in canonical form with its SHA-256 digest. Reading a
chain re-verifies the digest, so tampered records are reported, not shown.
Message text is never stored.`,
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recently processed reports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openAuditStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		summaries, err := store.Reports(cmd.Context(), auditLimit)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No reports recorded")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "REPORT\tPROCESSED\tCATEGORY\tSEVERITY\tPASSAGES")
		for _, s := range summaries {
			severity := s.Severity
			if severity == "" {
				severity = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
				s.ReportID, s.ProcessedAt.Format(time.RFC3339), s.Category, severity, s.Passages)
		}
		return tw.Flush()
	},
}

var auditShowCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Replay the reasoning transcripts of one report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openAuditStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		entries, err := store.List(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Report: %s\n", args[0])
		for _, entry := range entries {
			fmt.Fprintln(out)
			fmt.Fprintf(out, "─── %d. %s ───\n", entry.Position+1, entry.Title)
			fmt.Fprintf(out, "Recorded: %s\n", entry.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Digest:   %s (verified)\n\n", entry.Digest)
			fmt.Fprintln(out, entry.Record.Render())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditShowCmd)

	auditCmd.PersistentFlags().StringVar(&auditDBPath, "db", "", "SQLite audit database (default: audit.path)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 50, "maximum number of reports")
}

func openAuditStore() (*audit.Store, error) {
	path := auditDBPath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Audit.Path
	}
	if path == "" {
		return nil, fmt.Errorf("no audit database configured (set audit.path or --db)")
	}
	return audit.Open(path)
}
