package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keen-violet-ibis/rfphub/internal/linkage"
)

var auditLimit int

// companyCmd represents the company command group
var companyCmd = &cobra.Command{
	Use:   "company",
	Short: "Company linkage commands",
	Long: `Commands for company linkage maintenance.

Examples:
  # Link users carrying a free-text company name to company records
  rfpctl company reconcile

  # Show recent linkage audit entries
  rfpctl company audits --limit 50`,
}

// companyReconcileCmd runs the linkage batch
var companyReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile free-text company names to company records",
	Long: `Walk every user carrying a free-text company name without a company
link, match the text against company records (exact, then prefix, then
substring), link matches, and record an audit entry per attempt.
Per-user failures are recorded and skipped.

Example:
  rfpctl company reconcile`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		resolver := linkage.NewResolver(store)
		result, err := resolver.ReconcileAll(context.Background())
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}

		fmt.Printf("Reconciliation complete:\n")
		fmt.Printf("  Linked:   %d\n", result.LinkedCount)
		fmt.Printf("  No match: %d\n", result.NoMatch)
		fmt.Printf("  Failures: %d\n", result.Failures)
		return nil
	},
}

// companyAuditsCmd lists linkage audit entries
var companyAuditsCmd = &cobra.Command{
	Use:   "audits",
	Short: "Show recent linkage audit entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		audits, err := store.Companies().ListLinkAudits(context.Background(), auditLimit)
		if err != nil {
			return fmt.Errorf("list audits: %w", err)
		}

		if len(audits) == 0 {
			fmt.Println("No audit entries found.")
			return nil
		}

		fmt.Printf("\n%-36s  %-24s  %-10s  %s\n", "USER", "TEXT", "OUTCOME", "DETAIL")
		fmt.Println(strings.Repeat("-", 100))
		for _, a := range audits {
			fmt.Printf("%-36s  %-24s  %-10s  %s\n", a.UserID, a.Text, a.Outcome, a.Detail)
		}
		fmt.Printf("\nTotal: %d entr(ies)\n", len(audits))
		return nil
	},
}

func init() {
	companyAuditsCmd.Flags().IntVar(&auditLimit, "limit", 50, "maximum entries to show")

	companyCmd.AddCommand(companyReconcileCmd)
	companyCmd.AddCommand(companyAuditsCmd)
	rootCmd.AddCommand(companyCmd)
}
