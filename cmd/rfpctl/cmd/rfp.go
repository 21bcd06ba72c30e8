package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keen-violet-ibis/rfphub/internal/authz"
	"github.com/keen-violet-ibis/rfphub/internal/lifecycle"
	"github.com/keen-violet-ibis/rfphub/internal/notify"
	"github.com/keen-violet-ibis/rfphub/internal/storage"
)

// rfpCmd represents the rfp command group
var rfpCmd = &cobra.Command{
	Use:   "rfp",
	Short: "RFP lifecycle commands",
	Long: `Commands for operating on RFPs outside of the HTTP API.

Examples:
  # List all RFPs
  rfpctl rfp list

  # Close every active RFP past its closing date
  rfpctl rfp close-expired`,
}

// rfpListCmd lists all RFPs
var rfpListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all RFPs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		rfps, err := store.RFPs().List(ctx, storage.RFPFilter{})
		if err != nil {
			return fmt.Errorf("list rfps: %w", err)
		}

		if len(rfps) == 0 {
			fmt.Println("No RFPs found.")
			return nil
		}

		fmt.Printf("\n%-36s  %-40s  %-12s  %-8s  %s\n",
			"ID", "TITLE", "VISIBILITY", "STATUS", "CLOSES")
		fmt.Println(strings.Repeat("-", 120))

		for _, r := range rfps {
			title := r.Title
			if len(title) > 40 {
				title = title[:37] + "..."
			}
			fmt.Printf("%-36s  %-40s  %-12s  %-8s  %s\n",
				r.ID,
				title,
				r.Visibility,
				r.Status,
				r.ClosingDate.Format("2006-01-02 15:04"),
			)
		}
		fmt.Printf("\nTotal: %d RFP(s)\n", len(rfps))

		return nil
	},
}

// rfpCloseExpiredCmd runs the expiry sweep once
var rfpCloseExpiredCmd = &cobra.Command{
	Use:   "close-expired",
	Short: "Close every active RFP past its closing date",
	Long: `Run the expiry sweep once: every active RFP whose closing date has
passed is transitioned to closed, and holders of approved access grants
are notified. Safe to run repeatedly; a sweep with nothing eligible is
a no-op.

Example:
  rfpctl rfp close-expired`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		manager := lifecycle.NewManager(store, notify.NewDispatcher(store))

		result, err := manager.CloseExpired(context.Background())
		if err != nil {
			return fmt.Errorf("close expired: %w", err)
		}

		if result.UpdatedCount == 0 {
			fmt.Println("No RFPs were eligible to close.")
			return nil
		}

		fmt.Printf("Closed %d RFP(s):\n", result.UpdatedCount)
		for _, id := range result.ClosedIDs {
			fmt.Printf("  %s\n", id)
		}
		return nil
	},
}

func init() {
	rfpCmd.AddCommand(rfpListCmd)
	rfpCmd.AddCommand(rfpCloseExpiredCmd)
	rootCmd.AddCommand(rfpCmd)
}

// syncRoleClaim pushes a user's profile role into the claim store.
func syncRoleClaim(ctx context.Context, store storage.Storage, userID string) error {
	resolver := authz.NewResolver(store.Users(), store.Claims())
	return resolver.SyncRole(ctx, userID)
}
