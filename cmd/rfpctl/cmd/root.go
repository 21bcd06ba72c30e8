// Package cmd contains the CLI commands for rfpctl.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keen-violet-ibis/rfphub/pkg/config"
)

var (
	// Used for flags
	verbose bool
	dbPath  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rfpctl",
	Short: "RFPHub - operator CLI",
	Long: `rfpctl manages an RFPHub deployment directly against its database.

It is intended for system administrators: provisioning users, forcing
lifecycle sweeps, and running company linkage reconciliation outside of
the HTTP API.

Examples:
  # List all users
  rfpctl user list

  # Create an admin user
  rfpctl user create --email admin@example.com --name "Site Admin" --role admin

  # Close every RFP past its closing date
  rfpctl rfp close-expired

  # Reconcile free-text company names
  rfpctl company reconcile`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.VersionString())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "data/rfphub.db", "path to the database file")

	rootCmd.AddCommand(versionCmd)
}
