// Aiom — multi-tenant business operations assistant backed by an Odoo ERP.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "aiom",
	Short: "Aiom — business operations assistant with a human-in-the-loop tool pipeline.",
	Long: `Aiom turns free-text commands into auditable tool-call proposals that a
human approves or rejects before anything executes. It also serves an
aggregated Company View of accounting, CRM, project, helpdesk, and
inventory KPIs pulled live from an Odoo ERP, isolated per tenant.`,
	RunE:          runServe, // Default to serve mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
