package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the triagemail application
var rootCmd = &cobra.Command{
	Use:   "triagemail",
	Short: "Dashboard backend for AI-triaged email",
	Long: `triagemail serves the presentation layer of an email-triage product:
it gates access behind the Microsoft identity platform's authorization-code
flow, ingests pre-analyzed email records from the classification backend,
and serves the dashboard's metrics and filtered email list.

It can run as:
  - An HTTP API server for the dashboard frontend (default)
  - An MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "triagemail version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMCPCmd())
}
