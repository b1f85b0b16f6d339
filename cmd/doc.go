// Package cmd implements the command-line interface for triagemail.
//
// This package provides the following commands:
//   - serve: Start the dashboard API server (and the metrics server)
//   - mcp: Start the MCP server exposing triage tools to AI assistants
//
// Version information is available via the --version flag.
//
// The serve command is the default command when no subcommand is specified.
package cmd
