package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/triagemail/triagemail/internal/config"
	"github.com/triagemail/triagemail/internal/instrumentation"
	"github.com/triagemail/triagemail/internal/logging"
	"github.com/triagemail/triagemail/internal/server"
	"github.com/triagemail/triagemail/internal/tools/triage_tools"
)

func newMCPCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI assistants",
		Long: `Start an MCP (Model Context Protocol) server over stdio exposing triage
tools: searching the analyzed email list and reading the dashboard
metrics snapshot.

The login flow still needs a browser, so the HTTP API server runs
alongside the stdio transport; sign in there first, then the tools
operate on the authenticated working set.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runMCP(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "API server address for the login flow (default from SERVER_ADDR, then :8000)")

	return cmd
}

func runMCP(addr string) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return err
	}
	if addr != "" {
		cfg.ServerAddr = addr
	}

	// stdio carries the protocol, so logs must stay on stderr.
	logger := logging.Setup(cfg.LogLevel, cfg.LogJSON)

	// Metrics and traces would race the stdio transport for no
	// benefit in assistant sessions; run with a no-op recorder.
	sc, err := buildServerContext(shutdownCtx, cfg, &instrumentation.Metrics{}, logger)
	if err != nil {
		return err
	}

	apiServer := server.NewServer(sc, cfg.ServerAddr)
	go func() {
		if err := apiServer.Start(nil); err != nil && err != http.ErrServerClosed {
			logger.Error("api server failed", logging.Err(err))
		}
	}()
	defer func() {
		if err := apiServer.Shutdown(context.Background()); err != nil {
			logger.Error("api server shutdown failed", logging.Err(err))
		}
	}()

	s := mcpserver.NewMCPServer(
		"triagemail",
		version,
		mcpserver.WithToolCapabilities(true),
	)

	if err := triage_tools.RegisterTriageTools(s, sc); err != nil {
		return fmt.Errorf("failed to register triage tools: %w", err)
	}

	logger.Info("mcp server starting on stdio", slog.String("api_addr", cfg.ServerAddr))
	return mcpserver.ServeStdio(s)
}
