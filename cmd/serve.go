package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/triagemail/triagemail/internal/auth"
	"github.com/triagemail/triagemail/internal/config"
	"github.com/triagemail/triagemail/internal/feed"
	"github.com/triagemail/triagemail/internal/instrumentation"
	"github.com/triagemail/triagemail/internal/logging"
	"github.com/triagemail/triagemail/internal/server"
	"github.com/triagemail/triagemail/internal/session"
	"github.com/triagemail/triagemail/internal/triage"
)

func newServeCmd() *cobra.Command {
	var (
		addr           string
		metricsAddr    string
		metricsEnabled bool
		logLevel       string
		logJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API server",
		Long: `Start the triagemail HTTP API server.

The server exposes the OAuth2 login flow under /auth, the protected
dashboard API (/emails, /dashboard/metrics), and health probes. A
dedicated Prometheus metrics server runs on a separate port.

Configuration comes from the environment (a .env file is honored):
MICROSOFT_TENANT_ID, MICROSOFT_CLIENT_ID, MICROSOFT_CLIENT_SECRET,
MICROSOFT_REDIRECT_URI, and FEED_URL are required.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(addr, metricsAddr, metricsEnabled, logLevel, logJSON)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "API server address (default from SERVER_ADDR, then :8000)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Metrics server address (default from METRICS_ADDR, then :9090)")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from LOG_LEVEL)")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")

	return cmd
}

func runServe(addr, metricsAddr string, metricsEnabled bool, logLevel string, logJSON bool) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		// Configuration errors are fatal at startup: refusing to run
		// beats failing on the first login redirect.
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return err
	}
	if addr != "" {
		cfg.ServerAddr = addr
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if !metricsEnabled {
		cfg.MetricsEnabled = false
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logJSON {
		cfg.LogJSON = true
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogJSON)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	// Metrics server on its own port, started before the API server so
	// the scrape target exists as soon as traffic can arrive.
	var metricsServer *server.MetricsServer
	if cfg.MetricsEnabled && provider.Enabled() {
		metricsServer = server.NewMetricsServer(cfg.MetricsAddr)

		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		select {
		case <-metricsReady:
			logger.Info("metrics server started", slog.String("addr", metricsServer.Addr()))
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}

	sc, err := buildServerContext(shutdownCtx, cfg, provider.Metrics(), logger)
	if err != nil {
		return err
	}

	apiServer := server.NewServer(sc, cfg.ServerAddr)

	apiErr := make(chan error, 1)
	go func() {
		if err := apiServer.Start(nil); err != nil && err != http.ErrServerClosed {
			apiErr <- err
		}
		close(apiErr)
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-apiErr:
		if err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer drainCancel()

	if err := apiServer.Shutdown(drainCtx); err != nil {
		logger.Error("api server shutdown failed", logging.Err(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(drainCtx); err != nil {
			logger.Error("metrics server shutdown failed", logging.Err(err))
		}
	}
	return nil
}

// buildServerContext wires the session store, record store, auth flow,
// and feed client into a server context. Shared by serve and mcp.
func buildServerContext(ctx context.Context, cfg *config.Config, metrics *instrumentation.Metrics, logger *slog.Logger) (*server.ServerContext, error) {
	sessions := session.NewStore()
	records := triage.NewStore()

	flow, err := auth.NewFlow(auth.Config{
		TenantID:     cfg.Microsoft.TenantID,
		ClientID:     cfg.Microsoft.ClientID,
		ClientSecret: cfg.Microsoft.ClientSecret,
		RedirectURI:  cfg.Microsoft.RedirectURI,
	}, sessions, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth flow: %w", err)
	}

	feedClient := feed.NewClient(cfg.Feed.BaseURL, cfg.Feed.Timeout, logger)

	return server.NewServerContext(ctx, sessions, records, flow, feedClient, cfg.Feed.Limit, metrics, logger), nil
}
