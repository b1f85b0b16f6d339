package server

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/triagemail/triagemail/internal/auth"
	"github.com/triagemail/triagemail/internal/feed"
	"github.com/triagemail/triagemail/internal/instrumentation"
	"github.com/triagemail/triagemail/internal/logging"
	"github.com/triagemail/triagemail/internal/session"
	"github.com/triagemail/triagemail/internal/triage"
)

// ServerContext carries the shared dependencies of the presentation
// layer: the session store, the email record store, the auth flow, the
// feed client, and the metrics recorder. Handlers receive it explicitly
// instead of reaching for package-level state.
type ServerContext struct {
	ctx context.Context

	sessions *session.Store
	records  *triage.Store
	flow     *auth.Flow
	feed     *feed.Client
	feedLim  int
	metrics  *instrumentation.Metrics
	logger   *slog.Logger

	shutdown atomic.Bool
}

// NewServerContext creates a server context from its dependencies. The
// metrics recorder may be nil, in which case a no-op recorder is used.
func NewServerContext(
	ctx context.Context,
	sessions *session.Store,
	records *triage.Store,
	flow *auth.Flow,
	feedClient *feed.Client,
	feedLimit int,
	metrics *instrumentation.Metrics,
	logger *slog.Logger,
) *ServerContext {
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithComponent(logger, "server")
	return &ServerContext{
		ctx:      ctx,
		sessions: sessions,
		records:  records,
		flow:     flow,
		feed:     feedClient,
		feedLim:  feedLimit,
		metrics:  metrics,
		logger:   logger,
	}
}

// Context returns the base context for background operations.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Sessions returns the session store.
func (sc *ServerContext) Sessions() *session.Store {
	return sc.sessions
}

// Records returns the email record store.
func (sc *ServerContext) Records() *triage.Store {
	return sc.records
}

// Flow returns the auth flow controller.
func (sc *ServerContext) Flow() *auth.Flow {
	return sc.flow
}

// Feed returns the analyzed-email feed client.
func (sc *ServerContext) Feed() *feed.Client {
	return sc.feed
}

// FeedLimit returns the per-sync record limit.
func (sc *ServerContext) FeedLimit() int {
	return sc.feedLim
}

// Metrics returns the metrics recorder.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// Logger returns the shared logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// IsShutdown reports whether Shutdown has been called.
func (sc *ServerContext) IsShutdown() bool {
	return sc.shutdown.Load()
}

// Shutdown marks the context as shutting down so readiness probes start
// failing before the listener closes.
func (sc *ServerContext) Shutdown() {
	sc.shutdown.Store(true)
}
