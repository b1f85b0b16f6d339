package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsServerDefaultAddr(t *testing.T) {
	s := NewMetricsServer("")
	assert.Equal(t, DefaultMetricsAddr, s.Addr())

	s = NewMetricsServer("127.0.0.1:9191")
	assert.Equal(t, "127.0.0.1:9191", s.Addr())
}

func TestMetricsServerServesMetrics(t *testing.T) {
	// Grab a free port so parallel test runs do not collide.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	s := NewMetricsServer(addr)
	ready := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.StartWithReadySignal(ready)
	}()

	select {
	case <-ready:
	case err := <-errCh:
		t.Fatalf("metrics server failed to start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not become ready")
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	health, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.True(t, err == nil || errors.Is(err, http.ErrServerClosed))
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}

func TestMetricsServerShutdownBeforeStart(t *testing.T) {
	s := NewMetricsServer(":0")
	assert.NoError(t, s.Shutdown(context.Background()))
}
