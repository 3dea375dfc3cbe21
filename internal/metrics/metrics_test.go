package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leafsii/kv-resave/internal/resave"
)

func TestRecordBatchIsExported(t *testing.T) {
	m, handler, err := Setup("kv-resave-test")
	require.NoError(t, err)
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	ctx := context.Background()
	m.RecordBatch(ctx, resave.BatchStats{
		Keys:      10,
		Rewritten: 8,
		Skipped:   2,
		Elapsed:   40 * time.Millisecond,
		Sleep:     10 * time.Millisecond,
	})
	m.RecordRun(ctx, "complete", false)

	srv := httptest.NewServer(Routes(handler))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	for _, name := range []string{
		"kvr_keys_scanned",
		"kvr_keys_rewritten",
		"kvr_keys_skipped",
		"kvr_batch_duration_seconds",
		"kvr_pacing_sleep_seconds",
		"kvr_runs",
	} {
		assert.Contains(t, text, name)
	}
	assert.Contains(t, text, `outcome="complete"`)
}

func TestSetupTwiceDoesNotConflict(t *testing.T) {
	m1, _, err := Setup("first")
	require.NoError(t, err)
	m2, _, err := Setup("second")
	require.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, m1.Shutdown(ctx))
	assert.NoError(t, m2.Shutdown(ctx))
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(Routes(http.NotFoundHandler()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestServeStopsWithContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, addr, Routes(http.NotFoundHandler()), zap.NewNop().Sugar())
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
