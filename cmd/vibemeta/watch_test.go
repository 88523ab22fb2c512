package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchScriptRerunsOnChange(t *testing.T) {
	scriptPath := writeScript(t, "class Widget\nancestors Widget\n")
	cfg, err := loadConfig("")
	require.NoError(t, err)
	cfg.Watch.Debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	done := make(chan error, 1)
	go func() {
		done <- watchScript(ctx, scriptPath, out, cfg, logger)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "[Widget, Object, Kernel, BasicObject]")
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(scriptPath, []byte("module Extra\nclass Widget\ninclude Widget Extra\nancestors Widget\n"), 0o644))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "[Widget, Extra, Object, Kernel, BasicObject]")
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(scriptPath, []byte("include Missing Other\n"), 0o644))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "uninitialized constant Missing")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("watchScript did not stop after cancel")
	}
	assert.GreaterOrEqual(t, strings.Count(out.String(), "==> script"+scriptExt), 3)
}

func TestWatchCommandRequiresScriptPath(t *testing.T) {
	err := watchCommand(nil)
	if err == nil || !strings.Contains(err.Error(), "script path required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMetricsEndpointExposesRuntimeCounters(t *testing.T) {
	scriptPath := writeScript(t, "class Widget\nlet w = new Widget\n")
	cfg, err := loadConfig("")
	require.NoError(t, err)
	require.NoError(t, runGraphFile(context.Background(), scriptPath, io.Discard, cfg))

	rec := httptest.NewRecorder()
	metricsMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vibemeta_method_lookups_total")
}
