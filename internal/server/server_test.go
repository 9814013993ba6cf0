package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/bidwatcher/internal/metrics"
	"github.com/JakeFAU/bidwatcher/internal/monitor"
)

type fakeMonitor struct {
	mu     sync.Mutex
	size   int
	status *monitor.Status
}

func (f *fakeMonitor) CacheSize() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

func (f *fakeMonitor) LastStatus() (monitor.Status, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == nil {
		return monitor.Status{}, false
	}
	return *f.status, true
}

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, New(&fakeMonitor{}, zap.NewNop()).Handler(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyzFollowsLastCycle(t *testing.T) {
	t.Parallel()

	mon := &fakeMonitor{}
	h := New(mon, nil).Handler()

	rec := serve(t, h, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "starting")

	mon.mu.Lock()
	mon.status = &monitor.Status{Error: "cycle c1: open browser: chrome not found"}
	mon.mu.Unlock()
	rec = serve(t, h, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "chrome not found")

	mon.mu.Lock()
	mon.status = &monitor.Status{Result: monitor.Result{Skipped: true}}
	mon.mu.Unlock()
	rec = serve(t, h, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusReportsCacheAndLastCycle(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC)
	mon := &fakeMonitor{
		size:   3,
		status: &monitor.Status{At: at, Result: monitor.Result{CycleID: "c1", Found: 3, Published: 1, Duplicates: 2}},
	}
	rec := serve(t, New(mon, nil).Handler(), "/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 3, body.CacheSize)
	require.NotNil(t, body.LastCycle)
	require.Equal(t, "c1", body.LastCycle.Result.CycleID)
	require.True(t, at.Equal(body.LastCycle.At))
}

func TestMetricsEndpointExposesCollectors(t *testing.T) {
	t.Parallel()

	metrics.SetCacheSize(7)
	rec := serve(t, New(&fakeMonitor{}, nil).Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "bidwatcher_dedup_cache_size")
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s := New(&fakeMonitor{}, nil)
	h := s.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := serve(t, h, "/")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- New(&fakeMonitor{}, nil).ListenAndServe(ctx, port) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", l.Addr().String())
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
