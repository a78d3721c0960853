package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/apimonitor/internal/domain"
)

func TestMetrics_RecordsChecksAndTransitions(t *testing.T) {
	m := New()
	tg := domain.Target{ID: "id-1", Name: "billing"}

	m.ObserveOutcome(tg, domain.CheckOutcome{Success: true, LatencyMS: 120})
	m.ObserveOutcome(tg, domain.CheckOutcome{Success: false, Reason: domain.ReasonTimeout})
	m.ObserveOutcome(tg, domain.CheckOutcome{Success: false, Reason: domain.ReasonTimeout})
	m.ObserveSkip(tg)
	m.ObserveTransition(tg, domain.TransitionEvent{From: domain.StatusUp, To: domain.StatusDown})

	require.Equal(t, 1.0, testutil.ToFloat64(m.checks.WithLabelValues("billing", "success")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.checks.WithLabelValues("billing", "failure")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.failures.WithLabelValues("billing", "timeout")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.skipped.WithLabelValues("billing")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.incidents.WithLabelValues("billing")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.up.WithLabelValues("billing")))
	require.Equal(t, 1, testutil.CollectAndCount(m.responseTime))

	m.ObserveTransition(tg, domain.TransitionEvent{From: domain.StatusDown, To: domain.StatusUp})
	require.Equal(t, 1.0, testutil.ToFloat64(m.up.WithLabelValues("billing")))

	m.Forget(tg)
	require.Equal(t, 0, testutil.CollectAndCount(m.up))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SetStatus(domain.Target{ID: "x"}, domain.StatusUnknown)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	require.Equal(t, 200, rec.Code)
	require.True(t, strings.Contains(string(body), `apimonitor_target_up{target="x"} -1`))
}

func TestSystem_SnapshotIsCached(t *testing.T) {
	s := NewSystem(time.Minute)
	a := s.Snapshot(context.Background())
	b := s.Snapshot(context.Background())
	require.Equal(t, a.Timestamp, b.Timestamp)
	require.Greater(t, a.Goroutines, 0)
	require.Contains(t, []string{"healthy", "degraded"}, a.Status)
}
