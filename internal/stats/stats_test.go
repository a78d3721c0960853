package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hamed0406/apimonitor/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func outcome(at time.Time, ok bool, ms float64) domain.CheckOutcome {
	o := domain.CheckOutcome{TargetID: "api", CheckedAt: at, Success: ok, LatencyMS: ms, Reason: domain.ReasonNone}
	if !ok {
		o.Reason = domain.ReasonTimeout
	}
	return o
}

func TestSummarize_UptimeAndLatency(t *testing.T) {
	var outs []domain.CheckOutcome
	for i := 0; i < 10; i++ {
		ok := i != 3 && i != 7
		outs = append(outs, outcome(t0.Add(time.Duration(i)*time.Minute), ok, float64((i+1)*10)))
	}
	s := Summarize("api", t0, t0.Add(time.Hour), outs, nil, nil)

	require.False(t, s.NoData)
	require.Equal(t, 10, s.Checks)
	require.Equal(t, 8, s.Successes)
	require.Equal(t, 2, s.Failures)
	require.InDelta(t, 80.0, s.UptimePct, 1e-9)
	require.Equal(t, 2, s.FailuresByReason[domain.ReasonTimeout])

	// successful latencies: 10 20 30 50 60 70 90 100
	require.InDelta(t, 53.75, s.LatencyMeanMS, 1e-9)
	require.Equal(t, 50.0, s.LatencyP50MS)
	require.Equal(t, 100.0, s.LatencyP95MS)
}

func TestSummarize_NoData(t *testing.T) {
	s := Summarize("api", t0, t0.Add(time.Hour), nil, nil, nil)
	require.True(t, s.NoData)
	require.Zero(t, s.Checks)
	require.Zero(t, s.UptimePct)
	require.Zero(t, s.LatencyP95MS)
}

func TestSummarize_AllFailuresHasNoLatency(t *testing.T) {
	outs := []domain.CheckOutcome{outcome(t0, false, 9000), outcome(t0.Add(time.Minute), false, 9000)}
	s := Summarize("api", t0, t0.Add(time.Hour), outs, nil, nil)
	require.False(t, s.NoData)
	require.Zero(t, s.UptimePct)
	require.Zero(t, s.LatencyMeanMS)
}

func TestSummarize_IncidentsAndDowntime(t *testing.T) {
	from, to := t0, t0.Add(time.Hour)
	trs := []domain.TransitionEvent{
		{To: domain.StatusDown, From: domain.StatusUp, At: t0.Add(10 * time.Minute), Since: t0.Add(8 * time.Minute)},
		{To: domain.StatusUp, From: domain.StatusDown, At: t0.Add(20 * time.Minute)},
		{To: domain.StatusDown, From: domain.StatusUp, At: t0.Add(50 * time.Minute), Since: t0.Add(50 * time.Minute)},
	}
	s := Summarize("api", from, to, []domain.CheckOutcome{outcome(t0, true, 1)}, trs, nil)
	require.Equal(t, 2, s.Incidents)
	// 12m closed + 10m still open at window end
	require.Equal(t, 22*time.Minute, s.Downtime())
}

func TestSummarize_IncidentOpenAtWindowStart(t *testing.T) {
	from, to := t0, t0.Add(time.Hour)
	prior := &domain.TransitionEvent{To: domain.StatusDown, At: t0.Add(-30 * time.Minute), Since: t0.Add(-40 * time.Minute)}
	trs := []domain.TransitionEvent{{To: domain.StatusUp, From: domain.StatusDown, At: t0.Add(15 * time.Minute)}}

	s := Summarize("api", from, to, nil, trs, prior)
	require.Equal(t, 0, s.Incidents, "incident began before the window")
	require.Equal(t, 15*time.Minute, s.Downtime(), "downtime is clipped to the window")

	incs := buildIncidents(to, trs, prior)
	require.Len(t, incs, 1)
	require.True(t, incs[0].Start.Equal(t0.Add(-40*time.Minute)))
	require.Equal(t, 55*time.Minute, incs[0].Duration())
}

func TestPercentile_NearestRank(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	require.Equal(t, 5.0, percentile(xs, 50))
	require.Equal(t, 10.0, percentile(xs, 95))
	require.Equal(t, 1.0, percentile(xs, 0))
	require.Equal(t, 7.0, percentile([]float64{7}, 95))
	require.Zero(t, percentile(nil, 50))
}

func TestBuildSeries(t *testing.T) {
	outs := []domain.CheckOutcome{
		outcome(t0.Add(1*time.Minute), true, 100),
		outcome(t0.Add(2*time.Minute), true, 300),
		outcome(t0.Add(31*time.Minute), false, 5000),
		outcome(t0.Add(59*time.Minute), true, 200),
		outcome(t0.Add(61*time.Minute), true, 999), // outside
	}
	s := BuildSeries("api", t0, t0.Add(time.Hour), 2, outs)

	require.Len(t, s.Buckets, 2)
	require.Equal(t, 1800.0, s.StepSeconds)
	require.Equal(t, 2, s.Buckets[0].Checks)
	require.Equal(t, 200.0, s.Buckets[0].MeanMS)
	require.Equal(t, 300.0, s.Buckets[0].P95MS)
	require.Equal(t, 2, s.Buckets[1].Checks)
	require.Equal(t, 1, s.Buckets[1].Failures)
	require.Equal(t, 200.0, s.Buckets[1].MeanMS)
	require.Len(t, s.Failures, 1)
	require.Equal(t, domain.ReasonTimeout, s.Failures[0].Reason)
	require.Equal(t, 200.0, s.MeanMS)
}

func TestBuildSeries_BucketBounds(t *testing.T) {
	require.Len(t, BuildSeries("api", t0, t0.Add(time.Hour), 0, nil).Buckets, DefaultBuckets)
	require.Len(t, BuildSeries("api", t0, t0.Add(time.Hour), 10_000, nil).Buckets, MaxBuckets)
	require.Len(t, BuildSeries("api", t0, t0.Add(time.Hour), -3, nil).Buckets, 1)
}
