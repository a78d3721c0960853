package stats

import (
	"sort"
	"time"

	"github.com/hamed0406/apimonitor/internal/domain"
)

const (
	DefaultBuckets = 60
	MaxBuckets     = 500
)

// Bucket aggregates the checks whose timestamp falls in [Start, Start+step).
type Bucket struct {
	Start    time.Time `json:"start"`
	Checks   int       `json:"checks"`
	Failures int       `json:"failures"`
	MeanMS   float64   `json:"mean_ms"`
	P95MS    float64   `json:"p95_ms"`
}

// Point marks a single failed check on a chart.
type Point struct {
	At        time.Time            `json:"at"`
	LatencyMS float64              `json:"latency_ms"`
	Reason    domain.FailureReason `json:"reason"`
}

// Series is a chart-ready view of a window: a latency line per bucket,
// failure markers and the window mean as a reference line.
type Series struct {
	TargetID    domain.TargetID `json:"target_id"`
	From        time.Time       `json:"from"`
	To          time.Time       `json:"to"`
	StepSeconds float64         `json:"step_seconds"`
	Buckets     []Bucket        `json:"buckets"`
	Failures    []Point         `json:"failures"`
	MeanMS      float64         `json:"mean_ms"`
}

// BuildSeries splits [from, to) into n equal buckets. n is clamped to
// [1, MaxBuckets]; zero selects DefaultBuckets.
func BuildSeries(id domain.TargetID, from, to time.Time, n int, outcomes []domain.CheckOutcome) Series {
	switch {
	case n == 0:
		n = DefaultBuckets
	case n < 1:
		n = 1
	case n > MaxBuckets:
		n = MaxBuckets
	}
	step := to.Sub(from) / time.Duration(n)
	if step <= 0 {
		step = time.Second
	}

	s := Series{
		TargetID:    id,
		From:        from,
		To:          to,
		StepSeconds: step.Seconds(),
		Buckets:     make([]Bucket, n),
		Failures:    []Point{},
	}
	lat := make([][]float64, n)
	var all []float64

	for i := range s.Buckets {
		s.Buckets[i].Start = from.Add(time.Duration(i) * step)
	}
	for _, o := range outcomes {
		if o.CheckedAt.Before(from) || !o.CheckedAt.Before(to) {
			continue
		}
		i := int(o.CheckedAt.Sub(from) / step)
		if i >= n {
			i = n - 1
		}
		b := &s.Buckets[i]
		b.Checks++
		if !o.Success {
			b.Failures++
			s.Failures = append(s.Failures, Point{At: o.CheckedAt, LatencyMS: o.LatencyMS, Reason: o.Reason})
			continue
		}
		lat[i] = append(lat[i], o.LatencyMS)
		all = append(all, o.LatencyMS)
	}
	for i, xs := range lat {
		if len(xs) == 0 {
			continue
		}
		sort.Float64s(xs)
		s.Buckets[i].MeanMS = mean(xs)
		s.Buckets[i].P95MS = percentile(xs, 95)
	}
	s.MeanMS = mean(all)
	return s
}
