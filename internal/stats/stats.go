// Package stats derives read-only views (uptime, latency, incidents, series
// and daily reports) from the history store.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/hamed0406/apimonitor/internal/domain"
)

// Summary is the aggregate for one target over [From, To). Latency figures
// cover successful checks only. NoData is set when there were no checks;
// every ratio is then zero.
type Summary struct {
	TargetID         domain.TargetID              `json:"target_id"`
	From             time.Time                    `json:"from"`
	To               time.Time                    `json:"to"`
	Checks           int                          `json:"checks"`
	Successes        int                          `json:"successes"`
	Failures         int                          `json:"failures"`
	NoData           bool                         `json:"no_data"`
	UptimePct        float64                      `json:"uptime_pct"`
	Incidents        int                          `json:"incidents"`
	DowntimeSeconds  float64                      `json:"downtime_seconds"`
	LatencyMeanMS    float64                      `json:"latency_mean_ms"`
	LatencyP50MS     float64                      `json:"latency_p50_ms"`
	LatencyP95MS     float64                      `json:"latency_p95_ms"`
	FailuresByReason map[domain.FailureReason]int `json:"failures_by_reason,omitempty"`
}

func (s Summary) Downtime() time.Duration {
	return time.Duration(s.DowntimeSeconds * float64(time.Second))
}

// Incident is one DOWN period. End is nil while the target is still down.
type Incident struct {
	Start           time.Time  `json:"start"`
	End             *time.Time `json:"end,omitempty"`
	DurationSeconds float64    `json:"duration_seconds"`
}

func (i Incident) Duration() time.Duration {
	return time.Duration(i.DurationSeconds * float64(time.Second))
}

// Summarize computes the Summary for [from, to). prior is the last
// transition before from, used to account for an incident already open at
// the start of the window; it may be nil.
func Summarize(id domain.TargetID, from, to time.Time, outcomes []domain.CheckOutcome, transitions []domain.TransitionEvent, prior *domain.TransitionEvent) Summary {
	s := Summary{TargetID: id, From: from, To: to}

	var latencies []float64
	for _, o := range outcomes {
		s.Checks++
		if o.Success {
			s.Successes++
			latencies = append(latencies, o.LatencyMS)
			continue
		}
		s.Failures++
		if s.FailuresByReason == nil {
			s.FailuresByReason = map[domain.FailureReason]int{}
		}
		s.FailuresByReason[o.Reason]++
	}
	for _, ev := range transitions {
		if ev.To == domain.StatusDown {
			s.Incidents++
		}
	}
	for _, inc := range buildIncidents(to, transitions, prior) {
		s.DowntimeSeconds += overlap(inc, from, to).Seconds()
	}

	if s.Checks == 0 {
		s.NoData = true
		return s
	}
	s.UptimePct = float64(s.Successes) / float64(s.Checks) * 100

	if len(latencies) > 0 {
		sort.Float64s(latencies)
		s.LatencyMeanMS = mean(latencies)
		s.LatencyP50MS = percentile(latencies, 50)
		s.LatencyP95MS = percentile(latencies, 95)
	}
	return s
}

// buildIncidents pairs DOWN and UP transitions into incidents. An incident's
// start is back-dated to the first failing check when known.
func buildIncidents(to time.Time, transitions []domain.TransitionEvent, prior *domain.TransitionEvent) []Incident {
	var (
		out  []Incident
		open *Incident
	)
	if prior != nil && prior.To == domain.StatusDown {
		open = &Incident{Start: incidentStart(*prior)}
	}
	for _, ev := range transitions {
		switch ev.To {
		case domain.StatusDown:
			if open == nil {
				open = &Incident{Start: incidentStart(ev)}
			}
		case domain.StatusUp:
			if open != nil {
				end := ev.At
				open.End = &end
				open.DurationSeconds = end.Sub(open.Start).Seconds()
				out = append(out, *open)
				open = nil
			}
		}
	}
	if open != nil {
		open.DurationSeconds = to.Sub(open.Start).Seconds()
		out = append(out, *open)
	}
	return out
}

func incidentStart(ev domain.TransitionEvent) time.Time {
	if !ev.Since.IsZero() && ev.Since.Before(ev.At) {
		return ev.Since
	}
	return ev.At
}

// overlap is the part of inc that falls inside [from, to).
func overlap(inc Incident, from, to time.Time) time.Duration {
	start, end := inc.Start, to
	if inc.End != nil && inc.End.Before(end) {
		end = *inc.End
	}
	if start.Before(from) {
		start = from
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
