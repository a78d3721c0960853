package stats

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/apimonitor/internal/domain"
	"github.com/hamed0406/apimonitor/internal/repo"
)

// Cache is an optional read-through cache for computed views.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

type Aggregator struct {
	log      *zap.Logger
	targets  repo.TargetStore
	history  repo.HistoryStore
	states   repo.StateStore
	cache    Cache
	cacheTTL time.Duration
	now      func() time.Time
}

type Option func(*Aggregator)

// WithCache caches summaries and series for ttl.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(a *Aggregator) {
		a.cache = c
		a.cacheTTL = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func New(log *zap.Logger, targets repo.TargetStore, history repo.HistoryStore, states repo.StateStore, opts ...Option) *Aggregator {
	a := &Aggregator{
		log:     log,
		targets: targets,
		history: history,
		states:  states,
		now:     time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Aggregator) window(d time.Duration) (time.Time, time.Time) {
	to := a.now().UTC()
	return to.Add(-d), to
}

// Summary aggregates the window ending now. Zero checks yield NoData, not an
// error.
func (a *Aggregator) Summary(ctx context.Context, id domain.TargetID, window time.Duration) (Summary, error) {
	key := fmt.Sprintf("stats:summary:%s:%d", id, int64(window.Seconds()))
	var s Summary
	if a.cached(ctx, key, &s) {
		return s, nil
	}
	from, to := a.window(window)
	s, err := a.summarize(ctx, id, from, to)
	if err != nil {
		return Summary{}, err
	}
	a.store(ctx, key, s)
	return s, nil
}

func (a *Aggregator) summarize(ctx context.Context, id domain.TargetID, from, to time.Time) (Summary, error) {
	outs, err := a.history.Outcomes(ctx, id, from, to)
	if err != nil {
		return Summary{}, fmt.Errorf("outcomes: %w", err)
	}
	trs, err := a.history.Transitions(ctx, id, from, to)
	if err != nil {
		return Summary{}, fmt.Errorf("transitions: %w", err)
	}
	prior, err := a.history.LastTransitionBefore(ctx, id, from)
	if err != nil {
		return Summary{}, fmt.Errorf("prior transition: %w", err)
	}
	return Summarize(id, from, to, outs, trs, prior), nil
}

func (a *Aggregator) Series(ctx context.Context, id domain.TargetID, window time.Duration, buckets int) (Series, error) {
	key := fmt.Sprintf("stats:series:%s:%d:%d", id, int64(window.Seconds()), buckets)
	var s Series
	if a.cached(ctx, key, &s) {
		return s, nil
	}
	from, to := a.window(window)
	outs, err := a.history.Outcomes(ctx, id, from, to)
	if err != nil {
		return Series{}, fmt.Errorf("outcomes: %w", err)
	}
	s = BuildSeries(id, from, to, buckets, outs)
	a.store(ctx, key, s)
	return s, nil
}

// Incidents lists the DOWN periods overlapping the window, including one
// already open when the window starts.
func (a *Aggregator) Incidents(ctx context.Context, id domain.TargetID, window time.Duration) ([]Incident, error) {
	from, to := a.window(window)
	trs, err := a.history.Transitions(ctx, id, from, to)
	if err != nil {
		return nil, fmt.Errorf("transitions: %w", err)
	}
	prior, err := a.history.LastTransitionBefore(ctx, id, from)
	if err != nil {
		return nil, fmt.Errorf("prior transition: %w", err)
	}
	out := buildIncidents(to, trs, prior)
	if out == nil {
		out = []Incident{}
	}
	return out, nil
}

// DailyReport summarizes the preceding 24 hours for every stored target. A
// target whose aggregation fails gets an Error entry; the rest still report.
func (a *Aggregator) DailyReport(ctx context.Context) (DailyReport, error) {
	from, to := a.window(24 * time.Hour)
	ts, err := a.targets.List(ctx)
	if err != nil {
		return DailyReport{}, fmt.Errorf("list targets: %w", err)
	}

	r := DailyReport{From: from, To: to, Entries: make([]ReportEntry, 0, len(ts))}
	for _, t := range ts {
		e := ReportEntry{
			TargetID: t.ID,
			Name:     t.Name,
			URL:      t.URL,
			Status:   domain.StatusUnknown,
			Paused:   t.Paused,
		}
		if a.states != nil {
			if st, err := a.states.GetState(ctx, t.ID); err != nil {
				a.log.Warn("report_state_error", zap.String("target_id", string(t.ID)), zap.Error(err))
			} else if st != nil {
				e.Status = st.Status
			}
		}
		s, err := a.summarize(ctx, t.ID, from, to)
		if err != nil {
			a.log.Warn("report_target_error", zap.String("target_id", string(t.ID)), zap.Error(err))
			e.Error = err.Error()
		} else {
			e.Summary = &s
		}
		r.Entries = append(r.Entries, e)
	}
	return r, nil
}

func (a *Aggregator) cached(ctx context.Context, key string, dest any) bool {
	if a.cache == nil {
		return false
	}
	ok, err := a.cache.GetJSON(ctx, key, dest)
	if err != nil {
		a.log.Debug("stats_cache_get_error", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

func (a *Aggregator) store(ctx context.Context, key string, v any) {
	if a.cache == nil {
		return
	}
	if err := a.cache.SetJSON(ctx, key, v, a.cacheTTL); err != nil {
		a.log.Debug("stats_cache_set_error", zap.String("key", key), zap.Error(err))
	}
}
