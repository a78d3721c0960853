package stats

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/apimonitor/internal/domain"
	"github.com/hamed0406/apimonitor/internal/repo"
	"github.com/hamed0406/apimonitor/internal/repo/memory"
)

// brokenHistory fails every query for one target.
type brokenHistory struct {
	repo.HistoryStore
	bad domain.TargetID
}

func (b brokenHistory) Outcomes(ctx context.Context, id domain.TargetID, from, to time.Time) ([]domain.CheckOutcome, error) {
	if id == b.bad {
		return nil, errors.New("disk on fire")
	}
	return b.HistoryStore.Outcomes(ctx, id, from, to)
}

type mapCache struct {
	m    map[string][]byte
	hits int
}

func (c *mapCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	b, ok := c.m[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(b, dest)
}

func (c *mapCache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.m[key] = b
	return nil
}

func seed(t *testing.T, store *memory.Store, name string, now time.Time, oks ...bool) domain.TargetID {
	t.Helper()
	ctx := context.Background()
	tg := &domain.Target{Name: name, URL: "https://" + name + ".example.com"}
	require.NoError(t, store.Add(ctx, tg))
	for i, ok := range oks {
		o := outcome(now.Add(-time.Duration(len(oks)-i)*time.Minute), ok, 100)
		o.TargetID = tg.ID
		require.NoError(t, store.AppendOutcome(ctx, &o))
	}
	return tg.ID
}

func TestAggregator_DailyReportMarksFailedTargets(t *testing.T) {
	now := t0.Add(48 * time.Hour)
	store := memory.New()
	good := seed(t, store, "good", now, true, true, true, false)
	bad := seed(t, store, "bad", now, true)
	idle := seed(t, store, "idle", now)

	st := domain.NewTargetState(good)
	st.Status = domain.StatusUp
	require.NoError(t, store.SaveState(context.Background(), &st))

	agg := New(zap.NewNop(), store, brokenHistory{HistoryStore: store, bad: bad}, store,
		WithClock(func() time.Time { return now }))

	r, err := agg.DailyReport(context.Background())
	require.NoError(t, err)
	require.Len(t, r.Entries, 3)
	require.Equal(t, 1, r.Failed())
	require.Equal(t, 24*time.Hour, r.To.Sub(r.From))

	byID := map[domain.TargetID]ReportEntry{}
	for _, e := range r.Entries {
		byID[e.TargetID] = e
	}
	require.Equal(t, domain.StatusUp, byID[good].Status)
	require.InDelta(t, 75.0, byID[good].Summary.UptimePct, 1e-9)
	require.Contains(t, byID[bad].Error, "disk on fire")
	require.Nil(t, byID[bad].Summary)
	require.True(t, byID[idle].Summary.NoData)
	require.Equal(t, domain.StatusUnknown, byID[idle].Status)

	title, text := FormatReport(r, time.UTC)
	require.Equal(t, "☀️ Daily report for 03-03-2026", title)
	require.Contains(t, text, "Uptime: 75.00%")
	require.Contains(t, text, "error: outcomes: disk on fire")
	require.Contains(t, text, "no data")
	require.Equal(t, 3, strings.Count(text, "(ID: "))
}

func TestAggregator_SummaryUsesCache(t *testing.T) {
	now := t0
	store := memory.New()
	id := seed(t, store, "cached", now, true, false)
	cache := &mapCache{m: map[string][]byte{}}
	agg := New(zap.NewNop(), store, store, store,
		WithClock(func() time.Time { return now }), WithCache(cache, time.Minute))

	s1, err := agg.Summary(context.Background(), id, time.Hour)
	require.NoError(t, err)
	require.Equal(t, 2, s1.Checks)

	s2, err := agg.Summary(context.Background(), id, time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, cache.hits)
	require.Equal(t, s1.UptimePct, s2.UptimePct)

	_, err = agg.Series(context.Background(), id, time.Hour, 6)
	require.NoError(t, err)
	require.Len(t, cache.m, 2)
}

func TestAggregator_Incidents(t *testing.T) {
	now := t0
	store := memory.New()
	id := seed(t, store, "flappy", now)
	ctx := context.Background()
	require.NoError(t, store.AppendTransition(ctx, &domain.TransitionEvent{
		TargetID: id, From: domain.StatusUp, To: domain.StatusDown,
		At: now.Add(-30 * time.Minute), Since: now.Add(-32 * time.Minute),
	}))
	require.NoError(t, store.AppendTransition(ctx, &domain.TransitionEvent{
		TargetID: id, From: domain.StatusDown, To: domain.StatusUp, At: now.Add(-20 * time.Minute),
	}))
	agg := New(zap.NewNop(), store, store, store, WithClock(func() time.Time { return now }))

	incs, err := agg.Incidents(ctx, id, time.Hour)
	require.NoError(t, err)
	require.Len(t, incs, 1)
	require.NotNil(t, incs[0].End)
	require.Equal(t, 12*time.Minute, incs[0].Duration())

	none, err := agg.Incidents(ctx, id, 10*time.Minute)
	require.NoError(t, err)
	require.Empty(t, none)
}
