package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/apimonitor/internal/domain"
	"github.com/hamed0406/apimonitor/internal/repo"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := New(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate(ctx))
	// second run is a no-op
	require.NoError(t, store.Migrate(ctx))
	return store
}

func newTarget(t *testing.T) *domain.Target {
	t.Helper()
	// unique name per run to avoid UNIQUE(name) collisions with earlier runs
	tgt := &domain.Target{
		Name:       fmt.Sprintf("pg-test-%d", time.Now().UTC().UnixNano()),
		URL:        "https://example.com/health",
		Headers:    map[string]string{"X-Probe": "1"},
		JSONAssert: []domain.JSONAssertion{{Path: "status"}},
	}
	tgt.ApplyDefaults(domain.Defaults{
		Interval: time.Minute, Timeout: 10 * time.Second, FailureThreshold: 3, RecoveryThreshold: 2,
	})
	return tgt
}

func TestPostgresStore_TargetCRUD(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	tgt := newTarget(t)
	require.NoError(t, store.Add(ctx, tgt))
	require.NotEmpty(t, tgt.ID)
	t.Cleanup(func() { _ = store.Remove(context.Background(), tgt.ID) })

	got, err := store.Get(ctx, tgt.ID)
	require.NoError(t, err)
	require.Equal(t, tgt.Name, got.Name)
	require.Equal(t, time.Minute, got.Interval)
	require.Equal(t, []int{200}, got.ExpectedStatus)
	require.Equal(t, "1", got.Headers["X-Probe"])
	require.Len(t, got.JSONAssert, 1)

	dup := newTarget(t)
	dup.Name = tgt.Name
	require.True(t, errors.Is(store.Add(ctx, dup), repo.ErrDuplicate))

	got.Paused = true
	got.Interval = 30 * time.Second
	require.NoError(t, store.Update(ctx, got))
	again, err := store.Get(ctx, tgt.ID)
	require.NoError(t, err)
	require.True(t, again.Paused)
	require.Equal(t, 30*time.Second, again.Interval)

	list, err := store.List(ctx)
	require.NoError(t, err)
	found := false
	for _, x := range list {
		if x.ID == tgt.ID {
			found = true
		}
	}
	require.True(t, found, "added target not found in list")

	require.NoError(t, store.Remove(ctx, tgt.ID))
	_, err = store.Get(ctx, tgt.ID)
	require.ErrorIs(t, err, repo.ErrNotFound)
	require.ErrorIs(t, store.Remove(ctx, tgt.ID), repo.ErrNotFound)
}

func TestPostgresStore_HistoryAndState(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	tgt := newTarget(t)
	require.NoError(t, store.Add(ctx, tgt))
	t.Cleanup(func() { _ = store.Remove(context.Background(), tgt.ID) })

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.AppendOutcome(ctx, &domain.CheckOutcome{
			TargetID:   tgt.ID,
			CheckedAt:  base.Add(time.Duration(i) * time.Second),
			Success:    i != 1,
			HTTPStatus: 200,
			LatencyMS:  42,
			Reason:     domain.ReasonNone,
		}))
	}
	outs, err := store.Outcomes(ctx, tgt.ID, base, base.Add(2*time.Second))
	require.NoError(t, err)
	require.Len(t, outs, 2, "range is half-open")
	require.False(t, outs[1].Success)

	ev := &domain.TransitionEvent{
		TargetID: tgt.ID, TargetName: tgt.Name, URL: tgt.URL,
		From: domain.StatusUnknown, To: domain.StatusDown,
		At: base.Add(time.Second), Since: base, Streak: 3,
	}
	require.NoError(t, store.AppendTransition(ctx, ev))

	last, err := store.LastTransitionBefore(ctx, tgt.ID, base.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, last)
	require.Equal(t, domain.StatusDown, last.To)
	require.True(t, last.Since.Equal(base))

	none, err := store.LastTransitionBefore(ctx, tgt.ID, base)
	require.NoError(t, err)
	require.Nil(t, none)

	st, err := store.GetState(ctx, tgt.ID)
	require.NoError(t, err)
	require.Nil(t, st)

	saved := domain.NewTargetState(tgt.ID)
	saved.Status = domain.StatusDown
	saved.ConsecutiveFailure = 3
	saved.LastChecked = base
	saved.IncidentStart = base
	saved.LastOutcome = &outs[1]
	require.NoError(t, store.SaveState(ctx, &saved))

	st, err = store.GetState(ctx, tgt.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDown, st.Status)
	require.Equal(t, 3, st.ConsecutiveFailure)
	require.True(t, st.FailingSince.IsZero())
	require.NotNil(t, st.LastOutcome)

	all, err := store.LoadStates(ctx)
	require.NoError(t, err)
	require.Contains(t, all, tgt.ID)
}

func TestPostgresStore_Alerts(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	tgt := newTarget(t)
	require.NoError(t, store.Add(ctx, tgt))
	t.Cleanup(func() { _ = store.Remove(context.Background(), tgt.ID) })

	rec, err := store.GetAlert(ctx, tgt.ID)
	require.NoError(t, err)
	require.Nil(t, rec)

	require.NoError(t, store.SetAlert(ctx, tgt.ID, domain.StatusUp, time.Time{}))
	rec, err = store.GetAlert(ctx, tgt.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusUp, rec.LastStatus)
	require.Nil(t, rec.LastSentAt)

	require.NoError(t, store.SetAlert(ctx, tgt.ID, domain.StatusDown, time.Now()))
	rec, err = store.GetAlert(ctx, tgt.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDown, rec.LastStatus)
	require.NotNil(t, rec.LastSentAt)
}

func TestParseMigrationFilename(t *testing.T) {
	v, name, err := parseMigrationFilename("001_initial_schema.sql")
	require.NoError(t, err)
	require.Equal(t, 1, v)
	require.Equal(t, "initial_schema", name)

	_, _, err = parseMigrationFilename("initial.sql")
	require.Error(t, err)
	_, _, err = parseMigrationFilename("abc_initial.sql")
	require.Error(t, err)

	migs, err := availableMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migs)
	require.Equal(t, 1, migs[0].version)
}
