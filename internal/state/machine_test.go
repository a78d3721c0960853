package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hamed0406/apimonitor/internal/domain"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// feed applies a sequence of pass/fail outcomes one minute apart and returns
// the emitted events keyed by 1-based position.
func feed(t *testing.T, m *Machine, start time.Time, seq ...bool) map[int]domain.TransitionEvent {
	t.Helper()
	got := map[int]domain.TransitionEvent{}
	for i, ok := range seq {
		o := domain.CheckOutcome{
			TargetID:  "T1",
			CheckedAt: start.Add(time.Duration(i+1) * time.Minute),
			Success:   ok,
		}
		if !ok {
			o.Reason = domain.ReasonConnection
		}
		ev, err := m.Apply(o)
		require.NoError(t, err)
		if ev != nil {
			got[i+1] = *ev
		}
	}
	return got
}

func newMachine(t *testing.T, status domain.Status) *Machine {
	t.Helper()
	prior := domain.NewTargetState("T1")
	prior.Status = status
	m, err := New("T1", Thresholds{Failure: 3, Recovery: 2}, &prior)
	require.NoError(t, err)
	return m
}

func TestUnknownNeedsFullThreshold(t *testing.T) {
	m, err := New("T1", Thresholds{Failure: 3, Recovery: 2}, nil)
	require.NoError(t, err)
	require.Equal(t, domain.StatusUnknown, m.State().Status)

	evs := feed(t, m, t0, true)
	require.Empty(t, evs)
	require.Equal(t, domain.StatusUnknown, m.State().Status)

	evs = feed(t, m, t0.Add(time.Hour), true)
	require.Len(t, evs, 1)
	require.Equal(t, domain.StatusUnknown, evs[1].From)
	require.Equal(t, domain.StatusUp, evs[1].To)
}

func TestInterveningSuccessResetsFailureCount(t *testing.T) {
	m := newMachine(t, domain.StatusUp)

	evs := feed(t, m, t0, false, false, true, false, false, false)
	require.Len(t, evs, 1)
	ev, ok := evs[6]
	require.True(t, ok, "DOWN must happen at the 6th outcome, got %v", evs)
	require.Equal(t, domain.StatusUp, ev.From)
	require.Equal(t, domain.StatusDown, ev.To)
	require.Equal(t, 3, ev.Streak)
	// back-dated to the first failure of the streak (4th outcome)
	require.Equal(t, t0.Add(4*time.Minute), ev.Since)
	require.Equal(t, t0.Add(6*time.Minute), ev.At)
}

func TestRecoveryFromDown(t *testing.T) {
	m := newMachine(t, domain.StatusDown)
	evs := feed(t, m, t0, true, true)
	require.Len(t, evs, 1)
	require.Equal(t, domain.StatusUp, evs[2].To)

	m = newMachine(t, domain.StatusDown)
	evs = feed(t, m, t0, true, false, true)
	require.Empty(t, evs)
	require.Equal(t, domain.StatusDown, m.State().Status)
}

func TestStatusNeverChangesBelowThreshold(t *testing.T) {
	m := newMachine(t, domain.StatusUp)
	// alternate forever: neither counter reaches its threshold
	seq := make([]bool, 40)
	for i := range seq {
		seq[i] = i%3 == 2
	}
	evs := feed(t, m, t0, seq...)
	require.Empty(t, evs)
	require.Equal(t, domain.StatusUp, m.State().Status)
}

func TestRecoveryEventCarriesIncidentStart(t *testing.T) {
	m := newMachine(t, domain.StatusUp)
	evs := feed(t, m, t0, false, false, false, true, true)
	require.Len(t, evs, 2)
	down, up := evs[3], evs[5]
	require.Equal(t, t0.Add(time.Minute), down.Since)
	require.Equal(t, down.Since, up.Since)
	require.Equal(t, 4*time.Minute, up.Duration())
	require.True(t, m.State().IncidentStart.IsZero())
}

func TestOutOfOrderAndReplayRejected(t *testing.T) {
	m := newMachine(t, domain.StatusUp)
	feed(t, m, t0, false)
	before := m.State()

	_, err := m.Apply(domain.CheckOutcome{TargetID: "T1", CheckedAt: before.LastChecked})
	require.ErrorIs(t, err, ErrOutOfOrder)
	_, err = m.Apply(domain.CheckOutcome{TargetID: "T1", CheckedAt: before.LastChecked.Add(-time.Second)})
	require.ErrorIs(t, err, ErrOutOfOrder)

	require.Equal(t, before.ConsecutiveFailure, m.State().ConsecutiveFailure)
}

func TestResumeFromPersistedStateDoesNotDoubleCount(t *testing.T) {
	m := newMachine(t, domain.StatusUp)
	feed(t, m, t0, false, false)
	saved := m.State()
	require.Equal(t, 2, saved.ConsecutiveFailure)

	// process restart: a fresh machine resumes from the saved state
	resumed, err := New("T1", Thresholds{Failure: 3, Recovery: 2}, &saved)
	require.NoError(t, err)
	require.Equal(t, domain.StatusUp, resumed.State().Status)

	// the last pre-restart outcome is replayed
	_, err = resumed.Apply(*saved.LastOutcome)
	require.ErrorIs(t, err, ErrOutOfOrder)
	require.Equal(t, 2, resumed.State().ConsecutiveFailure)

	// one genuinely new failure completes the threshold
	ev, err := resumed.Apply(domain.CheckOutcome{TargetID: "T1", CheckedAt: saved.LastChecked.Add(time.Minute)})
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.Equal(t, domain.StatusDown, ev.To)
}

func TestSetThresholdsKeepsCounters(t *testing.T) {
	m := newMachine(t, domain.StatusUp)
	feed(t, m, t0, false, false)
	require.NoError(t, m.SetThresholds(Thresholds{Failure: 5, Recovery: 1}))
	evs := feed(t, m, t0.Add(time.Hour), false, false)
	require.Empty(t, evs)
	evs = feed(t, m, t0.Add(2*time.Hour), false)
	require.Len(t, evs, 1)

	require.Error(t, m.SetThresholds(Thresholds{Failure: 0, Recovery: 1}))
}

func TestNewRejectsInvalidThresholds(t *testing.T) {
	_, err := New("T1", Thresholds{Failure: 0, Recovery: 2}, nil)
	require.Error(t, err)
}
