// Package state implements the failure/recovery hysteresis for one target.
package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/hamed0406/apimonitor/internal/domain"
)

// ErrOutOfOrder is returned for an outcome that is not newer than the last
// one applied. Replaying an already applied outcome hits this error and
// leaves the state untouched.
var ErrOutOfOrder = errors.New("state: outcome is not newer than last check")

type Thresholds struct {
	Failure  int
	Recovery int
}

func (t Thresholds) validate() error {
	if t.Failure < 1 || t.Recovery < 1 {
		return fmt.Errorf("state: thresholds must be >= 1, got failure=%d recovery=%d", t.Failure, t.Recovery)
	}
	return nil
}

// Machine owns the TargetState of one target. It is not safe for
// concurrent use; callers serialize Apply per target.
type Machine struct {
	th Thresholds
	st domain.TargetState
}

// New returns a machine starting from prior, or from UNKNOWN when prior is nil.
func New(id domain.TargetID, th Thresholds, prior *domain.TargetState) (*Machine, error) {
	if err := th.validate(); err != nil {
		return nil, err
	}
	st := domain.NewTargetState(id)
	if prior != nil {
		st = *prior
		st.TargetID = id
		if st.Status == "" {
			st.Status = domain.StatusUnknown
		}
	}
	return &Machine{th: th, st: st}, nil
}

// SetThresholds changes the thresholds. Counters are kept.
func (m *Machine) SetThresholds(th Thresholds) error {
	if err := th.validate(); err != nil {
		return err
	}
	m.th = th
	return nil
}

func (m *Machine) Thresholds() Thresholds { return m.th }

// State returns a copy of the current state.
func (m *Machine) State() domain.TargetState {
	st := m.st
	if st.LastOutcome != nil {
		o := *st.LastOutcome
		st.LastOutcome = &o
	}
	return st
}

// Apply feeds one outcome and returns the transition it caused, if any.
func (m *Machine) Apply(o domain.CheckOutcome) (*domain.TransitionEvent, error) {
	if !m.st.LastChecked.IsZero() && !o.CheckedAt.After(m.st.LastChecked) {
		return nil, ErrOutOfOrder
	}

	st := &m.st
	st.LastChecked = o.CheckedAt
	last := o
	st.LastOutcome = &last

	if o.Success {
		st.ConsecutiveSuccess++
		st.ConsecutiveFailure = 0
		st.FailingSince = time.Time{}
		if st.Status != domain.StatusUp && st.ConsecutiveSuccess >= m.th.Recovery {
			ev := m.transition(domain.StatusUp, o, st.ConsecutiveSuccess)
			ev.Since = st.IncidentStart
			st.IncidentStart = time.Time{}
			return ev, nil
		}
		return nil, nil
	}

	st.ConsecutiveFailure++
	st.ConsecutiveSuccess = 0
	if st.ConsecutiveFailure == 1 || st.FailingSince.IsZero() {
		st.FailingSince = o.CheckedAt
	}
	if st.Status != domain.StatusDown && st.ConsecutiveFailure >= m.th.Failure {
		ev := m.transition(domain.StatusDown, o, st.ConsecutiveFailure)
		st.IncidentStart = st.FailingSince
		ev.Since = st.IncidentStart
		return ev, nil
	}
	return nil, nil
}

func (m *Machine) transition(to domain.Status, o domain.CheckOutcome, streak int) *domain.TransitionEvent {
	ev := &domain.TransitionEvent{
		TargetID: m.st.TargetID,
		From:     m.st.Status,
		To:       to,
		At:       o.CheckedAt,
		Streak:   streak,
		Outcome:  o,
	}
	m.st.Status = to
	m.st.LastTransition = o.CheckedAt
	return ev
}
