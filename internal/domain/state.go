package domain

import "time"

type Status string

const (
	StatusUnknown Status = "UNKNOWN"
	StatusUp      Status = "UP"
	StatusDown    Status = "DOWN"
)

// TargetState is the hysteresis state of one Target.
//
// FailingSince is the time of the first failure in the current failure
// streak. IncidentStart is set while the target is DOWN and carries the
// back-dated start of the open incident. Zero times mean "not set".
type TargetState struct {
	TargetID           TargetID      `json:"target_id"`
	Status             Status        `json:"status"`
	ConsecutiveSuccess int           `json:"consecutive_success"`
	ConsecutiveFailure int           `json:"consecutive_failure"`
	LastTransition     time.Time     `json:"last_transition"`
	LastChecked        time.Time     `json:"last_checked"`
	FailingSince       time.Time     `json:"failing_since"`
	IncidentStart      time.Time     `json:"incident_start"`
	LastOutcome        *CheckOutcome `json:"last_outcome,omitempty"`
}

// NewTargetState returns the initial UNKNOWN state.
func NewTargetState(id TargetID) TargetState {
	return TargetState{TargetID: id, Status: StatusUnknown}
}

// TransitionEvent records a confirmed status change.
//
// For a DOWN event Since is the back-dated incident start. For an UP event
// leaving DOWN it is the start of the incident being closed.
type TransitionEvent struct {
	TargetID   TargetID     `json:"target_id"`
	TargetName string       `json:"target_name"`
	URL        string       `json:"url"`
	From       Status       `json:"from"`
	To         Status       `json:"to"`
	At         time.Time    `json:"at"`
	Since      time.Time    `json:"since"`
	Streak     int          `json:"streak"`
	Outcome    CheckOutcome `json:"outcome"`
}

// Duration is the length of the incident closed by an UP event, or the
// failing period that led to a DOWN event.
func (e TransitionEvent) Duration() time.Duration {
	if e.Since.IsZero() || e.At.Before(e.Since) {
		return 0
	}
	return e.At.Sub(e.Since)
}
