package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/apimonitor/internal/domain"
)

var (
	ErrNotFound  = errors.New("repo: not found")
	ErrDuplicate = errors.New("repo: duplicate target")
)

// Ports implemented by the memory and postgres adapters.

// TargetStore persists target configuration. Add and Update return
// ErrDuplicate when the id or name is taken; Get, Update and Remove return
// ErrNotFound for unknown ids. Remove also drops the target's history and
// state.
type TargetStore interface {
	Add(ctx context.Context, t *domain.Target) error
	Get(ctx context.Context, id domain.TargetID) (*domain.Target, error)
	List(ctx context.Context) ([]*domain.Target, error)
	Update(ctx context.Context, t *domain.Target) error
	Remove(ctx context.Context, id domain.TargetID) error
}

// HistoryStore is the append-only record of outcomes and transitions.
// Range queries are half-open [from, to) and ordered oldest first.
type HistoryStore interface {
	AppendOutcome(ctx context.Context, o *domain.CheckOutcome) error
	AppendTransition(ctx context.Context, e *domain.TransitionEvent) error
	Outcomes(ctx context.Context, id domain.TargetID, from, to time.Time) ([]domain.CheckOutcome, error)
	Transitions(ctx context.Context, id domain.TargetID, from, to time.Time) ([]domain.TransitionEvent, error)
	// LastTransitionBefore returns nil, nil when there is none.
	LastTransitionBefore(ctx context.Context, id domain.TargetID, t time.Time) (*domain.TransitionEvent, error)
}

// StateStore persists the latest TargetState per target.
type StateStore interface {
	SaveState(ctx context.Context, s *domain.TargetState) error
	// GetState returns nil, nil when no state was saved yet.
	GetState(ctx context.Context, id domain.TargetID) (*domain.TargetState, error)
	LoadStates(ctx context.Context) (map[domain.TargetID]domain.TargetState, error)
}
