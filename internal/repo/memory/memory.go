package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/apimonitor/internal/domain"
	"github.com/hamed0406/apimonitor/internal/repo"
)

// Store keeps everything in process memory. It implements every repo port.
type Store struct {
	mu          sync.RWMutex
	targets     map[domain.TargetID]*domain.Target
	outcomes    map[domain.TargetID][]domain.CheckOutcome
	transitions map[domain.TargetID][]domain.TransitionEvent
	states      map[domain.TargetID]domain.TargetState
	alerts      map[domain.TargetID]repo.AlertRecord
}

func New() *Store {
	return &Store{
		targets:     make(map[domain.TargetID]*domain.Target),
		outcomes:    make(map[domain.TargetID][]domain.CheckOutcome),
		transitions: make(map[domain.TargetID][]domain.TransitionEvent),
		states:      make(map[domain.TargetID]domain.TargetState),
		alerts:      make(map[domain.TargetID]repo.AlertRecord),
	}
}

// ---- TargetStore ----

func (m *Store) Add(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if _, ok := m.targets[t.ID]; ok {
		return repo.ErrDuplicate
	}
	if m.nameTaken(t.Name, t.ID) {
		return repo.ErrDuplicate
	}
	cp := *t
	m.targets[t.ID] = &cp
	return nil
}

func (m *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Store) List(ctx context.Context) ([]*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Target, 0, len(m.targets))
	for _, t := range m.targets {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Store) Update(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.targets[t.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if m.nameTaken(t.Name, t.ID) {
		return repo.ErrDuplicate
	}
	cp := *t
	cp.CreatedAt = cur.CreatedAt
	m.targets[t.ID] = &cp
	return nil
}

func (m *Store) Remove(ctx context.Context, id domain.TargetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.targets, id)
	delete(m.outcomes, id)
	delete(m.transitions, id)
	delete(m.states, id)
	delete(m.alerts, id)
	return nil
}

func (m *Store) nameTaken(name string, except domain.TargetID) bool {
	for id, t := range m.targets {
		if id != except && t.Name == name {
			return true
		}
	}
	return false
}

// ---- HistoryStore ----

func (m *Store) AppendOutcome(ctx context.Context, o *domain.CheckOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[o.TargetID] = append(m.outcomes[o.TargetID], *o)
	return nil
}

func (m *Store) AppendTransition(ctx context.Context, e *domain.TransitionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[e.TargetID] = append(m.transitions[e.TargetID], *e)
	return nil
}

func (m *Store) Outcomes(ctx context.Context, id domain.TargetID, from, to time.Time) ([]domain.CheckOutcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.CheckOutcome
	for _, o := range m.outcomes[id] {
		if inRange(o.CheckedAt, from, to) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CheckedAt.Before(out[j].CheckedAt) })
	return out, nil
}

func (m *Store) Transitions(ctx context.Context, id domain.TargetID, from, to time.Time) ([]domain.TransitionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.TransitionEvent
	for _, e := range m.transitions[id] {
		if inRange(e.At, from, to) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

func (m *Store) LastTransitionBefore(ctx context.Context, id domain.TargetID, t time.Time) (*domain.TransitionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var last *domain.TransitionEvent
	for i := range m.transitions[id] {
		e := m.transitions[id][i]
		if e.At.Before(t) && (last == nil || e.At.After(last.At)) {
			cp := e
			last = &cp
		}
	}
	return last, nil
}

func inRange(ts, from, to time.Time) bool {
	return !ts.Before(from) && ts.Before(to)
}

// ---- StateStore ----

func (m *Store) SaveState(ctx context.Context, s *domain.TargetState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[s.TargetID] = copyState(*s)
	return nil
}

func (m *Store) GetState(ctx context.Context, id domain.TargetID) (*domain.TargetState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[id]
	if !ok {
		return nil, nil
	}
	cp := copyState(s)
	return &cp, nil
}

func (m *Store) LoadStates(ctx context.Context) (map[domain.TargetID]domain.TargetState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[domain.TargetID]domain.TargetState, len(m.states))
	for id, s := range m.states {
		out[id] = copyState(s)
	}
	return out, nil
}

func copyState(s domain.TargetState) domain.TargetState {
	if s.LastOutcome != nil {
		o := *s.LastOutcome
		s.LastOutcome = &o
	}
	return s
}

// ---- AlertStore ----

func (m *Store) GetAlert(ctx context.Context, id domain.TargetID) (*repo.AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.alerts[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Store) SetAlert(ctx context.Context, id domain.TargetID, status domain.Status, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ts *time.Time
	if !sentAt.IsZero() {
		ts = &sentAt
	}
	m.alerts[id] = repo.AlertRecord{TargetID: id, LastStatus: status, LastSentAt: ts}
	return nil
}

var (
	_ repo.TargetStore  = (*Store)(nil)
	_ repo.HistoryStore = (*Store)(nil)
	_ repo.StateStore   = (*Store)(nil)
	_ repo.AlertStore   = (*Store)(nil)
)
