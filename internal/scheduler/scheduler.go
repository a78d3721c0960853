package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/hamed0406/apimonitor/internal/domain"
	"github.com/hamed0406/apimonitor/internal/probe"
	"github.com/hamed0406/apimonitor/internal/repo"
	"github.com/hamed0406/apimonitor/internal/state"
)

var (
	ErrNotRegistered = errors.New("scheduler: target not registered")
	ErrBusy          = errors.New("scheduler: check already in flight")
	ErrClosed        = errors.New("scheduler: closed")

	errDiscarded = errors.New("scheduler: outcome discarded")
)

const persistTimeout = 5 * time.Second

// Recorder receives per-check observations (metrics). All methods must be
// safe for concurrent use.
type Recorder interface {
	ObserveOutcome(t domain.Target, o domain.CheckOutcome)
	ObserveTransition(t domain.Target, ev domain.TransitionEvent)
	ObserveSkip(t domain.Target)
	Forget(t domain.Target)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOutcome(domain.Target, domain.CheckOutcome) {}
func (nopRecorder) ObserveTransition(domain.Target, domain.TransitionEvent) {}
func (nopRecorder) ObserveSkip(domain.Target) {}
func (nopRecorder) Forget(domain.Target) {}

type Config struct {
	// Concurrency caps probes in flight across all targets.
	Concurrency int
	// EventBuffer is the capacity of the Events channel.
	EventBuffer int
}

// Stats are runtime counters for the scheduler itself.
type Stats struct {
	Registered int   `json:"registered"`
	InFlight   int64 `json:"in_flight"`
	Skipped    int64 `json:"skipped"`
}

// Scheduler runs one worker per registered target. A worker fires its first
// probe immediately and then on every tick of its own interval. A tick that
// finds the previous probe still running is skipped, never queued.
type Scheduler struct {
	log     *zap.Logger
	checker probe.Checker
	targets repo.TargetStore
	history repo.HistoryStore
	states  repo.StateStore
	rec     Recorder

	sem    *semaphore.Weighted
	events chan domain.TransitionEvent

	// registry is replaced wholesale on every change; readers never lock.
	registry atomic.Pointer[map[domain.TargetID]*worker]
	mu       sync.Mutex // serializes registry writers and closed
	closed   bool

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	inFlight atomic.Int64
	skipped  atomic.Int64
}

func New(
	log *zap.Logger,
	checker probe.Checker,
	targets repo.TargetStore,
	history repo.HistoryStore,
	states repo.StateStore,
	rec Recorder,
	cfg Config,
) *Scheduler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.EventBuffer < 1 {
		cfg.EventBuffer = 1
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	root, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		log:     log,
		checker: checker,
		targets: targets,
		history: history,
		states:  states,
		rec:     rec,
		sem:     semaphore.NewWeighted(int64(cfg.Concurrency)),
		events:  make(chan domain.TransitionEvent, cfg.EventBuffer),
		root:    root,
		cancel:  cancel,
	}
	empty := map[domain.TargetID]*worker{}
	s.registry.Store(&empty)
	return s
}

// Load registers every non-paused stored target, resuming each from its
// persisted state.
func (s *Scheduler) Load(ctx context.Context) (int, error) {
	ts, err := s.targets.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list targets: %w", err)
	}
	prior := map[domain.TargetID]domain.TargetState{}
	if s.states != nil {
		if prior, err = s.states.LoadStates(ctx); err != nil {
			return 0, fmt.Errorf("load states: %w", err)
		}
	}
	n := 0
	for _, t := range ts {
		if t.Paused {
			continue
		}
		var p *domain.TargetState
		if st, ok := prior[t.ID]; ok {
			p = &st
		}
		if err := s.register(*t, p, true); err != nil {
			s.log.Warn("scheduler_load_skip", zap.String("target_id", string(t.ID)), zap.Error(err))
			continue
		}
		n++
	}
	s.log.Info("scheduler_loaded", zap.Int("targets", n), zap.Int("states", len(prior)))
	return n, nil
}

// Register adds t, or replaces the configuration of an already registered
// target. A replacement keeps the target's state and counters.
func (s *Scheduler) Register(ctx context.Context, t domain.Target) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if w, ok := s.lookup(t.ID); ok {
		return s.replace(w, t)
	}
	var prior *domain.TargetState
	if s.states != nil {
		p, err := s.states.GetState(ctx, t.ID)
		if err != nil {
			s.log.Warn("state_load_error", zap.String("target_id", string(t.ID)), zap.Error(err))
		}
		prior = p
	}
	return s.register(t, prior, false)
}

func (s *Scheduler) register(t domain.Target, prior *domain.TargetState, validate bool) error {
	if validate {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	m, err := state.New(t.ID, thresholdsOf(t), prior)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	cur := *s.registry.Load()
	if w, ok := cur[t.ID]; ok {
		return s.replaceLocked(w, t)
	}

	ctx, cancel := context.WithCancel(s.root)
	w := &worker{
		s:       s,
		id:      t.ID,
		ctx:     ctx,
		cancel:  cancel,
		reset:   make(chan time.Duration, 1),
		machine: m,
	}
	tc := t
	w.target.Store(&tc)
	snap := m.State()
	w.snapshot.Store(&snap)

	next := make(map[domain.TargetID]*worker, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[t.ID] = w
	s.registry.Store(&next)

	s.wg.Add(1)
	go w.loop()

	s.log.Info("target_registered",
		zap.String("target_id", string(t.ID)),
		zap.String("name", t.Name),
		zap.String("url", t.URL),
		zap.Duration("interval", t.Interval),
		zap.String("status", string(snap.Status)),
	)
	return nil
}

func (s *Scheduler) replace(w *worker, t domain.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.replaceLocked(w, t)
}

func (s *Scheduler) replaceLocked(w *worker, t domain.Target) error {
	tc := t
	old := w.target.Swap(&tc)
	if old.Interval != t.Interval {
		select {
		case <-w.reset:
		default:
		}
		w.reset <- t.Interval
	}
	s.log.Info("target_updated", zap.String("target_id", string(t.ID)), zap.Duration("interval", t.Interval))
	return nil
}

// Deregister stops scheduling id. A probe still in flight is cancelled and
// its outcome discarded. If an outcome is being persisted, Deregister waits
// for that write to finish, so nothing for id is written or published once it
// returns. It reports whether id was registered.
func (s *Scheduler) Deregister(id domain.TargetID) bool {
	s.mu.Lock()
	cur := *s.registry.Load()
	w, ok := cur[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	next := make(map[domain.TargetID]*worker, len(cur))
	for k, v := range cur {
		if k != id {
			next[k] = v
		}
	}
	w.removed.Store(true)
	w.cancel()
	s.registry.Store(&next)
	s.mu.Unlock()

	w.mu.Lock()
	// wait out a handle that is already persisting
	w.mu.Unlock()

	s.rec.Forget(*w.target.Load())
	s.log.Info("target_deregistered", zap.String("target_id", string(id)))
	return true
}

// CheckNow runs one probe for id synchronously and returns its outcome. It
// shares the in-flight guard with scheduled probes.
func (s *Scheduler) CheckNow(ctx context.Context, id domain.TargetID) (domain.CheckOutcome, error) {
	w, ok := s.lookup(id)
	if !ok {
		return domain.CheckOutcome{}, ErrNotRegistered
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.CheckOutcome{}, ErrClosed
	}
	if !w.busy.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return domain.CheckOutcome{}, ErrBusy
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()
	defer w.busy.Store(false)

	pctx, cancel := context.WithCancel(w.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	out, err := w.probe(pctx)
	if errors.Is(err, errDiscarded) {
		switch {
		case ctx.Err() != nil:
			return out, ctx.Err()
		case w.removed.Load():
			return out, ErrNotRegistered
		default:
			return out, ErrClosed
		}
	}
	return out, err
}

// State returns the latest state snapshot for id.
func (s *Scheduler) State(id domain.TargetID) (domain.TargetState, bool) {
	w, ok := s.lookup(id)
	if !ok {
		return domain.TargetState{}, false
	}
	return *w.snapshot.Load(), true
}

func (s *Scheduler) States() map[domain.TargetID]domain.TargetState {
	cur := *s.registry.Load()
	out := make(map[domain.TargetID]domain.TargetState, len(cur))
	for id, w := range cur {
		out[id] = *w.snapshot.Load()
	}
	return out
}

// Targets returns the registered targets ordered by name.
func (s *Scheduler) Targets() []domain.Target {
	cur := *s.registry.Load()
	out := make([]domain.Target, 0, len(cur))
	for _, w := range cur {
		out = append(out, *w.target.Load())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Events delivers transitions. It is closed once the scheduler has stopped.
func (s *Scheduler) Events() <-chan domain.TransitionEvent { return s.events }

func (s *Scheduler) Stats() Stats {
	return Stats{
		Registered: len(*s.registry.Load()),
		InFlight:   s.inFlight.Load(),
		Skipped:    s.skipped.Load(),
	}
}

// Run blocks until ctx is done and then stops every worker. Workers start
// as soon as they are registered.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler_started", zap.Int("targets", len(*s.registry.Load())))
	<-ctx.Done()
	s.Close()
	s.log.Info("scheduler_stopped")
	return ctx.Err()
}

// Close cancels all workers, waits for in-flight probes and closes Events.
// It is safe to call more than once.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	close(s.events)
}

func (s *Scheduler) lookup(id domain.TargetID) (*worker, bool) {
	w, ok := (*s.registry.Load())[id]
	return w, ok
}

func thresholdsOf(t domain.Target) state.Thresholds {
	return state.Thresholds{Failure: t.FailureThreshold, Recovery: t.RecoveryThreshold}
}

type worker struct {
	s      *Scheduler
	id     domain.TargetID
	ctx    context.Context
	cancel context.CancelFunc
	reset  chan time.Duration

	target   atomic.Pointer[domain.Target]
	snapshot atomic.Pointer[domain.TargetState]
	busy     atomic.Bool
	removed  atomic.Bool

	// mu is held while an outcome is applied and persisted.
	mu sync.Mutex

	// machine is only touched by the goroutine holding busy.
	machine *state.Machine
}

func (w *worker) loop() {
	defer w.s.wg.Done()

	t := time.NewTicker(w.target.Load().Interval)
	defer t.Stop()

	w.fire()
	for {
		select {
		case <-w.ctx.Done():
			return
		case d := <-w.reset:
			t.Reset(d)
		case <-t.C:
			w.fire()
		}
	}
}

func (w *worker) fire() {
	if !w.busy.CompareAndSwap(false, true) {
		w.s.skipped.Add(1)
		tgt := *w.target.Load()
		w.s.rec.ObserveSkip(tgt)
		w.s.log.Debug("check_skipped", zap.String("target_id", string(w.id)), zap.String("url", tgt.URL))
		return
	}
	w.s.wg.Add(1)
	go func() {
		defer w.s.wg.Done()
		defer w.busy.Store(false)
		_, _ = w.probe(w.ctx)
	}()
}

// probe runs one check and feeds it through the pipeline. The caller holds busy.
func (w *worker) probe(ctx context.Context) (domain.CheckOutcome, error) {
	s := w.s
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return domain.CheckOutcome{}, err
	}
	s.inFlight.Add(1)
	tgt := *w.target.Load()
	out := s.checker.Execute(ctx, tgt)
	s.inFlight.Add(-1)
	s.sem.Release(1)

	if ctx.Err() != nil || !w.handle(out) {
		s.log.Debug("outcome_discarded", zap.String("target_id", string(w.id)), zap.String("reason", string(out.Reason)))
		return out, errDiscarded
	}
	return out, nil
}

// handle applies out under the target's current configuration. It stops at
// the first step that finds the worker deregistered and reports whether the
// outcome was fully applied.
func (w *worker) handle(out domain.CheckOutcome) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed.Load() {
		return false
	}

	s := w.s
	tgt := *w.target.Load()
	if err := w.machine.SetThresholds(thresholdsOf(tgt)); err != nil {
		s.log.Warn("thresholds_invalid", zap.String("target_id", string(w.id)), zap.Error(err))
	}
	ev, err := w.machine.Apply(out)
	if err != nil {
		s.log.Warn("outcome_rejected", zap.String("target_id", string(w.id)), zap.Time("checked_at", out.CheckedAt), zap.Error(err))
		return true
	}
	snap := w.machine.State()
	w.snapshot.Store(&snap)

	pctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), persistTimeout)
	defer cancel()

	if s.history != nil {
		if w.removed.Load() {
			return false
		}
		if err := s.history.AppendOutcome(pctx, &out); err != nil {
			s.log.Warn("history_append_error", zap.String("target_id", string(w.id)), zap.Error(err))
		}
	}
	if ev != nil {
		ev.TargetName = tgt.Name
		ev.URL = tgt.URL
		if s.history != nil {
			if w.removed.Load() {
				return false
			}
			if err := s.history.AppendTransition(pctx, ev); err != nil {
				s.log.Warn("transition_append_error", zap.String("target_id", string(w.id)), zap.Error(err))
			}
		}
	}
	if s.states != nil {
		if w.removed.Load() {
			return false
		}
		if err := s.states.SaveState(pctx, &snap); err != nil {
			s.log.Warn("state_save_error", zap.String("target_id", string(w.id)), zap.Error(err))
		}
	}

	s.rec.ObserveOutcome(tgt, out)
	s.log.Debug("checked",
		zap.String("target_id", string(w.id)),
		zap.String("url", tgt.URL),
		zap.Bool("success", out.Success),
		zap.Int("status", out.HTTPStatus),
		zap.Float64("latency_ms", out.LatencyMS),
		zap.String("reason", string(out.Reason)),
	)
	if ev == nil {
		return true
	}
	if w.removed.Load() {
		return false
	}

	s.rec.ObserveTransition(tgt, *ev)
	s.log.Info("transition",
		zap.String("target_id", string(w.id)),
		zap.String("name", tgt.Name),
		zap.String("from", string(ev.From)),
		zap.String("to", string(ev.To)),
		zap.Int("streak", ev.Streak),
		zap.Time("since", ev.Since),
	)
	select {
	case s.events <- *ev:
	default:
		s.log.Warn("event_dropped", zap.String("target_id", string(w.id)), zap.String("to", string(ev.To)))
	}
	return true
}
