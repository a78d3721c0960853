package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/apimonitor/internal/domain"
	"github.com/hamed0406/apimonitor/internal/scheduler"
)

const maxBodyBytes = 1 << 20

// targetPayload is the wire form of a target. Durations travel as seconds.
type targetPayload struct {
	Name              string                 `json:"name"`
	URL               string                 `json:"url"`
	Method            string                 `json:"method"`
	Headers           map[string]string      `json:"headers"`
	Body              string                 `json:"body"`
	ExpectedStatus    []int                  `json:"expected_status"`
	JSONAssert        []domain.JSONAssertion `json:"json_assert"`
	IntervalSeconds   float64                `json:"interval_seconds"`
	TimeoutSeconds    float64                `json:"timeout_seconds"`
	FailureThreshold  int                    `json:"failure_threshold"`
	RecoveryThreshold int                    `json:"recovery_threshold"`
	Paused            bool                   `json:"paused"`
}

func (p targetPayload) target(d domain.Defaults) domain.Target {
	u := p.URL
	if isValidHTTPURL(u) {
		u = normalizeHTTPURL(u)
	}
	t := domain.Target{
		Name:              p.Name,
		URL:               u,
		Method:            p.Method,
		Headers:           p.Headers,
		Body:              p.Body,
		ExpectedStatus:    p.ExpectedStatus,
		JSONAssert:        p.JSONAssert,
		Interval:          seconds(p.IntervalSeconds),
		Timeout:           seconds(p.TimeoutSeconds),
		FailureThreshold:  p.FailureThreshold,
		RecoveryThreshold: p.RecoveryThreshold,
		Paused:            p.Paused,
	}
	t.ApplyDefaults(d)
	return t
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

// targetView is a target with its durations in seconds and current state.
type targetView struct {
	domain.Target
	IntervalSeconds float64             `json:"interval_seconds"`
	TimeoutSeconds  float64             `json:"timeout_seconds"`
	State           *domain.TargetState `json:"state,omitempty"`
}

func (s *Server) view(ctx context.Context, t domain.Target) targetView {
	st := s.stateOf(ctx, t.ID)
	return targetView{
		Target:          t,
		IntervalSeconds: t.Interval.Seconds(),
		TimeoutSeconds:  t.Timeout.Seconds(),
		State:           &st,
	}
}

// stateOf prefers the live snapshot and falls back to the persisted state
// for targets that are not scheduled.
func (s *Server) stateOf(ctx context.Context, id domain.TargetID) domain.TargetState {
	if st, ok := s.Engine.State(id); ok {
		return st
	}
	st, err := s.Store.GetState(ctx, id)
	if err != nil {
		s.Logger.Warn("state_read_error", zap.String("target_id", string(id)), zap.Error(err))
	}
	if st == nil {
		return domain.NewTargetState(id)
	}
	return *st
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return false
	}
	return true
}

func targetID(r *http.Request) domain.TargetID {
	return domain.TargetID(chi.URLParam(r, "id"))
}

func (s *Server) invalidate(ctx context.Context, id domain.TargetID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, "stats:*:"+string(id)+":*"); err != nil {
		s.Logger.Debug("stats_cache_invalidate_error", zap.String("target_id", string(id)), zap.Error(err))
	}
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Store.List(r.Context())
	if err != nil {
		s.writeStoreError(w, "list", err)
		return
	}
	out := make([]targetView, 0, len(ts))
	for _, t := range ts {
		out = append(out, s.view(r.Context(), *t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	t, err := s.Store.Get(r.Context(), targetID(r))
	if err != nil {
		s.writeStoreError(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(r.Context(), *t))
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var p targetPayload
	if !decode(w, r, &p) {
		return
	}
	t := p.target(s.Defaults)
	if err := t.Validate(); err != nil {
		s.writeStoreError(w, "add", err)
		return
	}
	t.CreatedAt = s.now().UTC()
	if err := s.Store.Add(r.Context(), &t); err != nil {
		s.writeStoreError(w, "add", err)
		return
	}
	if !t.Paused {
		// the first probe fires as soon as the worker starts
		if err := s.Engine.Register(r.Context(), t); err != nil {
			if rerr := s.Store.Remove(r.Context(), t.ID); rerr != nil {
				s.Logger.Error("rollback_error", zap.String("target_id", string(t.ID)), zap.Error(rerr))
			}
			s.writeStoreError(w, "register", err)
			return
		}
	}

	s.Logger.Info("added_target",
		zap.String("target_id", string(t.ID)),
		zap.String("name", t.Name),
		zap.String("url", t.URL),
		zap.Bool("paused", t.Paused),
	)
	writeJSON(w, http.StatusCreated, s.view(r.Context(), t))
}

func (s *Server) handleUpdateTarget(w http.ResponseWriter, r *http.Request) {
	cur, err := s.Store.Get(r.Context(), targetID(r))
	if err != nil {
		s.writeStoreError(w, "update", err)
		return
	}
	var p targetPayload
	if !decode(w, r, &p) {
		return
	}
	t := p.target(s.Defaults)
	t.ID, t.CreatedAt, t.Paused = cur.ID, cur.CreatedAt, cur.Paused
	if err := t.Validate(); err != nil {
		s.writeStoreError(w, "update", err)
		return
	}
	if err := s.Store.Update(r.Context(), &t); err != nil {
		s.writeStoreError(w, "update", err)
		return
	}
	if !t.Paused {
		if err := s.Engine.Register(r.Context(), t); err != nil {
			s.writeStoreError(w, "register", err)
			return
		}
	}
	s.invalidate(r.Context(), t.ID)

	s.Logger.Info("updated_target", zap.String("target_id", string(t.ID)), zap.String("url", t.URL))
	writeJSON(w, http.StatusOK, s.view(r.Context(), t))
}

func (s *Server) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	id := targetID(r)
	// stop the worker first so no late outcome lands after removal
	s.Engine.Deregister(id)
	if err := s.Store.Remove(r.Context(), id); err != nil {
		s.writeStoreError(w, "delete", err)
		return
	}
	s.invalidate(r.Context(), id)
	s.Logger.Info("deleted_target", zap.String("target_id", string(id)))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	t, err := s.Store.Get(r.Context(), targetID(r))
	if err != nil {
		s.writeStoreError(w, "pause", err)
		return
	}
	if !t.Paused {
		t.Paused = true
		if err := s.Store.Update(r.Context(), t); err != nil {
			s.writeStoreError(w, "pause", err)
			return
		}
	}
	s.Engine.Deregister(t.ID)
	s.Logger.Info("paused_target", zap.String("target_id", string(t.ID)))
	writeJSON(w, http.StatusOK, s.view(r.Context(), *t))
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	t, err := s.Store.Get(r.Context(), targetID(r))
	if err != nil {
		s.writeStoreError(w, "resume", err)
		return
	}
	if t.Paused {
		t.Paused = false
		if err := s.Store.Update(r.Context(), t); err != nil {
			s.writeStoreError(w, "resume", err)
			return
		}
	}
	if err := s.Engine.Register(r.Context(), *t); err != nil {
		s.writeStoreError(w, "register", err)
		return
	}
	s.Logger.Info("resumed_target", zap.String("target_id", string(t.ID)))
	writeJSON(w, http.StatusOK, s.view(r.Context(), *t))
}

func (s *Server) handleCheckNow(w http.ResponseWriter, r *http.Request) {
	t, err := s.Store.Get(r.Context(), targetID(r))
	if err != nil {
		s.writeStoreError(w, "check", err)
		return
	}
	if t.Paused {
		writeError(w, http.StatusConflict, "target is paused")
		return
	}
	out, err := s.Engine.CheckNow(r.Context(), t.ID)
	switch {
	case err == nil:
	case errors.Is(err, scheduler.ErrBusy):
		writeError(w, http.StatusConflict, "check already in flight")
		return
	case errors.Is(err, scheduler.ErrNotRegistered):
		writeError(w, http.StatusConflict, "target is not scheduled")
		return
	case errors.Is(err, scheduler.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "scheduler stopped")
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "check cancelled")
		return
	default:
		s.writeStoreError(w, "check", err)
		return
	}
	s.invalidate(r.Context(), t.ID)
	writeJSON(w, http.StatusOK, out)
}
