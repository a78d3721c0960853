package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/hamed0406/apimonitor/internal/domain"
	"github.com/hamed0406/apimonitor/internal/metrics"
	"github.com/hamed0406/apimonitor/internal/scheduler"
	"github.com/hamed0406/apimonitor/internal/stats"
)

type historyView struct {
	TargetID    domain.TargetID          `json:"target_id"`
	From        time.Time                `json:"from"`
	To          time.Time                `json:"to"`
	Outcomes    []domain.CheckOutcome    `json:"outcomes"`
	Transitions []domain.TransitionEvent `json:"transitions"`
}

type systemView struct {
	System    *metrics.SystemStatus `json:"system,omitempty"`
	Scheduler scheduler.Stats       `json:"scheduler"`
	WSClients int                   `json:"ws_clients"`
}

// lookupWindow resolves the target and the ?window= parameter, writing the
// error response itself when either is bad.
func (s *Server) lookupWindow(w http.ResponseWriter, r *http.Request, op string) (domain.TargetID, time.Duration, bool) {
	t, err := s.Store.Get(r.Context(), targetID(r))
	if err != nil {
		s.writeStoreError(w, op, err)
		return "", 0, false
	}
	win, err := stats.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", 0, false
	}
	return t.ID, win, true
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	t, err := s.Store.Get(r.Context(), targetID(r))
	if err != nil {
		s.writeStoreError(w, "state", err)
		return
	}
	writeJSON(w, http.StatusOK, s.stateOf(r.Context(), t.ID))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, win, ok := s.lookupWindow(w, r, "history")
	if !ok {
		return
	}
	to := s.now().UTC()
	from := to.Add(-win)
	outs, err := s.Store.Outcomes(r.Context(), id, from, to)
	if err != nil {
		s.writeStoreError(w, "history", err)
		return
	}
	trs, err := s.Store.Transitions(r.Context(), id, from, to)
	if err != nil {
		s.writeStoreError(w, "history", err)
		return
	}
	if outs == nil {
		outs = []domain.CheckOutcome{}
	}
	if trs == nil {
		trs = []domain.TransitionEvent{}
	}
	writeJSON(w, http.StatusOK, historyView{TargetID: id, From: from, To: to, Outcomes: outs, Transitions: trs})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id, win, ok := s.lookupWindow(w, r, "stats")
	if !ok {
		return
	}
	sum, err := s.Stats.Summary(r.Context(), id, win)
	if err != nil {
		s.writeStoreError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	id, win, ok := s.lookupWindow(w, r, "series")
	if !ok {
		return
	}
	buckets := 0
	if raw := r.URL.Query().Get("buckets"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > stats.MaxBuckets {
			writeError(w, http.StatusBadRequest, "buckets must be between 1 and "+strconv.Itoa(stats.MaxBuckets))
			return
		}
		buckets = n
	}
	series, err := s.Stats.Series(r.Context(), id, win, buckets)
	if err != nil {
		s.writeStoreError(w, "series", err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	id, win, ok := s.lookupWindow(w, r, "incidents")
	if !ok {
		return
	}
	inc, err := s.Stats.Incidents(r.Context(), id, win)
	if err != nil {
		s.writeStoreError(w, "incidents", err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Stats.DailyReport(r.Context())
	if err != nil {
		s.writeStoreError(w, "report", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	v := systemView{Scheduler: s.Engine.Stats()}
	if s.system != nil {
		snap := s.system.Snapshot(r.Context())
		v.System = &snap
	}
	if s.clients != nil {
		v.WSClients = s.clients()
	}
	writeJSON(w, http.StatusOK, v)
}
