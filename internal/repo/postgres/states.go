package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hamed0406/apimonitor/internal/domain"
)

// ---- StateStore ----

func (s *Store) SaveState(ctx context.Context, st *domain.TargetState) error {
	var last *string
	if st.LastOutcome != nil {
		b, err := json.Marshal(st.LastOutcome)
		if err != nil {
			return fmt.Errorf("encode last outcome: %w", err)
		}
		v := string(b)
		last = &v
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO target_states
		  (target_id, status, consecutive_success, consecutive_failure,
		   last_transition, last_checked, failing_since, incident_start, last_outcome, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (target_id) DO UPDATE SET
		  status = EXCLUDED.status,
		  consecutive_success = EXCLUDED.consecutive_success,
		  consecutive_failure = EXCLUDED.consecutive_failure,
		  last_transition = EXCLUDED.last_transition,
		  last_checked = EXCLUDED.last_checked,
		  failing_since = EXCLUDED.failing_since,
		  incident_start = EXCLUDED.incident_start,
		  last_outcome = EXCLUDED.last_outcome,
		  updated_at = now()`,
		string(st.TargetID), string(st.Status), st.ConsecutiveSuccess, st.ConsecutiveFailure,
		nullTime(st.LastTransition), nullTime(st.LastChecked), nullTime(st.FailingSince),
		nullTime(st.IncidentStart), last,
	)
	if err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}

const stateColumns = `target_id, status, consecutive_success, consecutive_failure,
	last_transition, last_checked, failing_since, incident_start, last_outcome`

func (s *Store) GetState(ctx context.Context, id domain.TargetID) (*domain.TargetState, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+stateColumns+` FROM target_states WHERE target_id = $1`, string(id))
	st, err := scanState(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) LoadStates(ctx context.Context) (map[domain.TargetID]domain.TargetState, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+stateColumns+` FROM target_states`)
	if err != nil {
		return nil, fmt.Errorf("query states: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.TargetID]domain.TargetState)
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		out[st.TargetID] = *st
	}
	return out, rows.Err()
}

func scanState(row pgx.Row) (*domain.TargetState, error) {
	var (
		st                                  domain.TargetState
		id, status                          string
		lastTr, lastCk, failing, incidentAt *time.Time
		lastOutcome                         []byte
	)
	if err := row.Scan(&id, &status, &st.ConsecutiveSuccess, &st.ConsecutiveFailure,
		&lastTr, &lastCk, &failing, &incidentAt, &lastOutcome); err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan state: %w", err)
	}
	st.TargetID = domain.TargetID(id)
	st.Status = domain.Status(status)
	st.LastTransition = fromNull(lastTr)
	st.LastChecked = fromNull(lastCk)
	st.FailingSince = fromNull(failing)
	st.IncidentStart = fromNull(incidentAt)
	if len(lastOutcome) > 0 {
		var o domain.CheckOutcome
		if err := json.Unmarshal(lastOutcome, &o); err != nil {
			return nil, fmt.Errorf("decode last outcome: %w", err)
		}
		st.LastOutcome = &o
	}
	return &st, nil
}
