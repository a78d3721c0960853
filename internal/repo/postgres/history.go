package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hamed0406/apimonitor/internal/domain"
)

// ---- HistoryStore ----

func (s *Store) AppendOutcome(ctx context.Context, o *domain.CheckOutcome) error {
	var statusPtr *int
	if o.HTTPStatus != 0 {
		statusPtr = &o.HTTPStatus
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO results
		   (target_id, success, http_status, latency_ms, reason, detail, checked_at)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7)`,
		string(o.TargetID), o.Success, statusPtr, o.LatencyMS, string(o.Reason), o.Detail, o.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *Store) AppendTransition(ctx context.Context, e *domain.TransitionEvent) error {
	outcome, err := json.Marshal(e.Outcome)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO transitions
		   (target_id, target_name, url, from_status, to_status, at, since, streak, outcome)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(e.TargetID), e.TargetName, e.URL, string(e.From), string(e.To),
		e.At, nullTime(e.Since), e.Streak, string(outcome),
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

func (s *Store) Outcomes(ctx context.Context, id domain.TargetID, from, to time.Time) ([]domain.CheckOutcome, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT success, http_status, latency_ms, reason, detail, checked_at
		   FROM results
		  WHERE target_id = $1 AND checked_at >= $2 AND checked_at < $3
		  ORDER BY checked_at`,
		string(id), from, to)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []domain.CheckOutcome
	for rows.Next() {
		var (
			o      domain.CheckOutcome
			status *int32
			reason string
		)
		if err := rows.Scan(&o.Success, &status, &o.LatencyMS, &reason, &o.Detail, &o.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		o.TargetID = id
		o.Reason = domain.FailureReason(reason)
		if status != nil {
			o.HTTPStatus = int(*status)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const transitionColumns = `target_id, target_name, url, from_status, to_status, at, since, streak, outcome`

func (s *Store) Transitions(ctx context.Context, id domain.TargetID, from, to time.Time) ([]domain.TransitionEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+transitionColumns+`
		   FROM transitions
		  WHERE target_id = $1 AND at >= $2 AND at < $3
		  ORDER BY at, id`,
		string(id), from, to)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []domain.TransitionEvent
	for rows.Next() {
		e, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *Store) LastTransitionBefore(ctx context.Context, id domain.TargetID, t time.Time) (*domain.TransitionEvent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+transitionColumns+`
		   FROM transitions
		  WHERE target_id = $1 AND at < $2
		  ORDER BY at DESC, id DESC
		  LIMIT 1`,
		string(id), t)
	e, err := scanTransition(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func scanTransition(row pgx.Row) (*domain.TransitionEvent, error) {
	var (
		e          domain.TransitionEvent
		id         string
		from, to   string
		since      *time.Time
		outcomeRaw []byte
	)
	if err := row.Scan(&id, &e.TargetName, &e.URL, &from, &to, &e.At, &since, &e.Streak, &outcomeRaw); err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan transition: %w", err)
	}
	e.TargetID = domain.TargetID(id)
	e.From, e.To = domain.Status(from), domain.Status(to)
	e.Since = fromNull(since)
	if len(outcomeRaw) > 0 {
		if err := json.Unmarshal(outcomeRaw, &e.Outcome); err != nil {
			return nil, fmt.Errorf("decode outcome: %w", err)
		}
	}
	return &e, nil
}
