package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/apimonitor/internal/domain"
	"github.com/hamed0406/apimonitor/internal/repo"
)

var (
	_ repo.TargetStore  = (*Store)(nil)
	_ repo.HistoryStore = (*Store)(nil)
	_ repo.StateStore   = (*Store)(nil)
	_ repo.AlertStore   = (*Store)(nil)
)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate applies pending embedded migrations.
func (s *Store) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.pool, s.log)
}

// ---- TargetStore ----

const targetColumns = `id, name, url, method, headers, body, expected_status, json_assert,
	interval_ms, timeout_ms, failure_threshold, recovery_threshold, paused, created_at`

func (s *Store) Add(ctx context.Context, t *domain.Target) error {
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	args, err := targetArgs(t)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO targets (`+targetColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("insert target: %w", mapErr(err))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+targetColumns+` FROM targets WHERE id = $1`, string(id))
	t, err := scanTarget(row)
	if err != nil {
		return nil, mapErr(err)
	}
	return t, nil
}

func (s *Store) List(ctx context.Context) ([]*domain.Target, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+targetColumns+`
		   FROM targets
		  ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []*domain.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) Update(ctx context.Context, t *domain.Target) error {
	args, err := targetArgs(t)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE targets
		    SET name = $2, url = $3, method = $4, headers = $5, body = $6,
		        expected_status = $7, json_assert = $8, interval_ms = $9, timeout_ms = $10,
		        failure_threshold = $11, recovery_threshold = $12, paused = $13
		  WHERE id = $1`,
		args[:13]...,
	)
	if err != nil {
		return fmt.Errorf("update target: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// Remove deletes the target; history, state and alert rows cascade.
func (s *Store) Remove(ctx context.Context, id domain.TargetID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM targets WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func targetArgs(t *domain.Target) ([]any, error) {
	headers, err := json.Marshal(nonNilMap(t.Headers))
	if err != nil {
		return nil, fmt.Errorf("encode headers: %w", err)
	}
	expected, err := json.Marshal(t.ExpectedStatus)
	if err != nil {
		return nil, fmt.Errorf("encode expected_status: %w", err)
	}
	asserts := t.JSONAssert
	if asserts == nil {
		asserts = []domain.JSONAssertion{}
	}
	assertJSON, err := json.Marshal(asserts)
	if err != nil {
		return nil, fmt.Errorf("encode json_assert: %w", err)
	}
	return []any{
		string(t.ID), t.Name, t.URL, t.Method, string(headers), t.Body,
		string(expected), string(assertJSON),
		t.Interval.Milliseconds(), t.Timeout.Milliseconds(),
		t.FailureThreshold, t.RecoveryThreshold, t.Paused, t.CreatedAt,
	}, nil
}

func scanTarget(row pgx.Row) (*domain.Target, error) {
	var (
		t                              domain.Target
		id                             string
		headers, expected, assertsJSON []byte
		intervalMS, timeoutMS          int64
	)
	err := row.Scan(&id, &t.Name, &t.URL, &t.Method, &headers, &t.Body, &expected, &assertsJSON,
		&intervalMS, &timeoutMS, &t.FailureThreshold, &t.RecoveryThreshold, &t.Paused, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.ID = domain.TargetID(id)
	t.Interval = time.Duration(intervalMS) * time.Millisecond
	t.Timeout = time.Duration(timeoutMS) * time.Millisecond
	if err := json.Unmarshal(headers, &t.Headers); err != nil {
		return nil, fmt.Errorf("decode headers: %w", err)
	}
	if err := json.Unmarshal(expected, &t.ExpectedStatus); err != nil {
		return nil, fmt.Errorf("decode expected_status: %w", err)
	}
	if err := json.Unmarshal(assertsJSON, &t.JSONAssert); err != nil {
		return nil, fmt.Errorf("decode json_assert: %w", err)
	}
	return &t, nil
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// mapErr turns driver errors into repo sentinels.
func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repo.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", repo.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func fromNull(p *time.Time) time.Time {
	if p == nil {
		return time.Time{}
	}
	return p.UTC()
}
