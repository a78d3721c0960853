package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hamed0406/apimonitor/internal/domain"
	"github.com/hamed0406/apimonitor/internal/repo"
)

func (s *Store) GetAlert(ctx context.Context, id domain.TargetID) (*repo.AlertRecord, error) {
	const q = `SELECT last_status, last_sent_at FROM alerts WHERE target_id=$1`
	r := repo.AlertRecord{TargetID: id}
	var (
		status   string
		lastSent *time.Time
	)
	err := s.pool.QueryRow(ctx, q, string(id)).Scan(&status, &lastSent)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	r.LastStatus = domain.Status(status)
	r.LastSentAt = lastSent
	return &r, nil
}

func (s *Store) SetAlert(ctx context.Context, id domain.TargetID, status domain.Status, sentAt time.Time) error {
	const q = `
		INSERT INTO alerts (target_id, last_status, last_sent_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (target_id)
		DO UPDATE SET last_status=EXCLUDED.last_status, last_sent_at=EXCLUDED.last_sent_at
	`
	_, err := s.pool.Exec(ctx, q, string(id), string(status), nullTime(sentAt))
	return err
}
