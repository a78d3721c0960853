package repo

import (
	"context"
	"time"

	"github.com/hamed0406/apimonitor/internal/domain"
)

// AlertRecord holds the last status we alerted on for a target and the last
// time a notification was sent (used for cooldown).
type AlertRecord struct {
	TargetID   domain.TargetID
	LastStatus domain.Status
	LastSentAt *time.Time
}

// AlertStore is implemented by a persistence layer to store alert state.
type AlertStore interface {
	// GetAlert returns nil, nil if there's no record yet.
	GetAlert(ctx context.Context, id domain.TargetID) (*AlertRecord, error)
	// SetAlert upserts the record. If sentAt.IsZero() we store NULL for last_sent_at.
	SetAlert(ctx context.Context, id domain.TargetID, status domain.Status, sentAt time.Time) error
}
