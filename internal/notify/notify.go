// Package notify delivers alert messages and transition events to external
// channels.
package notify

import (
	"context"

	"go.uber.org/multierr"
)

type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Multi fans a message out to every notifier. Nil entries are skipped; a
// failing notifier does not stop the others and all errors are returned.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, title, text))
	}
	return err
}

// Enabled reports whether at least one notifier is configured.
func (m Multi) Enabled() bool {
	for _, n := range m {
		if n != nil {
			return true
		}
	}
	return false
}
