package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/apimonitor/internal/domain"
	"github.com/hamed0406/apimonitor/internal/repo"
	"github.com/hamed0406/apimonitor/internal/stats"
)

// EventSink receives every transition, whether or not an alert was sent.
type EventSink interface {
	Publish(ctx context.Context, ev domain.TransitionEvent) error
}

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
	SendTimeout     time.Duration
}

// Alerter turns transition events into notifications. Delivery is best
// effort: errors are logged and never fed back to the scheduler.
type Alerter struct {
	log      *zap.Logger
	alertDB  repo.AlertStore
	notifier interface {
		Send(context.Context, string, string) error
	}
	sinks []EventSink
	cfg   AlerterConfig
	now   func() time.Time
}

func NewAlerter(
	log *zap.Logger,
	alertDB repo.AlertStore,
	notifier interface {
		Send(context.Context, string, string) error
	},
	cfg AlerterConfig,
	sinks ...EventSink,
) *Alerter {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	return &Alerter{
		log:      log,
		alertDB:  alertDB,
		notifier: notifier,
		sinks:    sinks,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run consumes events until ctx is done or events is closed.
func (a *Alerter) Run(ctx context.Context, events <-chan domain.TransitionEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			a.handle(ctx, ev)
		}
	}
}

func (a *Alerter) handle(ctx context.Context, ev domain.TransitionEvent) {
	sctx, cancel := context.WithTimeout(ctx, a.cfg.SendTimeout)
	defer cancel()

	for _, s := range a.sinks {
		if err := s.Publish(sctx, ev); err != nil {
			a.log.Warn("event_sink_error", zap.String("target_id", string(ev.TargetID)), zap.Error(err))
		}
	}
	if a.notifier == nil {
		return
	}

	now := a.now()
	rec, err := a.alertDB.GetAlert(sctx, ev.TargetID)
	if err != nil {
		a.log.Warn("alert_state_error", zap.String("target_id", string(ev.TargetID)), zap.Error(err))
	}

	// Has the status changed compared to what we last recorded?
	stateChanged := rec == nil || rec.LastStatus != ev.To
	if !stateChanged {
		return
	}

	// Cooldown only matters for DOWN alerts (suppresses noisy repeats).
	cooled := true
	if rec != nil && rec.LastSentAt != nil {
		cooled = now.Sub(*rec.LastSentAt) >= a.cfg.Cooldown
	}

	var title, text string
	switch {
	case ev.To == domain.StatusDown && cooled:
		title, text = FormatDown(ev)
	case ev.To == domain.StatusUp && ev.From == domain.StatusDown && a.cfg.AlertOnRecovery:
		// recovery bypasses cooldown
		title, text = FormatRecovery(ev)
	}

	if title == "" {
		// Record the new status without a send time, keeping the last send
		// so cooldown still applies to the next DOWN.
		var keep time.Time
		if rec != nil && rec.LastSentAt != nil {
			keep = *rec.LastSentAt
		}
		if err := a.alertDB.SetAlert(sctx, ev.TargetID, ev.To, keep); err != nil {
			a.log.Warn("alert_state_error", zap.String("target_id", string(ev.TargetID)), zap.Error(err))
		}
		return
	}

	if err := a.notifier.Send(sctx, title, text); err != nil {
		a.log.Warn("notify_error",
			zap.String("target_id", string(ev.TargetID)),
			zap.String("to", string(ev.To)),
			zap.Error(err),
		)
	} else {
		a.log.Info("alert_sent", zap.String("target_id", string(ev.TargetID)), zap.String("to", string(ev.To)))
	}
	if err := a.alertDB.SetAlert(sctx, ev.TargetID, ev.To, now); err != nil {
		a.log.Warn("alert_state_error", zap.String("target_id", string(ev.TargetID)), zap.Error(err))
	}
}

const tsLayout = "2006-01-02 15:04:05 UTC"

// FormatDown renders the DOWN alert for ev.
func FormatDown(ev domain.TransitionEvent) (title, text string) {
	title = "🔴 DOWN: " + displayName(ev)
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", ev.URL)
	fmt.Fprintf(&b, "Failing since: %s\n", ev.Since.UTC().Format(tsLayout))
	fmt.Fprintf(&b, "Failed checks: %d\n", ev.Streak)
	writeOutcome(&b, ev.Outcome)
	return title, b.String()
}

// FormatRecovery renders the recovery alert, with the incident details.
func FormatRecovery(ev domain.TransitionEvent) (title, text string) {
	title = "✅ RECOVERY: " + displayName(ev)
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", ev.URL)
	b.WriteString("Service is stable again.\n\nIncident:\n")
	if !ev.Since.IsZero() {
		fmt.Fprintf(&b, "  - Start: %s\n", ev.Since.UTC().Format(tsLayout))
		fmt.Fprintf(&b, "  - End: %s\n", ev.At.UTC().Format(tsLayout))
		fmt.Fprintf(&b, "  - Duration: %s\n", stats.FormatDuration(ev.Duration()))
	} else {
		fmt.Fprintf(&b, "  - End: %s\n", ev.At.UTC().Format(tsLayout))
	}
	fmt.Fprintf(&b, "  - Passing checks: %d\n", ev.Streak)
	return title, b.String()
}

func writeOutcome(b *strings.Builder, o domain.CheckOutcome) {
	httpTxt := "n/a"
	if o.HTTPStatus != 0 {
		httpTxt = fmt.Sprintf("%d", o.HTTPStatus)
	}
	fmt.Fprintf(b, "HTTP: %s\n", httpTxt)
	fmt.Fprintf(b, "Latency: %.0f ms\n", o.LatencyMS)
	fmt.Fprintf(b, "Reason: %s\n", o.Reason)
	if o.Detail != "" {
		fmt.Fprintf(b, "Error: %s\n", o.Detail)
	}
	fmt.Fprintf(b, "Checked: %s", o.CheckedAt.UTC().Format(time.RFC3339))
}

func displayName(ev domain.TransitionEvent) string {
	if ev.TargetName != "" {
		return ev.TargetName
	}
	return string(ev.TargetID)
}
