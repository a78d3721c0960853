package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hamed0406/apimonitor/internal/stats"
)

type ReportSource interface {
	DailyReport(ctx context.Context) (stats.DailyReport, error)
}

// Reporter sends the daily report on a cron schedule.
type Reporter struct {
	log      *zap.Logger
	source   ReportSource
	notifier interface {
		Send(context.Context, string, string) error
	}
	schedule string
	loc      *time.Location
	cron     *cron.Cron
}

// NewReporter validates schedule (standard 5-field cron) in loc.
func NewReporter(
	log *zap.Logger,
	source ReportSource,
	notifier interface {
		Send(context.Context, string, string) error
	},
	schedule string,
	loc *time.Location,
) (*Reporter, error) {
	if loc == nil {
		loc = time.UTC
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("report schedule %q: %w", schedule, err)
	}
	return &Reporter{
		log:      log,
		source:   source,
		notifier: notifier,
		schedule: schedule,
		loc:      loc,
		cron:     cron.New(cron.WithLocation(loc)),
	}, nil
}

// Run starts the cron loop and blocks until ctx is done.
func (r *Reporter) Run(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.schedule, func() {
		if err := r.SendNow(ctx); err != nil {
			r.log.Warn("daily_report_error", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("add report job: %w", err)
	}
	r.cron.Start()
	r.log.Info("reporter_started", zap.String("schedule", r.schedule), zap.String("tz", r.loc.String()))

	<-ctx.Done()
	<-r.cron.Stop().Done()
	r.log.Info("reporter_stopped")
	return ctx.Err()
}

// SendNow builds the report and sends it immediately.
func (r *Reporter) SendNow(ctx context.Context) error {
	rep, err := r.source.DailyReport(ctx)
	if err != nil {
		return err
	}
	title, text := stats.FormatReport(rep, r.loc)
	if err := r.notifier.Send(ctx, title, text); err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	r.log.Info("daily_report_sent", zap.Int("targets", len(rep.Entries)), zap.Int("failed", rep.Failed()))
	return nil
}
