package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/apimonitor/internal/cache"
	"github.com/hamed0406/apimonitor/internal/config"
	"github.com/hamed0406/apimonitor/internal/httpapi"
	apimw "github.com/hamed0406/apimonitor/internal/httpapi/middleware"
	"github.com/hamed0406/apimonitor/internal/hub"
	"github.com/hamed0406/apimonitor/internal/logging"
	"github.com/hamed0406/apimonitor/internal/metrics"
	"github.com/hamed0406/apimonitor/internal/notify"
	"github.com/hamed0406/apimonitor/internal/probe"
	"github.com/hamed0406/apimonitor/internal/repo"
	"github.com/hamed0406/apimonitor/internal/repo/memory"
	"github.com/hamed0406/apimonitor/internal/repo/postgres"
	"github.com/hamed0406/apimonitor/internal/scheduler"
	"github.com/hamed0406/apimonitor/internal/stats"
)

type store interface {
	httpapi.Store
	repo.AlertStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(cfg.LogDir, logging.WithLevel(cfg.LogLevel), logging.WithConsole(cfg.LogConsole))
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fatal", zap.Error(err))
		_ = logger.Sync()
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var (
		statsCache stats.Cache
		apiCache   httpapi.PatternDeleter
		sinks      []scheduler.EventSink
	)
	if cfg.RedisURL != "" {
		rc, err := cache.New(ctx, cfg.RedisURL, logger)
		if err != nil {
			// stats still work uncached and events still reach the hub
			logger.Warn("redis_unavailable", zap.Error(err))
		} else {
			defer rc.Close()
			statsCache, apiCache = rc, rc
			sinks = append(sinks, notify.NewRedisPublisher(rc.Client(), cfg.RedisChannel))
		}
	}

	probeOpts := []probe.Option{probe.WithMaxBody(int64(cfg.MaxBodyBytes))}
	if cfg.DNSDiagnostics {
		probeOpts = append(probeOpts, probe.WithDNSDiagnostics(probe.NewDNSDiagnoser(logger)))
	}
	checker := probe.NewHTTPChecker(probeOpts...)
	mets := metrics.New()

	sched := scheduler.New(logger, checker, st, st, st, mets, scheduler.Config{
		Concurrency: cfg.MaxConcurrentChecks,
		EventBuffer: cfg.EventBuffer,
	})
	defer sched.Close()

	if cfg.TargetsFile != "" {
		if err := seedTargets(ctx, cfg, st, logger); err != nil {
			return err
		}
	}
	if _, err := sched.Load(ctx); err != nil {
		return err
	}
	for _, t := range sched.Targets() {
		if s, ok := sched.State(t.ID); ok {
			mets.SetStatus(t, s.Status)
		}
	}

	agg := stats.New(logger, st, st, st, stats.WithCache(statsCache, cfg.StatsCacheTTL))
	events := hub.New(logger, cfg.AllowedOrigins)
	sinks = append(sinks, events)

	notifier := buildNotifier(cfg)
	alerter := scheduler.NewAlerter(logger, st, notifier, scheduler.AlerterConfig{
		AlertOnRecovery: cfg.AlertOnRecovery,
		Cooldown:        cfg.AlertCooldown,
	}, sinks...)

	var reporter *scheduler.Reporter
	if notifier != nil {
		reporter, err = scheduler.NewReporter(logger, agg, notifier, cfg.ReportSchedule, cfg.Location())
		if err != nil {
			return err
		}
	} else {
		logger.Info("notifications_disabled")
	}

	api := httpapi.NewServer(logger, st, sched, agg, cfg.TargetDefaults(),
		httpapi.WithMetrics(mets.Handler()),
		httpapi.WithSystem(metrics.NewSystem(10*time.Second)),
		httpapi.WithEvents(events.HandleConnect, events.Clients),
		httpapi.WithCache(apiCache),
	)
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error {
		events.Run(gctx)
		return nil
	})
	// drains until the scheduler closes its event channel
	g.Go(func() error { return alerter.Run(context.WithoutCancel(gctx), sched.Events()) })
	if reporter != nil {
		g.Go(func() error { return reporter.Run(gctx) })
	}
	g.Go(func() error {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	logger.Info("shutdown_complete")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info("store_memory")
		return memory.New(), func() {}, nil
	}
	pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	logger.Info("store_postgres")
	return pg, pg.Close, nil
}

// buildNotifier returns nil when no channel is configured.
func buildNotifier(cfg config.Config) notify.Notifier {
	var m notify.Multi
	if s := notify.NewSlack(cfg.SlackWebhookURL); s != nil {
		m = append(m, s)
	}
	if t := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID); t != nil {
		m = append(m, t)
	}
	if !m.Enabled() {
		return nil
	}
	return m
}

// seedTargets adds the targets of cfg.TargetsFile whose names are not stored
// yet. Invalid entries are logged and skipped.
func seedTargets(ctx context.Context, cfg config.Config, st repo.TargetStore, logger *zap.Logger) error {
	seeds, err := config.LoadTargets(cfg.TargetsFile)
	if err != nil {
		return err
	}
	existing, err := st.List(ctx)
	if err != nil {
		return err
	}
	taken := make(map[string]bool, len(existing))
	for _, t := range existing {
		taken[t.Name] = true
	}

	added := 0
	for i := range seeds {
		t := seeds[i]
		t.ApplyDefaults(cfg.TargetDefaults())
		if taken[t.Name] {
			continue
		}
		if err := t.Validate(); err != nil {
			logger.Warn("seed_target_invalid", zap.Int("index", i), zap.String("url", t.URL), zap.Error(err))
			continue
		}
		if err := st.Add(ctx, &t); err != nil {
			logger.Warn("seed_target_error", zap.String("name", t.Name), zap.Error(err))
			continue
		}
		taken[t.Name] = true
		added++
	}
	logger.Info("targets_seeded", zap.String("file", cfg.TargetsFile), zap.Int("added", added), zap.Int("listed", len(seeds)))
	return nil
}
