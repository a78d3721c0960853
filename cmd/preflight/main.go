// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"

	"github.com/hamed0406/apimonitor/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.Load()
	if err != nil {
		for _, e := range multierr.Errors(err) {
			fmt.Fprintln(os.Stderr, "✖", e)
		}
		os.Exit(1)
	}
	ok("configuration valid")

	if len(cfg.AdminAPIKeys) == 0 {
		fail("ADMIN_API_KEYS is empty (admin routes are open to anyone).")
	}
	if len(cfg.PublicAPIKeys) == 0 {
		warn("PUBLIC_API_KEYS is empty; only admin keys can read.")
	}

	// Normalize and sanity-check lists (no spaces around commas).
	for name, v := range map[string]string{"ADMIN_API_KEYS": os.Getenv("ADMIN_API_KEYS"), "PUBLIC_API_KEYS": os.Getenv("PUBLIC_API_KEYS")} {
		if strings.Contains(strings.TrimSpace(v), " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}
	ok("ADDR=" + cfg.Addr)

	if cfg.DatabaseURL == "" {
		warn("DATABASE_URL empty: targets and history live in memory and are lost on restart.")
	} else {
		ok("DATABASE_URL present")
	}
	if cfg.RedisURL == "" {
		warn("REDIS_URL empty: stats are not cached and transitions are not published.")
	} else {
		ok("REDIS_URL present")
	}

	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		warn("ALLOWED_ORIGINS is '*': any site may call the API from a browser.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	if cfg.SlackWebhookURL == "" && (cfg.TelegramBotToken == "" || cfg.TelegramChatID == "") {
		warn("no SLACK_WEBHOOK_URL or TELEGRAM_BOT_TOKEN/TELEGRAM_CHAT_ID: alerts and daily reports are disabled.")
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID == "" {
		warn("TELEGRAM_BOT_TOKEN set without TELEGRAM_CHAT_ID.")
	}

	sched, err := cron.ParseStandard(cfg.ReportSchedule)
	if err != nil {
		fail("REPORT_SCHEDULE: " + err.Error())
	}
	next := sched.Next(time.Now().In(cfg.Location()))
	ok("next daily report at " + next.Format(time.RFC1123))

	if cfg.TargetsFile != "" {
		ts, err := config.LoadTargets(cfg.TargetsFile)
		if err != nil {
			fail(err.Error())
		}
		bad := 0
		for _, t := range ts {
			t.ApplyDefaults(cfg.TargetDefaults())
			if err := t.Validate(); err != nil {
				warn(fmt.Sprintf("seed target %q: %v", t.URL, err))
				bad++
			}
		}
		ok(fmt.Sprintf("TARGETS_FILE lists %d target(s), %d invalid", len(ts), bad))
	}

	ok("preflight passed")
}
