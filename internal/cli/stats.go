package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamed0406/apimonitor/internal/cli/style"
	"github.com/hamed0406/apimonitor/internal/domain"
	"github.com/hamed0406/apimonitor/internal/stats"
)

func (a *app) statsCmd() *cobra.Command {
	var window string
	cmd := &cobra.Command{
		Use:   "stats <id>",
		Short: "Show uptime, latency and incidents for a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			win, err := stats.ParseWindow(window)
			if err != nil {
				return err
			}
			t, err := a.client.GetTarget(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to fetch target: %w", err)
			}
			s, err := a.client.Stats(cmd.Context(), args[0], window)
			if err != nil {
				return fmt.Errorf("failed to fetch stats: %w", err)
			}
			inc, err := a.client.Incidents(cmd.Context(), args[0], window)
			if err != nil {
				return fmt.Errorf("failed to fetch incidents: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, style.Banner.Render(t.Name)+style.Subtitle.Render("  "+stats.PeriodText(win)))
			fmt.Fprintln(out, renderSummary(*s, inc))
			return nil
		},
	}
	cmd.Flags().StringVarP(&window, "window", "w", "24h", "period: "+strings.Join(stats.Periods, ", ")+" or any duration")
	return cmd
}

func renderSummary(s stats.Summary, inc []stats.Incident) string {
	if s.NoData {
		return style.DimText.Render("no data for this period")
	}
	var b strings.Builder
	uptime := fmt.Sprintf("%.2f%%", s.UptimePct)
	switch {
	case s.UptimePct >= 99.9:
		uptime = style.Up.Render(uptime)
	case s.UptimePct >= 95:
		uptime = style.Warning.Render(uptime)
	default:
		uptime = style.Down.Render(uptime)
	}
	b.WriteString(style.KV("Uptime", uptime) + "\n")
	b.WriteString(style.KV("Checks", fmt.Sprintf("%d (%d failed)", s.Checks, s.Failures)) + "\n")
	b.WriteString(style.KV("Incidents", fmt.Sprint(s.Incidents)) + "\n")
	b.WriteString(style.KV("Downtime", stats.FormatDuration(s.Downtime())) + "\n")
	b.WriteString(style.KV("Latency", fmt.Sprintf("mean %.0f ms, p50 %.0f ms, p95 %.0f ms", s.LatencyMeanMS, s.LatencyP50MS, s.LatencyP95MS)))

	if len(s.FailuresByReason) > 0 {
		reasons := make([]string, 0, len(s.FailuresByReason))
		for r := range s.FailuresByReason {
			reasons = append(reasons, string(r))
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			b.WriteString("\n" + style.KV("  "+r, fmt.Sprint(s.FailuresByReason[domain.FailureReason(r)])))
		}
	}
	for _, i := range inc {
		end := style.Down.Render("ongoing")
		if i.End != nil {
			end = i.End.Local().Format(time.DateTime)
		}
		b.WriteString(fmt.Sprintf("\n%s %s → %s (%s)",
			style.Dot(domain.StatusDown, false),
			i.Start.Local().Format(time.DateTime), end, stats.FormatDuration(i.Duration())))
	}
	return b.String()
}

func (a *app) reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the daily report for the last 24 hours",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.client.DailyReport(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to fetch report: %w", err)
			}
			title, text := stats.FormatReport(*r, time.Local)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, style.Banner.Render(title))
			fmt.Fprintln(out, text)
			if n := r.Failed(); n > 0 {
				fmt.Fprintln(out, style.Warning.Render(fmt.Sprintf("%d target(s) could not be aggregated", n)))
			}
			return nil
		},
	}
}
