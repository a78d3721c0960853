package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamed0406/apimonitor/internal/apiclient"
	"github.com/hamed0406/apimonitor/internal/cli/style"
	"github.com/hamed0406/apimonitor/internal/domain"
	"github.com/hamed0406/apimonitor/internal/stats"
)

func (a *app) targetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "targets",
		Short:   "Manage monitored targets",
		Aliases: []string{"t"},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:     "list",
			Short:   "List targets with their status",
			Aliases: []string{"ls"},
			Args:    cobra.NoArgs,
			RunE:    a.runList,
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Show one target",
			Args:  cobra.ExactArgs(1),
			RunE:  a.runGet,
		},
		a.addCmd(),
		&cobra.Command{
			Use:     "rm <id>",
			Short:   "Stop monitoring a target and delete its history",
			Aliases: []string{"remove", "delete"},
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.client.RemoveTarget(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("failed to remove target: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), style.SuccessBox.Render("Removed "+args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "pause <id>",
			Short: "Stop checking a target, keep its data",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				t, err := a.client.Pause(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("failed to pause target: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), style.SuccessBox.Render("Paused "+t.Name))
				return nil
			},
		},
		&cobra.Command{
			Use:   "resume <id>",
			Short: "Resume checking a paused target",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				t, err := a.client.Resume(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("failed to resume target: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), style.SuccessBox.Render("Resumed "+t.Name))
				return nil
			},
		},
		&cobra.Command{
			Use:   "check <id>",
			Short: "Run one check now",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				o, err := a.client.CheckNow(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("check failed: %w", err)
				}
				printOutcome(cmd.OutOrStdout(), *o)
				return nil
			},
		},
	)
	return cmd
}

func (a *app) addCmd() *cobra.Command {
	var (
		in       apiclient.TargetInput
		interval time.Duration
		timeout  time.Duration
		headers  []string
		asserts  []string
	)
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Start monitoring an endpoint",
		Example: `  apimon targets add https://api.example.com/health --name api --interval 30s
  apimon targets add https://api.example.com/status --assert status=ok --expect 200,204`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.URL = args[0]
			if !strings.Contains(in.URL, "://") {
				in.URL = "https://" + in.URL
			}
			in.IntervalSeconds = interval.Seconds()
			in.TimeoutSeconds = timeout.Seconds()
			for _, h := range headers {
				k, v, ok := strings.Cut(h, ":")
				if !ok {
					return fmt.Errorf("header %q: want Name: value", h)
				}
				if in.Headers == nil {
					in.Headers = map[string]string{}
				}
				in.Headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
			}
			for _, s := range asserts {
				ja, err := domain.ParseJSONAssertion(s)
				if err != nil {
					return fmt.Errorf("assert %q: %w", s, err)
				}
				in.JSONAssert = append(in.JSONAssert, ja)
			}

			t, err := a.client.AddTarget(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("failed to add target: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, style.SuccessBox.Render("Added "+t.Name))
			fmt.Fprintln(out, style.KV("ID", string(t.ID)))
			fmt.Fprintln(out, style.KV("URL", t.URL))
			fmt.Fprintln(out, style.KV("Interval", time.Duration(t.IntervalSeconds*float64(time.Second)).String()))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "display name (defaults to the host)")
	f.StringVar(&in.Method, "method", "", "HTTP method (default GET)")
	f.StringVar(&in.Body, "body", "", "request body")
	f.IntSliceVar(&in.ExpectedStatus, "expect", nil, "accepted status codes (default 200)")
	f.DurationVar(&interval, "interval", 0, "check interval (server default when omitted)")
	f.DurationVar(&timeout, "timeout", 0, "request timeout (server default when omitted)")
	f.IntVar(&in.FailureThreshold, "failure-threshold", 0, "consecutive failures before DOWN")
	f.IntVar(&in.RecoveryThreshold, "recovery-threshold", 0, "consecutive successes before UP")
	f.StringArrayVar(&headers, "header", nil, "request header as 'Name: value' (repeatable)")
	f.StringArrayVar(&asserts, "assert", nil, "JSON assertion 'path' or 'path=value' (repeatable)")
	f.BoolVar(&in.Paused, "paused", false, "add without scheduling")
	return cmd
}

func (a *app) runList(cmd *cobra.Command, args []string) error {
	ts, err := a.client.ListTargets(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch targets: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(ts) == 0 {
		fmt.Fprintln(out, style.DimText.Render("No targets yet. Add one with: apimon targets add <url>"))
		return nil
	}

	fmt.Fprintln(out, style.Banner.Render("apimonitor")+style.Subtitle.Render(fmt.Sprintf("  %d target(s)", len(ts))))
	header := fmt.Sprintf("  %-2s  %-20s %-8s %-10s %-36s %s", "", "NAME", "STATUS", "INTERVAL", "ID", "URL")
	fmt.Fprintln(out, style.TableHeader.Render(header))
	for _, t := range ts {
		fmt.Fprintf(out, "  %s  %s %s %s %s %s\n",
			style.Dot(t.Status(), t.Paused),
			style.Bold.Render(padRight(t.Name, 20)),
			style.Status(t.Status(), t.Paused)+strings.Repeat(" ", max(0, 9-statusWidth(t))),
			padRight(time.Duration(t.IntervalSeconds*float64(time.Second)).String(), 10),
			style.DimText.Render(padRight(string(t.ID), 36)),
			style.URL.Render(t.URL),
		)
	}
	return nil
}

func statusWidth(t apiclient.Target) int {
	if t.Paused {
		return len("PAUSED")
	}
	return len(t.Status())
}

func (a *app) runGet(cmd *cobra.Command, args []string) error {
	t, err := a.client.GetTarget(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to fetch target: %w", err)
	}
	var b strings.Builder
	b.WriteString(style.Dot(t.Status(), t.Paused) + " " + style.Bold.Render(t.Name) + "\n\n")
	b.WriteString(style.KV("ID", string(t.ID)) + "\n")
	b.WriteString(style.KV("URL", t.URL) + "\n")
	b.WriteString(style.KV("Method", t.Method) + "\n")
	b.WriteString(style.KV("Status", style.Status(t.Status(), t.Paused)) + "\n")
	b.WriteString(style.KV("Expect", fmt.Sprint(t.ExpectedStatus)) + "\n")
	b.WriteString(style.KV("Interval", fmt.Sprintf("%gs", t.IntervalSeconds)) + "\n")
	b.WriteString(style.KV("Timeout", fmt.Sprintf("%gs", t.TimeoutSeconds)) + "\n")
	b.WriteString(style.KV("Thresholds", fmt.Sprintf("down after %d, up after %d", t.FailureThreshold, t.RecoveryThreshold)))
	for _, ja := range t.JSONAssert {
		b.WriteString("\n" + style.KV("Assert", ja.String()))
	}
	if st := t.State; st != nil {
		if !st.IncidentStart.IsZero() {
			b.WriteString("\n" + style.KV("Down since", st.IncidentStart.Local().Format(time.DateTime)))
			b.WriteString("\n" + style.KV("Down for", stats.FormatDuration(time.Since(st.IncidentStart))))
		}
		if st.LastOutcome != nil {
			o := st.LastOutcome
			b.WriteString("\n" + style.KV("Last check", o.CheckedAt.Local().Format(time.DateTime)))
			b.WriteString("\n" + style.KV("Last result", outcomeText(*o)))
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), style.Card(t.Status()).Render(b.String()))
	return nil
}

func printOutcome(w io.Writer, o domain.CheckOutcome) {
	dot := style.Dot(domain.StatusUp, false)
	if !o.Success {
		dot = style.Dot(domain.StatusDown, false)
	}
	fmt.Fprintf(w, "%s %s\n", dot, outcomeText(o))
}

func outcomeText(o domain.CheckOutcome) string {
	code := "n/a"
	if o.HTTPStatus != 0 {
		code = fmt.Sprint(o.HTTPStatus)
	}
	s := fmt.Sprintf("HTTP %s in %.0f ms", code, o.LatencyMS)
	if !o.Success {
		s += " (" + string(o.Reason)
		if o.Detail != "" {
			s += ": " + o.Detail
		}
		s += ")"
	}
	return s
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}
