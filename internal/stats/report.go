package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/hamed0406/apimonitor/internal/domain"
)

// DailyReport holds one entry per stored target for [From, To). An entry
// whose aggregation failed carries Error and no Summary.
type DailyReport struct {
	From    time.Time     `json:"from"`
	To      time.Time     `json:"to"`
	Entries []ReportEntry `json:"entries"`
}

type ReportEntry struct {
	TargetID domain.TargetID `json:"target_id"`
	Name     string          `json:"name"`
	URL      string          `json:"url"`
	Status   domain.Status   `json:"status"`
	Paused   bool            `json:"paused"`
	Summary  *Summary        `json:"summary,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Failed returns the number of entries that carry an error.
func (r DailyReport) Failed() int {
	n := 0
	for _, e := range r.Entries {
		if e.Error != "" {
			n++
		}
	}
	return n
}

// FormatReport renders the report as a plain-text message. Dates use loc.
func FormatReport(r DailyReport, loc *time.Location) (title, text string) {
	if loc == nil {
		loc = time.UTC
	}
	title = "☀️ Daily report for " + r.To.In(loc).Format("02-01-2006")
	if len(r.Entries) == 0 {
		return title, "No targets are monitored."
	}

	var b strings.Builder
	for i, e := range r.Entries {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s %s (ID: %s)\n", statusIcon(e.Status, e.Paused), e.Name, e.TargetID)
		switch {
		case e.Error != "":
			fmt.Fprintf(&b, "  - error: %s\n", e.Error)
		case e.Summary == nil || e.Summary.NoData:
			b.WriteString("  - no data\n")
		default:
			s := e.Summary
			fmt.Fprintf(&b, "  - Uptime: %.2f%%\n", s.UptimePct)
			fmt.Fprintf(&b, "  - Incidents: %d\n", s.Incidents)
			fmt.Fprintf(&b, "  - Downtime: %s\n", FormatDuration(s.Downtime()))
			fmt.Fprintf(&b, "  - Avg response: %d ms\n", int(s.LatencyMeanMS))
		}
	}
	return title, b.String()
}

func statusIcon(st domain.Status, paused bool) string {
	switch {
	case paused:
		return "⏸️"
	case st == domain.StatusUp:
		return "🟢"
	case st == domain.StatusDown:
		return "🔴"
	default:
		return "⚪"
	}
}

// FormatDuration renders d as "1d 2h 15m 30s", omitting zero parts.
func FormatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	days, rem := total/86400, total%86400
	hours, rem := rem/3600, rem%3600
	minutes, seconds := rem/60, rem%60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, " ")
}
