package stats

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultWindow = 24 * time.Hour
	MaxWindow     = 90 * 24 * time.Hour
)

// Periods are the named windows offered to users.
var Periods = []string{"1h", "6h", "12h", "24h", "7d", "30d"}

// ParseWindow accepts a day count ("7d") or any Go duration ("90m", "24h").
// An empty string selects DefaultWindow.
func ParseWindow(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultWindow, nil
	}
	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid window %q", s)
		}
		if n < 1 || n > int(MaxWindow/(24*time.Hour)) {
			return 0, fmt.Errorf("window %q out of range (0, %s]", s, FormatDuration(MaxWindow))
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, fmt.Errorf("invalid window %q", s)
		}
	}
	if d <= 0 || d > MaxWindow {
		return 0, fmt.Errorf("window %q out of range (0, %s]", s, FormatDuration(MaxWindow))
	}
	return d, nil
}

// PeriodText renders a window for humans, e.g. "last 7 days".
func PeriodText(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "last hour"
	case d%(24*time.Hour) == 0 && d > 24*time.Hour:
		return fmt.Sprintf("last %d days", d/(24*time.Hour))
	case d%time.Hour == 0:
		return fmt.Sprintf("last %d hours", d/time.Hour)
	default:
		return "last " + FormatDuration(d)
	}
}
