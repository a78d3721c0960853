package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"", DefaultWindow, false},
		{"1h", time.Hour, false},
		{"6h", 6 * time.Hour, false},
		{"12h", 12 * time.Hour, false},
		{"24h", 24 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"30d", 30 * 24 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"0h", 0, true},
		{"-1h", 0, true},
		{"xd", 0, true},
		{"365d", 0, true},
		{"90d", 90 * 24 * time.Hour, false},
		{"0d", 0, true},
		{"-3d", 0, true},
		{"200000d", 0, true},
		{"9223372036854775807d", 0, true},
		{"soon", 0, true},
	}
	for _, c := range cases {
		got, err := ParseWindow(c.in)
		if c.err {
			require.Error(t, err, c.in)
			continue
		}
		require.NoError(t, err, c.in)
		require.Equal(t, c.want, got, c.in)
	}
	for _, p := range Periods {
		_, err := ParseWindow(p)
		require.NoError(t, err, p)
	}
}

func TestPeriodText(t *testing.T) {
	require.Equal(t, "last hour", PeriodText(time.Hour))
	require.Equal(t, "last 24 hours", PeriodText(24*time.Hour))
	require.Equal(t, "last 7 days", PeriodText(7*24*time.Hour))
	require.Equal(t, "last 1m 30s", PeriodText(90*time.Second))
}

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "0s", FormatDuration(0))
	require.Equal(t, "45s", FormatDuration(45*time.Second))
	require.Equal(t, "2h 15m 30s", FormatDuration(2*time.Hour+15*time.Minute+30*time.Second))
	require.Equal(t, "1d 1m", FormatDuration(24*time.Hour+time.Minute))
}
