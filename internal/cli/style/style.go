package style

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/hamed0406/apimonitor/internal/domain"
)

var (
	// Colors
	Primary = lipgloss.Color("#7C3AED")
	Green   = lipgloss.Color("#10B981")
	Red     = lipgloss.Color("#EF4444")
	Yellow  = lipgloss.Color("#F59E0B")
	Cyan    = lipgloss.Color("#06B6D4")
	Dim     = lipgloss.Color("#6B7280")
	White   = lipgloss.Color("#F9FAFB")

	Banner = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
		Foreground(Dim).
		Italic(true)

	Bold    = lipgloss.NewStyle().Bold(true).Foreground(White)
	Up      = lipgloss.NewStyle().Foreground(Green).Bold(true)
	Down    = lipgloss.NewStyle().Foreground(Red).Bold(true)
	Warning = lipgloss.NewStyle().Foreground(Yellow)
	DimText = lipgloss.NewStyle().Foreground(Dim)
	URL     = lipgloss.NewStyle().Foreground(Cyan)

	TableHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Dim).
		PaddingRight(2)

	CardStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#374151")).
		Padding(1, 2).
		MarginBottom(1)

	CardUp   = CardStyle.BorderForeground(Green)
	CardDown = CardStyle.BorderForeground(Red)

	SuccessBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Green).
		Foreground(Green).
		Padding(0, 1)

	// Key-value
	Key = lipgloss.NewStyle().Foreground(Dim).Width(16)
	Val = lipgloss.NewStyle().Foreground(White)
)

// Dot renders a colored status bullet.
func Dot(st domain.Status, paused bool) string {
	switch {
	case paused:
		return DimText.Render("○")
	case st == domain.StatusUp:
		return Up.Render("●")
	case st == domain.StatusDown:
		return Down.Render("●")
	default:
		return Warning.Render("●")
	}
}

func Status(st domain.Status, paused bool) string {
	switch {
	case paused:
		return DimText.Render("PAUSED")
	case st == domain.StatusUp:
		return Up.Render(string(st))
	case st == domain.StatusDown:
		return Down.Render(string(st))
	default:
		return Warning.Render(string(st))
	}
}

func Card(st domain.Status) lipgloss.Style {
	switch st {
	case domain.StatusUp:
		return CardUp
	case domain.StatusDown:
		return CardDown
	default:
		return CardStyle
	}
}

func KV(k, v string) string {
	return Key.Render(k) + Val.Render(v)
}
