package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme bundles palette + symbols.
// All UI helpers pull from `current`.
type Theme struct {
	Name                                          string
	Title, Muted, Accent, Success, Error, Pending lipgloss.Style
	BoxUnchecked, BoxChecked                      string
	Border                                        lipgloss.Border
	FillFull, FillEmpty                           string
	SymDone, SymPending                           string
}

var current = themeFor("classic")

// SetTheme switches the theme. Unknown names fall back to classic.
func SetTheme(name string) { current = themeFor(name) }

// Current exposes what renderers need.
func Current() Theme { return current }

// Themes lists the accepted theme names.
func Themes() []string { return []string{"classic", "neon", "mono"} }

func themeFor(name string) Theme {
	switch strings.ToLower(name) {
	case "neon":
		return Theme{
			Name:    "neon",
			Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
			Muted:   lipgloss.NewStyle().Faint(true),
			Accent:  lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
			Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
			Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
			Pending: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),

			BoxUnchecked: "◻", BoxChecked: "◼",
			Border:   lipgloss.RoundedBorder(),
			FillFull: "█", FillEmpty: "░",
			SymDone: "✔", SymPending: "•",
		}
	case "mono":
		plain := lipgloss.NewStyle()
		return Theme{
			Name:  "mono",
			Title: plain, Muted: plain, Accent: plain,
			Success: plain, Error: plain, Pending: plain,

			BoxUnchecked: "[ ]", BoxChecked: "[x]",
			Border:   lipgloss.NormalBorder(),
			FillFull: "#", FillEmpty: "-",
			SymDone: "x", SymPending: "-",
		}
	default:
		return Theme{
			Name:    "classic",
			Title:   lipgloss.NewStyle().Bold(true),
			Muted:   lipgloss.NewStyle().Faint(true),
			Accent:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
			Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
			Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
			Pending: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),

			BoxUnchecked: "☐", BoxChecked: "☑",
			Border:   lipgloss.RoundedBorder(),
			FillFull: "█", FillEmpty: "░",
			SymDone: "✔", SymPending: "•",
		}
	}
}
