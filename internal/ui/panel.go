package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Out is where Panel and the status helpers write. Tests swap it.
var (
	Out    io.Writer = os.Stdout
	ErrOut io.Writer = os.Stderr
)

func OK(msg string)   { fmt.Fprintln(Out, current.Success.Render(current.SymDone+" "+msg)) }
func Info(msg string) { fmt.Fprintln(Out, current.Accent.Render("ℹ "+msg)) }
func Warn(msg string) { fmt.Fprintln(ErrOut, current.Pending.Render("⚠ "+msg)) }
func Fail(msg string) { fmt.Fprintln(ErrOut, current.Error.Render("✖ "+msg)) }

// Panel draws a framed box using the current theme.
func Panel(lines []string) {
	fmt.Fprintln(Out, PanelString(strings.Join(lines, "\n")))
}

// PanelString frames inner with the theme border.
func PanelString(inner string) string {
	border := lipgloss.NewStyle().
		Border(current.Border).
		BorderForeground(lipgloss.Color("8")).
		Padding(0, 1)
	return border.Render(inner)
}

// ProgressBar renders a fill bar for percent (0-100) followed by the percentage.
func ProgressBar(percent, width int) string {
	if width < 5 {
		width = 5
	}
	percent = min(max(percent, 0), 100)
	filled := percent * width / 100
	bar := strings.Repeat(current.FillFull, filled) + strings.Repeat(current.FillEmpty, width-filled)
	return fmt.Sprintf("%s %3d%%", bar, percent)
}
