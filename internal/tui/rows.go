package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/tracker/internal/checklist"
	"github.com/idilsaglam/tracker/internal/ui"
)

// row adapts a checklist control to bubbles/list.Item
type row struct {
	checklist.Control
}

func (r row) Title() string       { return r.Item.Title }
func (r row) Description() string { return r.Item.Section }
func (r row) FilterValue() string { return r.Item.ID + " " + r.Item.Title + " " + r.Item.Section }

func rowsFrom(ctls []checklist.Control) []list.Item {
	out := make([]list.Item, len(ctls))
	for i, c := range ctls {
		out[i] = row{c}
	}
	return out
}

// Single line per row: cursor, box, title, then section and difficulty muted.
type rowDelegate struct{}

func (d rowDelegate) Height() int                               { return 1 }
func (d rowDelegate) Spacing() int                              { return 0 }
func (d rowDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d rowDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	r, ok := item.(row)
	if !ok {
		return
	}
	th := ui.Current()

	title := r.Item.Title
	if title == "" {
		title = r.Item.ID
	}
	box := th.Muted.Render(th.BoxUnchecked)
	if r.Checked {
		box = th.Success.Render(th.BoxChecked)
	}
	if r.Completed {
		title = th.Muted.Strikethrough(true).Render(title)
	}

	meta := r.Item.Section
	if r.Item.Difficulty != "" {
		if meta != "" {
			meta += " · "
		}
		meta += r.Item.Difficulty
	}
	if meta != "" {
		meta = "  " + th.Muted.Render(meta)
	}

	prefix := "  "
	if index == m.Index() {
		prefix = th.Accent.Render("> ")
	}
	fmt.Fprintf(w, "%s%s %s%s", prefix, box, title, meta)
}
