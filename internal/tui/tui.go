// Package tui is the interactive checklist.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	progressbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/idilsaglam/tracker/internal/catalog"
	"github.com/idilsaglam/tracker/internal/gate"
	"github.com/idilsaglam/tracker/internal/progress"
	"github.com/idilsaglam/tracker/internal/store"
	"github.com/idilsaglam/tracker/internal/syncer"
	"github.com/idilsaglam/tracker/internal/transfer"
	"github.com/idilsaglam/tracker/internal/ui"
)

// opTimeout bounds each store round trip started from the UI.
const opTimeout = 30 * time.Second

// Deps is what the model drives.
type Deps struct {
	Gate     *gate.Gate[store.Store]
	Sync     *syncer.Synchronizer
	Transfer *transfer.Service
	// Latch must be the display and fill target of Sync's aggregator.
	Latch *progress.Latch
	Title string
	// CatalogPath is re-read when Watcher reports a change. Watcher may be nil.
	CatalogPath string
	Watcher     *catalog.Watcher
	// ExportDir is where x writes. Default: current directory.
	ExportDir string
	Now       func() time.Time
	Log       *slog.Logger
}

type mode int

const (
	modeList mode = iota
	modeImportPath
	modeImportConfirm
)

type (
	gateMsg    struct{ err error }
	loadedMsg  struct{ err error }
	changedMsg struct{}
	noticeMsg  struct {
		level ui.Level
		text  string
	}
	toggledMsg struct {
		id  string
		err error
	}
	reconciledMsg struct {
		rep syncer.ReconcileReport
		err error
	}
	exportedMsg struct {
		path string
		n    int
		err  error
	}
	peekedMsg struct {
		path           string
		valid, invalid int
		err            error
	}
	importedMsg struct {
		res transfer.Result
		err error
	}
	catalogMsg    struct{}
	catalogErrMsg struct{ err error }
)

var (
	toggleKey    = key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle"))
	reconcileKey = key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reconcile"))
	reloadKey    = key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reload from store"))
	exportKey    = key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "export"))
	importKey    = key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "import"))
)

// Model is the Bubble Tea model of the checklist.
type Model struct {
	deps Deps

	list    list.Model
	spinner spinner.Model
	bar     progressbar.Model
	ti      textinput.Model

	mode        mode
	importPath  string
	opening     bool
	storeErr    error
	status      string
	statusLevel ui.Level

	width, height int
}

// New builds the model. Its Init starts loading once the store is ready.
func New(deps Deps) Model {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Title == "" {
		deps.Title = "Progress"
	}
	th := ui.Current()

	l := list.New(rowsFrom(deps.Sync.Checklist().Controls()), rowDelegate{}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.HelpStyle = th.Muted
	l.Styles.PaginationStyle = th.Muted
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("item", "items")
	extra := func() []key.Binding { return []key.Binding{toggleKey, reconcileKey, reloadKey, exportKey, importKey} }
	l.AdditionalShortHelpKeys = extra
	l.AdditionalFullHelpKeys = extra

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(th.Accent))

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "path to progress file..."
	ti.CharLimit = 4096

	w, h := termSize()
	m := Model{
		deps:    deps,
		list:    l,
		spinner: sp,
		bar:     progressbar.New(progressbar.WithDefaultGradient(), progressbar.WithoutPercentage()),
		ti:      ti,
		opening: deps.Gate.State() == gate.Opening,
	}
	return m.resize(w, h)
}

// Run starts the program and blocks until the user quits.
func Run(deps Deps, bridge *Bridge) error {
	opts := []tea.ProgramOption{}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		opts = append(opts, tea.WithAltScreen())
	}
	p := tea.NewProgram(New(deps), opts...)
	if bridge != nil {
		bridge.attach(p)
	}
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitGate(), m.load(), m.waitCatalog())
}

func (m Model) waitGate() tea.Cmd {
	g := m.deps.Gate
	return func() tea.Msg {
		<-g.Done()
		_, err := g.TryGet()
		return gateMsg{err: err}
	}
}

func (m Model) load() tea.Cmd {
	s := m.deps.Sync
	return func() tea.Msg {
		// Waits for the gate inside the synchronizer.
		_, err := s.LoadInitial(context.Background())
		return loadedMsg{err: err}
	}
}

func (m Model) refresh() tea.Cmd {
	s := m.deps.Sync
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		_, err := s.RefreshAllFromStore(ctx)
		return loadedMsg{err: err}
	}
}

func (m Model) waitCatalog() tea.Cmd {
	w := m.deps.Watcher
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case _, ok := <-w.Changed():
			if !ok {
				return nil
			}
			return catalogMsg{}
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			return catalogErrMsg{err: err}
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.resize(msg.Width, msg.Height), nil

	case spinner.TickMsg:
		if !m.opening {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case gateMsg:
		m.opening = false
		m.storeErr = msg.err
		return m, nil

	case loadedMsg:
		if msg.err != nil && !errors.Is(msg.err, gate.ErrFailed) {
			m.setStatus(ui.LevelError, "load: "+msg.err.Error())
		}
		m.syncRows()
		return m, nil

	case changedMsg:
		m.syncRows()
		return m, nil

	case noticeMsg:
		m.setStatus(msg.level, msg.text)
		return m, nil

	case toggledMsg:
		if msg.err != nil && !errors.Is(msg.err, gate.ErrFailed) {
			m.setStatus(ui.LevelError, fmt.Sprintf("could not save %s: %v", msg.id, msg.err))
		}
		m.syncRows()
		return m, nil

	case reconciledMsg:
		switch {
		case msg.err != nil:
			m.setStatus(ui.LevelError, "reconcile: "+msg.err.Error())
		case msg.rep.Diverged:
			m.setStatus(ui.LevelWarn, fmt.Sprintf("store had %d completed, checklist %d; rewrote %d records",
				msg.rep.StoreCompleted, msg.rep.UICompleted, msg.rep.Rewritten))
		default:
			m.setStatus(ui.LevelInfo, "checklist and store agree")
		}
		m.syncRows()
		return m, nil

	case exportedMsg:
		switch {
		case errors.Is(msg.err, transfer.ErrNothingToExport):
			m.setStatus(ui.LevelWarn, "nothing to export")
		case msg.err != nil:
			m.setStatus(ui.LevelError, "export: "+msg.err.Error())
		default:
			m.setStatus(ui.LevelInfo, fmt.Sprintf("exported %d records to %s", msg.n, msg.path))
		}
		return m, nil

	case peekedMsg:
		if msg.err != nil {
			m.mode = modeList
			m.setStatus(ui.LevelError, msg.err.Error())
			return m, nil
		}
		m.mode = modeImportConfirm
		m.importPath = msg.path
		text := fmt.Sprintf("replace all progress with %d records from %s?", msg.valid, filepath.Base(msg.path))
		if msg.invalid > 0 {
			text += fmt.Sprintf(" (%d invalid entries skipped)", msg.invalid)
		}
		m.setStatus(ui.LevelWarn, text+" [y/N]")
		return m, nil

	case importedMsg:
		m.mode = modeList
		if msg.err != nil {
			m.setStatus(ui.LevelError, "import: "+msg.err.Error())
		} else {
			text := fmt.Sprintf("imported %d records", msg.res.Imported)
			if msg.res.Invalid > 0 {
				text += fmt.Sprintf(", skipped %d invalid", msg.res.Invalid)
			}
			m.setStatus(ui.LevelInfo, text)
		}
		m.syncRows()
		return m, nil

	case catalogMsg:
		return m, tea.Batch(m.reloadCatalog(), m.waitCatalog())

	case catalogErrMsg:
		m.setStatus(ui.LevelWarn, "catalog watch: "+msg.err.Error())
		return m, m.waitCatalog()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeImportPath:
		switch msg.String() {
		case "enter":
			path := strings.TrimSpace(m.ti.Value())
			m.ti.SetValue("")
			m.ti.Blur()
			if path == "" {
				m.mode = modeList
				return m, nil
			}
			return m, peekFile(path)
		case "esc":
			m.mode = modeList
			m.ti.SetValue("")
			m.ti.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.ti, cmd = m.ti.Update(msg)
		return m, cmd

	case modeImportConfirm:
		m.mode = modeList
		if msg.String() == "y" || msg.String() == "Y" {
			m.setStatus(ui.LevelInfo, "importing...")
			return m, m.importFile(m.importPath)
		}
		m.setStatus(ui.LevelInfo, "import cancelled")
		return m, nil
	}

	// While the filter input is active every key belongs to it.
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case msg.String() == "q" || msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, toggleKey):
		r, ok := m.list.SelectedItem().(row)
		if !ok {
			return m, nil
		}
		done := m.deps.Sync.Toggle(r.Item.ID)
		m.syncRows()
		return m, func() tea.Msg { return toggledMsg{id: r.Item.ID, err: <-done} }
	case key.Matches(msg, reconcileKey):
		return m, m.reconcile()
	case key.Matches(msg, reloadKey):
		return m, m.refresh()
	case key.Matches(msg, exportKey):
		return m, m.export()
	case key.Matches(msg, importKey):
		m.mode = modeImportPath
		return m, m.ti.Focus()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) reconcile() tea.Cmd {
	s := m.deps.Sync
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		rep, err := s.Reconcile(ctx)
		return reconciledMsg{rep: rep, err: err}
	}
}

func (m Model) export() tea.Cmd {
	svc, dir, now := m.deps.Transfer, m.deps.ExportDir, m.deps.Now()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		path, n, err := svc.ExportFile(ctx, filepath.Join(dir, transfer.DefaultFileName(now)))
		return exportedMsg{path: path, n: n, err: err}
	}
}

func peekFile(path string) tea.Cmd {
	return func() tea.Msg {
		valid, invalid, err := transfer.Peek(path)
		return peekedMsg{path: path, valid: valid, invalid: invalid, err: err}
	}
}

func (m Model) importFile(path string) tea.Cmd {
	svc := m.deps.Transfer
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		res, err := svc.ImportFile(ctx, path)
		return importedMsg{res: res, err: err}
	}
}

func (m Model) reloadCatalog() tea.Cmd {
	path, s, log := m.deps.CatalogPath, m.deps.Sync, m.deps.Log
	return func() tea.Msg {
		c, _, err := catalog.Load(path)
		if err != nil {
			log.Warn("catalog reload failed", "path", path, "error", err)
			return noticeMsg{level: ui.LevelError, text: "catalog: " + err.Error()}
		}
		s.Checklist().Replace(c.Items())
		log.Info("catalog reloaded", "path", path, "items", s.Checklist().Len())
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		_, err = s.RefreshAllFromStore(ctx)
		return loadedMsg{err: err}
	}
}

func (m *Model) setStatus(level ui.Level, text string) {
	m.statusLevel = level
	m.status = text
}

// syncRows copies checklist state into the list, keeping the cursor.
func (m *Model) syncRows() {
	idx := m.list.Index()
	m.list.SetItems(rowsFrom(m.deps.Sync.Checklist().Controls()))
	if n := len(m.list.Items()); n > 0 {
		m.list.Select(min(idx, n-1))
	}
}

func (m Model) resize(w, h int) Model {
	m.width, m.height = w, h
	m.bar.Width = max(w-12, 10)
	m.list.SetSize(max(w-4, 10), max(h-9, 3))
	return m
}

func (m Model) View() string {
	th := ui.Current()
	cl := m.deps.Sync.Checklist()
	done := cl.CheckedCount()
	text, percent := m.deps.Latch.Values()

	header := fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		th.Title.Render(m.deps.Title),
		th.Success.Render(th.SymDone), done,
		th.Pending.Render(th.SymPending), cl.Len()-done,
		th.Accent.Render("Total"), cl.Len(),
	)

	var b strings.Builder
	b.WriteString(header + "\n")
	switch {
	case m.opening:
		b.WriteString(m.spinner.View() + " " + th.Muted.Render("opening store...") + "\n")
	case m.storeErr != nil:
		b.WriteString(th.Error.Render("store unavailable: progress will not be saved") + "\n")
	default:
		b.WriteString(fmt.Sprintf("%s %s\n", m.bar.ViewAs(float64(percent)/100), th.Muted.Render(text)))
	}
	b.WriteString(m.list.View())

	switch m.mode {
	case modeImportPath:
		box := lipgloss.NewStyle().Border(th.Border).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
		b.WriteString("\n" + box.Render("Import progress file\n"+m.ti.View()))
	default:
		if m.status != "" {
			b.WriteString("\n" + statusStyle(m.statusLevel).Render(m.status))
		}
	}
	return ui.PanelString(b.String())
}

func statusStyle(l ui.Level) lipgloss.Style {
	th := ui.Current()
	switch l {
	case ui.LevelError:
		return th.Error
	case ui.LevelWarn:
		return th.Pending
	default:
		return th.Muted
	}
}

func termSize() (int, int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		return 80, 24
	}
	return w, h
}
