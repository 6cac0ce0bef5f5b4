package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/idilsaglam/tracker/internal/catalog"
	"github.com/idilsaglam/tracker/internal/checklist"
	"github.com/idilsaglam/tracker/internal/config"
	"github.com/idilsaglam/tracker/internal/gate"
	"github.com/idilsaglam/tracker/internal/logging"
	"github.com/idilsaglam/tracker/internal/progress"
	"github.com/idilsaglam/tracker/internal/transfer"
	"github.com/idilsaglam/tracker/internal/tui"
	"github.com/idilsaglam/tracker/internal/ui"
)

const (
	watchDebounce = 200 * time.Millisecond
	titleWidth    = 60
)

// Swapped by tests.
var (
	interactive = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
	confirm     = confirmHuh
	runTUI      = tui.Run
)

// Run parses args, dispatches the subcommand and returns an exit code
// (0 ok, 1 error, 2 usage).
func Run(args []string) int {
	cfg, err := config.Parse(args, ui.Out)
	switch {
	case errors.Is(err, arg.ErrHelp), errors.Is(err, arg.ErrVersion):
		return 0
	case errors.Is(err, config.ErrUsage):
		ui.Fail(err.Error())
		return 2
	case err != nil:
		ui.Fail(err.Error())
		return 1
	}
	ui.SetTheme(cfg.Theme)

	if cfg.Command() == "tui" {
		return doTUI(cfg)
	}

	a, err := open(cfg, &ui.Console{}, nil)
	if err != nil {
		ui.Fail(err.Error())
		return 1
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch cfg.Command() {
	case "ls":
		return doList(ctx, a, cfg.Group)
	case "done":
		return doSet(ctx, a, cfg.Done.IDs, setDone)
	case "undo":
		return doSet(ctx, a, cfg.Undo.IDs, setUndo)
	case "toggle":
		return doSet(ctx, a, cfg.Toggle.IDs, setToggle)
	case "stats":
		return doStats(ctx, a)
	case "reconcile":
		return doReconcile(ctx, a)
	case "export":
		return doExport(ctx, a, cfg.Export.Path)
	case "import":
		return doImport(ctx, a, cfg.Import.Path, cfg.Import.Yes)
	}
	ui.Fail("unknown subcommand: " + cfg.Command())
	return 2
}

// -------------- subcommand impls ----------------

func doTUI(cfg *config.Config) int {
	bridge := tui.NewBridge()
	a, err := open(cfg, bridge, bridge.Changed)
	if err != nil {
		ui.Fail(err.Error())
		return 1
	}
	defer a.close()

	deps := tui.Deps{
		Gate:     a.gate,
		Sync:     a.sync,
		Transfer: a.xfer,
		Latch:    a.latch,
		Title:    a.cat.Title,
		Log:      logging.Component(a.log.Logger, "tui"),
	}
	if a.catFromFile {
		w, err := catalog.NewWatcher(a.cfg.Catalog, watchDebounce)
		if err != nil {
			a.clog.Warn("catalog watch disabled", "path", a.cfg.Catalog, "error", err)
		} else {
			defer w.Stop()
			deps.CatalogPath, deps.Watcher = a.cfg.Catalog, w
		}
	}

	if err := runTUI(deps, bridge); err != nil {
		ui.Fail("tui: " + err.Error())
		return 1
	}
	return 0
}

// load applies the stored state before anything else; a command acting on an
// unloaded checklist would reconcile its blank state over the store.
func load(ctx context.Context, a *app) bool {
	if _, err := a.sync.LoadInitial(ctx); err != nil {
		if !errors.Is(err, gate.ErrFailed) {
			ui.Fail("load: " + err.Error())
		}
		return false
	}
	return true
}

func doList(ctx context.Context, a *app, group bool) int {
	if !load(ctx, a) {
		return 1
	}
	th := ui.Current()
	ctls := a.list.Controls()
	done := a.list.CheckedCount()
	text, percent := a.latch.Values()

	header := fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		th.Title.Render(a.cat.Title),
		th.Success.Render(th.SymDone), done,
		th.Pending.Render(th.SymPending), len(ctls)-done,
		th.Accent.Render("Total"), len(ctls),
	)

	var lines []string
	lines = append(lines, header)
	lines = append(lines, th.Muted.Render(ui.ProgressBar(percent, 28))+"  "+text)
	lines = append(lines, "")

	if group {
		lines = append(lines, groupLines(ctls)...)
	} else {
		lines = append(lines, flatLines(ctls)...)
	}
	lines = append(lines, "")
	lines = append(lines, th.Muted.Render("Tip: mark one with `tracker done <id>`"))
	ui.Panel(lines)
	return 0
}

type setMode int

const (
	setDone setMode = iota
	setUndo
	setToggle
)

func doSet(ctx context.Context, a *app, args []string, mode setMode) int {
	ids := make([]string, 0, len(args))
	for _, s := range args {
		id, ok := a.resolveID(s)
		if !ok {
			ui.Fail("unknown item: " + s)
			fmt.Fprintln(ui.ErrOut, ui.Current().Muted.Render("Hint: run `tracker ls` to see valid ids"))
			return 2
		}
		ids = append(ids, id)
	}
	if !load(ctx, a) {
		return 1
	}

	type pending struct {
		id   string
		done <-chan error
	}
	waits := make([]pending, 0, len(ids))
	for _, id := range ids {
		var ch <-chan error
		switch mode {
		case setDone:
			ch = a.sync.OnToggle(id, true)
		case setUndo:
			ch = a.sync.OnToggle(id, false)
		default:
			ch = a.sync.Toggle(id)
		}
		waits = append(waits, pending{id, ch})
	}

	code := 0
	for _, w := range waits {
		select {
		case err := <-w.done:
			if err != nil {
				// The synchronizer has already told the user.
				a.clog.Debug("write failed", "id", w.id, "error", err)
				code = 1
				continue
			}
		case <-ctx.Done():
			ui.Fail(ctx.Err().Error())
			return 1
		}
		checked, _ := a.list.Checked(w.id)
		if checked {
			ui.OK(w.id + " marked done")
		} else {
			ui.OK(w.id + " marked not done")
		}
	}
	if text, _ := a.latch.Values(); text != "" {
		ui.Info(text)
	}
	return code
}

func doStats(ctx context.Context, a *app) int {
	if !load(ctx, a) {
		return 1
	}
	th := ui.Current()
	fromUI := progress.FromUI(a.list)

	fromStore, err := a.sync.StoreStats(ctx)
	if err != nil {
		ui.Fail("stats: " + err.Error())
		return 1
	}
	st, err := a.gate.Wait(ctx)
	if err != nil {
		ui.Fail(err.Error())
		return 1
	}
	recs, err := a.sync.Snapshot(ctx)
	if err != nil {
		ui.Fail("stats: " + err.Error())
		return 1
	}
	orphans, orphansDone := 0, 0
	for _, r := range recs {
		if !a.list.Has(r.ID) {
			orphans++
			if r.Completed {
				orphansDone++
			}
		}
	}

	noun := a.cat.Noun
	ui.Panel([]string{
		th.Title.Render(a.cat.Title),
		fmt.Sprintf("%-18s %s", "Checklist", fromUI.Format(noun)),
		fmt.Sprintf("%-18s %s", "Store", fromStore.Format(noun)),
		fmt.Sprintf("%-18s %d", "Records", len(recs)),
		fmt.Sprintf("%-18s %d (%d completed)", "Orphaned records", orphans, orphansDone),
		th.Muted.Render(fmt.Sprintf("%-18s v%d %s", "Schema", st.Version(), st.Path())),
		"",
		th.Muted.Render(ui.ProgressBar(fromUI.Percent, 28)),
	})
	if fromUI.Completed != fromStore.Completed {
		ui.Warn("checklist and store disagree; run `tracker reconcile`")
	}
	return 0
}

func doReconcile(ctx context.Context, a *app) int {
	if !load(ctx, a) {
		return 1
	}
	rep, err := a.sync.Reconcile(ctx)
	if err != nil {
		ui.Fail("reconcile: " + err.Error())
		return 1
	}
	if rep.Diverged {
		ui.Warn(fmt.Sprintf("store had %d completed, checklist %d; rewrote %d records",
			rep.StoreCompleted, rep.UICompleted, rep.Rewritten))
	} else {
		ui.OK("checklist and store agree")
	}
	if text, _ := a.latch.Values(); text != "" {
		ui.Info(text)
	}
	return 0
}

func doExport(ctx context.Context, a *app, path string) int {
	path, n, err := a.xfer.ExportFile(ctx, path)
	switch {
	case errors.Is(err, transfer.ErrNothingToExport):
		ui.Warn("nothing to export")
		return 1
	case err != nil:
		ui.Fail("export: " + err.Error())
		return 1
	}
	ui.OK(fmt.Sprintf("exported %d records to %s", n, path))
	return 0
}

func doImport(ctx context.Context, a *app, path string, yes bool) int {
	valid, invalid, err := transfer.Peek(path)
	if err != nil {
		ui.Fail(err.Error())
		return 1
	}

	if !yes {
		if !interactive() {
			ui.Fail("import replaces all saved progress; rerun with --yes to confirm")
			return 2
		}
		desc := fmt.Sprintf("%d records will replace all saved progress.", valid)
		if invalid > 0 {
			desc += fmt.Sprintf(" %d invalid entries will be skipped.", invalid)
		}
		ok, err := confirm("Import "+path+"?", desc)
		if err != nil {
			ui.Fail(err.Error())
			return 1
		}
		if !ok {
			ui.Info("import cancelled")
			return 0
		}
	}

	res, err := a.xfer.ImportFile(ctx, path)
	if err != nil {
		ui.Fail(err.Error())
		return 1
	}
	ui.OK(fmt.Sprintf("imported %d records", res.Imported))
	if res.Invalid > 0 {
		ui.Warn(fmt.Sprintf("skipped %d invalid entries", res.Invalid))
	}
	if text, _ := a.latch.Values(); text != "" {
		ui.Info(text)
	}
	return 0
}

func confirmHuh(title, desc string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Description(desc).
		Affirmative("Replace").
		Negative("Cancel").
		Value(&ok).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}

// -------------- rendering helpers --------------

func flatLines(ctls []checklist.Control) []string {
	th := ui.Current()
	if len(ctls) == 0 {
		return []string{th.Muted.Render("no items")}
	}
	out := make([]string, 0, len(ctls))
	for _, c := range ctls {
		box, style := th.BoxUnchecked, th.Muted
		if c.Checked {
			box, style = th.BoxChecked, th.Success
		}
		line := fmt.Sprintf("%s %s  %s", style.Render(box), truncate(c.Item.Title, titleWidth), th.Muted.Render(c.Item.ID))
		if c.Item.Difficulty != "" {
			line += th.Muted.Render(" · " + c.Item.Difficulty)
		}
		out = append(out, line)
	}
	return out
}

// truncate shortens s to at most n runes, ending in "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func groupLines(ctls []checklist.Control) []string {
	th := ui.Current()
	var pend, done []checklist.Control
	for _, c := range ctls {
		if c.Checked {
			done = append(done, c)
		} else {
			pend = append(pend, c)
		}
	}
	var lines []string
	lines = append(lines, th.Accent.Render("Pending"))
	if len(pend) == 0 {
		lines = append(lines, th.Muted.Render("(none)"))
	} else {
		lines = append(lines, flatLines(pend)...)
	}
	lines = append(lines, "")
	lines = append(lines, th.Accent.Render("Done"))
	if len(done) == 0 {
		lines = append(lines, th.Muted.Render("(none)"))
	} else {
		lines = append(lines, flatLines(done)...)
	}
	return lines
}
