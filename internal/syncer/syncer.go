// Package syncer keeps the rendered checklist and the durable store consistent.
//
// Every store access made on behalf of the checklist runs on one writer
// goroutine, in issuance order, so the last toggle issued for an id is also the
// last write for it. UI changes are applied before the write is queued
// (optimistic update); a failed write reverts the control to what the store
// holds. Whenever the queue drains after a toggle, the synchronizer reconciles:
// if the UI-derived and store-derived completed counts differ, the UI state is
// written over the store.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/idilsaglam/tracker/internal/checklist"
	"github.com/idilsaglam/tracker/internal/gate"
	"github.com/idilsaglam/tracker/internal/model"
	"github.com/idilsaglam/tracker/internal/progress"
	"github.com/idilsaglam/tracker/internal/store"
	"github.com/idilsaglam/tracker/internal/ui"
)

var (
	// ErrUnknownItem is reported for ids that are not rendered.
	ErrUnknownItem = errors.New("syncer: unknown item")
	// ErrClosed is reported for operations issued after Close.
	ErrClosed = errors.New("syncer: closed")
)

// Options tune a Synchronizer. Zero values pick defaults.
type Options struct {
	Logger   *slog.Logger
	Notifier ui.Notifier
	// Now stamps records. Default: time.Now.
	Now func() time.Time
	// OnChange is called after the checklist or the rendered stats change
	// outside of the caller's own goroutine.
	OnChange func()
	// QueueSize bounds the pending operation queue. Default: 256.
	QueueSize int
}

// LoadReport summarizes a bulk store-to-UI pass.
type LoadReport struct {
	Items   int // rendered items visited
	Checked int // items the store marks completed
	Failed  int // items whose read failed
	Skipped int // items left alone because a write for them is pending
}

// ReconcileReport summarizes a reconciliation.
type ReconcileReport struct {
	UICompleted    int
	StoreCompleted int
	Diverged       bool
	Rewritten      int
}

type job struct {
	name string
	run  func(ctx context.Context, st store.Store) error
	done chan error
	// toggle marks a per-item write; the queue draining after one triggers reconciliation.
	toggle bool
	// bulk marks a store-authoritative replacement, which cancels a pending reconciliation.
	bulk bool
	// settles marks a job that reconciles by itself.
	settles bool
}

// Synchronizer mediates between a Checklist and the store behind a readiness gate.
type Synchronizer struct {
	gate *gate.Gate[store.Store]
	list *checklist.Checklist
	agg  *progress.Aggregator

	log      *slog.Logger
	notify   ui.Notifier
	now      func() time.Time
	onChange func()

	ctx    context.Context
	cancel context.CancelFunc

	issueMu sync.Mutex // orders UI change + enqueue; guards closed
	closed  bool
	jobs    chan job
	stopped chan struct{}

	pendingMu sync.Mutex
	pending   map[string]int    // queued writes per id
	latest    map[string]uint64 // sequence of the last write issued per id
	seq       uint64

	// Owned by the writer goroutine.
	dirty bool

	failOnce sync.Once
}

// New starts a Synchronizer. It does not wait for the gate.
func New(g *gate.Gate[store.Store], list *checklist.Checklist, agg *progress.Aggregator, opts Options) *Synchronizer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = ui.Discard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if agg == nil {
		agg = progress.New(nil, nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Synchronizer{
		gate:     g,
		list:     list,
		agg:      agg,
		log:      opts.Logger.With("component", "syncer"),
		notify:   opts.Notifier,
		now:      opts.Now,
		onChange: opts.OnChange,
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(chan job, opts.QueueSize),
		stopped:  make(chan struct{}),
		pending:  make(map[string]int),
		latest:   make(map[string]uint64),
	}
	go s.run()
	return s
}

// Checklist returns the checklist being synchronized.
func (s *Synchronizer) Checklist() *checklist.Checklist { return s.list }

func (s *Synchronizer) run() {
	defer close(s.stopped)
	for j := range s.jobs {
		st, err := s.store()
		if err == nil {
			err = j.run(s.ctx, st)
		}
		if err != nil {
			s.log.Debug("operation failed", "op", j.name, "error", err)
		}

		switch {
		case j.bulk, j.settles:
			s.dirty = false
		case j.toggle:
			s.dirty = true
		}
		if s.dirty && st != nil && len(s.jobs) == 0 {
			s.dirty = false
			if _, rerr := s.reconcile(s.ctx, st); rerr != nil {
				s.log.Error("reconcile after write failed", "error", rerr)
			}
		}

		if j.done != nil {
			j.done <- err
		}
	}
}

// store waits for the gate. A failed gate is surfaced once as a standing warning.
func (s *Synchronizer) store() (store.Store, error) {
	st, err := s.gate.Wait(s.ctx)
	if err != nil {
		if errors.Is(err, gate.ErrFailed) {
			s.failOnce.Do(func() {
				s.log.Error("store unavailable", "error", err)
				s.notify.Notify(ui.LevelWarn, "progress cannot be saved: "+err.Error())
			})
		}
		return nil, err
	}
	return st, nil
}

// enqueue must be called with issueMu held.
func (s *Synchronizer) enqueueLocked(j job) error {
	if s.closed {
		return ErrClosed
	}
	s.jobs <- j
	return nil
}

func (s *Synchronizer) enqueue(j job) error {
	s.issueMu.Lock()
	defer s.issueMu.Unlock()
	return s.enqueueLocked(j)
}

// do queues fn and waits for its result.
func (s *Synchronizer) do(ctx context.Context, j job) error {
	done := make(chan error, 1)
	j.done = done
	if err := s.enqueue(j); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// The job still runs; there is no cancellation of queued store work.
		return ctx.Err()
	}
}

func (s *Synchronizer) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// LoadInitial applies the stored state of every rendered item to the checklist
// and renders the resulting stats. A failed read of one item is logged and
// leaves that item alone; it does not stop the others.
func (s *Synchronizer) LoadInitial(ctx context.Context) (LoadReport, error) {
	return s.applyAll(ctx, "load")
}

// RefreshAllFromStore re-reads every rendered item and overwrites the UI
// state with the store's (store wins).
func (s *Synchronizer) RefreshAllFromStore(ctx context.Context) (LoadReport, error) {
	return s.applyAll(ctx, "refresh")
}

func (s *Synchronizer) applyAll(ctx context.Context, name string) (LoadReport, error) {
	var rep LoadReport
	err := s.do(ctx, job{name: name, run: func(ctx context.Context, st store.Store) error {
		rep = s.applyFromStore(ctx, st)
		return nil
	}})
	return rep, err
}

func (s *Synchronizer) applyFromStore(ctx context.Context, st store.Store) LoadReport {
	var rep LoadReport
	for _, id := range s.list.IDs() {
		rep.Items++
		rec, ok, err := st.Get(ctx, id)
		if err != nil {
			rep.Failed++
			s.log.Error("load item failed", "id", id, "error", err)
			continue
		}
		if s.hasPending(id) {
			rep.Skipped++
			continue
		}
		checked := ok && rec.Completed
		if checked {
			rep.Checked++
		}
		s.list.Set(id, checked)
	}
	if rep.Failed > 0 {
		s.notify.Notify(ui.LevelError, fmt.Sprintf("could not load %d of %d items", rep.Failed, rep.Items))
	}
	s.agg.RenderUI(s.list)
	s.changed()
	s.log.Debug("applied store state", "items", rep.Items, "checked", rep.Checked, "failed", rep.Failed, "skipped", rep.Skipped)
	return rep
}

// OnToggle marks id completed or not. The checklist and the rendered stats
// change before OnToggle returns; the durable write is queued. The returned
// channel yields the write's outcome once (nil on success). If the write fails
// the control is reverted to the stored state.
func (s *Synchronizer) OnToggle(id string, completed bool) <-chan error {
	done := make(chan error, 1)

	s.issueMu.Lock()
	defer s.issueMu.Unlock()
	if s.closed {
		done <- ErrClosed
		return done
	}
	if !s.list.Set(id, completed) {
		done <- fmt.Errorf("%w: %s", ErrUnknownItem, id)
		return done
	}
	s.agg.RenderUI(s.list)

	seq := s.track(id)
	rec := model.NewRecord(id, completed, s.now())
	_ = s.enqueueLocked(job{
		name:   "put",
		toggle: true,
		done:   done,
		run: func(ctx context.Context, st store.Store) error {
			return s.persist(ctx, st, rec, seq)
		},
	})
	return done
}

// Toggle flips the current state of id.
func (s *Synchronizer) Toggle(id string) <-chan error {
	checked, ok := s.list.Checked(id)
	if !ok {
		done := make(chan error, 1)
		done <- fmt.Errorf("%w: %s", ErrUnknownItem, id)
		return done
	}
	return s.OnToggle(id, !checked)
}

func (s *Synchronizer) persist(ctx context.Context, st store.Store, rec model.Record, seq uint64) error {
	err := st.Put(ctx, rec)
	latest := s.untrack(rec.ID, seq)
	if err == nil {
		s.log.Debug("saved", "id", rec.ID, "completed", rec.Completed)
		return nil
	}

	s.log.Error("save failed", "id", rec.ID, "completed", rec.Completed, "error", err)
	s.notify.Notify(ui.LevelError, fmt.Sprintf("could not save %s: %v", rec.ID, err))
	if latest {
		s.revert(ctx, st, rec.ID)
	}
	return err
}

// revert puts the control back to the stored state (absent means unchecked).
func (s *Synchronizer) revert(ctx context.Context, st store.Store, id string) {
	rec, ok, err := st.Get(ctx, id)
	if err != nil {
		s.log.Error("revert read failed", "id", id, "error", err)
		return
	}
	s.list.Set(id, ok && rec.Completed)
	s.agg.RenderUI(s.list)
	s.changed()
}

func (s *Synchronizer) track(id string) uint64 {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.seq++
	s.pending[id]++
	s.latest[id] = s.seq
	return s.seq
}

// untrack reports whether seq was the last write issued for id.
func (s *Synchronizer) untrack(id string, seq uint64) bool {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if s.pending[id]--; s.pending[id] <= 0 {
		delete(s.pending, id)
	}
	return s.latest[id] == seq
}

func (s *Synchronizer) hasPending(id string) bool {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return s.pending[id] > 0
}

// Reconcile compares the completed count derived from the checklist with the
// store's completed index count. When they differ the UI wins: every rendered
// item is written with its UI state and every completed record without a
// rendered item is overwritten as not completed, in one transaction.
func (s *Synchronizer) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var rep ReconcileReport
	err := s.do(ctx, job{name: "reconcile", settles: true, run: func(ctx context.Context, st store.Store) error {
		var err error
		rep, err = s.reconcile(ctx, st)
		return err
	}})
	return rep, err
}

func (s *Synchronizer) reconcile(ctx context.Context, st store.Store) (ReconcileReport, error) {
	rep := ReconcileReport{UICompleted: s.list.CheckedCount()}

	storeDone, err := st.CountWhere(ctx, true)
	if err != nil {
		return rep, fmt.Errorf("count completed: %w", err)
	}
	rep.StoreCompleted = storeDone

	if rep.UICompleted != rep.StoreCompleted {
		rep.Diverged = true
		recs, err := s.uiTruth(ctx, st)
		if err != nil {
			return rep, err
		}
		if err := store.PutAll(ctx, st, recs); err != nil {
			s.notify.Notify(ui.LevelError, "could not repair stored progress: "+err.Error())
			return rep, fmt.Errorf("rewrite: %w", err)
		}
		rep.Rewritten = len(recs)
		rep.StoreCompleted = rep.UICompleted
		s.log.Warn("store diverged from checklist; rewrote from checklist",
			"ui_completed", rep.UICompleted, "store_completed", storeDone, "records", len(recs))
	}

	s.agg.Render(progress.Compute(rep.StoreCompleted, s.list.Len()))
	s.changed()
	return rep, nil
}

// uiTruth is the record set that makes the store agree with the checklist:
// one record per rendered item plus a not-completed overwrite of every
// completed record that has no rendered item.
func (s *Synchronizer) uiTruth(ctx context.Context, st store.Store) ([]model.Record, error) {
	now := s.now().UnixMilli()
	recs := s.list.Records(now)
	all, err := st.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	for _, r := range all {
		if r.Completed && !s.list.Has(r.ID) {
			recs = append(recs, model.NewRecord(r.ID, false, time.UnixMilli(now)))
		}
	}
	return recs, nil
}

// StoreStats renders and returns the store-derived stats: the completed index
// count against the rendered total.
func (s *Synchronizer) StoreStats(ctx context.Context) (progress.Stats, error) {
	var stats progress.Stats
	err := s.do(ctx, job{name: "stats", run: func(ctx context.Context, st store.Store) error {
		var err error
		stats, err = progress.FromStore(ctx, st, s.list.Len())
		if err != nil {
			return err
		}
		s.agg.Render(stats)
		return nil
	}})
	return stats, err
}

// Snapshot returns every stored record once all earlier operations have run.
func (s *Synchronizer) Snapshot(ctx context.Context) ([]model.Record, error) {
	var recs []model.Record
	err := s.do(ctx, job{name: "snapshot", run: func(ctx context.Context, st store.Store) error {
		var err error
		recs, err = st.GetAll(ctx)
		return err
	}})
	return recs, err
}

// Replace swaps the whole record collection for recs in one write
// transaction, then refreshes the checklist from the store.
func (s *Synchronizer) Replace(ctx context.Context, recs []model.Record) (LoadReport, error) {
	var rep LoadReport
	err := s.do(ctx, job{name: "replace", bulk: true, run: func(ctx context.Context, st store.Store) error {
		if err := store.ReplaceAll(ctx, st, recs); err != nil {
			return fmt.Errorf("replace: %w", err)
		}
		rep = s.applyFromStore(ctx, st)
		return nil
	}})
	return rep, err
}

// Flush waits until every operation issued before it has run.
func (s *Synchronizer) Flush(ctx context.Context) error {
	return s.do(ctx, job{name: "flush", run: func(context.Context, store.Store) error { return nil }})
}

// Close stops accepting operations and waits for the queue to drain. If ctx
// ends first, waiting for the store is abandoned and Close returns ctx.Err().
func (s *Synchronizer) Close(ctx context.Context) error {
	s.issueMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.jobs)
	}
	s.issueMu.Unlock()

	select {
	case <-s.stopped:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-s.stopped
		return ctx.Err()
	}
}
