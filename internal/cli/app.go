package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/idilsaglam/tracker/internal/catalog"
	"github.com/idilsaglam/tracker/internal/checklist"
	"github.com/idilsaglam/tracker/internal/config"
	"github.com/idilsaglam/tracker/internal/gate"
	"github.com/idilsaglam/tracker/internal/logging"
	"github.com/idilsaglam/tracker/internal/progress"
	"github.com/idilsaglam/tracker/internal/store"
	"github.com/idilsaglam/tracker/internal/store/sqlitestore"
	"github.com/idilsaglam/tracker/internal/syncer"
	"github.com/idilsaglam/tracker/internal/transfer"
	"github.com/idilsaglam/tracker/internal/ui"
)

const closeTimeout = 5 * time.Second

// app is the wired service graph for one invocation.
type app struct {
	cfg         *config.Config
	log         *logging.Logger
	cat         *catalog.Catalog
	catFromFile bool
	gate        *gate.Gate[store.Store]
	list        *checklist.Checklist
	latch       *progress.Latch
	sync        *syncer.Synchronizer
	xfer        *transfer.Service
	clog        *slog.Logger
}

// open builds the graph. The store opens in the background behind the gate;
// nothing here waits for it.
func open(cfg *config.Config, notify ui.Notifier, onChange func()) (*app, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.LogFile, level)
	if err != nil {
		return nil, err
	}

	cat, fromFile, err := catalog.Load(cfg.Catalog)
	if err != nil {
		log.Close()
		return nil, err
	}
	log.Debug("catalog loaded", "path", cfg.Catalog, "from_file", fromFile, "sections", len(cat.Sections))

	g := gate.New[store.Store]()
	g.Open(context.Background(), func(ctx context.Context) (store.Store, error) {
		st, err := sqlitestore.Open(ctx, cfg.DB, cfg.DBVersion,
			sqlitestore.WithLogger(log.Logger),
			sqlitestore.WithBusyTimeout(cfg.BusyMS),
		)
		if err != nil {
			return nil, err
		}
		return st, nil
	})

	list := checklist.New(cfg.Prefix, cat.Items())
	latch := &progress.Latch{}
	agg := progress.New(latch, latch, progress.WithNoun(cat.Noun))
	s := syncer.New(g, list, agg, syncer.Options{
		Logger:   log.Logger,
		Notifier: notify,
		OnChange: onChange,
	})

	return &app{
		cfg:         cfg,
		log:         log,
		cat:         cat,
		catFromFile: fromFile,
		gate:        g,
		list:        list,
		latch:       latch,
		sync:        s,
		xfer:        transfer.New(s, log.Logger),
		clog:        logging.Component(log.Logger, "cli"),
	}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := a.sync.Close(ctx); err != nil {
		a.clog.Warn("synchronizer close", "error", err)
	}
	if st, err := a.gate.Wait(ctx); err == nil {
		if err := st.Close(); err != nil {
			a.clog.Warn("store close", "error", err)
		}
	}
	a.log.Close()
}

// resolveID accepts an item id or a control identifier.
func (a *app) resolveID(s string) (string, bool) {
	if a.list.Has(s) {
		return s, true
	}
	if id, ok := a.list.ItemID(s); ok && a.list.Has(id) {
		return id, true
	}
	return "", false
}
