// Package config handles application configuration and command-line argument parsing.
//
// Values are resolved in this order, later winning: built-in defaults, the
// optional TOML file, environment variables, command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/alexflint/go-arg"

	"github.com/idilsaglam/tracker/internal/ui"
)

const (
	defaultDBName      = "progress.db"
	defaultLogName     = "tracker.log"
	defaultConfigName  = "config.toml"
	defaultCatalogPath = "checklist.yaml"
	defaultPrefix      = "problem"
	defaultTheme       = "classic"
	defaultLogLevel    = "info"
	defaultDBVersion   = 1
	defaultBusyTimeout = 5000
)

// LsCmd prints the checklist as a static panel.
type LsCmd struct{}

// TUICmd opens the interactive checklist.
type TUICmd struct{}

// DoneCmd marks items completed.
type DoneCmd struct {
	IDs []string `arg:"positional,required" help:"item ids (with or without the control prefix)"`
}

// UndoCmd marks items not completed.
type UndoCmd struct {
	IDs []string `arg:"positional,required" help:"item ids (with or without the control prefix)"`
}

// ToggleCmd flips items.
type ToggleCmd struct {
	IDs []string `arg:"positional,required" help:"item ids (with or without the control prefix)"`
}

// StatsCmd prints UI-derived and store-derived progress.
type StatsCmd struct{}

// ReconcileCmd repairs divergence between the checklist and the store.
type ReconcileCmd struct{}

// ExportCmd writes the stored progress to a file.
type ExportCmd struct {
	Path string `arg:"positional" help:"output file (default progress-YYYY-MM-DD.json)"`
}

// ImportCmd replaces the stored progress with a file's contents.
type ImportCmd struct {
	Path string `arg:"positional,required" help:"file to import"`
	Yes  bool   `arg:"-y,--yes" help:"do not ask for confirmation"`
}

// Config holds the application configuration.
type Config struct {
	DataDir    string `arg:"--data-dir,env:TRACKER_DATA_DIR" help:"directory for the database, log and config file (default ~/.tracker)"`
	DB         string `arg:"--db,env:TRACKER_DB" help:"database file (default <data-dir>/progress.db)"`
	DBVersion  int    `arg:"--db-version,env:TRACKER_DB_VERSION" help:"store schema version (default 1)"`
	BusyMS     int    `arg:"--busy-timeout,env:TRACKER_BUSY_TIMEOUT" help:"milliseconds to wait on a locked database (default 5000)"`
	Catalog    string `arg:"--catalog,env:TRACKER_CATALOG" help:"checklist catalog YAML (default ./checklist.yaml, built-in list if missing)"`
	Prefix     string `arg:"--prefix,env:TRACKER_PREFIX" help:"control identifier prefix (default problem)"`
	Theme      string `arg:"--theme,env:TRACKER_THEME" help:"classic|neon|mono"`
	LogFile    string `arg:"--log-file,env:TRACKER_LOG_FILE" help:"log file (default <data-dir>/tracker.log)"`
	LogLevel   string `arg:"--log-level,env:TRACKER_LOG_LEVEL" help:"debug|info|warn|error"`
	ConfigFile string `arg:"--config,env:TRACKER_CONFIG" help:"TOML config file (default <data-dir>/config.toml)"`
	Group      bool   `arg:"-g,--group" help:"group ls output by pending/done"`

	Ls        *LsCmd        `arg:"subcommand:ls" help:"print the checklist"`
	TUI       *TUICmd       `arg:"subcommand:tui" help:"interactive checklist (default)"`
	Done      *DoneCmd      `arg:"subcommand:done" help:"mark items completed"`
	Undo      *UndoCmd      `arg:"subcommand:undo" help:"mark items not completed"`
	Toggle    *ToggleCmd    `arg:"subcommand:toggle" help:"flip items"`
	Stats     *StatsCmd     `arg:"subcommand:stats" help:"show progress from the checklist and from the store"`
	Reconcile *ReconcileCmd `arg:"subcommand:reconcile" help:"rewrite the store from the checklist if they diverge"`
	Export    *ExportCmd    `arg:"subcommand:export" help:"export progress to a JSON file"`
	Import    *ImportCmd    `arg:"subcommand:import" help:"replace progress with a JSON file"`
}

// Description returns the program description for go-arg
func (Config) Description() string {
	return "Track completion of a checklist of study problems"
}

// Version returns the version string for go-arg
func (Config) Version() string {
	return "tracker 1.0.0"
}

// fileConfig is the TOML file layout.
type fileConfig struct {
	DataDir   string `toml:"data_dir"`
	DB        string `toml:"db"`
	DBVersion int    `toml:"db_version"`
	BusyMS    int    `toml:"busy_timeout"`
	Catalog   string `toml:"catalog"`
	Prefix    string `toml:"prefix"`
	Theme     string `toml:"theme"`
	LogFile   string `toml:"log_file"`
	LogLevel  string `toml:"log_level"`
}

// ErrUsage marks errors caused by bad arguments.
var ErrUsage = errors.New("usage")

// Parse parses args (without the program name) and resolves the configuration.
// Help and version requests come back as arg.ErrHelp and arg.ErrVersion.
func Parse(args []string, stdout io.Writer) (*Config, error) {
	cfg := &Config{}
	p, err := arg.NewParser(arg.Config{Program: "tracker", Out: stdout}, cfg)
	if err != nil {
		return nil, fmt.Errorf("build parser: %w", err)
	}
	switch err := p.Parse(args); {
	case errors.Is(err, arg.ErrHelp):
		p.WriteHelpForSubcommand(stdout, p.SubcommandNames()...)
		return nil, err
	case errors.Is(err, arg.ErrVersion):
		fmt.Fprintln(stdout, cfg.Version())
		return nil, err
	case err != nil:
		p.WriteUsageForSubcommand(stdout, p.SubcommandNames()...)
		return nil, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	return PostProcessConfig(cfg)
}

// PostProcessConfig merges the config file and defaults into cfg and validates it.
func PostProcessConfig(cfg *Config) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	bootDir := firstNonEmpty(cfg.DataDir, filepath.Join(home, ".tracker"))
	cfgPath := firstNonEmpty(cfg.ConfigFile, filepath.Join(bootDir, defaultConfigName))

	var fc fileConfig
	if _, err := toml.DecodeFile(cfgPath, &fc); err != nil {
		// An explicitly named file must exist; the default one is optional.
		if cfg.ConfigFile != "" || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %s: %w", cfgPath, err)
		}
	}

	cfg.DataDir = firstNonEmpty(cfg.DataDir, fc.DataDir, bootDir)
	cfg.DB = firstNonEmpty(cfg.DB, fc.DB, filepath.Join(cfg.DataDir, defaultDBName))
	cfg.Catalog = firstNonEmpty(cfg.Catalog, fc.Catalog, defaultCatalogPath)
	cfg.Prefix = firstNonEmpty(cfg.Prefix, fc.Prefix, defaultPrefix)
	cfg.Theme = strings.ToLower(firstNonEmpty(cfg.Theme, fc.Theme, defaultTheme))
	cfg.LogFile = firstNonEmpty(cfg.LogFile, fc.LogFile, filepath.Join(cfg.DataDir, defaultLogName))
	cfg.LogLevel = strings.ToLower(firstNonEmpty(cfg.LogLevel, fc.LogLevel, defaultLogLevel))
	cfg.ConfigFile = cfgPath
	if cfg.DBVersion == 0 {
		cfg.DBVersion = fc.DBVersion
	}
	if cfg.DBVersion == 0 {
		cfg.DBVersion = defaultDBVersion
	}
	if cfg.BusyMS == 0 {
		cfg.BusyMS = fc.BusyMS
	}
	if cfg.BusyMS == 0 {
		cfg.BusyMS = defaultBusyTimeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (cfg *Config) Validate() error {
	if cfg.DBVersion < 1 {
		return fmt.Errorf("%w: db version must be at least 1, got %d", ErrUsage, cfg.DBVersion)
	}
	if cfg.BusyMS < 0 {
		return fmt.Errorf("%w: busy timeout must not be negative, got %d", ErrUsage, cfg.BusyMS)
	}
	if themes := ui.Themes(); !slices.Contains(themes, cfg.Theme) {
		return fmt.Errorf("%w: unknown theme %q (valid: %s)", ErrUsage, cfg.Theme, strings.Join(themes, ", "))
	}
	if _, err := cfg.Level(); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if cfg.Prefix == "" || strings.ContainsAny(cfg.Prefix, " \t") {
		return fmt.Errorf("%w: prefix %q must be a single word", ErrUsage, cfg.Prefix)
	}
	return nil
}

// Level parses LogLevel.
func (cfg *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	return l, nil
}

// Command names the selected subcommand; "tui" when none was given.
func (cfg *Config) Command() string {
	switch {
	case cfg.Ls != nil:
		return "ls"
	case cfg.Done != nil:
		return "done"
	case cfg.Undo != nil:
		return "undo"
	case cfg.Toggle != nil:
		return "toggle"
	case cfg.Stats != nil:
		return "stats"
	case cfg.Reconcile != nil:
		return "reconcile"
	case cfg.Export != nil:
		return "export"
	case cfg.Import != nil:
		return "import"
	default:
		return "tui"
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
