// Package cmd implements the ledger command line.
package cmd

import (
	"log/slog"
	"os"
	"time"

	cc "github.com/ivanpirog/coloredcobra"
	"github.com/plenert/ledger"
	"github.com/plenert/ledger/ledger/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	ledgerFilePath  string
	configFilePath  string
	defaultCurrency string
	debug           bool
	backup          bool
	columnWidth     int
	columnWide      bool
)

var (
	cfg      *config.Config
	logger   = slog.Default()
	loadTime time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Plain text accounting for a single beancount file",
	Long: `ledger reads, queries and edits a ledger file written in a subset of
the beancount language: open, close and balance directives plus
transactions.

Settings come from --config (TOML or YAML), a .env file, LEDGER_*
environment variables and flags, later sources winning.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the command line.
func Execute() error {
	cc.Init(&cc.Config{
		RootCmd:  rootCmd,
		Headings: cc.HiCyan + cc.Bold + cc.Underline,
		Commands: cc.HiYellow + cc.Bold,
		Example:  cc.Italic,
		ExecName: cc.Bold,
		Flags:    cc.Bold,
	})
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ledgerFilePath, "file", "f", "", "Ledger file (overrides config, LEDGER_FILE).")
	flags.StringVar(&configFilePath, "config", "", "Config file, .toml or .yaml.")
	flags.StringVar(&defaultCurrency, "currency", "", "Currency for amounts given without one.")
	flags.BoolVar(&debug, "debug", false, "Enable debug logging.")
	flags.BoolVar(&backup, "backup", false, "Keep a compressed backup of the file before each write.")
	flags.IntVar(&columnWidth, "columns", 80, "Set a column width for output.")
	flags.BoolVar(&columnWide, "wide", false, "Wide output (use terminal width).")
}

func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(configFilePath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("file") {
		c.File = ledgerFilePath
	}
	if flags.Changed("currency") {
		c.Currency = defaultCurrency
	}
	if flags.Changed("debug") {
		c.Debug = debug
	}
	if flags.Changed("backup") {
		c.Backup = backup
	}
	if flags.Changed("columns") {
		c.Columns = columnWidth
	}
	if columnWide {
		c.Columns = terminalWidth(132)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c

	level := slog.LevelWarn
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func terminalWidth(fallback int) int {
	fd := int(os.Stdout.Fd())
	if term.IsTerminal(fd) {
		if tw, _, err := term.GetSize(fd); err == nil {
			return tw
		}
	}
	return fallback
}

func openEngine() (*ledger.Engine, error) {
	start := time.Now()
	e, err := ledger.NewEngine(cfg.File, ledger.WithLogger(logger), ledger.WithBackup(cfg.Backup))
	if err != nil {
		return nil, err
	}
	loadTime = time.Since(start)
	logger.Debug("ledger opened", "file", cfg.File, "took", loadTime)
	return e, nil
}
