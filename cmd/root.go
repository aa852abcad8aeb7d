// Package cmd implements the licznik CLI command tree.
// This file defines the root command and registers all global persistent flags.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/licznik-cli/licznik/internal/app"
	"github.com/licznik-cli/licznik/internal/config"
)

// globalFlags holds the parsed values of all persistent (global) flags.
// Commands read from this struct via the deps they receive.
var globalFlags struct {
	Username string
	Password string
	Meter    string
	Format   string
	Out      string
	Timeout  string
	Rate     float64
	Quiet    bool
	Verbose  bool
	Debug    bool
}

// rootCmd is the base command. Running `licznik` with no subcommand
// prints help.
var rootCmd = &cobra.Command{
	Use:   "licznik",
	Short: "licznik — Energa Mój Licznik meter portal CLI",
	Long: `licznik reads electricity consumption data from the Energa "Mój Licznik"
member portal and accumulates hourly statistics in a local database.

The portal publishes new data at most once a day, so licznik syncs
incrementally: each run picks up exactly where the last one stopped.

Quick start:
  licznik config init          # create a config.json with your credentials
  licznik meters               # list meters on the account
  licznik summary              # show the account summary and dial readings
  licznik sync                 # pull new statistics into the local database`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// buildDeps resolves config and constructs the dependency container.
// Called at the start of each command's RunE.
func buildDeps() (*app.Deps, error) {
	cfg, err := config.Load(globalFlags.Username, globalFlags.Password)
	if err != nil {
		return nil, err
	}

	// Apply CLI flag overrides
	cfg.Quiet = globalFlags.Quiet
	cfg.Verbose = globalFlags.Verbose
	cfg.Debug = globalFlags.Debug

	if globalFlags.Meter != "" {
		cfg.MeterID = globalFlags.Meter
	}
	if globalFlags.Format != "" {
		cfg.Format = globalFlags.Format
	}
	if globalFlags.Timeout != "" {
		if d, err2 := time.ParseDuration(globalFlags.Timeout); err2 == nil {
			cfg.Timeout = d
		}
	}
	if globalFlags.Rate > 0 {
		cfg.Rate = globalFlags.Rate
	}

	return app.New(cfg, buildLogger(cfg)), nil
}

// buildLogger configures the process logger from the verbosity flags.
// Debug logging always redacts credentials and session identifiers.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case cfg.Debug:
		level = slog.LevelDebug
	case cfg.Verbose:
		level = slog.LevelInfo
	case cfg.Quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&globalFlags.Username, "username", "",
		"portal username (overrides env LICZNIK_USERNAME and config.json)")
	pf.StringVar(&globalFlags.Password, "password", "",
		"portal password (overrides env LICZNIK_PASSWORD and config.json)")
	pf.StringVar(&globalFlags.Meter, "meter", "",
		"meter id for statistics commands (see `licznik meters`)")
	pf.StringVar(&globalFlags.Format, "format", "",
		"output format: table|json|csv|tsv (default: table)")
	pf.StringVar(&globalFlags.Out, "out", "",
		"write output to file instead of stdout")
	pf.StringVar(&globalFlags.Timeout, "timeout", "",
		"HTTP request timeout (e.g. 30s, 2m)")
	pf.Float64Var(&globalFlags.Rate, "rate", 0,
		"max portal requests per second (default: 1.0)")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false,
		"suppress all non-error output")
	pf.BoolVar(&globalFlags.Verbose, "verbose", false,
		"show timing stats after output")
	pf.BoolVar(&globalFlags.Debug, "debug", false,
		"log portal requests and sync decisions (credentials redacted)")
}
