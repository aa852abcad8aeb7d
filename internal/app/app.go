// Package app wires together configuration, the portal client, and the
// statistics store into a single Deps struct that commands receive at
// runtime.
package app

import (
	"fmt"
	"log/slog"

	"github.com/licznik-cli/licznik/internal/config"
	"github.com/licznik-cli/licznik/internal/portal"
	"github.com/licznik-cli/licznik/internal/store"
)

// Deps holds all runtime dependencies injected into command Run functions.
// The store is opened lazily — only commands that persist statistics touch
// the database file.
type Deps struct {
	Config *config.Config
	Client *portal.Client
	Store  *store.Store
	Log    *slog.Logger
}

// New builds a Deps from resolved config.
func New(cfg *config.Config, logger *slog.Logger) *Deps {
	if logger == nil {
		logger = slog.Default()
	}
	conn := portal.NewConnector(cfg.BaseURL, cfg.Timeout, cfg.Rate, logger)
	return &Deps{
		Config: cfg,
		Client: portal.NewClient(conn, logger),
		Log:    logger,
	}
}

// RequireStore opens the statistics database if it is not open yet.
func (d *Deps) RequireStore() error {
	if d.Store != nil {
		return nil
	}
	if d.Config.DBPath == "" {
		return fmt.Errorf("no database path configured (set db_path or %s)", config.EnvDBPath)
	}
	s, err := store.Open(d.Config.DBPath)
	if err != nil {
		return err
	}
	d.Store = s
	return nil
}

// Close releases the store and the portal session.
func (d *Deps) Close() {
	if d.Store != nil {
		_ = d.Store.Close()
		d.Store = nil
	}
	if d.Client != nil {
		d.Client.Close()
	}
}
