// Package runner drives complete refresh passes: login, account summary,
// then one sync engine run per selected mode with the results appended to
// the store. The watch loop repeats passes on the configured interval.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/licznik-cli/licznik/internal/app"
	"github.com/licznik-cli/licznik/internal/model"
	"github.com/licznik-cli/licznik/internal/portal"
	"github.com/licznik-cli/licznik/internal/stats"
	"github.com/licznik-cli/licznik/internal/store"
)

// ModeReport summarizes one engine run during a refresh.
type ModeReport struct {
	Mode       model.Mode                        `json:"mode"`
	DaysLoaded int                               `json:"days_loaded"`
	NewPoints  map[string][]model.CommittedPoint `json:"new_points"`
	Sums       map[string]float64                `json:"sums"`
}

// RefreshReport is the outcome of one full pass.
type RefreshReport struct {
	Summary *model.MeterSummary `json:"summary,omitempty"`
	Modes   []ModeReport        `json:"modes"`
	Took    time.Duration       `json:"took"`
}

// Total returns the number of points committed across all modes and zones.
func (r *RefreshReport) Total() int {
	n := 0
	for _, m := range r.Modes {
		for _, pts := range m.NewPoints {
			n += len(pts)
		}
	}
	return n
}

// Runner owns the refresh procedure. It holds no state of its own between
// passes; everything durable lives in the store.
type Runner struct {
	deps *app.Deps
	log  *slog.Logger

	// DryRun computes sync results without appending them to the store.
	DryRun bool
	// SkipSummary leaves the account page alone and only syncs statistics.
	SkipSummary bool
}

// New builds a Runner over the shared dependency container.
func New(deps *app.Deps) *Runner {
	return &Runner{deps: deps, log: deps.Log}
}

// RefreshOnce performs one complete pass. A fetch failure aborts the pass
// before anything is appended for the failing mode, leaving the committed
// state untouched; the next pass retries from the same starting point.
func (r *Runner) RefreshOnce(ctx context.Context) (*RefreshReport, error) {
	cfg := r.deps.Config
	began := time.Now()

	if err := r.deps.Client.Login(ctx, cfg.Username, cfg.Password); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	defer r.deps.Client.Close()

	report := &RefreshReport{}
	if !r.SkipSummary {
		summary, err := r.deps.Client.AccountSummary(ctx)
		if err != nil {
			return nil, fmt.Errorf("account summary: %w", err)
		}
		report.Summary = summary
	}

	if len(cfg.SelectedZones) == 0 {
		r.log.Debug("no statistics zones selected, skipping sync")
		report.Took = time.Since(began)
		return report, nil
	}

	if !r.DryRun {
		if err := r.deps.RequireStore(); err != nil {
			return nil, err
		}
	}

	engine := stats.NewEngine(r.deps.Client, r.log)
	for _, mode := range cfg.SelectedModes {
		modeReport, err := r.syncMode(ctx, engine, mode)
		if err != nil {
			return nil, err
		}
		report.Modes = append(report.Modes, *modeReport)
	}

	report.Took = time.Since(began)
	r.log.Info("refresh finished", "new_points", report.Total(), "took", report.Took)
	return report, nil
}

// syncMode runs the engine for one mode and appends the delta per zone.
func (r *Runner) syncMode(ctx context.Context, engine *stats.Engine, mode model.Mode) (*ModeReport, error) {
	cfg := r.deps.Config

	req := stats.SyncRequest{
		MeterID:       cfg.MeterID,
		Mode:          mode,
		Zones:         cfg.SelectedZones,
		PreviousSums:  make(map[string]float64, len(cfg.SelectedZones)),
		BackfillDays:  cfg.BackfillDays,
		MaxDaysPerRun: cfg.MaxDaysPerRun,
	}

	if !r.DryRun {
		// The dedup cursor follows the primary zone: all zones of a mode
		// are committed together, so their last timestamps agree.
		for i, zone := range cfg.SelectedZones {
			state, ok, err := r.deps.Store.Last(store.SeriesKey(cfg.MeterID, mode, zone))
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			req.PreviousSums[zone] = state.Sum
			if i == 0 {
				ts := state.LastTimestamp
				req.LastTimestamp = &ts
			}
		}
	}

	result, err := engine.Sync(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("sync %s: %w", mode.Slug(), err)
	}

	if !r.DryRun {
		for _, zone := range cfg.SelectedZones {
			key := store.SeriesKey(cfg.MeterID, mode, zone)
			if err := r.deps.Store.Append(key, result.NewPoints[zone]); err != nil {
				return nil, fmt.Errorf("appending %s: %w", key, err)
			}
		}
	}

	return &ModeReport{
		Mode:       mode,
		DaysLoaded: result.DaysLoaded,
		NewPoints:  result.NewPoints,
		Sums:       result.Sums,
	}, nil
}

// Run repeats RefreshOnce on the configured interval until ctx is cancelled.
// Transient failures are logged and retried on the next tick; authorization
// and captcha failures stop the loop — rescheduling with the same stale
// credentials would only lock the account.
func (r *Runner) Run(ctx context.Context) error {
	interval := r.deps.Config.ScanInterval
	if interval <= 0 {
		interval = 300 * time.Minute
	}

	if err := r.runPass(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.runPass(ctx); err != nil {
				return err
			}
		}
	}
}

func (r *Runner) runPass(ctx context.Context) error {
	_, err := r.RefreshOnce(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, portal.ErrAuthorizationRequired), errors.Is(err, portal.ErrCaptchaRequired):
		return fmt.Errorf("stopping scheduled refreshes until credentials are fixed: %w", err)
	case errors.Is(err, ctx.Err()):
		return err
	default:
		r.log.Error("refresh failed, retrying on next tick", "error", err)
		return nil
	}
}
