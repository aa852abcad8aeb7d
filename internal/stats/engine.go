package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/licznik-cli/licznik/internal/model"
)

const (
	// DefaultBackfillDays bounds the initial backfill when a series has no
	// committed state yet.
	DefaultBackfillDays = 10

	// DefaultMaxDaysPerRun caps remote calls per sync run. The source only
	// updates once a day, so a long catch-up simply spreads over runs.
	DefaultMaxDaysPerRun = 60
)

// SyncRequest describes one engine run for a (meter, mode) pair. One run
// serves every requested zone — the portal returns all zones in one page.
type SyncRequest struct {
	MeterID string
	Mode    model.Mode
	Zones   []string

	// LastTimestamp is the instant of the most recent committed point, nil
	// when the series is fresh. Points at or before it are skipped.
	LastTimestamp *time.Time

	// PreviousSums seeds the per-zone running sums; missing zones start at 0.
	PreviousSums map[string]float64

	BackfillDays  int // used only when LastTimestamp is nil; 0 → default
	MaxDaysPerRun int // 0 → default
}

// SyncResult is the delta of one run: new committed points per zone and the
// running sum after the last of them. The caller appends them durably; the
// engine itself never writes.
type SyncResult struct {
	NewPoints  map[string][]model.CommittedPoint
	Sums       map[string]float64
	DaysLoaded int
	Window     struct {
		Start  time.Time
		Finish time.Time
	}
}

// Total returns the number of new points across all zones.
func (r *SyncResult) Total() int {
	n := 0
	for _, pts := range r.NewPoints {
		n += len(pts)
	}
	return n
}

// Engine is the incremental sync core. It walks forward day by day from the
// last committed point, deduplicates already-committed hours, defers
// estimated points until a confirmed value supersedes them, and accumulates
// per-zone running sums. It is a pure function of its inputs plus the
// injected source; a failed fetch aborts the run with no partial output.
type Engine struct {
	source HistoricalSource
	log    *slog.Logger

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

// NewEngine builds an Engine over the given source.
func NewEngine(source HistoricalSource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{source: source, log: logger, Now: time.Now}
}

// Sync executes one bounded run. Repeated calls against an unchanged remote
// and unchanged committed state are no-ops: the dedup rule drops everything
// at or before LastTimestamp, so sums never move and no timestamp is emitted
// twice.
func (e *Engine) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	result := &SyncResult{
		NewPoints: make(map[string][]model.CommittedPoint, len(req.Zones)),
		Sums:      make(map[string]float64, len(req.Zones)),
	}
	for _, zone := range req.Zones {
		result.NewPoints[zone] = nil
		result.Sums[zone] = req.PreviousSums[zone]
	}
	if len(req.Zones) == 0 {
		e.log.Debug("no zones selected, nothing to sync")
		return result, nil
	}

	maxDays := req.MaxDaysPerRun
	if maxDays <= 0 {
		maxDays = DefaultMaxDaysPerRun
	}
	now := e.Now()
	start := e.startingPoint(req, now)
	finish := midnight(now)
	result.Window.Start = start
	result.Window.Finish = finish

	e.log.Debug("sync window computed",
		"meter", req.MeterID, "mode", req.Mode.Slug(),
		"start", start.Format(time.RFC3339), "finish", finish.Format(time.RFC3339),
		"last_committed", formatMaybe(req.LastTimestamp))

	currentDay := start
	var pending []model.StatisticPoint

	for !currentDay.After(finish) && result.DaysLoaded < maxDays {
		page, err := e.source.FetchDay(ctx, req.MeterID, currentDay, req.Mode)
		if err != nil {
			// No partial commit: the caller keeps its previous state and the
			// next scheduled run retries from the same starting point.
			return nil, fmt.Errorf("loading statistics for %s: %w", currentDay.Format("2006-01-02"), err)
		}
		// Every fetch counts against the cap, empty or not; this guarantees
		// termination even when the remote returns a long run of empty days.
		result.DaysLoaded++

		if len(page.Points) == 0 {
			e.log.Debug("no statistics for the day, skipping", "day", currentDay.Format("2006-01-02"))
			currentDay = currentDay.AddDate(0, 0, 1)
			continue
		}

		for _, point := range page.Points {
			// The cursor always moves to the day after the latest point
			// seen, so the next fetch advances even when a page spills over
			// day boundaries or carries a single new point.
			currentDay = midnight(point.Timestamp).AddDate(0, 0, 1)

			if req.LastTimestamp != nil && !point.Timestamp.After(*req.LastTimestamp) {
				continue // already committed in a prior run
			}

			if point.Estimated {
				e.log.Debug("deferring estimated point until confirmed data arrives",
					"timestamp", point.Timestamp.Format(time.RFC3339))
				pending = append(pending, point)
				continue
			}

			if len(pending) > 0 {
				e.log.Debug("confirmed point arrived, flushing deferred estimates", "count", len(pending))
				for _, estimate := range pending {
					commitPoint(estimate, req.Zones, result)
				}
				pending = nil
			}

			commitPoint(point, req.Zones, result)
		}
	}

	// Estimates never superseded within this window stay uncommitted; the
	// cursor state was not advanced past them, so the next run re-fetches
	// and possibly resolves them.
	if len(pending) > 0 {
		e.log.Debug("dropping trailing estimates not followed by confirmed data", "count", len(pending))
	}

	e.gapFill(req, result, start, maxDays, now)
	return result, nil
}

// startingPoint derives the first day to fetch. Adding one hour before
// truncating handles a series whose last committed point was the final hour
// of its day (23:00) — the resumption point is then the next day, not a
// re-fetch of the same one.
func (e *Engine) startingPoint(req SyncRequest, now time.Time) time.Time {
	if req.LastTimestamp != nil {
		next := req.LastTimestamp.In(now.Location()).Add(time.Hour)
		return midnight(next)
	}
	backfill := req.BackfillDays
	if backfill <= 0 {
		backfill = DefaultBackfillDays
	}
	start := midnight(now.AddDate(0, 0, -backfill))
	e.log.Debug("no committed state, backfilling", "days", backfill, "start", start.Format("2006-01-02"))
	return start
}

func commitPoint(point model.StatisticPoint, zones []string, result *SyncResult) {
	for _, zone := range zones {
		delta := point.ValueForZone(zone)
		sum := result.Sums[zone] + delta
		result.Sums[zone] = sum
		result.NewPoints[zone] = append(result.NewPoints[zone], model.CommittedPoint{
			Start: point.Timestamp,
			Sum:   sum,
			State: delta,
		})
	}
}

// gapFill emits one synthetic zero-delta point for a zone that produced
// nothing across a full capped window lying entirely in the past. Without
// it a long dead period would be re-scanned on every future run, since the
// cursor only advances through committed points.
func (e *Engine) gapFill(req SyncRequest, result *SyncResult, start time.Time, maxDays int, now time.Time) {
	if !start.AddDate(0, 0, maxDays).Before(midnight(now)) {
		return
	}
	offset := maxDays - 1
	if offset < 1 {
		offset = 1
	}
	at := midnight(start.AddDate(0, 0, offset))
	for _, zone := range req.Zones {
		if len(result.NewPoints[zone]) > 0 {
			continue
		}
		e.log.Warn("no statistics in a full past window, placing a marker point to avoid re-scanning",
			"zone", zone, "window_start", start.Format("2006-01-02"), "marker", at.Format("2006-01-02"))
		result.NewPoints[zone] = append(result.NewPoints[zone], model.CommittedPoint{
			Start: at,
			Sum:   result.Sums[zone],
			State: 0,
		})
	}
}

func formatMaybe(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.Format(time.RFC3339)
}
