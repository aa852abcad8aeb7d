// Package stats holds the statistics synchronization core: the incremental
// sync engine that turns per-hour portal pages into a gap-free cumulative
// series, and the first-point finder used at setup. Both are written against
// the HistoricalSource contract only and never persist anything themselves.
package stats

import (
	"context"
	"time"

	"github.com/licznik-cli/licznik/internal/model"
)

// HistoricalSource is the slice of the portal client the core consumes.
// FetchDay callers pass a local midnight; implementations normalize anyway.
// An empty page is a valid response, not an error.
type HistoricalSource interface {
	FetchPage(ctx context.Context, meterID string, anchor time.Time, granularity model.Granularity, mode model.Mode) (*model.StatisticsPage, error)
	FetchDay(ctx context.Context, meterID string, day time.Time, mode model.Mode) (*model.StatisticsPage, error)
}

// midnight truncates t to 00:00:00 in its own location.
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
