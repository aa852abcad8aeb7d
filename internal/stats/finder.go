package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/licznik-cli/licznik/internal/model"
)

// FinderFetchCap bounds page fetches per granularity level. The backward
// walk must terminate even if the source starts answering in an
// unanticipated shape; hitting the cap returns the best candidate found so
// far rather than failing.
const FinderFetchCap = 10

// Finder discovers the earliest instant for which the source has any data
// for a meter and mode. Used once at setup to bound how far back a backfill
// can legitimately reach — a linear day-by-day scan from now back to the
// install date could be years of daily pages, so the search mirrors the
// portal's own pagination: coarse buckets first, stepping backward until an
// empty bucket appears, then refining into the bucket that holds the start
// of the reporting window.
type Finder struct {
	source HistoricalSource
	log    *slog.Logger

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

// NewFinder builds a Finder over the given source.
func NewFinder(source HistoricalSource, logger *slog.Logger) *Finder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finder{source: source, log: logger, Now: time.Now}
}

// FindFirstDate returns the earliest statistic instant, or ok=false when the
// meter has no statistics at all. Fetch errors abort the search.
func (f *Finder) FindFirstDate(ctx context.Context, meterID string, mode model.Mode) (time.Time, bool, error) {
	now := f.Now()
	anchor := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	granularity := model.GranularityYear

	var candidate time.Time
	var found bool
	fetches := 0

	for {
		if fetches >= FinderFetchCap {
			f.log.Warn("first-statistic search hit the fetch cap, returning best candidate",
				"granularity", granularity, "candidate", formatCandidate(candidate, found))
			return candidate, found, nil
		}

		page, err := f.source.FetchPage(ctx, meterID, anchor, granularity, mode)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("searching first statistic at %s/%s: %w",
				granularity, anchor.Format("2006-01-02"), err)
		}
		fetches++

		// An empty bucket means the previous (later) bucket held the true
		// start of the data: whatever candidate was recorded there stands.
		if len(page.Points) == 0 {
			return candidate, found, nil
		}

		first := page.Points[0]
		if !first.IsEmpty() {
			// Data reaches the very start of this bucket, so the true
			// earliest instant lies further back. Same granularity, one
			// unit earlier. The bucket start stays the best-known earliest
			// instant in case the walk hits the cap or an error shape.
			if !found || first.Timestamp.Before(candidate) {
				candidate, found = first.Timestamp, true
			}
			anchor = stepBack(anchor, granularity)
			continue
		}

		// The bucket starts with padding: the reporting window begins
		// inside it. The first non-empty point is the candidate; refine it
		// at the next finer granularity.
		p, ok := page.FirstNonEmpty()
		if !ok {
			// All points blank — no data here after all; treat like an
			// empty bucket.
			return candidate, found, nil
		}
		candidate, found = p.Timestamp, true
		f.log.Debug("first-statistic candidate",
			"granularity", granularity, "candidate", candidate.Format(time.RFC3339))

		switch granularity {
		case model.GranularityYear:
			granularity = model.GranularityMonth
			anchor = time.Date(candidate.Year(), candidate.Month(), 1, 0, 0, 0, 0, candidate.Location())
		case model.GranularityMonth:
			granularity = model.GranularityDay
			anchor = midnight(candidate)
		default:
			// Day granularity is the finest resolution: the candidate is
			// the final answer.
			return candidate, true, nil
		}
		fetches = 0
	}
}

// stepBack moves the anchor one unit of the granularity further into the
// past, keeping it aligned to the unit's start.
func stepBack(anchor time.Time, granularity model.Granularity) time.Time {
	switch granularity {
	case model.GranularityYear:
		return time.Date(anchor.Year()-1, time.January, 1, 0, 0, 0, 0, anchor.Location())
	case model.GranularityMonth:
		return time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location()).AddDate(0, -1, 0)
	case model.GranularityWeek:
		return anchor.AddDate(0, 0, -7)
	default:
		return anchor.AddDate(0, 0, -1)
	}
}

func formatCandidate(t time.Time, found bool) string {
	if !found {
		return "none"
	}
	return t.Format(time.RFC3339)
}
