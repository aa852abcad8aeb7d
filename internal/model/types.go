// Package model defines the canonical data types used throughout licznik.
// These types are the single source of truth for everything the meter portal
// reports and for the committed statistics the store persists.
package model

import (
	"fmt"
	"strings"
	"time"
)

// ─── Modes & Granularities ────────────────────────────────────────────────────

// Mode selects the direction of energy flow a statistics query covers.
// The portal encodes it as a short code in the chart endpoint's "mo" param.
type Mode string

const (
	// ModeEnergyConsumed is energy drawn from the grid.
	ModeEnergyConsumed Mode = "A+"
	// ModeEnergyProduced is energy pushed back into the grid.
	ModeEnergyProduced Mode = "A-"
)

// Slug returns a filesystem/key-safe name for the mode.
func (m Mode) Slug() string {
	if m == ModeEnergyProduced {
		return "produced"
	}
	return "consumed"
}

// String implements fmt.Stringer; it returns the slug, not the wire code.
func (m Mode) String() string { return m.Slug() }

// ParseMode accepts both the friendly names and the portal wire codes.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "consumed", "energy_consumed", "a+":
		return ModeEnergyConsumed, nil
	case "produced", "energy_produced", "a-":
		return ModeEnergyProduced, nil
	}
	return "", fmt.Errorf("unknown mode %q (want consumed|produced)", s)
}

// Granularity is the coarse period one chart page covers. Each level changes
// the resolution of the returned points, DAY being the most detailed
// (per-hour points).
type Granularity string

const (
	GranularityYear  Granularity = "YEAR"
	GranularityMonth Granularity = "MONTH"
	GranularityWeek  Granularity = "WEEK"
	GranularityDay   Granularity = "DAY"
)

// ─── Statistics ───────────────────────────────────────────────────────────────

// StatisticPoint is one source sample: a per-hour (or per-day, on coarser
// pages) energy delta per tariff zone. Timestamp carries the location the
// portal reported for the page.
type StatisticPoint struct {
	Timestamp    time.Time          `json:"timestamp"`
	ValuesByZone map[string]float64 `json:"values_by_zone"`
	// Estimated marks a provisional value the portal may later replace
	// with a confirmed reading.
	Estimated bool `json:"estimated"`
}

// ValueForZone returns the delta for zone, 0 when the zone is absent.
func (p StatisticPoint) ValueForZone(zone string) float64 {
	return p.ValuesByZone[zone]
}

// IsEmpty reports whether the point holds no value in any zone. The portal
// pads the start of its reporting window with such points.
func (p StatisticPoint) IsEmpty() bool {
	for _, v := range p.ValuesByZone {
		if v != 0 {
			return false
		}
	}
	return true
}

// StatisticsPage is the response envelope of one historical chart query:
// one coarse period for one meter and mode. Points are ordered by ascending
// timestamp and may be empty — an empty page means "nothing recorded in this
// bucket" and is not an error.
type StatisticsPage struct {
	Tariff     string           `json:"tariff"`
	Timezone   string           `json:"timezone"`
	Unit       string           `json:"unit"`
	RangeStart time.Time        `json:"range_start"`
	RangeEnd   time.Time        `json:"range_end"`
	Zones      []string         `json:"zones"`
	Points     []StatisticPoint `json:"points"`
}

// FirstNonEmpty returns the first point carrying any value, scanning forward.
func (pg *StatisticsPage) FirstNonEmpty() (StatisticPoint, bool) {
	for _, p := range pg.Points {
		if !p.IsEmpty() {
			return p, true
		}
	}
	return StatisticPoint{}, false
}

// CommittedPoint is the durable statistic entry: the period delta plus the
// cumulative meter-reading style sum at that instant.
type CommittedPoint struct {
	Start time.Time `json:"start"`
	Sum   float64   `json:"sum"`
	State float64   `json:"state"`
}

// SeriesState is what the store remembers per (meter, mode, zone) series:
// the instant of the last committed point and the running sum at that point.
type SeriesState struct {
	LastTimestamp time.Time `json:"last_timestamp"`
	Sum           float64   `json:"sum"`
}

// ─── Account data ─────────────────────────────────────────────────────────────

// Meter identifies one meter selectable on the account, pairing the portal's
// internal id (used in chart calls) with the human description.
type Meter struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// MeterReading is a single dial value scraped from the account summary page.
type MeterReading struct {
	Name  string    `json:"name"`
	Taken time.Time `json:"taken"`
	Value float64   `json:"value"`
}

// MeterSummary is the live account-summary data. The portal refreshes it at
// most once a day, so it is informational only — statistics come from the
// historical chart endpoint.
type MeterSummary struct {
	MeterNumber    string         `json:"meter_number"`
	MeterID        string         `json:"meter_id"`
	PPENumber      string         `json:"ppe_number"`
	PPEAddress     string         `json:"ppe_address"`
	Seller         string         `json:"seller"`
	ClientType     string         `json:"client_type"`
	ContractPeriod string         `json:"contract_period"`
	Tariff         string         `json:"tariff"`
	Readings       []MeterReading `json:"readings,omitempty"`
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries timing metadata for a command result.
type ResultStats struct {
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every command. Renderers switch
// on Kind to format the Data payload appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindSummary    = "summary"
	KindMeters     = "meters"
	KindReadings   = "readings"
	KindPoints     = "points"
	KindSyncReport = "sync_report"
	KindStoreStats = "store_stats"
	KindFirstDate  = "first_date"
)

// SeriesPoints pairs a series key with its committed points, for listing.
type SeriesPoints struct {
	Key    string           `json:"key"`
	Points []CommittedPoint `json:"points"`
}

// FirstDate is the outcome of a first-statistic search.
type FirstDate struct {
	MeterID string    `json:"meter_id"`
	Mode    Mode      `json:"mode"`
	Found   bool      `json:"found"`
	Date    time.Time `json:"date,omitempty"`
}
