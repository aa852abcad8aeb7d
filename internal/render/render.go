// Package render converts Result values into human-readable or machine-parseable
// output. Each format is a separate function; the top-level Render dispatcher
// selects based on the format string.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/licznik-cli/licznik/internal/model"
	"github.com/licznik-cli/licznik/internal/runner"
	"github.com/licznik-cli/licznik/internal/store"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
)

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	default:
		return renderTable(w, result)
	}
}

// RenderTo writes to stdout by default; if path is non-empty, writes to file.
func RenderTo(path string, result *model.Result, format string) error {
	if path == "" {
		return Render(os.Stdout, result, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return Render(f, result, format)
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ─── Table ────────────────────────────────────────────────────────────────────

func renderTable(w io.Writer, result *model.Result) error {
	switch result.Kind {
	case model.KindSummary:
		s, ok := result.Data.(*model.MeterSummary)
		if !ok {
			return fmt.Errorf("unexpected data type for summary")
		}
		return renderSummaryTable(w, s)
	case model.KindMeters:
		meters, ok := result.Data.([]model.Meter)
		if !ok {
			return fmt.Errorf("unexpected data type for meters")
		}
		return renderMetersTable(w, meters)
	case model.KindReadings:
		readings, ok := result.Data.([]model.MeterReading)
		if !ok {
			return fmt.Errorf("unexpected data type for readings")
		}
		return renderReadingsTable(w, readings)
	case model.KindPoints:
		sp, ok := result.Data.(*model.SeriesPoints)
		if !ok {
			return fmt.Errorf("unexpected data type for points")
		}
		return renderPointsTable(w, sp)
	case model.KindSyncReport:
		rep, ok := result.Data.(*runner.RefreshReport)
		if !ok {
			return fmt.Errorf("unexpected data type for sync_report")
		}
		return renderSyncTable(w, rep)
	case model.KindStoreStats:
		stats, ok := result.Data.([]store.BucketStats)
		if !ok {
			return fmt.Errorf("unexpected data type for store_stats")
		}
		return renderStoreStatsTable(w, stats)
	case model.KindFirstDate:
		fd, ok := result.Data.(*model.FirstDate)
		if !ok {
			return fmt.Errorf("unexpected data type for first_date")
		}
		return renderFirstDate(w, fd)
	default:
		// Fallback: JSON
		return renderJSON(w, result)
	}
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)
	return tw
}

func renderSummaryTable(w io.Writer, s *model.MeterSummary) error {
	tw := newTable(w, []string{"FIELD", "VALUE"})
	rows := [][]string{
		{"Meter Number", s.MeterNumber},
		{"Meter ID", s.MeterID},
		{"PPE Number", s.PPENumber},
		{"PPE Address", s.PPEAddress},
		{"Seller", s.Seller},
		{"Client Type", s.ClientType},
		{"Contract Period", s.ContractPeriod},
		{"Tariff", s.Tariff},
	}
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		tw.Append(r)
	}
	tw.Render()
	if len(s.Readings) > 0 {
		fmt.Fprintln(w)
		return renderReadingsTable(w, s.Readings)
	}
	return nil
}

func renderMetersTable(w io.Writer, meters []model.Meter) error {
	tw := newTable(w, []string{"ID", "DESCRIPTION"})
	for _, m := range meters {
		tw.Append([]string{m.ID, m.Description})
	}
	tw.Render()
	return nil
}

func renderReadingsTable(w io.Writer, readings []model.MeterReading) error {
	tw := newTable(w, []string{"READING", "TAKEN", "VALUE"})
	tw.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
	})
	for _, r := range readings {
		tw.Append([]string{
			r.Name,
			r.Taken.Format("2006-01-02 15:04"),
			formatValue(r.Value),
		})
	}
	tw.Render()
	return nil
}

func renderPointsTable(w io.Writer, sp *model.SeriesPoints) error {
	fmt.Fprintf(w, "Series: %s\n\n", sp.Key)
	tw := newTable(w, []string{"START", "DELTA", "SUM"})
	tw.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
	})
	for _, p := range sp.Points {
		tw.Append([]string{
			p.Start.Format("2006-01-02 15:04"),
			formatValue(p.State),
			formatValue(p.Sum),
		})
	}
	tw.Render()
	return nil
}

func renderSyncTable(w io.Writer, rep *runner.RefreshReport) error {
	tw := newTable(w, []string{"MODE", "ZONE", "NEW POINTS", "SUM", "DAYS LOADED"})
	tw.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
	})
	for _, m := range rep.Modes {
		for _, zone := range sortedZones(m.NewPoints) {
			tw.Append([]string{
				m.Mode.Slug(),
				zone,
				fmt.Sprintf("%d", len(m.NewPoints[zone])),
				formatValue(m.Sums[zone]),
				fmt.Sprintf("%d", m.DaysLoaded),
			})
		}
	}
	tw.Render()
	fmt.Fprintf(w, "\n%d new points in %s\n", rep.Total(), rep.Took.Round(time.Millisecond))
	return nil
}

func renderStoreStatsTable(w io.Writer, stats []store.BucketStats) error {
	tw := newTable(w, []string{"BUCKET", "ROWS", "BYTES"})
	tw.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
	})
	for _, b := range stats {
		tw.Append([]string{b.Name, fmt.Sprintf("%d", b.Count), fmt.Sprintf("%d", b.Bytes)})
	}
	tw.Render()
	return nil
}

func renderFirstDate(w io.Writer, fd *model.FirstDate) error {
	if !fd.Found {
		fmt.Fprintf(w, "No statistics found for meter %s (%s)\n", fd.MeterID, fd.Mode.Slug())
		return nil
	}
	fmt.Fprintf(w, "First statistic for meter %s (%s): %s\n",
		fd.MeterID, fd.Mode.Slug(), fd.Date.Format("2006-01-02 15:04 MST"))
	return nil
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	switch result.Kind {
	case model.KindMeters:
		meters, ok := result.Data.([]model.Meter)
		if !ok {
			return fmt.Errorf("unexpected data type for meters")
		}
		_ = cw.Write([]string{"id", "description"})
		for _, m := range meters {
			_ = cw.Write([]string{m.ID, m.Description})
		}
	case model.KindReadings:
		readings, ok := result.Data.([]model.MeterReading)
		if !ok {
			return fmt.Errorf("unexpected data type for readings")
		}
		_ = cw.Write([]string{"name", "taken", "value"})
		for _, r := range readings {
			_ = cw.Write([]string{r.Name, r.Taken.Format(time.RFC3339), formatValue(r.Value)})
		}
	case model.KindPoints:
		sp, ok := result.Data.(*model.SeriesPoints)
		if !ok {
			return fmt.Errorf("unexpected data type for points")
		}
		_ = cw.Write([]string{"key", "start", "delta", "sum"})
		for _, p := range sp.Points {
			_ = cw.Write([]string{
				sp.Key,
				p.Start.Format(time.RFC3339),
				formatValue(p.State),
				formatValue(p.Sum),
			})
		}
	case model.KindSyncReport:
		rep, ok := result.Data.(*runner.RefreshReport)
		if !ok {
			return fmt.Errorf("unexpected data type for sync_report")
		}
		_ = cw.Write([]string{"mode", "zone", "start", "delta", "sum"})
		for _, m := range rep.Modes {
			for _, zone := range sortedZones(m.NewPoints) {
				for _, p := range m.NewPoints[zone] {
					_ = cw.Write([]string{
						m.Mode.Slug(), zone,
						p.Start.Format(time.RFC3339),
						formatValue(p.State),
						formatValue(p.Sum),
					})
				}
			}
		}
	default:
		// Fallback: serialize as JSON on a single line
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
	}

	cw.Flush()
	return cw.Error()
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings and stats to w when verbose mode is on.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		fmt.Fprintf(w, "\n[%s • %d items • %dms]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.DurationMs,
		)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// formatValue formats an energy value for display. Always shows at least one
// decimal place (e.g. 4.0, not 4); trims trailing zeros beyond the first.
func formatValue(v float64) string {
	s := strings.TrimRight(fmt.Sprintf("%.6f", v), "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

func sortedZones(m map[string][]model.CommittedPoint) []string {
	zones := make([]string, 0, len(m))
	for z := range m {
		zones = append(zones, z)
	}
	sort.Strings(zones)
	return zones
}
