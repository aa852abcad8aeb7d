package portal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/licznik-cli/licznik/internal/model"
)

// Wire shapes of the chart endpoint. The envelope wraps the actual payload
// in a "response" object and signals application-level failure via "success".
type chartEnvelope struct {
	Success  bool          `json:"success"`
	Response chartResponse `json:"response"`
}

type chartResponse struct {
	TariffName string `json:"tariffName"`
	Timezone   string `json:"tz"`
	Unit       string `json:"unit"`
	RangeFrom  int64  `json:"mainChartDate"`
	RangeTo    int64  `json:"mainChartDateTo"`
	Zones      []struct {
		Label string `json:"label"`
	} `json:"zones"`
	Points []chartPoint `json:"mainChart"`
}

// chartPoint carries the epoch-millisecond timestamp, the estimate flag and
// one value per zone, positionally aligned with the zones list. Values arrive
// as numbers, numeric strings, or null for blank hours.
type chartPoint struct {
	Timestamp json.Number   `json:"tm"`
	Estimated bool          `json:"est"`
	Zones     []interface{} `json:"zones"`
}

// decodePage parses a chart endpoint body into a StatisticsPage. Timestamps
// are normalized into the zone the page itself reports. A body that is not
// JSON but looks like the login page means the session died mid-run.
func decodePage(body []byte) (*model.StatisticsPage, error) {
	var envelope chartEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		if looksLikeHTML(body) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("decoding chart payload: %v: %w", err, ErrMalformedResponse)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("chart query was not successful: %w", ErrMalformedResponse)
	}

	resp := envelope.Response
	loc, err := time.LoadLocation(resp.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown page timezone %q: %w", resp.Timezone, ErrMalformedResponse)
	}

	page := &model.StatisticsPage{
		Tariff:     resp.TariffName,
		Timezone:   resp.Timezone,
		Unit:       resp.Unit,
		RangeStart: time.UnixMilli(resp.RangeFrom).In(loc),
		RangeEnd:   time.UnixMilli(resp.RangeTo).In(loc),
	}
	for _, z := range resp.Zones {
		page.Zones = append(page.Zones, z.Label)
	}

	for _, raw := range resp.Points {
		millis, err := raw.Timestamp.Int64()
		if err != nil {
			return nil, fmt.Errorf("point timestamp %q: %v: %w", raw.Timestamp, err, ErrMalformedResponse)
		}
		point := model.StatisticPoint{
			Timestamp:    time.UnixMilli(millis).In(loc),
			Estimated:    raw.Estimated,
			ValuesByZone: make(map[string]float64, len(page.Zones)),
		}
		for i, zone := range page.Zones {
			if i < len(raw.Zones) {
				point.ValuesByZone[zone] = coerceValue(raw.Zones[i])
			}
		}
		page.Points = append(page.Points, point)
	}
	return page, nil
}

// coerceValue turns a wire zone value into a float64. Blank hours come back
// as null or an empty string and count as zero.
func coerceValue(v interface{}) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return t
	case string:
		if f, ok := parseDecimal(t); ok {
			return f
		}
		return 0
	case json.Number:
		f, _ := t.Float64()
		return f
	default:
		return 0
	}
}

func looksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return bytes.HasPrefix(trimmed, []byte("<")) || len(trimmed) == 0
}
