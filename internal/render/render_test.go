package render_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/licznik-cli/licznik/internal/model"
	"github.com/licznik-cli/licznik/internal/render"
)

func pointsResult() *model.Result {
	start := time.Date(2024, time.June, 8, 0, 0, 0, 0, time.UTC)
	return &model.Result{
		Kind:        model.KindPoints,
		GeneratedAt: start,
		Command:     "store points",
		Data: &model.SeriesPoints{
			Key: "meter:101|mode:consumed|zone:Strefa 1",
			Points: []model.CommittedPoint{
				{Start: start, Sum: 0.5, State: 0.5},
				{Start: start.Add(time.Hour), Sum: 1.7, State: 1.2},
			},
		},
		Stats: model.ResultStats{Items: 2},
	}
}

func TestRenderJSONRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := render.Render(&buf, pointsResult(), render.FormatJSON); err != nil {
		t.Fatalf("Render: %v", err)
	}

	var decoded struct {
		Kind string `json:"kind"`
		Data struct {
			Key    string `json:"key"`
			Points []struct {
				Sum float64 `json:"sum"`
			} `json:"points"`
		} `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded.Kind != model.KindPoints {
		t.Errorf("kind = %q", decoded.Kind)
	}
	if len(decoded.Data.Points) != 2 || decoded.Data.Points[1].Sum != 1.7 {
		t.Errorf("points = %+v", decoded.Data.Points)
	}
}

func TestRenderCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := render.Render(&buf, pointsResult(), render.FormatCSV); err != nil {
		t.Fatalf("Render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows:\n%s", len(lines), buf.String())
	}
	if lines[0] != "key,start,delta,sum" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[2], "1.2") || !strings.Contains(lines[2], "1.7") {
		t.Errorf("second row = %q", lines[2])
	}
}

func TestRenderTableMeters(t *testing.T) {
	result := &model.Result{
		Kind: model.KindMeters,
		Data: []model.Meter{
			{ID: "101", Description: "Licznik 12345678"},
		},
	}
	var buf bytes.Buffer
	if err := render.Render(&buf, result, render.FormatTable); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "101") || !strings.Contains(out, "Licznik 12345678") {
		t.Errorf("table output missing data:\n%s", out)
	}
}

func TestRenderTableWrongPayload(t *testing.T) {
	result := &model.Result{Kind: model.KindSummary, Data: "not a summary"}
	var buf bytes.Buffer
	if err := render.Render(&buf, result, render.FormatTable); err == nil {
		t.Fatal("Render accepted a mismatched payload")
	}
}
