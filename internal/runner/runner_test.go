package runner_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/licznik-cli/licznik/internal/app"
	"github.com/licznik-cli/licznik/internal/config"
	"github.com/licznik-cli/licznik/internal/model"
	"github.com/licznik-cli/licznik/internal/portal"
	"github.com/licznik-cli/licznik/internal/runner"
	"github.com/licznik-cli/licznik/internal/store"
)

const loginPage = `<!DOCTYPE html><html><body>
<form id="loginForm"><input name="_antixsrf" value="tok"/></form>
</body></html>`

const accountPage = `<!DOCTYPE html><html><body>
<select name="meterSelectF"><option value="101">Licznik 12345678</option></select>
<div id="left">
  <div><div>Licznik</div><b>12345678</b></div>
  <div><span><b>Taryfa</b></span><span>G11</span></div>
</div>
<div id="right"></div>
</body></html>`

// newFakePortal serves a login flow, an account page, and a chart endpoint
// that reports one confirmed point (anchor+1h, 1.5 kWh) for every day asked.
func newFakePortal(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/dp/UserLogin.do", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(loginPage))
			return
		}
		w.Write([]byte(accountPage))
	})
	mux.HandleFunc("/dp/UserData.do", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(accountPage))
	})
	mux.HandleFunc("/dp/resources/chart", func(w http.ResponseWriter, r *http.Request) {
		anchor, err := strconv.ParseInt(r.URL.Query().Get("mainChartDate"), 10, 64)
		if err != nil {
			http.Error(w, "bad anchor", http.StatusBadRequest)
			return
		}
		tm := anchor + time.Hour.Milliseconds()
		fmt.Fprintf(w, `{"success": true, "response": {
			"tariffName": "G11", "tz": "UTC", "unit": "kWh",
			"mainChartDate": %d, "mainChartDateTo": %d,
			"zones": [{"label": "Strefa 1"}],
			"mainChart": [{"tm": %d, "est": false, "zones": [1.5]}]
		}}`, anchor, anchor, tm)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testDeps(t *testing.T, baseURL string) *app.Deps {
	t.Helper()
	cfg := &config.Config{
		Username:      "user@example.com",
		Password:      "secret",
		BaseURL:       baseURL,
		MeterID:       "101",
		SelectedZones: []string{"Strefa 1"},
		SelectedModes: []model.Mode{model.ModeEnergyConsumed},
		BackfillDays:  2,
		MaxDaysPerRun: 60,
		Timeout:       5 * time.Second,
		Rate:          1000,
		DBPath:        filepath.Join(t.TempDir(), "licznik.db"),
	}
	deps := app.New(cfg, slog.New(slog.NewTextHandler(testWriter{t}, nil)))
	t.Cleanup(deps.Close)
	return deps
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

func TestRefreshOnceCommitsAndIsIdempotent(t *testing.T) {
	srv := newFakePortal(t)
	deps := testDeps(t, srv.URL)
	r := runner.New(deps)

	report, err := r.RefreshOnce(context.Background())
	if err != nil {
		t.Fatalf("RefreshOnce: %v", err)
	}
	if report.Summary == nil || report.Summary.MeterNumber != "12345678" {
		t.Fatalf("summary = %+v", report.Summary)
	}
	if report.Total() == 0 {
		t.Fatal("first pass committed no points")
	}

	key := store.SeriesKey("101", model.ModeEnergyConsumed, "Strefa 1")
	state, found, err := deps.Store.Last(key)
	if err != nil || !found {
		t.Fatalf("store state after pass: found %v, err %v", found, err)
	}
	if state.Sum == 0 {
		t.Error("running sum not advanced")
	}

	// The portal data did not change, so a second pass is a no-op.
	second, err := r.RefreshOnce(context.Background())
	if err != nil {
		t.Fatalf("second RefreshOnce: %v", err)
	}
	if second.Total() != 0 {
		t.Fatalf("second pass committed %d points, want 0", second.Total())
	}

	after, _, err := deps.Store.Last(key)
	if err != nil {
		t.Fatal(err)
	}
	if after.Sum != state.Sum {
		t.Errorf("sum moved from %v to %v on a no-op pass", state.Sum, after.Sum)
	}
}

func TestRefreshOnceDryRunWritesNothing(t *testing.T) {
	srv := newFakePortal(t)
	deps := testDeps(t, srv.URL)
	r := runner.New(deps)
	r.DryRun = true

	report, err := r.RefreshOnce(context.Background())
	if err != nil {
		t.Fatalf("RefreshOnce: %v", err)
	}
	if report.Total() == 0 {
		t.Fatal("dry run computed no points")
	}
	if deps.Store != nil {
		t.Fatal("dry run opened the store")
	}
}

func TestRefreshOnceBadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/dp/UserLogin.do", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(loginPage)) // login form on GET and POST: never accepted
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	deps := testDeps(t, srv.URL)
	_, err := runner.New(deps).RefreshOnce(context.Background())
	if !errors.Is(err, portal.ErrAuthorizationRequired) {
		t.Fatalf("err = %v, want ErrAuthorizationRequired", err)
	}
}

func TestRunStopsOnAuthorizationFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/dp/UserLogin.do", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(loginPage))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	deps := testDeps(t, srv.URL)
	deps.Config.ScanInterval = time.Minute

	err := runner.New(deps).Run(context.Background())
	if !errors.Is(err, portal.ErrAuthorizationRequired) {
		t.Fatalf("Run = %v, want ErrAuthorizationRequired to stop the loop", err)
	}
}
