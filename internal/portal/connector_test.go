package portal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/licznik-cli/licznik/internal/model"
)

const loggedInPage = `<!DOCTYPE html><html><body><div id="left"></div></body></html>`

// newPortal spins up a fake portal that accepts one username/password pair.
func newPortal(t *testing.T, user, pass string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(loginPage))
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.PostFormValue("_antixsrf") != "token-123" {
			http.Error(w, "missing xsrf token", http.StatusBadRequest)
			return
		}
		if r.PostFormValue("j_username") == user && r.PostFormValue("j_password") == pass {
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "s-1"})
			w.Write([]byte(loggedInPage))
			return
		}
		w.Write([]byte(loginPage)) // login form again: rejected
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConnector(t *testing.T, baseURL string) *Connector {
	t.Helper()
	// High request rate: the limiter should not slow tests down.
	return NewConnector(baseURL, 5*time.Second, 1000, nil)
}

func TestLogin(t *testing.T) {
	srv := newPortal(t, "user@example.com", "secret")
	c := testConnector(t, srv.URL)

	if err := c.Login(context.Background(), "user@example.com", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !c.LoggedIn() {
		t.Error("LoggedIn = false after successful login")
	}
}

func TestLoginRejected(t *testing.T) {
	srv := newPortal(t, "user@example.com", "secret")
	c := testConnector(t, srv.URL)

	err := c.Login(context.Background(), "user@example.com", "wrong")
	if !errors.Is(err, ErrAuthorizationRequired) {
		t.Fatalf("err = %v, want ErrAuthorizationRequired", err)
	}
	if c.LoggedIn() {
		t.Error("LoggedIn = true after rejected login")
	}
}

func TestLoginCaptcha(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(loginPage))
			return
		}
		w.Write([]byte(`<html><body><form id="loginForm"><img name="captcha" src="c.png"/></form></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testConnector(t, srv.URL)
	err := c.Login(context.Background(), "u", "p")
	if !errors.Is(err, ErrCaptchaRequired) {
		t.Fatalf("err = %v, want ErrCaptchaRequired", err)
	}
}

func TestOpenDataPageSessionExpired(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(dataPath, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(loginPage)) // bounced back to login
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testConnector(t, srv.URL)
	_, err := c.OpenDataPage(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
}

func TestGetChartServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(chartPath, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testConnector(t, srv.URL)
	_, err := c.GetChart(context.Background(), "101", 0, "DAY", "A+")
	if !errors.Is(err, ErrRemoteUnavailable) {
		t.Fatalf("err = %v, want ErrRemoteUnavailable", err)
	}
}

func TestClientFetchDay(t *testing.T) {
	var gotQuery map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc(chartPath, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"mainChartDate": r.URL.Query().Get("mainChartDate"),
			"type":          r.URL.Query().Get("type"),
			"meterPoint":    r.URL.Query().Get("meterPoint"),
			"mo":            r.URL.Query().Get("mo"),
		}
		w.Write([]byte(`{"success": true, "response": {
			"tariffName": "G11", "tz": "UTC", "unit": "kWh",
			"mainChartDate": 1717804800000, "mainChartDateTo": 1717891199000,
			"zones": [{"label": "Strefa 1"}],
			"mainChart": [{"tm": 1717804800000, "est": false, "zones": [0.7]}]
		}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(testConnector(t, srv.URL), nil)
	day := time.Date(2024, time.June, 8, 13, 45, 0, 0, time.UTC)
	page, err := client.FetchDay(context.Background(), "101", day, model.ModeEnergyConsumed)
	if err != nil {
		t.Fatalf("FetchDay: %v", err)
	}

	midnight := time.Date(2024, time.June, 8, 0, 0, 0, 0, time.UTC)
	if want := strconv.FormatInt(midnight.UnixMilli(), 10); gotQuery["mainChartDate"] != want {
		t.Errorf("mainChartDate = %s, want %s (anchor truncated to midnight)", gotQuery["mainChartDate"], want)
	}
	if gotQuery["type"] != "DAY" || gotQuery["meterPoint"] != "101" || gotQuery["mo"] != "A+" {
		t.Errorf("chart query = %v", gotQuery)
	}
	if len(page.Points) != 1 || page.Points[0].ValueForZone("Strefa 1") != 0.7 {
		t.Errorf("page = %+v", page)
	}
}
