package portal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public address of the member portal.
	DefaultBaseURL = "https://mojlicznik.energa-operator.pl"

	loginPath = "/dp/UserLogin.do"
	dataPath  = "/dp/UserData.do"
	chartPath = "/dp/resources/chart"

	// DefaultTimeout matches the fixed per-request timeout the portal
	// tolerates; exceeding it surfaces as ErrRemoteUnavailable.
	DefaultTimeout = 10 * time.Second

	userAgent = "licznik-cli/1.0"
)

// Connector owns the authenticated session with the portal: the cookie jar,
// the request pacing and the login form flow. It is not safe for concurrent
// use — the portal cannot serve concurrent requests on one session.
type Connector struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger

	loggedIn bool
}

// NewConnector builds a Connector with a fresh cookie jar.
// ratePerSec bounds outgoing requests; the portal throttles eager clients.
func NewConnector(baseURL string, timeout time.Duration, ratePerSec float64, logger *slog.Logger) *Connector {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	jar, _ := cookiejar.New(nil)
	return &Connector{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1),
		log:     logger,
	}
}

// LoggedIn reports whether the last Login call succeeded and no session
// failure has been observed since.
func (c *Connector) LoggedIn() bool { return c.loggedIn }

// Login authenticates against the portal: it loads the login page, extracts
// the anti-XSRF token and submits the login form. The session lives in the
// cookie jar afterwards.
func (c *Connector) Login(ctx context.Context, username, password string) error {
	c.resetSession()

	page, err := c.getHTML(ctx, c.baseURL+loginPath)
	if err != nil {
		return fmt.Errorf("loading login page: %w", err)
	}

	form := url.Values{
		"selectedForm": {"1"},
		"save":         {"save"},
		"clientOS":     {"web"},
		"j_username":   {username},
		"j_password":   {password},
		"rememberMe":   {"on"},
		"loginNow":     {"login"},
	}
	if token := xsrfToken(page); token != "" {
		form.Set("_antixsrf", token)
	}

	c.log.Debug("logging into the portal", "url", c.baseURL+loginPath, "user", username)
	result, err := c.postHTML(ctx, c.baseURL+loginPath, form)
	if err != nil {
		return fmt.Errorf("submitting login form: %w", err)
	}
	if err := verifyLoggedIn(result); err != nil {
		return err
	}
	c.loggedIn = true
	return nil
}

// OpenDataPage loads the main account view and verifies the session is still
// accepted. Used for the summary scrape and the meter list.
func (c *Connector) OpenDataPage(ctx context.Context) (*html.Node, error) {
	page, err := c.getHTML(ctx, c.baseURL+dataPath)
	if err != nil {
		return nil, err
	}
	if !isLoggedIn(page) {
		c.loggedIn = false
		return nil, ErrSessionExpired
	}
	return page, nil
}

// GetChart queries the historical chart endpoint and returns the raw JSON
// body. anchorMillis is the epoch-milliseconds start of the requested bucket.
func (c *Connector) GetChart(ctx context.Context, meterID string, anchorMillis int64, granularity, modeCode string) ([]byte, error) {
	q := url.Values{
		"mainChartDate": {fmt.Sprintf("%d", anchorMillis)},
		"type":          {granularity},
		"meterPoint":    {meterID},
		"mo":            {modeCode},
	}
	chartURL := c.baseURL + chartPath + "?" + q.Encode()
	c.log.Debug("chart request", "url", chartURL)

	body, status, err := c.do(ctx, http.MethodGet, chartURL, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("chart endpoint returned HTTP %d: %w", status, ErrRemoteUnavailable)
	}
	return body, nil
}

// Close drops the session cookies. The portal holds server-side session
// state keyed by them, so a fresh jar means a fresh login is required.
func (c *Connector) Close() {
	c.resetSession()
}

func (c *Connector) resetSession() {
	jar, _ := cookiejar.New(nil)
	c.client.Jar = jar
	c.loggedIn = false
}

// ─── HTTP plumbing ────────────────────────────────────────────────────────────

func (c *Connector) do(ctx context.Context, method, rawURL string, body io.Reader) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http: %v: %w", err, ErrRemoteUnavailable)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading body: %v: %w", err, ErrRemoteUnavailable)
	}
	c.log.Debug("portal response", "url", redactQuery(rawURL), "status", resp.StatusCode, "bytes", len(data))

	if resp.StatusCode >= 500 {
		return data, resp.StatusCode, fmt.Errorf("HTTP %d: %w", resp.StatusCode, ErrRemoteUnavailable)
	}
	return data, resp.StatusCode, nil
}

func (c *Connector) getHTML(ctx context.Context, rawURL string) (*html.Node, error) {
	body, status, err := c.do(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %w", status, ErrRemoteUnavailable)
	}
	return parseHTML(body)
}

func (c *Connector) postHTML(ctx context.Context, rawURL string, form url.Values) (*html.Node, error) {
	body, status, err := c.do(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %w", status, ErrRemoteUnavailable)
	}
	return parseHTML(body)
}

func parseHTML(body []byte) (*html.Node, error) {
	node, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %v: %w", err, ErrMalformedResponse)
	}
	return node, nil
}

// verifyLoggedIn classifies a post-login page.
func verifyLoggedIn(page *html.Node) error {
	if page == nil {
		return ErrMalformedResponse
	}
	if isCaptchaShown(page) {
		return ErrCaptchaRequired
	}
	if !isLoggedIn(page) {
		return ErrAuthorizationRequired
	}
	return nil
}

// redactQuery strips query values from a URL before logging; the chart query
// carries only identifiers, but login URLs must never leak form payloads.
func redactQuery(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i] + "?…"
	}
	return rawURL
}
