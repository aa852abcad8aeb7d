// Package portal implements the client for the utility's member portal:
// HTML-form login on a cookie session, account-summary scraping, and the
// JSON historical chart endpoint the statistics engine consumes. The portal
// has no public API; this package is the only place that knows its shape.
package portal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/licznik-cli/licznik/internal/model"
)

// Client is the high-level portal client. All methods require a prior
// successful Login on the underlying Connector.
type Client struct {
	conn *Connector
	log  *slog.Logger
}

// NewClient wraps an authenticated-session connector.
func NewClient(conn *Connector, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{conn: conn, log: logger}
}

// Login authenticates the session. See Connector.Login.
func (c *Client) Login(ctx context.Context, username, password string) error {
	return c.conn.Login(ctx, username, password)
}

// Close drops the portal session.
func (c *Client) Close() { c.conn.Close() }

// Meters lists the meters selectable on the account.
// Returns ErrNoSuitableMetersFound when the account exposes none.
func (c *Client) Meters(ctx context.Context) ([]model.Meter, error) {
	page, err := c.conn.OpenDataPage(ctx)
	if err != nil {
		return nil, err
	}
	meters := scrapeMeters(page)
	if len(meters) == 0 {
		return nil, ErrNoSuitableMetersFound
	}
	return meters, nil
}

// AccountSummary scrapes the live account view: meter identity, contract
// details and the latest dial readings.
func (c *Client) AccountSummary(ctx context.Context) (*model.MeterSummary, error) {
	page, err := c.conn.OpenDataPage(ctx)
	if err != nil {
		return nil, err
	}
	summary := scrapeSummary(page)
	if summary.MeterNumber == "" {
		return nil, fmt.Errorf("summary page carried no meter number: %w", ErrMalformedResponse)
	}
	c.log.Debug("scraped account summary",
		"meter", summary.MeterNumber, "tariff", summary.Tariff, "readings", len(summary.Readings))
	return summary, nil
}

// FetchPage fetches one statistics bucket of the given granularity anchored
// at anchor. An empty Points slice is a valid response meaning the bucket
// holds no data.
func (c *Client) FetchPage(ctx context.Context, meterID string, anchor time.Time, granularity model.Granularity, mode model.Mode) (*model.StatisticsPage, error) {
	body, err := c.conn.GetChart(ctx, meterID, anchor.UnixMilli(), string(granularity), string(mode))
	if err != nil {
		return nil, err
	}
	page, err := decodePage(body)
	if err != nil {
		return nil, fmt.Errorf("meter %s %s page at %s: %w", meterID, granularity, anchor.Format(time.RFC3339), err)
	}
	c.log.Debug("fetched statistics page",
		"meter", meterID, "granularity", granularity, "mode", mode.Slug(),
		"anchor", anchor.Format(time.RFC3339), "points", len(page.Points))
	return page, nil
}

// FetchDay fetches the per-hour bucket for one day. The anchor is truncated
// to midnight in its own location; the portal requires day queries to start
// at 00:00:00.
func (c *Client) FetchDay(ctx context.Context, meterID string, day time.Time, mode model.Mode) (*model.StatisticsPage, error) {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return c.FetchPage(ctx, meterID, midnight, model.GranularityDay, mode)
}
