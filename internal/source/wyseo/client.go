// Package wyseo pulls readings from the Wyoming State Engineer's Office
// seoflow dataset-grid endpoint.
package wyseo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/river-gage-etl/internal/domain"
)

// datasetID is the one seoflow dataset this client knows how to pull (the
// Blue Grass tunnel discharge). The grid endpoint is keyed by an opaque
// dataset number, not a station id, so supporting another gage means finding
// its number by hand first. Documented limitation, not a bug.
const datasetID = "4578"

const timestampLayout = "2006-01-02T15:04:05Z"

// Client fetches a date-range window from the dataset grid.
type Client struct {
	httpClient *http.Client
	baseURL    string
	windowDays int
	mountain   *time.Location
	logger     *slog.Logger
}

// NewClient creates a WYSEO client. Timestamps arrive in UTC and are
// converted to US Mountain time before storage.
func NewClient(timeout time.Duration, windowDays int, logger *slog.Logger) (*Client, error) {
	mountain, err := time.LoadLocation("America/Denver")
	if err != nil {
		return nil, fmt.Errorf("load mountain timezone: %w", err)
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    "https://seoflow.wyo.gov/Data/DatasetGrid",
		windowDays: windowDays,
		mountain:   mountain,
		logger:     logger,
	}, nil
}

// Fetch posts a date-range query for the gage's dataset and returns the
// window as a replacement series.
func (c *Client) Fetch(ctx context.Context, g domain.Gage) (domain.SeriesUpdate, error) {
	if g.ID != datasetID {
		return domain.SeriesUpdate{}, fmt.Errorf("wyseo client only supports dataset %s, got %s", datasetID, g.ID)
	}

	now := domain.Clock().Now()
	form := url.Values{
		"sort":    {"TimeStamp-asc"},
		"date":    {now.AddDate(0, 0, -(c.windowDays + 1)).Format("2006-01-02")},
		"endDate": {now.AddDate(0, 0, 2).Format("2006-01-02")},
	}

	endpoint := c.baseURL + "?dataset=" + datasetID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.SeriesUpdate{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.SeriesUpdate{}, fmt.Errorf("wyseo request: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.SeriesUpdate{}, fmt.Errorf("wyseo status %d: %w: %s", resp.StatusCode, domain.ErrUpstreamUnavailable, body)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.SeriesUpdate{}, fmt.Errorf("decode wyseo response: %w: %v", domain.ErrUpstreamFormatChanged, err)
	}
	if len(payload.Data) == 0 {
		return domain.SeriesUpdate{}, fmt.Errorf("empty wyseo data: %w", domain.ErrUpstreamFormatChanged)
	}

	readings := make(domain.Series, 0, len(payload.Data))
	for _, p := range payload.Data {
		ts, err := time.ParseInLocation(timestampLayout, p.TimeStamp, time.UTC)
		if err != nil {
			return domain.SeriesUpdate{}, fmt.Errorf("bad wyseo timestamp %q: %w", p.TimeStamp, domain.ErrUpstreamFormatChanged)
		}
		readings = append(readings, domain.NewReading(p.Value, ts.In(c.mountain)))
	}

	sort.Slice(readings, func(i, j int) bool { return readings[i].Timestamp.Before(readings[j].Timestamp) })

	return domain.SeriesUpdate{Readings: readings, Mode: domain.ReplaceSeries}, nil
}

// seoflow grid response types.

type response struct {
	Data []point `json:"Data"`
}

type point struct {
	Value     float64 `json:"Value"`
	TimeStamp string  `json:"TimeStamp"`
}
