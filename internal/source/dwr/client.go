// Package dwr pulls readings from the Colorado Division of Water Resources
// REST API.
package dwr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/couchcryptid/river-gage-etl/internal/domain"
)

const timestampLayout = "2006-01-02T15:04:05"

// Client fetches a station's recent telemetry by station abbreviation and
// parameter code.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a DWR client.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    "https://dwr.state.co.us/Rest/GET/api/v2/telemetrystations/telemetrytimeseriesraw",
		logger:     logger,
	}
}

// Fetch returns the station's recent series. Gages measured in ac-ft are
// reservoir storage stations and use the STORAGE parameter; everything else
// is DISCHRG.
func (c *Client) Fetch(ctx context.Context, g domain.Gage) (domain.SeriesUpdate, error) {
	parameter := "DISCHRG"
	if g.Units == domain.UnitAcreFeet {
		parameter = "STORAGE"
	}

	params := url.Values{
		"abbrev":    {g.ID},
		"parameter": {parameter},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return domain.SeriesUpdate{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.SeriesUpdate{}, fmt.Errorf("dwr request for %s: %w: %v", g.ID, domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.SeriesUpdate{}, fmt.Errorf("dwr status %d for %s: %w: %s", resp.StatusCode, g.ID, domain.ErrUpstreamUnavailable, body)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.SeriesUpdate{}, fmt.Errorf("decode dwr response for %s: %w: %v", g.ID, domain.ErrUpstreamFormatChanged, err)
	}
	if len(payload.ResultList) == 0 {
		return domain.SeriesUpdate{}, fmt.Errorf("empty dwr result list for %s: %w", g.ID, domain.ErrUpstreamFormatChanged)
	}

	readings := make(domain.Series, 0, len(payload.ResultList))
	for _, r := range payload.ResultList {
		ts, err := time.ParseInLocation(timestampLayout, r.MeasDateTime, time.Local)
		if err != nil {
			return domain.SeriesUpdate{}, fmt.Errorf("bad dwr timestamp %q for %s: %w", r.MeasDateTime, g.ID, domain.ErrUpstreamFormatChanged)
		}
		readings = append(readings, domain.NewReading(r.MeasValue, ts))
	}

	// Do not trust upstream ordering; the store appends in timestamp order.
	sort.Slice(readings, func(i, j int) bool { return readings[i].Timestamp.Before(readings[j].Timestamp) })

	return domain.SeriesUpdate{Readings: readings, Mode: domain.ReplaceSeries}, nil
}

// DWR API response types.

type response struct {
	ResultList []result `json:"ResultList"`
}

type result struct {
	MeasValue    float64 `json:"measValue"`
	MeasDateTime string  `json:"measDateTime"`
}
