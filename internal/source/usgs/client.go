// Package usgs pulls readings from USGS public gage pages and the
// instantaneous-values API.
package usgs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/couchcryptid/river-gage-etl/internal/domain"
)

// Parameter codes for the instantaneous-values API.
var parameterCodes = map[domain.Units]string{
	domain.UnitCFS:  "00060",
	domain.UnitFeet: "00065",
}

// Measurement labels as they appear on the gage page.
var measurementLabels = map[domain.Units]string{
	domain.UnitCFS:  "Discharge, cubic feet per second",
	domain.UnitFeet: "Gage height, feet",
}

// Client scrapes the public gage page for the upstream-rendered hydrograph
// image and a current-value blurb, and pulls the authoritative series from
// the IV JSON API.
type Client struct {
	httpClient *http.Client
	pageURL    string
	ivURL      string
	windowDays int
	logger     *slog.Logger
}

// NewClient creates a USGS client. The HTTP client carries a cookie jar so
// the image request reuses the gage page's session cookies, which the USGS
// graph server requires.
func NewClient(timeout time.Duration, windowDays int, logger *slog.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		httpClient: &http.Client{Timeout: timeout, Jar: jar},
		pageURL:    "https://waterdata.usgs.gov/nwis/uv",
		ivURL:      "https://waterservices.usgs.gov/nwis/iv/",
		windowDays: windowDays,
		logger:     logger,
	}
}

// Fetch scrapes the gage page, then pulls the 7-day series from the IV API.
// The IV series is authoritative; the scraped single value is a legacy
// fallback used only when the IV API fails.
func (c *Client) Fetch(ctx context.Context, g domain.Gage) (domain.SeriesUpdate, error) {
	label, ok := measurementLabels[g.Units]
	if !ok {
		return domain.SeriesUpdate{}, fmt.Errorf("usgs gage %s units must be cfs or feet, got %s", g.ID, g.Units)
	}

	image, fallback, err := c.scrapePage(ctx, g, label)
	if err != nil {
		return domain.SeriesUpdate{}, err
	}

	series, err := c.fetchSeries(ctx, g)
	if err != nil {
		if fallback == nil {
			return domain.SeriesUpdate{}, err
		}
		if !fallback.Known {
			// A sentinel has no value and no timestamp worth persisting.
			c.logger.Warn("iv api failed and scraped value is n/a, keeping stored data", "gage", g.ID, "error", err)
			return domain.SeriesUpdate{NoChange: true}, nil
		}
		// Legacy path: keep the dashboard alive on the scraped value alone.
		c.logger.Warn("iv api failed, falling back to scraped value", "gage", g.ID, "error", err)
		return domain.SeriesUpdate{
			Readings: domain.Series{*fallback},
			Image:    image,
			Mode:     domain.AppendReading,
		}, nil
	}

	return domain.SeriesUpdate{Readings: series, Image: image, Mode: domain.ReplaceSeries}, nil
}

// scrapePage fetches the public gage page and extracts the hydrograph image
// plus the "value: X Y Z" blurb for the configured measurement. A page
// without the expected anchor yields no image and no fallback, not an error;
// USGS pages drop sections routinely.
func (c *Client) scrapePage(ctx context.Context, g domain.Gage, label string) ([]byte, *domain.Reading, error) {
	pageAddr := c.pageURL + "?site_no=" + url.QueryEscape(g.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageAddr, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("usgs page request for %s: %w: %v", g.ID, domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("usgs page status %d for %s: %w", resp.StatusCode, g.ID, domain.ErrUpstreamUnavailable)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("parse usgs page for %s: %w: %v", g.ID, domain.ErrUpstreamFormatChanged, err)
	}

	var anchor *goquery.Selection
	doc.Find(`a[name="gifno-99"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.TrimSpace(sel.Text()) == label {
			anchor = sel
			return false
		}
		return true
	})
	if anchor == nil {
		c.logger.Debug("measurement anchor not found on page", "gage", g.ID, "label", label)
		return nil, nil, nil
	}

	neighborhood := anchor.Parent().Parent()

	img := neighborhood.Find("img").First()
	if img.Length() == 0 || img.AttrOr("alt", "") != "Graph of " {
		return nil, nil, fmt.Errorf("usgs page for %s: %w", g.ID, domain.ErrImageNotFound)
	}

	imageBytes, err := c.fetchImage(ctx, pageAddr, img.AttrOr("src", ""))
	if err != nil {
		return nil, nil, err
	}

	fallback := pullValue(neighborhood.Text())
	return imageBytes, fallback, nil
}

// fetchImage downloads the upstream-rendered hydrograph. Relative image
// sources are resolved against the page address.
func (c *Client) fetchImage(ctx context.Context, pageAddr, src string) ([]byte, error) {
	base, err := url.Parse(pageAddr)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	ref, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse image src %q: %w: %v", src, domain.ErrUpstreamFormatChanged, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.ResolveReference(ref).String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create image request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usgs image request: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("usgs image status %d: %w", resp.StatusCode, domain.ErrUpstreamUnavailable)
	}

	return io.ReadAll(resp.Body)
}

// pullValue tokenizes the anchor's DOM neighborhood on whitespace and takes
// the three tokens after "value:" as (value, unit label, status). A
// truncated token run means the gage looks offline; the caller gets a
// sentinel reading rather than a number.
func pullValue(text string) *domain.Reading {
	fields := strings.Fields(text)
	for i, f := range fields {
		if f != "value:" {
			continue
		}
		if i+3 >= len(fields) {
			sentinel := domain.SentinelReading()
			return &sentinel
		}
		value, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			sentinel := domain.SentinelReading()
			return &sentinel
		}
		r := domain.NewReading(value, domain.Clock().Now())
		return &r
	}
	return nil
}

// fetchSeries pulls the authoritative window from the IV JSON API.
func (c *Client) fetchSeries(ctx context.Context, g domain.Gage) (domain.Series, error) {
	params := url.Values{
		"sites":       {g.ID},
		"parameterCd": {parameterCodes[g.Units]},
		"period":      {fmt.Sprintf("P%dD", c.windowDays)},
		"siteStatus":  {"all"},
		"format":      {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ivURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usgs iv request for %s: %w: %v", g.ID, domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("usgs iv status %d for %s: %w", resp.StatusCode, g.ID, domain.ErrUpstreamUnavailable)
	}

	var payload ivResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode usgs iv response for %s: %w: %v", g.ID, domain.ErrUpstreamFormatChanged, err)
	}
	if len(payload.Value.TimeSeries) == 0 || len(payload.Value.TimeSeries[0].Values) == 0 {
		return nil, fmt.Errorf("usgs iv response for %s has no time series: %w", g.ID, domain.ErrUpstreamFormatChanged)
	}

	points := payload.Value.TimeSeries[0].Values[0].Value
	readings := make(domain.Series, 0, len(points))
	for _, p := range points {
		value, err := strconv.ParseFloat(p.Value, 64)
		if err != nil {
			c.logger.Debug("skipping non-numeric iv value", "gage", g.ID, "value", p.Value)
			continue
		}
		ts, err := time.Parse(time.RFC3339, p.DateTime)
		if err != nil {
			return nil, fmt.Errorf("bad usgs iv timestamp %q for %s: %w", p.DateTime, g.ID, domain.ErrUpstreamFormatChanged)
		}
		readings = append(readings, domain.NewReading(value, ts))
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("usgs iv response for %s has no numeric values: %w", g.ID, domain.ErrUpstreamFormatChanged)
	}

	sort.Slice(readings, func(i, j int) bool { return readings[i].Timestamp.Before(readings[j].Timestamp) })
	return readings, nil
}

// IV API response types (waterservices.usgs.gov/nwis/iv).

type ivResponse struct {
	Value struct {
		TimeSeries []struct {
			Values []struct {
				Value []ivPoint `json:"value"`
			} `json:"values"`
		} `json:"timeSeries"`
	} `json:"value"`
}

type ivPoint struct {
	Value    string `json:"value"`
	DateTime string `json:"dateTime"`
}
