// Package rockreport pulls the Poudre Rock Report's hand-posted stage
// reading from its blog page.
package rockreport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/couchcryptid/river-gage-etl/internal/domain"
)

// timestampLayout composes the byline date with the headline's HHMM clock,
// e.g. "May 31 2022 0700".
const timestampLayout = "January 2 2006 1504"

// LastLineReader exposes the last stored line for duplicate suppression.
type LastLineReader interface {
	LastLine(g domain.Gage) (string, bool)
}

// Client scrapes the rock report page. The page is hand-maintained and its
// format is not contractually stable; every parse step can fail and the
// caller just skips the gage until the next run.
type Client struct {
	httpClient *http.Client
	pageURL    string
	last       LastLineReader
	logger     *slog.Logger
}

// NewClient creates a rock report client.
func NewClient(timeout time.Duration, last LastLineReader, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		pageURL:    "https://poudrerockreport.com/",
		last:       last,
		logger:     logger,
	}
}

// Fetch parses the newest post's stage and timestamp. When the page hasn't
// changed since the last stored reading, the update is a no-op so the data
// file doesn't grow duplicates and the image isn't re-rendered.
func (c *Client) Fetch(ctx context.Context, g domain.Gage) (domain.SeriesUpdate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL, nil)
	if err != nil {
		return domain.SeriesUpdate{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.SeriesUpdate{}, fmt.Errorf("rock report request: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.SeriesUpdate{}, fmt.Errorf("rock report status %d: %w", resp.StatusCode, domain.ErrUpstreamUnavailable)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return domain.SeriesUpdate{}, fmt.Errorf("parse rock report page: %w: %v", domain.ErrUpstreamFormatChanged, err)
	}

	reading, err := parseHeader(doc)
	if err != nil {
		return domain.SeriesUpdate{}, fmt.Errorf("rock report header: %w", err)
	}

	if line, ok := c.last.LastLine(g); ok && line == reading.Encode(g.Units) {
		c.logger.Debug("rock report unchanged since last reading", "gage", g.ID, "line", line)
		return domain.SeriesUpdate{NoChange: true}, nil
	}

	return domain.SeriesUpdate{Readings: domain.Series{reading}, Mode: domain.AppendReading}, nil
}

// parseHeader extracts the stage and timestamp from the newest entry header.
// Headline link text reads like "Pine View 3.4 at 0700"; the byline reads
// like "May 31, 2022 By Camp Falbo".
func parseHeader(doc *goquery.Document) (domain.Reading, error) {
	header := doc.Find(".entry-header").First()
	if header.Length() == 0 {
		return domain.Reading{}, fmt.Errorf("no entry-header element: %w", domain.ErrUpstreamFormatChanged)
	}

	headline := strings.Fields(header.Find("a").First().Text())
	if len(headline) < 5 {
		return domain.Reading{}, fmt.Errorf("short headline %q: %w", strings.Join(headline, " "), domain.ErrUpstreamFormatChanged)
	}
	stageToken := strings.NewReplacer("+", "", "-", "").Replace(headline[2])
	clockToken := headline[4]

	stage, err := strconv.ParseFloat(stageToken, 64)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("bad stage token %q: %w", headline[2], domain.ErrUpstreamFormatChanged)
	}

	byline := strings.Split(header.Find("p").First().Text(), ",")
	if len(byline) < 2 {
		return domain.Reading{}, fmt.Errorf("bad byline %q: %w", header.Find("p").First().Text(), domain.ErrUpstreamFormatChanged)
	}
	monthDay := strings.TrimSpace(byline[0])
	yearFields := strings.Fields(strings.TrimSpace(byline[1]))
	if len(yearFields) == 0 {
		return domain.Reading{}, fmt.Errorf("byline missing year: %w", domain.ErrUpstreamFormatChanged)
	}

	ts, err := time.ParseInLocation(timestampLayout, fmt.Sprintf("%s %s %s", monthDay, yearFields[0], clockToken), time.Local)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("compose timestamp: %w: %v", domain.ErrUpstreamFormatChanged, err)
	}

	return domain.NewReading(stage, ts), nil
}
