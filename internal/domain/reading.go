package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Stored timestamp layouts. Field order and the comma separator in data files
// are load-bearing for the dashboard.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// SentinelValue marks an unknown reading. Large enough to sort as an obvious
// outlier instead of blending in with real flows.
const SentinelValue = 99999

// Reading is one (value, timestamp) observation for a gage.
// Known is false when upstream returned unparseable text; callers must check
// it before doing arithmetic with Value.
type Reading struct {
	Value     float64
	Known     bool
	Timestamp time.Time
}

// NewReading builds a known reading.
func NewReading(value float64, ts time.Time) Reading {
	return Reading{Value: value, Known: true, Timestamp: ts}
}

// SentinelReading is returned where no usable reading exists, e.g. an absent
// or malformed data file.
func SentinelReading() Reading {
	return Reading{Value: SentinelValue, Known: false}
}

// Age returns how stale the reading is relative to the injected clock.
func (r Reading) Age() time.Duration {
	if !r.Known || r.Timestamp.IsZero() {
		return 0
	}
	return clock.Now().Sub(r.Timestamp)
}

// Encode renders the reading as one stored line (without newline), applying
// the unit rounding policy: cfs and ac-ft truncate to integers, feet keep
// their decimals.
func (r Reading) Encode(units Units) string {
	return fmt.Sprintf("%s,%s,%s",
		FormatValue(r.Value, units),
		r.Timestamp.Format(DateLayout),
		r.Timestamp.Format(TimeLayout),
	)
}

// FormatValue applies the per-unit rounding policy to a value.
func FormatValue(v float64, units Units) string {
	if units == UnitFeet {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatInt(int64(v), 10)
}

// ParseStoredLine parses one data-file line back into a Reading. The value
// field must be numeric; date and time are trusted verbatim and parsed with
// the stored layouts.
func ParseStoredLine(line string) (Reading, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 3 {
		return Reading{}, fmt.Errorf("want 3 fields, got %d", len(fields))
	}

	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Reading{}, fmt.Errorf("bad value field %q: %w", fields[0], err)
	}

	ts, err := time.ParseInLocation(DateLayout+" "+TimeLayout, fields[1]+" "+fields[2], time.Local)
	if err != nil {
		return Reading{}, fmt.Errorf("bad timestamp fields: %w", err)
	}

	return NewReading(value, ts), nil
}

// Series is an ordered sequence of readings for one gage.
type Series []Reading

// Latest returns the newest reading, or a sentinel when the series is empty.
func (s Series) Latest() Reading {
	if len(s) == 0 {
		return SentinelReading()
	}
	return s[len(s)-1]
}

// UpdateMode says how a SeriesUpdate applies to the stored series.
type UpdateMode int

const (
	// ReplaceSeries rewrites the whole data file. Window-fetch sources return
	// the full plot window every run.
	ReplaceSeries UpdateMode = iota
	// AppendReading adds one new reading to the existing file.
	AppendReading
)

// SeriesUpdate is what a source client hands back from one fetch.
type SeriesUpdate struct {
	Readings Series
	Mode     UpdateMode

	// Image holds an upstream-rendered hydrograph when the source provides
	// one (USGS); otherwise the runner renders its own from the stored series.
	Image []byte

	// NoChange reports that upstream had nothing new (rock report duplicate
	// suppression); the runner stores and renders nothing.
	NoChange bool
}
