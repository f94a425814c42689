// Package series computes virtual-gage series from stored real-gage series.
// All functions are pure over their inputs apart from the injected clock used
// for window clipping.
package series

import (
	"fmt"
	"sort"
	"time"

	"github.com/couchcryptid/river-gage-etl/internal/domain"
)

// acreFeetPerHourToCFS converts a reservoir storage rate of change to flow:
// 1 cfs ≈ 1/12 ac-ft per hour.
const acreFeetPerHourToCFS = 12

// Difference derives a series as a-b aligned on shared timestamps (inner
// join); timestamps missing in either input are dropped. The result is
// clipped to the last windowDays. Anti-symmetric by construction.
func Difference(a, b domain.Series, windowDays int) (domain.Series, error) {
	bByTime := make(map[int64]float64, len(b))
	for _, r := range b {
		if r.Known {
			bByTime[r.Timestamp.Unix()] = r.Value
		}
	}

	var out domain.Series
	for _, r := range a {
		if !r.Known {
			continue
		}
		bv, ok := bByTime[r.Timestamp.Unix()]
		if !ok {
			continue
		}
		out = append(out, domain.NewReading(r.Value-bv, r.Timestamp))
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("difference: %w", domain.ErrNoDataComputed)
	}

	out = clipWindow(out, windowDays)
	if len(out) == 0 {
		return nil, fmt.Errorf("difference: all points outside window: %w", domain.ErrNoDataComputed)
	}
	return out, nil
}

// EstimatedInflow derives a reservoir inflow estimate: both inputs are
// resampled to hourly means, the first difference of the reservoir storage
// series (ac-ft per hour) is scaled to cfs and added to the downstream flow.
// The result is clipped to the last windowDays, then points above 4x the
// clipped series' median are dropped as sensor artifacts (the storage sensor
// produces fake step spikes).
func EstimatedInflow(reservoir, downstream domain.Series, windowDays int) (domain.Series, error) {
	res := hourlyMeans(reservoir)
	down := hourlyMeans(downstream)

	downByHour := make(map[int64]float64, len(down))
	for _, p := range down {
		downByHour[p.hour.Unix()] = p.mean
	}

	var out domain.Series
	for i := 1; i < len(res); i++ {
		// Only adjacent hour buckets carry a per-hour rate; differencing
		// across a reporting gap would spread a multi-hour change over one
		// hour.
		if !res[i].hour.Equal(res[i-1].hour.Add(time.Hour)) {
			continue
		}
		change := res[i].mean - res[i-1].mean
		flow, ok := downByHour[res[i].hour.Unix()]
		if !ok {
			continue
		}
		inflow := change*acreFeetPerHourToCFS + flow
		out = append(out, domain.NewReading(inflow, res[i].hour))
	}

	out = clipWindow(out, windowDays)
	if len(out) == 0 {
		return nil, fmt.Errorf("estimated inflow: %w", domain.ErrNoDataComputed)
	}

	med := median(out)
	kept := out[:0]
	for _, r := range out {
		if r.Value < med*4 {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("estimated inflow: all points rejected as outliers: %w", domain.ErrNoDataComputed)
	}
	return kept, nil
}

// hourlyPoint is one resampled bucket.
type hourlyPoint struct {
	hour time.Time
	mean float64
}

// hourlyMeans buckets readings by hour and averages each bucket, returning
// buckets in chronological order. Unknown readings are ignored.
func hourlyMeans(s domain.Series) []hourlyPoint {
	sums := make(map[int64]float64)
	counts := make(map[int64]int)
	hours := make(map[int64]time.Time)

	for _, r := range s {
		if !r.Known {
			continue
		}
		h := r.Timestamp.Truncate(time.Hour)
		key := h.Unix()
		sums[key] += r.Value
		counts[key]++
		hours[key] = h
	}

	out := make([]hourlyPoint, 0, len(sums))
	for key, sum := range sums {
		out = append(out, hourlyPoint{hour: hours[key], mean: sum / float64(counts[key])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].hour.Before(out[j].hour) })
	return out
}

// clipWindow drops readings older than windowDays before the injected clock's
// current time.
func clipWindow(s domain.Series, windowDays int) domain.Series {
	cutoff := domain.Clock().Now().AddDate(0, 0, -windowDays)
	var out domain.Series
	for _, r := range s {
		if r.Timestamp.After(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

// median returns the middle value of the series (mean of the two middle
// values for even lengths).
func median(s domain.Series) float64 {
	values := make([]float64, len(s))
	for i, r := range s {
		values[i] = r.Value
	}
	sort.Float64s(values)

	n := len(values)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}
