package series

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/river-gage-etl/internal/domain"
)

// freezeClock pins the domain clock so window clipping is deterministic.
func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func hourly(start time.Time, values ...float64) domain.Series {
	s := make(domain.Series, len(values))
	for i, v := range values {
		s[i] = domain.NewReading(v, start.Add(time.Duration(i)*time.Hour))
	}
	return s
}

func TestDifference(t *testing.T) {
	start := time.Date(2023, time.May, 1, 6, 0, 0, 0, time.Local)
	freezeClock(t, start.Add(12*time.Hour))

	a := hourly(start, 300, 310, 320)
	b := hourly(start, 100, 105, 110)

	diff, err := Difference(a, b, 7)
	require.NoError(t, err)
	require.Len(t, diff, 3)
	assert.Equal(t, 200.0, diff[0].Value)
	assert.Equal(t, 205.0, diff[1].Value)
	assert.Equal(t, 210.0, diff[2].Value)
	assert.Equal(t, start, diff[0].Timestamp)
}

func TestDifference_AntiSymmetric(t *testing.T) {
	start := time.Date(2023, time.May, 1, 6, 0, 0, 0, time.Local)
	freezeClock(t, start.Add(12*time.Hour))

	a := hourly(start, 300, 310, 320, 290)
	b := hourly(start, 100, 120, 95, 310)

	ab, err := Difference(a, b, 7)
	require.NoError(t, err)
	ba, err := Difference(b, a, 7)
	require.NoError(t, err)

	require.Equal(t, len(ab), len(ba))
	for i := range ab {
		assert.Equal(t, ab[i].Value, -ba[i].Value)
		assert.Equal(t, ab[i].Timestamp, ba[i].Timestamp)
	}
}

func TestDifference_InnerJoin(t *testing.T) {
	start := time.Date(2023, time.May, 1, 6, 0, 0, 0, time.Local)
	freezeClock(t, start.Add(12*time.Hour))

	a := hourly(start, 300, 310, 320)
	// b is missing the middle timestamp.
	b := domain.Series{
		domain.NewReading(100, start),
		domain.NewReading(110, start.Add(2*time.Hour)),
	}

	diff, err := Difference(a, b, 7)
	require.NoError(t, err)
	require.Len(t, diff, 2)
	assert.Equal(t, 200.0, diff[0].Value)
	assert.Equal(t, 210.0, diff[1].Value)
}

func TestDifference_NoSharedTimestamps(t *testing.T) {
	start := time.Date(2023, time.May, 1, 6, 0, 0, 0, time.Local)
	freezeClock(t, start.Add(12*time.Hour))

	a := hourly(start, 300, 310)
	b := hourly(start.Add(30*time.Minute), 100, 105)

	_, err := Difference(a, b, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoDataComputed)
}

func TestDifference_ClipsWindow(t *testing.T) {
	now := time.Date(2023, time.May, 10, 12, 0, 0, 0, time.Local)
	freezeClock(t, now)

	old := now.AddDate(0, 0, -10)
	recent := now.Add(-2 * time.Hour)
	a := domain.Series{domain.NewReading(300, old), domain.NewReading(310, recent)}
	b := domain.Series{domain.NewReading(100, old), domain.NewReading(105, recent)}

	diff, err := Difference(a, b, 7)
	require.NoError(t, err)
	require.Len(t, diff, 1)
	assert.Equal(t, recent, diff[0].Timestamp)
}

func TestEstimatedInflow(t *testing.T) {
	start := time.Date(2023, time.May, 1, 6, 0, 0, 0, time.Local)
	freezeClock(t, start.Add(24*time.Hour))

	// Reservoir storage rising 2 ac-ft per hour; downstream steady at 50 cfs.
	reservoir := hourly(start, 14000, 14002, 14004, 14006)
	downstream := hourly(start, 50, 50, 50, 50)

	inflow, err := EstimatedInflow(reservoir, downstream, 7)
	require.NoError(t, err)
	require.Len(t, inflow, 3)
	for _, r := range inflow {
		// 2 ac-ft/h * 12 + 50 cfs.
		assert.Equal(t, 74.0, r.Value)
	}
	assert.Equal(t, start.Add(time.Hour), inflow[0].Timestamp)
}

func TestEstimatedInflow_HourlyMeans(t *testing.T) {
	start := time.Date(2023, time.May, 1, 6, 0, 0, 0, time.Local)
	freezeClock(t, start.Add(24*time.Hour))

	// Two readings inside each hour are averaged before differencing.
	reservoir := domain.Series{
		domain.NewReading(14000, start),
		domain.NewReading(14002, start.Add(30*time.Minute)),
		domain.NewReading(14003, start.Add(time.Hour)),
		domain.NewReading(14005, start.Add(90*time.Minute)),
	}
	downstream := domain.Series{
		domain.NewReading(40, start.Add(time.Hour)),
		domain.NewReading(60, start.Add(90*time.Minute)),
	}

	inflow, err := EstimatedInflow(reservoir, downstream, 7)
	require.NoError(t, err)
	require.Len(t, inflow, 1)
	// Hourly means 14001 -> 14004: +3 ac-ft/h * 12 + mean(40, 60).
	assert.Equal(t, 86.0, inflow[0].Value)
}

func TestEstimatedInflow_SkipsReportingGaps(t *testing.T) {
	start := time.Date(2023, time.May, 1, 6, 0, 0, 0, time.Local)
	freezeClock(t, start.Add(24*time.Hour))

	// The storage sensor goes quiet for five hours while rising 10 ac-ft.
	// Differencing across the gap would report the whole change as a one-hour
	// rate (120 cfs over downstream); the post-gap point must be dropped.
	reservoir := domain.Series{
		domain.NewReading(14000, start),
		domain.NewReading(14002, start.Add(time.Hour)),
		domain.NewReading(14012, start.Add(6*time.Hour)),
		domain.NewReading(14014, start.Add(7*time.Hour)),
	}
	downstream := hourly(start, 50, 50, 50, 50, 50, 50, 50, 50)

	inflow, err := EstimatedInflow(reservoir, downstream, 7)
	require.NoError(t, err)

	require.Len(t, inflow, 2)
	assert.Equal(t, 74.0, inflow[0].Value)
	assert.Equal(t, start.Add(time.Hour), inflow[0].Timestamp)
	assert.Equal(t, 74.0, inflow[1].Value)
	assert.Equal(t, start.Add(7*time.Hour), inflow[1].Timestamp)
}

func TestEstimatedInflow_DropsOutliers(t *testing.T) {
	start := time.Date(2023, time.May, 1, 6, 0, 0, 0, time.Local)
	freezeClock(t, start.Add(24*time.Hour))

	// A fake 100 ac-ft step in the storage sensor produces a spike far above
	// the rest of the series.
	reservoir := hourly(start, 14000, 14002, 14104, 14106, 14108, 14110)
	downstream := hourly(start, 50, 50, 50, 50, 50, 50)

	inflow, err := EstimatedInflow(reservoir, downstream, 7)
	require.NoError(t, err)

	med := median(inflow)
	for _, r := range inflow {
		assert.Less(t, r.Value, med*4)
	}
	require.Len(t, inflow, 4)
}

func TestEstimatedInflow_WindowBound(t *testing.T) {
	now := time.Date(2023, time.May, 10, 12, 0, 0, 0, time.Local)
	freezeClock(t, now)

	reservoir := hourly(now.AddDate(0, 0, -9), 14000, 14002, 14004)
	downstream := hourly(now.AddDate(0, 0, -9), 50, 50, 50)

	_, err := EstimatedInflow(reservoir, downstream, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoDataComputed)
}

func TestEstimatedInflow_WindowKeepsRecentOnly(t *testing.T) {
	now := time.Date(2023, time.May, 10, 12, 0, 0, 0, time.Local)
	freezeClock(t, now)

	old := now.AddDate(0, 0, -9)
	recent := now.Add(-3 * time.Hour)
	reservoir := append(hourly(old, 13000, 13001, 13002), hourly(recent, 14000, 14002, 14004)...)
	downstream := append(hourly(old, 40, 40, 40), hourly(recent, 50, 50, 50)...)

	inflow, err := EstimatedInflow(reservoir, downstream, 7)
	require.NoError(t, err)

	cutoff := now.AddDate(0, 0, -7)
	for _, r := range inflow {
		assert.True(t, r.Timestamp.After(cutoff), "point %v older than window", r.Timestamp)
	}
}

func TestMedian(t *testing.T) {
	odd := hourly(time.Date(2023, 5, 1, 0, 0, 0, 0, time.Local), 5, 1, 3)
	assert.Equal(t, 3.0, median(odd))

	even := hourly(time.Date(2023, 5, 1, 0, 0, 0, 0, time.Local), 4, 1, 3, 2)
	assert.Equal(t, 2.5, median(even))

	assert.Equal(t, 0.0, median(nil))
}
