package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSourceType(t *testing.T) {
	for _, valid := range []string{"USGS", "DWR", "WYSEO", "PRR", "VIRTUAL"} {
		st, err := ParseSourceType(valid)
		require.NoError(t, err)
		assert.Equal(t, SourceType(valid), st)
	}

	_, err := ParseSourceType("NOAA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOAA")
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		units    Units
		expected string
	}{
		{"cfs truncates down", 12.5, UnitCFS, "12"},
		{"cfs whole number", 13.0, UnitCFS, "13"},
		{"ac-ft truncates", 14213.8, UnitAcreFeet, "14213"},
		{"feet keeps decimals", 3.4, UnitFeet, "3.4"},
		{"feet whole number", 4.0, UnitFeet, "4"},
		{"negative cfs truncates toward zero", -2.7, UnitCFS, "-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatValue(tt.value, tt.units))
		})
	}
}

func TestReadingEncode(t *testing.T) {
	ts := time.Date(2023, time.May, 1, 7, 0, 0, 0, time.Local)

	assert.Equal(t, "12,2023-05-01,07:00:00", NewReading(12.5, ts).Encode(UnitCFS))
	assert.Equal(t, "3.4,2023-05-01,07:00:00", NewReading(3.4, ts).Encode(UnitFeet))
}

func TestParseStoredLine(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		r, err := ParseStoredLine("245,2023-05-01,07:15:00")
		require.NoError(t, err)
		assert.Equal(t, 245.0, r.Value)
		assert.True(t, r.Known)
		assert.Equal(t, time.Date(2023, time.May, 1, 7, 15, 0, 0, time.Local), r.Timestamp)
	})

	t.Run("non-numeric value", func(t *testing.T) {
		_, err := ParseStoredLine("N/A,2023-05-01,07:15:00")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "N/A")
	})

	t.Run("too few fields", func(t *testing.T) {
		_, err := ParseStoredLine("245,2023-05-01")
		require.Error(t, err)
	})
}

func TestSeriesLatest(t *testing.T) {
	empty := Series{}
	sentinel := empty.Latest()
	assert.False(t, sentinel.Known)
	assert.Equal(t, float64(SentinelValue), sentinel.Value)

	s := Series{
		NewReading(1, time.Date(2023, 5, 1, 7, 0, 0, 0, time.Local)),
		NewReading(2, time.Date(2023, 5, 1, 8, 0, 0, 0, time.Local)),
	}
	assert.Equal(t, 2.0, s.Latest().Value)
}

func TestReadingAge(t *testing.T) {
	now := time.Date(2023, time.May, 2, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { SetClock(nil) })

	r := NewReading(100, now.Add(-36*time.Hour))
	assert.Equal(t, 36*time.Hour, r.Age())

	assert.Zero(t, SentinelReading().Age())
}

func TestGageFiles(t *testing.T) {
	usgs := Gage{ID: "06701900", Type: SourceUSGS}
	assert.Equal(t, "06701900.cfs", usgs.DataFile())
	assert.Equal(t, "06701900.gif", usgs.ImageFile())

	dwr := Gage{ID: "PLASPLCO", Type: SourceDWR}
	assert.Equal(t, "PLASPLCO.png", dwr.ImageFile())
}
