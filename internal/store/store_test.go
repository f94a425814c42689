package store

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/river-gage-etl/internal/domain"
)

func testStore(t *testing.T) (*Store, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	s, err := New(t.TempDir(), logger)
	require.NoError(t, err)
	return s, &buf
}

func cfsGage(id string) domain.Gage {
	return domain.Gage{ID: id, Type: domain.SourceDWR, Units: domain.UnitCFS}
}

func TestAppendThenLatest(t *testing.T) {
	s, _ := testStore(t)
	g := cfsGage("PLASPLCO")

	ts := time.Date(2023, time.May, 1, 8, 0, 0, 0, time.Local)
	require.NoError(t, s.Append(g, domain.NewReading(13.0, ts)))

	latest := s.Latest(g)
	assert.True(t, latest.Known)
	assert.Equal(t, 13.0, latest.Value)
	assert.Equal(t, ts, latest.Timestamp)
}

func TestReplace(t *testing.T) {
	s, _ := testStore(t)
	g := cfsGage("NSVBBRCO")

	first := domain.Series{
		domain.NewReading(12.5, time.Date(2023, 5, 1, 7, 0, 0, 0, time.Local)),
		domain.NewReading(13.0, time.Date(2023, 5, 1, 8, 0, 0, 0, time.Local)),
	}
	require.NoError(t, s.Replace(g, first))

	data, err := os.ReadFile(s.DataPath(g))
	require.NoError(t, err)
	assert.Equal(t, "12,2023-05-01,07:00:00\n13,2023-05-01,08:00:00\n", string(data))

	// A second replace supersedes the first entirely.
	require.NoError(t, s.Replace(g, domain.Series{
		domain.NewReading(20, time.Date(2023, 5, 2, 7, 0, 0, 0, time.Local)),
	}))
	data, err = os.ReadFile(s.DataPath(g))
	require.NoError(t, err)
	assert.Equal(t, "20,2023-05-02,07:00:00\n", string(data))
}

func TestReplace_SkipsUnknownReadings(t *testing.T) {
	s, _ := testStore(t)
	g := cfsGage("X")

	require.NoError(t, s.Replace(g, domain.Series{
		domain.NewReading(5, time.Date(2023, 5, 1, 7, 0, 0, 0, time.Local)),
		domain.SentinelReading(),
	}))

	series, err := s.Series(g)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 5.0, series[0].Value)
}

func TestAppend_SkipsUnknownReading(t *testing.T) {
	s, _ := testStore(t)
	g := cfsGage("X")

	ts := time.Date(2023, time.May, 1, 7, 0, 0, 0, time.Local)
	require.NoError(t, s.Append(g, domain.NewReading(5, ts)))
	require.NoError(t, s.Append(g, domain.SentinelReading()))

	// The sentinel must not be persisted: its placeholder value would read
	// back as a real number and poison the plot window.
	data, err := os.ReadFile(s.DataPath(g))
	require.NoError(t, err)
	assert.Equal(t, "5,2023-05-01,07:00:00\n", string(data))

	latest := s.Latest(g)
	assert.True(t, latest.Known)
	assert.Equal(t, 5.0, latest.Value)
}

func TestAppend_UnknownReadingOnlyLeavesNoFile(t *testing.T) {
	s, _ := testStore(t)
	g := cfsGage("Y")

	require.NoError(t, s.Append(g, domain.SentinelReading()))

	_, err := os.Stat(s.DataPath(g))
	assert.True(t, os.IsNotExist(err))
}

func TestLatest_MissingFile(t *testing.T) {
	s, logs := testStore(t)

	latest := s.Latest(cfsGage("ABSENT"))
	assert.False(t, latest.Known)
	assert.Equal(t, float64(domain.SentinelValue), latest.Value)
	assert.Contains(t, logs.String(), "no stored data")
}

func TestLatest_MalformedLastLine(t *testing.T) {
	s, logs := testStore(t)
	g := cfsGage("BAD")
	require.NoError(t, os.WriteFile(s.DataPath(g), []byte("garbage line\n"), 0o644))

	latest := s.Latest(g)
	assert.False(t, latest.Known)
	assert.Contains(t, logs.String(), "malformed last line")
}

func TestSeries_SkipsCorruptLine(t *testing.T) {
	s, logs := testStore(t)
	g := cfsGage("MIXED")

	content := "100,2023-05-01,07:00:00\n" +
		"oops,2023-05-01,08:00:00\n" +
		"120,2023-05-01,09:00:00\n"
	require.NoError(t, os.WriteFile(s.DataPath(g), []byte(content), 0o644))

	series, err := s.Series(g)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 100.0, series[0].Value)
	assert.Equal(t, 120.0, series[1].Value)

	assert.Equal(t, 1, strings.Count(logs.String(), "skipping corrupt record"))
}

func TestSeries_MissingFile(t *testing.T) {
	s, _ := testStore(t)

	series, err := s.Series(cfsGage("ABSENT"))
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestLastLine(t *testing.T) {
	s, _ := testStore(t)
	g := domain.Gage{ID: "PineView", Type: domain.SourcePRR, Units: domain.UnitFeet}

	_, ok := s.LastLine(g)
	assert.False(t, ok)

	require.NoError(t, s.Append(g, domain.NewReading(3.4, time.Date(2023, 5, 31, 7, 0, 0, 0, time.Local))))
	require.NoError(t, s.Append(g, domain.NewReading(3.6, time.Date(2023, 6, 1, 7, 0, 0, 0, time.Local))))

	line, ok := s.LastLine(g)
	require.True(t, ok)
	assert.Equal(t, "3.6,2023-06-01,07:00:00", line)
}

func TestWriteImage(t *testing.T) {
	s, _ := testStore(t)
	g := domain.Gage{ID: "06701900", Type: domain.SourceUSGS, Units: domain.UnitCFS}

	require.NoError(t, s.WriteImage(g, []byte("GIF89a")))

	data, err := os.ReadFile(s.ImagePath(g))
	require.NoError(t, err)
	assert.Equal(t, []byte("GIF89a"), data)
}
