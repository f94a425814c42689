package dwr

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/river-gage-etl/internal/domain"
)

func testClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func dischargeGage() domain.Gage {
	return domain.Gage{ID: "PLASPLCO", Type: domain.SourceDWR, Units: domain.UnitCFS}
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PLASPLCO", r.URL.Query().Get("abbrev"))
		assert.Equal(t, "DISCHRG", r.URL.Query().Get("parameter"))

		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{"ResultList":[
			{"measValue":13.0,"measDateTime":"2023-05-01T08:00:00"},
			{"measValue":12.5,"measDateTime":"2023-05-01T07:00:00"}
		]}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	update, err := testClient(srv.URL).Fetch(context.Background(), dischargeGage())
	require.NoError(t, err)

	assert.Equal(t, domain.ReplaceSeries, update.Mode)
	require.Len(t, update.Readings, 2)

	// Upstream order is not trusted; readings come back sorted.
	assert.Equal(t, 12.5, update.Readings[0].Value)
	assert.Equal(t, time.Date(2023, time.May, 1, 7, 0, 0, 0, time.Local), update.Readings[0].Timestamp)
	assert.Equal(t, 13.0, update.Readings[1].Value)
}

func TestFetch_ReservoirUsesStorageParameter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "STORAGE", r.URL.Query().Get("parameter"))
		_, _ = w.Write([]byte(`{"ResultList":[{"measValue":14213.8,"measDateTime":"2023-05-01T07:00:00"}]}`))
	}))
	defer srv.Close()

	reservoir := domain.Gage{ID: "BRKDAMCO", Type: domain.SourceDWR, Units: domain.UnitAcreFeet}
	update, err := testClient(srv.URL).Fetch(context.Background(), reservoir)
	require.NoError(t, err)
	require.Len(t, update.Readings, 1)
	assert.Equal(t, 14213.8, update.Readings[0].Value)
}

func TestFetch_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), dischargeGage())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestFetch_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance page</html>`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), dischargeGage())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamFormatChanged)
}

func TestFetch_EmptyResultList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ResultList":[]}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), dischargeGage())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamFormatChanged)
}

func TestFetch_BadTimestamp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ResultList":[{"measValue":12.5,"measDateTime":"05/01/2023 07:00"}]}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), dischargeGage())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamFormatChanged)
}
