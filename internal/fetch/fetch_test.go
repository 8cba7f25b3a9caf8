package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Velubby/etl-weather/internal/geo"
)

func geocodeHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(`{"results":[{"name":"Bandung","latitude":-6.9175,"longitude":107.6191,"timezone":"Asia/Jakarta"}]}`))
}

func newFetcher(t *testing.T, weatherHandler, airHandler http.HandlerFunc) (*Fetcher, string) {
	t.Helper()

	geocodeSrv := httptest.NewServer(http.HandlerFunc(geocodeHandler))
	t.Cleanup(geocodeSrv.Close)
	weatherSrv := httptest.NewServer(weatherHandler)
	t.Cleanup(weatherSrv.Close)
	airSrv := httptest.NewServer(airHandler)
	t.Cleanup(airSrv.Close)

	dir := t.TempDir()
	client := &http.Client{Timeout: 5 * time.Second}
	geocoder := geo.New(client).WithBaseURL(geocodeSrv.URL)
	f := New(client, geocoder, filepath.Join(dir, "raw"), filepath.Join(dir, "samples"))
	f.WithEndpoints(weatherSrv.URL, airSrv.URL)
	f.backoff.InitialInterval = time.Millisecond
	return f, dir
}

func okHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}
}

func writeSample(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestRunRejectsInvalidDayRange(t *testing.T) {
	f, _ := newFetcher(t, okHandler(`{}`), okHandler(`{}`))

	for _, days := range []int{0, -1, 17, 20} {
		_, err := f.Run(context.Background(), "Bandung", Options{Days: days})
		assert.ErrorIs(t, err, ErrInvalidRange, "days=%d", days)
	}
}

func TestRunPersistsLatestAndTimestamped(t *testing.T) {
	weather := `{"hourly":{"time":["2025-01-01T00:00"],"temperature_2m":[26.0],"precipitation":[0.1]}}`
	air := `{"hourly":{"time":["2025-01-01T00:00"],"pm2_5":[10.0],"pm10":[20.0]}}`
	f, _ := newFetcher(t, okHandler(weather), okHandler(air))

	res, err := f.Run(context.Background(), "Bandung", Options{Days: 16})
	require.NoError(t, err)

	for _, p := range []string{res.WeatherPath, res.AirPath, res.WeatherLatest, res.AirLatest} {
		_, statErr := os.Stat(p)
		assert.NoError(t, statErr, "expected %s to exist", p)
	}

	// Each latest copy carries the same document as its timestamped
	// sibling, and the two kinds never swap payloads.
	readDoc := func(p string) map[string]any {
		data, readErr := os.ReadFile(p)
		require.NoError(t, readErr)
		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc))
		return doc
	}
	assert.Equal(t, readDoc(res.WeatherPath), readDoc(res.WeatherLatest))
	assert.Equal(t, readDoc(res.AirPath), readDoc(res.AirLatest))

	weatherDoc := readDoc(res.WeatherLatest)
	hourly, ok := weatherDoc["hourly"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, hourly, "temperature_2m")

	airDoc := readDoc(res.AirLatest)
	hourly, ok = airDoc["hourly"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, hourly, "pm2_5")
}

func TestRunRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	failing := func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}
	f, _ := newFetcher(t, failing, okHandler(`{}`))

	_, err := f.Run(context.Background(), "Bandung", Options{Days: 7})
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, int32(3), calls.Load(), "expected 3 attempts")
}

func TestRunFallsBackToSample(t *testing.T) {
	failing := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}
	f, dir := newFetcher(t, failing, failing)
	sampleDir := filepath.Join(dir, "samples")
	writeSample(t, sampleDir, "bandung_weather.json", `{"hourly":{"time":[],"temperature_2m":[]}}`)
	writeSample(t, sampleDir, "bandung_air.json", `{"hourly":{"time":[],"pm2_5":[]}}`)

	res, err := f.Run(context.Background(), "Bandung", Options{Days: 7, Fallback: true})
	require.NoError(t, err)
	_, statErr := os.Stat(res.WeatherLatest)
	assert.NoError(t, statErr)
}

func TestRunFallbackWithoutSamplePropagatesNetworkError(t *testing.T) {
	failing := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}
	f, _ := newFetcher(t, failing, failing)

	_, err := f.Run(context.Background(), "Bandung", Options{Days: 7, Fallback: true})
	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestRunOfflineRequiresSample(t *testing.T) {
	f, _ := newFetcher(t, okHandler(`{}`), okHandler(`{}`))

	_, err := f.Run(context.Background(), "Bandung", Options{Days: 7, Offline: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist), "expected a missing-file error, got %v", err)
}

func TestRunOfflineUsesSample(t *testing.T) {
	f, dir := newFetcher(t, okHandler(`{}`), okHandler(`{}`))
	sampleDir := filepath.Join(dir, "samples")
	writeSample(t, sampleDir, "bandung_weather.json", `{"hourly":{"time":[]}}`)
	writeSample(t, sampleDir, "bandung_air.json", `{"hourly":{"time":[]}}`)

	res, err := f.Run(context.Background(), "Bandung", Options{Days: 7, Offline: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "raw", "bandung_weather.json"), res.WeatherLatest)
}
