// Package fetch retrieves raw hourly weather and air-quality forecasts
// from Open-Meteo and persists them under data/raw.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Velubby/etl-weather/internal/geo"
	"github.com/Velubby/etl-weather/internal/slug"
)

const (
	forecastURL   = "https://api.open-meteo.com/v1/forecast"
	airQualityURL = "https://air-quality-api.open-meteo.com/v1/air-quality"

	weatherHourlyFields = "temperature_2m,precipitation,relative_humidity_2m,wind_speed_10m,apparent_temperature,weather_code"
	weatherDailyFields  = "sunrise,sunset"
	airHourlyFields     = "pm2_5,pm10"
)

// Bundle is the pair of raw JSON documents for one city and fetch.
type Bundle struct {
	Weather map[string]any
	Air     map[string]any
}

// Options control a single fetch run.
type Options struct {
	Days     int
	Timezone string // overrides the geocoded timezone when non-empty

	Offline   bool   // read the sample bundle instead of calling the network
	SampleDir string // overrides the default sample directory
	Fallback  bool   // substitute the sample on network failure
}

// Result reports where a fetch run persisted its artifacts.
type Result struct {
	Location      geo.Location
	WeatherPath   string
	AirPath       string
	WeatherLatest string
	AirLatest     string
}

// Fetcher retrieves and persists raw forecast bundles.
type Fetcher struct {
	client   *http.Client
	geocoder *geo.Client

	rawDir    string
	sampleDir string

	weatherURL string
	airURL     string

	backoff   BackoffConfig
	weatherCB *gobreaker.CircuitBreaker
	airCB     *gobreaker.CircuitBreaker
}

// New creates a Fetcher writing into rawDir and reading samples from
// sampleDir.
func New(client *http.Client, geocoder *geo.Client, rawDir, sampleDir string) *Fetcher {
	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		}
	}
	return &Fetcher{
		client:     client,
		geocoder:   geocoder,
		rawDir:     rawDir,
		sampleDir:  sampleDir,
		weatherURL: forecastURL,
		airURL:     airQualityURL,
		backoff:    defaultBackoff(),
		weatherCB:  gobreaker.NewCircuitBreaker(settings("open-meteo-forecast")),
		airCB:      gobreaker.NewCircuitBreaker(settings("open-meteo-air-quality")),
	}
}

// WithEndpoints overrides the upstream URLs, for tests.
func (f *Fetcher) WithEndpoints(weatherURL, airURL string) *Fetcher {
	f.weatherURL = weatherURL
	f.airURL = airURL
	return f
}

// Run fetches the bundle for a city and persists it twice per kind: a
// timestamped archival copy and a "latest" copy overwritten each run.
func (f *Fetcher) Run(ctx context.Context, city string, opts Options) (Result, error) {
	if opts.Days < 1 || opts.Days > 16 {
		return Result{}, fmt.Errorf("%w: got %d", ErrInvalidRange, opts.Days)
	}

	key := slug.Make(city)
	var bundle Bundle
	res := Result{Location: geo.Location{Name: city}}

	if opts.Offline {
		log.Printf("INFO: offline mode, using sample bundle for %q", city)
		b, err := f.loadSample(key, opts.SampleDir)
		if err != nil {
			return Result{}, err
		}
		bundle = b
	} else {
		loc, err := f.geocoder.Resolve(ctx, city)
		if err != nil {
			return Result{}, err
		}
		tz := opts.Timezone
		if tz == "" {
			tz = loc.Timezone
		}
		if tz == "" {
			tz = "auto"
		}
		log.Printf("INFO: geocoded %q -> (lat=%.4f, lon=%.4f, tz=%s)", loc.Name, loc.Latitude, loc.Longitude, tz)
		res.Location = loc

		b, err := f.fetchBundle(ctx, loc, opts.Days, tz)
		if err != nil {
			if !opts.Fallback {
				return Result{}, err
			}
			log.Printf("WARN: fetch failed (%v); trying sample bundle", err)
			sb, sampleErr := f.loadSample(key, opts.SampleDir)
			if sampleErr != nil {
				// No sample to fall back to; the network failure is the
				// error worth reporting.
				return Result{}, err
			}
			b = sb
		}
		bundle = b
	}

	ts := time.Now().Format("20060102T150405")
	res.WeatherPath = filepath.Join(f.rawDir, fmt.Sprintf("%s_weather_%s.json", key, ts))
	res.AirPath = filepath.Join(f.rawDir, fmt.Sprintf("%s_air_%s.json", key, ts))
	res.WeatherLatest = filepath.Join(f.rawDir, key+"_weather.json")
	res.AirLatest = filepath.Join(f.rawDir, key+"_air.json")

	artifacts := []struct {
		path string
		doc  map[string]any
	}{
		{res.WeatherPath, bundle.Weather},
		{res.WeatherLatest, bundle.Weather},
		{res.AirPath, bundle.Air},
		{res.AirLatest, bundle.Air},
	}
	for _, a := range artifacts {
		if err := writeJSON(a.path, a.doc); err != nil {
			return Result{}, err
		}
		log.Printf("INFO: saved %s", a.path)
	}

	return res, nil
}

func (f *Fetcher) fetchBundle(ctx context.Context, loc geo.Location, days int, tz string) (Bundle, error) {
	weather, err := requestJSON(ctx, f.client, f.weatherCB, f.backoff, f.weatherURL+"?"+forecastQuery(loc, days, tz))
	if err != nil {
		return Bundle{}, err
	}
	air, err := requestJSON(ctx, f.client, f.airCB, f.backoff, f.airURL+"?"+airQuery(loc, days, tz))
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{Weather: weather, Air: air}, nil
}

func forecastQuery(loc geo.Location, days int, tz string) string {
	v := baseQuery(loc, days, tz)
	v.Set("hourly", weatherHourlyFields)
	v.Set("daily", weatherDailyFields)
	return v.Encode()
}

func airQuery(loc geo.Location, days int, tz string) string {
	v := baseQuery(loc, days, tz)
	v.Set("hourly", airHourlyFields)
	return v.Encode()
}

func baseQuery(loc geo.Location, days int, tz string) url.Values {
	v := url.Values{}
	v.Set("latitude", fmt.Sprintf("%f", loc.Latitude))
	v.Set("longitude", fmt.Sprintf("%f", loc.Longitude))
	v.Set("forecast_days", fmt.Sprintf("%d", days))
	v.Set("timezone", tz)
	return v
}

func (f *Fetcher) loadSample(key, overrideDir string) (Bundle, error) {
	dir := f.sampleDir
	if overrideDir != "" {
		dir = overrideDir
	}
	weatherPath := filepath.Join(dir, key+"_weather.json")
	airPath := filepath.Join(dir, key+"_air.json")

	weather, err := readJSON(weatherPath)
	if err != nil {
		return Bundle{}, fmt.Errorf("sample not available in %s: %w", dir, err)
	}
	air, err := readJSON(airPath)
	if err != nil {
		return Bundle{}, fmt.Errorf("sample not available in %s: %w", dir, err)
	}
	return Bundle{Weather: weather, Air: air}, nil
}

func readJSON(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// writeJSON replaces the target atomically: readers see either the old or
// the new complete document, never a partial one.
func writeJSON(path string, doc map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
