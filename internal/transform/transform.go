// Package transform is the aggregation engine: it merges ragged hourly
// arrays from the weather and air-quality sources into typed hourly and
// daily tables. Malformed upstream data never aborts a run; affected
// fields degrade to null.
package transform

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Velubby/etl-weather/internal/slug"
)

// Threshold rules for the daily alert columns.
const (
	hotDayTempC   = 33.0
	heavyRainMM   = 20.0
	unhealthyPM25 = 55.4
)

// HourlyRecord is one row of the joined hourly table. Pointer fields are
// nullable: a timestamp present in only one source yields nulls for the
// other source's fields.
type HourlyRecord struct {
	Time      time.Time `json:"time"`
	Temp      *float64  `json:"temp"`
	Rain      *float64  `json:"rain"`
	PM25      *float64  `json:"pm25"`
	PM10      *float64  `json:"pm10"`
	RH        *float64  `json:"rh,omitempty"`
	Wind      *float64  `json:"wind,omitempty"`
	FeelsLike *float64  `json:"feels_like,omitempty"`
	WCode     *float64  `json:"wcode,omitempty"`
	Date      string    `json:"date"`
}

// DailyRecord is one aggregated row per calendar date. TotalRain is never
// null: a day with no rain observations reports 0.
type DailyRecord struct {
	Date            string   `json:"date"`
	TempMin         *float64 `json:"temp_min"`
	TempMax         *float64 `json:"temp_max"`
	TotalRain       float64  `json:"total_rain"`
	PM25Avg         *float64 `json:"pm25_avg"`
	PM10Avg         *float64 `json:"pm10_avg"`
	PM25Category    string   `json:"pm25_category"`
	Sunrise         string   `json:"sunrise,omitempty"`
	Sunset          string   `json:"sunset,omitempty"`
	IsHotDay        bool     `json:"is_hot_day"`
	IsHeavyRain     bool     `json:"is_heavy_rain"`
	IsUnhealthyPM25 bool     `json:"is_unhealthy_pm25"`
}

var (
	coreWeatherFields     = []string{"temperature_2m", "precipitation"}
	extendedWeatherFields = []string{
		"temperature_2m", "precipitation",
		"relative_humidity_2m", "wind_speed_10m",
		"apparent_temperature", "weather_code",
	}
	airFields = []string{"pm2_5", "pm10"}
)

// BuildHourly joins the two hourly blocks on time with full outer join
// semantics, sorted ascending. Rows with an unparseable time are dropped.
// extended selects the best-effort optional columns.
func BuildHourly(weather, air map[string]any, extended bool) []HourlyRecord {
	weatherFields := coreWeatherFields
	if extended {
		weatherFields = extendedWeatherFields
	}
	hw := buildHourlyFrame(weather["hourly"], weatherFields)
	ha := buildHourlyFrame(air["hourly"], airFields)

	// Index each frame by its raw time string; first occurrence wins.
	wIdx := indexTimes(hw.times)
	aIdx := indexTimes(ha.times)

	keys := unionTimes(hw.times, ha.times)

	rows := make([]HourlyRecord, 0, len(keys))
	for _, key := range keys {
		ts, ok := parseTime(key)
		if !ok {
			continue
		}
		rec := HourlyRecord{Time: ts, Date: ts.Format("2006-01-02")}
		if i, ok := wIdx[key]; ok {
			rec.Temp = hw.cols["temperature_2m"][i]
			rec.Rain = hw.cols["precipitation"][i]
			if extended {
				rec.RH = hw.cols["relative_humidity_2m"][i]
				rec.Wind = hw.cols["wind_speed_10m"][i]
				rec.FeelsLike = hw.cols["apparent_temperature"][i]
				rec.WCode = hw.cols["weather_code"][i]
			}
		}
		if i, ok := aIdx[key]; ok {
			rec.PM25 = ha.cols["pm2_5"][i]
			rec.PM10 = ha.cols["pm10"][i]
		}
		rows = append(rows, rec)
	}
	return rows
}

// BuildDaily aggregates the joined hourly table by calendar date and
// left-joins sunrise/sunset metadata from the weather source's own daily
// block when present.
func BuildDaily(weather, air map[string]any) []DailyRecord {
	hourly := BuildHourly(weather, air, false)

	byDate := make(map[string][]HourlyRecord)
	for _, rec := range hourly {
		byDate[rec.Date] = append(byDate[rec.Date], rec)
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	meta := buildDailyMeta(weather["daily"])

	out := make([]DailyRecord, 0, len(dates))
	for _, date := range dates {
		group := byDate[date]

		rec := DailyRecord{
			Date:      date,
			TempMin:   roundPtr(minOf(group, func(r HourlyRecord) *float64 { return r.Temp })),
			TempMax:   roundPtr(maxOf(group, func(r HourlyRecord) *float64 { return r.Temp })),
			TotalRain: round2(sumNullAsZero(group, func(r HourlyRecord) *float64 { return r.Rain })),
			PM25Avg:   roundPtr(meanOf(group, func(r HourlyRecord) *float64 { return r.PM25 })),
			PM10Avg:   roundPtr(meanOf(group, func(r HourlyRecord) *float64 { return r.PM10 })),
		}
		rec.PM25Category = CategorizePM25(rec.PM25Avg)

		if m, ok := meta[date]; ok {
			rec.Sunrise = m.sunrise
			rec.Sunset = m.sunset
		}

		rec.IsHotDay = rec.TempMax != nil && *rec.TempMax > hotDayTempC
		rec.IsHeavyRain = rec.TotalRain > heavyRainMM
		rec.IsUnhealthyPM25 = rec.PM25Avg != nil && *rec.PM25Avg > unhealthyPM25

		out = append(out, rec)
	}
	return out
}

type dayMeta struct {
	sunrise string
	sunset  string
}

// buildDailyMeta extracts date -> sunrise/sunset from the weather daily
// block with the same ragged-array-safe construction as the hourly frames.
func buildDailyMeta(block any) map[string]dayMeta {
	daily, _ := block.(map[string]any)

	rawTimes, _ := daily["time"].([]any)
	n := len(rawTimes)
	if n == 0 {
		return nil
	}

	fit := func(key string) []string {
		out := make([]string, n)
		vals, ok := daily[key].([]any)
		if !ok || len(vals) != n {
			return out
		}
		for i, v := range vals {
			s, _ := v.(string)
			out[i] = s
		}
		return out
	}
	sunrises := fit("sunrise")
	sunsets := fit("sunset")

	meta := make(map[string]dayMeta, n)
	for i, v := range rawTimes {
		s, _ := v.(string)
		date, ok := parseDate(s)
		if !ok {
			continue
		}
		meta[date] = dayMeta{sunrise: sunrises[i], sunset: sunsets[i]}
	}
	return meta
}

func indexTimes(times []string) map[string]int {
	idx := make(map[string]int, len(times))
	for i, t := range times {
		if _, seen := idx[t]; !seen {
			idx[t] = i
		}
	}
	return idx
}

func unionTimes(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	keys := make([]string, 0, len(a)+len(b))
	for _, t := range a {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			keys = append(keys, t)
		}
	}
	for _, t := range b {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			keys = append(keys, t)
		}
	}
	// ISO-8601 timestamps sort correctly as strings.
	sort.Strings(keys)
	return keys
}

func minOf(rows []HourlyRecord, get func(HourlyRecord) *float64) *float64 {
	var best *float64
	for _, r := range rows {
		v := get(r)
		if v == nil {
			continue
		}
		if best == nil || *v < *best {
			val := *v
			best = &val
		}
	}
	return best
}

func maxOf(rows []HourlyRecord, get func(HourlyRecord) *float64) *float64 {
	var best *float64
	for _, r := range rows {
		v := get(r)
		if v == nil {
			continue
		}
		if best == nil || *v > *best {
			val := *v
			best = &val
		}
	}
	return best
}

func sumNullAsZero(rows []HourlyRecord, get func(HourlyRecord) *float64) float64 {
	var sum float64
	for _, r := range rows {
		if v := get(r); v != nil {
			sum += *v
		}
	}
	return sum
}

// meanOf is a null-safe mean: nil when there are no observations, never 0.
func meanOf(rows []HourlyRecord, get func(HourlyRecord) *float64) *float64 {
	var sum float64
	var n int
	for _, r := range rows {
		if v := get(r); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func roundPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := round2(*v)
	return &r
}

// Engine runs the transform stage against the persisted raw bundles.
type Engine struct {
	RawDir       string
	ProcessedDir string
}

func NewEngine(rawDir, processedDir string) *Engine {
	return &Engine{RawDir: rawDir, ProcessedDir: processedDir}
}

// Daily builds the daily aggregate table for a city and writes it as CSV.
// Returns the output path.
func (e *Engine) Daily(city, outPath string) (string, error) {
	weather, air, err := e.loadRaw(city)
	if err != nil {
		return "", err
	}

	rows := BuildDaily(weather, air)

	if outPath == "" {
		outPath = filepath.Join(e.ProcessedDir, slug.Make(city)+"_daily.csv")
	}
	if err := WriteDailyCSV(outPath, rows); err != nil {
		return "", err
	}
	log.Printf("INFO: saved daily aggregates -> %s", outPath)
	return outPath, nil
}

// Hourly builds the joined hourly table (no aggregation) and writes it as
// CSV. Returns the output path.
func (e *Engine) Hourly(city, outPath string) (string, error) {
	weather, air, err := e.loadRaw(city)
	if err != nil {
		return "", err
	}

	rows := BuildHourly(weather, air, true)

	if outPath == "" {
		outPath = filepath.Join(e.ProcessedDir, slug.Make(city)+"_hourly.csv")
	}
	if err := WriteHourlyCSV(outPath, rows); err != nil {
		return "", err
	}
	log.Printf("INFO: saved hourly data -> %s", outPath)
	return outPath, nil
}

func (e *Engine) loadRaw(city string) (weather, air map[string]any, err error) {
	key := slug.Make(city)
	weatherPath := filepath.Join(e.RawDir, key+"_weather.json")
	airPath := filepath.Join(e.RawDir, key+"_air.json")

	weather, err = readRawJSON(weatherPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, &MissingInputError{City: city}
		}
		return nil, nil, err
	}
	air, err = readRawJSON(airPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, &MissingInputError{City: city}
		}
		return nil, nil, err
	}
	return weather, air, nil
}

func readRawJSON(path string) (map[string]any, error) {
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
