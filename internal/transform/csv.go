package transform

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const hourlyTimeLayout = "2006-01-02T15:04:05"

// WriteDailyCSV persists the daily table. The sunrise/sunset columns are
// emitted only when at least one row carries them, mirroring the optional
// daily metadata join. Output is deterministic for identical input.
func WriteDailyCSV(path string, rows []DailyRecord) error {
	hasMeta := false
	for _, r := range rows {
		if r.Sunrise != "" || r.Sunset != "" {
			hasMeta = true
			break
		}
	}

	header := []string{"date", "temp_min", "temp_max", "total_rain", "pm25_avg", "pm10_avg", "pm25_category"}
	if hasMeta {
		header = append(header, "sunrise", "sunset")
	}
	header = append(header, "is_hot_day", "is_heavy_rain", "is_unhealthy_pm25")

	records := make([][]string, 0, len(rows)+1)
	records = append(records, header)
	for _, r := range rows {
		row := []string{
			r.Date,
			formatPtr(r.TempMin),
			formatPtr(r.TempMax),
			formatFloat(r.TotalRain),
			formatPtr(r.PM25Avg),
			formatPtr(r.PM10Avg),
			r.PM25Category,
		}
		if hasMeta {
			row = append(row, r.Sunrise, r.Sunset)
		}
		row = append(row,
			strconv.FormatBool(r.IsHotDay),
			strconv.FormatBool(r.IsHeavyRain),
			strconv.FormatBool(r.IsUnhealthyPM25),
		)
		records = append(records, row)
	}

	return writeCSV(path, records)
}

// WriteHourlyCSV persists the joined hourly table. Optional columns are
// included only when the source provided at least one value for them.
func WriteHourlyCSV(path string, rows []HourlyRecord) error {
	optional := []struct {
		name string
		get  func(HourlyRecord) *float64
	}{
		{"rh", func(r HourlyRecord) *float64 { return r.RH }},
		{"wind", func(r HourlyRecord) *float64 { return r.Wind }},
		{"feels_like", func(r HourlyRecord) *float64 { return r.FeelsLike }},
		{"wcode", func(r HourlyRecord) *float64 { return r.WCode }},
	}

	present := make([]bool, len(optional))
	for i, opt := range optional {
		for _, r := range rows {
			if opt.get(r) != nil {
				present[i] = true
				break
			}
		}
	}

	header := []string{"time", "temp", "rain", "pm25", "pm10"}
	for i, opt := range optional {
		if present[i] {
			header = append(header, opt.name)
		}
	}
	header = append(header, "date")

	records := make([][]string, 0, len(rows)+1)
	records = append(records, header)
	for _, r := range rows {
		row := []string{
			r.Time.Format(hourlyTimeLayout),
			formatPtr(r.Temp),
			formatPtr(r.Rain),
			formatPtr(r.PM25),
			formatPtr(r.PM10),
		}
		for i, opt := range optional {
			if present[i] {
				row = append(row, formatPtr(opt.get(r)))
			}
		}
		row = append(row, r.Date)
		records = append(records, row)
	}

	return writeCSV(path, records)
}

// ReadDailyCSV loads a persisted daily table, tolerating the optional
// columns being absent.
func ReadDailyCSV(path string) ([]DailyRecord, error) {
	records, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseDailyCSV(path, records)
}

func parseDailyCSV(path string, data []byte) ([]DailyRecord, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	all, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil
	}

	col := indexHeader(all[0])
	rows := make([]DailyRecord, 0, len(all)-1)
	for _, rec := range all[1:] {
		get := func(name string) string {
			if i, ok := col[name]; ok && i < len(rec) {
				return rec[i]
			}
			return ""
		}
		row := DailyRecord{
			Date:         get("date"),
			TempMin:      parsePtr(get("temp_min")),
			TempMax:      parsePtr(get("temp_max")),
			PM25Avg:      parsePtr(get("pm25_avg")),
			PM10Avg:      parsePtr(get("pm10_avg")),
			PM25Category: get("pm25_category"),
			Sunrise:      get("sunrise"),
			Sunset:       get("sunset"),
		}
		if v := parsePtr(get("total_rain")); v != nil {
			row.TotalRain = *v
		}
		row.IsHotDay = get("is_hot_day") == "true"
		row.IsHeavyRain = get("is_heavy_rain") == "true"
		row.IsUnhealthyPM25 = get("is_unhealthy_pm25") == "true"
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadHourlyCSV loads a persisted hourly table.
func ReadHourlyCSV(path string) ([]HourlyRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(bytes.NewReader(data))
	all, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil
	}

	col := indexHeader(all[0])
	rows := make([]HourlyRecord, 0, len(all)-1)
	for _, rec := range all[1:] {
		get := func(name string) string {
			if i, ok := col[name]; ok && i < len(rec) {
				return rec[i]
			}
			return ""
		}
		ts, ok := parseTime(get("time"))
		if !ok {
			continue
		}
		rows = append(rows, HourlyRecord{
			Time:      ts,
			Temp:      parsePtr(get("temp")),
			Rain:      parsePtr(get("rain")),
			PM25:      parsePtr(get("pm25")),
			PM10:      parsePtr(get("pm10")),
			RH:        parsePtr(get("rh")),
			Wind:      parsePtr(get("wind")),
			FeelsLike: parsePtr(get("feels_like")),
			WCode:     parsePtr(get("wcode")),
			Date:      get("date"),
		})
	}
	return rows, nil
}

func indexHeader(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	return col
}

func formatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parsePtr(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// writeCSV replaces the target file whole, via temp file + rename.
func writeCSV(path string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	w := csv.NewWriter(tmp)
	if err := w.WriteAll(records); err != nil {
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
