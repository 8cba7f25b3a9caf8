package report

import (
	"math"
	"strings"

	"github.com/Velubby/etl-weather/internal/transform"
)

// Summary holds the metrics shown at the top of a report. It is computed
// fresh from the daily table on every render and never persisted.
type Summary struct {
	Start string
	End   string

	MinTemp *float64
	MaxTemp *float64

	WettestDate string
	WettestRain float64

	PM25Mean     *float64
	PM25Category string

	RainyDays int

	SunriseEarliest string // HH:MM
	SunsetLatest    string // HH:MM

	FeelsLikeAvg *float64
	DewPointAvg  *float64

	HotDays       int
	HeavyRainDays int
	UnhealthyDays int
}

// Summarize computes period metrics from the daily table. The hourly rows
// are optional and only feed the feels-like and dew-point means.
func Summarize(daily []transform.DailyRecord, hourly []transform.HourlyRecord) Summary {
	var s Summary
	if len(daily) == 0 {
		s.PM25Category = transform.CategoryUnknown
		return s
	}

	s.Start = daily[0].Date
	s.End = daily[len(daily)-1].Date

	var pm25Sum float64
	var pm25N int
	wettestIdx := -1

	for i, r := range daily {
		if r.TempMin != nil && (s.MinTemp == nil || *r.TempMin < *s.MinTemp) {
			v := *r.TempMin
			s.MinTemp = &v
		}
		if r.TempMax != nil && (s.MaxTemp == nil || *r.TempMax > *s.MaxTemp) {
			v := *r.TempMax
			s.MaxTemp = &v
		}
		if wettestIdx < 0 || r.TotalRain > daily[wettestIdx].TotalRain {
			wettestIdx = i
		}
		if r.TotalRain > 0 {
			s.RainyDays++
		}
		if r.PM25Avg != nil {
			pm25Sum += *r.PM25Avg
			pm25N++
		}
		if r.IsHotDay {
			s.HotDays++
		}
		if r.IsHeavyRain {
			s.HeavyRainDays++
		}
		if r.IsUnhealthyPM25 {
			s.UnhealthyDays++
		}
		if hhmm := clockOf(r.Sunrise); hhmm != "" && (s.SunriseEarliest == "" || hhmm < s.SunriseEarliest) {
			s.SunriseEarliest = hhmm
		}
		if hhmm := clockOf(r.Sunset); hhmm != "" && (s.SunsetLatest == "" || hhmm > s.SunsetLatest) {
			s.SunsetLatest = hhmm
		}
	}

	if wettestIdx >= 0 {
		s.WettestDate = daily[wettestIdx].Date
		s.WettestRain = daily[wettestIdx].TotalRain
	}
	if pm25N > 0 {
		mean := pm25Sum / float64(pm25N)
		s.PM25Mean = &mean
	}
	s.PM25Category = transform.CategorizePM25(s.PM25Mean)

	s.FeelsLikeAvg = meanFeelsLike(hourly)
	s.DewPointAvg = meanDewPoint(hourly)

	return s
}

func meanFeelsLike(hourly []transform.HourlyRecord) *float64 {
	var sum float64
	var n int
	for _, r := range hourly {
		if r.FeelsLike != nil {
			sum += *r.FeelsLike
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

// meanDewPoint derives dew point per hour from temperature and relative
// humidity via the Magnus approximation, then averages.
func meanDewPoint(hourly []transform.HourlyRecord) *float64 {
	const a, b = 17.62, 243.12
	var sum float64
	var n int
	for _, r := range hourly {
		if r.Temp == nil || r.RH == nil || *r.RH <= 0 {
			continue
		}
		gamma := math.Log(*r.RH/100) + a*(*r.Temp)/(b+*r.Temp)
		sum += b * gamma / (a - gamma)
		n++
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

// clockOf reduces an ISO timestamp like "2025-01-01T05:45" to "05:45".
func clockOf(ts string) string {
	if i := strings.IndexByte(ts, 'T'); i >= 0 && len(ts) >= i+6 {
		return ts[i+1 : i+6]
	}
	return ""
}
