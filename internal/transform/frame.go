package transform

import (
	"strconv"
	"strings"
	"time"
)

// hourlyFrame is a column-oriented view of one source's "hourly" block.
// Every column has exactly len(times) entries.
type hourlyFrame struct {
	times []string
	cols  map[string][]*float64
}

// buildHourlyFrame constructs a frame from a raw hourly block. This is the
// central defensive step of the pipeline: a field that is absent, not an
// array, or of a length different from the time array is degraded to a
// full column of nulls instead of aborting the run.
func buildHourlyFrame(block any, fields []string) hourlyFrame {
	hourly, _ := block.(map[string]any)

	rawTimes, _ := hourly["time"].([]any)
	n := len(rawTimes)
	times := make([]string, n)
	for i, v := range rawTimes {
		s, _ := v.(string)
		times[i] = s
	}

	cols := make(map[string][]*float64, len(fields))
	for _, field := range fields {
		col := make([]*float64, n)
		vals, ok := hourly[field].([]any)
		if ok && len(vals) == n {
			for i, v := range vals {
				col[i] = coerceNumber(v)
			}
		}
		cols[field] = col
	}

	return hourlyFrame{times: times, cols: cols}
}

// coerceNumber converts a raw JSON value to a float, returning nil for
// anything unparseable. It never fails.
func coerceNumber(v any) *float64 {
	switch x := v.(type) {
	case float64:
		return &x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

var timeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime parses the timestamp formats Open-Meteo emits. The zero value
// plus false signals an unparseable time.
func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// parseDate extracts a calendar date from a timestamp-like string.
func parseDate(s string) (string, bool) {
	ts, ok := parseTime(s)
	if !ok {
		return "", false
	}
	return ts.Format("2006-01-02"), true
}
