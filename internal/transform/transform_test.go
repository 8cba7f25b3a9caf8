package transform

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseDoc(t *testing.T, s string) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &doc))
	return doc
}

func fptr(v float64) *float64 { return &v }

func TestBuildDailySingleDayScenario(t *testing.T) {
	weather := parseDoc(t, `{"hourly":{
		"time":["2025-01-01T00:00","2025-01-01T01:00"],
		"temperature_2m":[20,24],
		"precipitation":[0,1.5]}}`)
	air := parseDoc(t, `{"hourly":{
		"time":["2025-01-01T00:00","2025-01-01T01:00"],
		"pm2_5":[10,14],
		"pm10":[20,22]}}`)

	rows := BuildDaily(weather, air)
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, "2025-01-01", r.Date)
	assert.Equal(t, 20.0, *r.TempMin)
	assert.Equal(t, 24.0, *r.TempMax)
	assert.Equal(t, 1.5, r.TotalRain)
	assert.Equal(t, 12.0, *r.PM25Avg)
	assert.Equal(t, 21.0, *r.PM10Avg)
	assert.Equal(t, CategoryGood, r.PM25Category)
}

func TestRaggedFieldDegradesToNulls(t *testing.T) {
	// pm2_5 one element shorter than time: the whole column degrades to
	// null and the row count follows the time array.
	weather := parseDoc(t, `{"hourly":{
		"time":["2025-01-01T00:00","2025-01-01T01:00","2025-01-01T02:00"],
		"temperature_2m":[20,22,24],
		"precipitation":[0,0,0]}}`)
	air := parseDoc(t, `{"hourly":{
		"time":["2025-01-01T00:00","2025-01-01T01:00","2025-01-01T02:00"],
		"pm2_5":[10,14],
		"pm10":[20,22,24]}}`)

	hourly := BuildHourly(weather, air, false)
	require.Len(t, hourly, 3)
	for _, rec := range hourly {
		assert.Nil(t, rec.PM25)
	}

	daily := BuildDaily(weather, air)
	require.Len(t, daily, 1)
	assert.Nil(t, daily[0].PM25Avg)
	assert.Equal(t, CategoryUnknown, daily[0].PM25Category)
	// pm10 was well-formed and still aggregates.
	assert.Equal(t, 22.0, *daily[0].PM10Avg)
}

func TestMissingFieldDegradesToNulls(t *testing.T) {
	weather := parseDoc(t, `{"hourly":{
		"time":["2025-01-01T00:00"],
		"precipitation":[2.5]}}`)
	air := parseDoc(t, `{"hourly":{"time":["2025-01-01T00:00"]}}`)

	rows := BuildDaily(weather, air)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].TempMin)
	assert.Nil(t, rows[0].TempMax)
	assert.Nil(t, rows[0].PM25Avg)
	assert.Equal(t, 2.5, rows[0].TotalRain)
}

func TestTotalRainNeverNull(t *testing.T) {
	weather := parseDoc(t, `{"hourly":{
		"time":["2025-01-01T00:00","2025-01-01T01:00"],
		"temperature_2m":[20,21],
		"precipitation":[null,null]}}`)
	air := parseDoc(t, `{"hourly":{}}`)

	rows := BuildDaily(weather, air)
	require.Len(t, rows, 1)
	assert.Equal(t, 0.0, rows[0].TotalRain)
}

func TestOuterJoinYieldsNullsForMissingSide(t *testing.T) {
	weather := parseDoc(t, `{"hourly":{
		"time":["2025-01-01T00:00"],
		"temperature_2m":[20],
		"precipitation":[0]}}`)
	air := parseDoc(t, `{"hourly":{
		"time":["2025-01-01T01:00"],
		"pm2_5":[30],
		"pm10":[40]}}`)

	rows := BuildHourly(weather, air, false)
	require.Len(t, rows, 2)

	assert.NotNil(t, rows[0].Temp)
	assert.Nil(t, rows[0].PM25)
	assert.Nil(t, rows[1].Temp)
	assert.NotNil(t, rows[1].PM25)
}

func TestUnparseableTimesAreDropped(t *testing.T) {
	weather := parseDoc(t, `{"hourly":{
		"time":["2025-01-01T00:00","not-a-time",""],
		"temperature_2m":[20,21,22],
		"precipitation":[0,0,0]}}`)
	air := parseDoc(t, `{"hourly":{}}`)

	rows := BuildHourly(weather, air, false)
	require.Len(t, rows, 1)
	assert.Equal(t, "2025-01-01", rows[0].Date)
}

func TestNumericCoercion(t *testing.T) {
	weather := parseDoc(t, `{"hourly":{
		"time":["2025-01-01T00:00","2025-01-01T01:00","2025-01-01T02:00"],
		"temperature_2m":["21.5","oops",null],
		"precipitation":[0,0,0]}}`)
	air := parseDoc(t, `{"hourly":{}}`)

	rows := BuildHourly(weather, air, false)
	require.Len(t, rows, 3)
	assert.Equal(t, 21.5, *rows[0].Temp)
	assert.Nil(t, rows[1].Temp)
	assert.Nil(t, rows[2].Temp)
}

func TestCategorizePM25Boundaries(t *testing.T) {
	cases := []struct {
		v    float64
		want string
	}{
		{0, CategoryGood},
		{12.0, CategoryGood},
		{12.0001, CategoryModerate},
		{35.4, CategoryModerate},
		{35.4001, CategorySensitive},
		{55.4, CategorySensitive},
		{55.4001, CategoryUnhealthy},
		{150.4, CategoryUnhealthy},
		{150.4001, CategoryVeryUnhealthy},
		{250.4, CategoryVeryUnhealthy},
		{250.4001, CategoryHazardous},
		{999, CategoryHazardous},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CategorizePM25(fptr(tc.v)), "v=%v", tc.v)
	}
	assert.Equal(t, CategoryUnknown, CategorizePM25(nil))
}

func TestCategorizePM25Monotonic(t *testing.T) {
	rank := map[string]int{
		CategoryGood:          0,
		CategoryModerate:      1,
		CategorySensitive:     2,
		CategoryUnhealthy:     3,
		CategoryVeryUnhealthy: 4,
		CategoryHazardous:     5,
	}
	prev := -1
	for v := 0.0; v <= 300; v += 0.1 {
		r := rank[CategorizePM25(fptr(v))]
		require.GreaterOrEqual(t, r, prev, "severity decreased at v=%v", v)
		prev = r
	}
}

func TestSunriseSunsetLeftJoin(t *testing.T) {
	weather := parseDoc(t, `{
		"hourly":{
			"time":["2025-01-01T00:00","2025-01-02T00:00"],
			"temperature_2m":[20,22],
			"precipitation":[0,0]},
		"daily":{
			"time":["2025-01-01"],
			"sunrise":["2025-01-01T05:45"],
			"sunset":["2025-01-01T18:10"]}}`)
	air := parseDoc(t, `{"hourly":{}}`)

	rows := BuildDaily(weather, air)
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-01-01T05:45", rows[0].Sunrise)
	assert.Equal(t, "2025-01-01T18:10", rows[0].Sunset)
	// Day without metadata simply has none.
	assert.Empty(t, rows[1].Sunrise)
	assert.Empty(t, rows[1].Sunset)
}

func TestRaggedSunriseArrayDegrades(t *testing.T) {
	weather := parseDoc(t, `{
		"hourly":{
			"time":["2025-01-01T00:00"],
			"temperature_2m":[20],
			"precipitation":[0]},
		"daily":{
			"time":["2025-01-01","2025-01-02"],
			"sunrise":["2025-01-01T05:45"],
			"sunset":["2025-01-01T18:10","2025-01-02T18:11"]}}`)
	air := parseDoc(t, `{"hourly":{}}`)

	rows := BuildDaily(weather, air)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].Sunrise)
	assert.Equal(t, "2025-01-01T18:10", rows[0].Sunset)
}

func TestAlertColumns(t *testing.T) {
	weather := parseDoc(t, `{"hourly":{
		"time":["2025-01-01T12:00"],
		"temperature_2m":[35.2],
		"precipitation":[25.0]}}`)
	air := parseDoc(t, `{"hourly":{
		"time":["2025-01-01T12:00"],
		"pm2_5":[80.0],
		"pm10":[90.0]}}`)

	rows := BuildDaily(weather, air)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsHotDay)
	assert.True(t, rows[0].IsHeavyRain)
	assert.True(t, rows[0].IsUnhealthyPM25)
}

func writeRaw(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestEngineMissingInput(t *testing.T) {
	e := NewEngine(t.TempDir(), t.TempDir())
	_, err := e.Daily("Bandung", "")
	var missing *MissingInputError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "Bandung", missing.City)
}

func TestEngineDailyIdempotent(t *testing.T) {
	rawDir := t.TempDir()
	procDir := t.TempDir()
	writeRaw(t, rawDir, "bandung_weather.json", `{"hourly":{
		"time":["2025-01-01T00:00","2025-01-01T01:00","2025-01-02T00:00"],
		"temperature_2m":[20,24,26],
		"precipitation":[0,1.5,0]}}`)
	writeRaw(t, rawDir, "bandung_air.json", `{"hourly":{
		"time":["2025-01-01T00:00","2025-01-01T01:00"],
		"pm2_5":[10,14],
		"pm10":[20,22]}}`)

	e := NewEngine(rawDir, procDir)
	out1, err := e.Daily("Bandung", "")
	require.NoError(t, err)
	first, err := os.ReadFile(out1)
	require.NoError(t, err)

	out2, err := e.Daily("Bandung", "")
	require.NoError(t, err)
	second, err := os.ReadFile(out2)
	require.NoError(t, err)

	assert.Equal(t, first, second, "transform must be byte-for-byte idempotent")
}

func TestEngineDailyCSVRoundTrip(t *testing.T) {
	rawDir := t.TempDir()
	procDir := t.TempDir()
	writeRaw(t, rawDir, "bandung_weather.json", `{
		"hourly":{
			"time":["2025-01-01T00:00","2025-01-01T01:00"],
			"temperature_2m":[20,24],
			"precipitation":[0,1.5]},
		"daily":{
			"time":["2025-01-01"],
			"sunrise":["2025-01-01T05:45"],
			"sunset":["2025-01-01T18:10"]}}`)
	writeRaw(t, rawDir, "bandung_air.json", `{"hourly":{
		"time":["2025-01-01T00:00","2025-01-01T01:00"],
		"pm2_5":[10,14],
		"pm10":[20,22]}}`)

	e := NewEngine(rawDir, procDir)
	out, err := e.Daily("Bandung", "")
	require.NoError(t, err)

	rows, err := ReadDailyCSV(out)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2025-01-01", rows[0].Date)
	assert.Equal(t, 12.0, *rows[0].PM25Avg)
	assert.Equal(t, CategoryGood, rows[0].PM25Category)
	assert.Equal(t, "2025-01-01T05:45", rows[0].Sunrise)
}

func TestEngineHourlyOptionalColumns(t *testing.T) {
	rawDir := t.TempDir()
	procDir := t.TempDir()
	writeRaw(t, rawDir, "bandung_weather.json", `{"hourly":{
		"time":["2025-01-01T00:00"],
		"temperature_2m":[20],
		"precipitation":[0],
		"relative_humidity_2m":[80],
		"apparent_temperature":[22.5]}}`)
	writeRaw(t, rawDir, "bandung_air.json", `{"hourly":{
		"time":["2025-01-01T00:00"],
		"pm2_5":[10],
		"pm10":[20]}}`)

	e := NewEngine(rawDir, procDir)
	out, err := e.Hourly("Bandung", "")
	require.NoError(t, err)

	rows, err := ReadHourlyCSV(out)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 80.0, *rows[0].RH)
	assert.Equal(t, 22.5, *rows[0].FeelsLike)
	// wind/wcode were absent upstream and stay null.
	assert.Nil(t, rows[0].Wind)
	assert.Nil(t, rows[0].WCode)
	assert.Equal(t, "2025-01-01", rows[0].Date)
}
