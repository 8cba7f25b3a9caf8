// Package report renders the per-city HTML report from the processed
// daily table: summary metrics, charts and a rule-based recommendation.
// All values are pre-computed; no business logic lives in the template.
package report

import (
	"fmt"
	"html/template"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Velubby/etl-weather/internal/slug"
	"github.com/Velubby/etl-weather/internal/transform"
)

// Renderer builds HTML reports from processed CSVs.
type Renderer struct {
	ProcessedDir string
	ReportDir    string
	TemplateDir  string
}

func NewRenderer(processedDir, reportDir, templateDir string) *Renderer {
	return &Renderer{ProcessedDir: processedDir, ReportDir: reportDir, TemplateDir: templateDir}
}

// templateData is the fully pre-computed view passed to the template.
type templateData struct {
	City            string
	Start           string
	End             string
	MaxTemp         string
	MinTemp         string
	WettestDate     string
	WettestRain     string
	PM25Avg         string
	PM25Category    string
	RainyDays       int
	SunriseEarliest string
	SunsetLatest    string
	FeelsLikeAvg    string
	DewPointAvg     string
	HotDays         int
	HeavyRainDays   int
	UnhealthyDays   int
	Recommendation  string
	Charts          []template.HTML
}

// Run renders the report for a city. csvPath and outPath override the
// defaults derived from the city slug; pass "" to use them.
func (r *Renderer) Run(city, csvPath, outPath string) (string, error) {
	key := slug.Make(city)
	if csvPath == "" {
		csvPath = filepath.Join(r.ProcessedDir, key+"_daily.csv")
	}

	daily, err := transform.ReadDailyCSV(csvPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &transform.MissingInputError{City: city}
		}
		return "", err
	}

	// The hourly table is optional; it only enriches the summary.
	hourly, err := transform.ReadHourlyCSV(filepath.Join(r.ProcessedDir, key+"_hourly.csv"))
	if err != nil && !os.IsNotExist(err) {
		log.Printf("WARN: hourly table unreadable for %q: %v", city, err)
	}

	summary := Summarize(daily, hourly)

	data := templateData{
		City:            city,
		Start:           orDash(summary.Start),
		End:             orDash(summary.End),
		MaxTemp:         format1(summary.MaxTemp),
		MinTemp:         format1(summary.MinTemp),
		WettestDate:     orDash(summary.WettestDate),
		WettestRain:     strconv.FormatFloat(summary.WettestRain, 'f', 1, 64),
		PM25Avg:         format1(summary.PM25Mean),
		PM25Category:    summary.PM25Category,
		RainyDays:       summary.RainyDays,
		SunriseEarliest: orDash(summary.SunriseEarliest),
		SunsetLatest:    orDash(summary.SunsetLatest),
		FeelsLikeAvg:    format1(summary.FeelsLikeAvg),
		DewPointAvg:     format1(summary.DewPointAvg),
		HotDays:         summary.HotDays,
		HeavyRainDays:   summary.HeavyRainDays,
		UnhealthyDays:   summary.UnhealthyDays,
		Recommendation:  Recommendation(summary),
		Charts:          BuildCharts(daily),
	}

	tpl, err := r.loadTemplate()
	if err != nil {
		return "", err
	}

	if outPath == "" {
		outPath = filepath.Join(r.ReportDir, key+".html")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := tpl.Execute(f, data); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	log.Printf("INFO: saved report -> %s", outPath)
	return outPath, nil
}

// loadTemplate prefers the on-disk template, falling back to the built-in
// minimal one with equivalent fields.
func (r *Renderer) loadTemplate() (*template.Template, error) {
	path := filepath.Join(r.TemplateDir, "report.html")
	if _, err := os.Stat(path); err == nil {
		tpl, parseErr := template.ParseFiles(path)
		if parseErr != nil {
			return nil, fmt.Errorf("parse template %s: %w", path, parseErr)
		}
		return tpl, nil
	}
	log.Printf("WARN: template not found at %s; using built-in fallback", path)
	return template.Must(template.New("report").Parse(fallbackTemplate)), nil
}

const fallbackTemplate = `<!doctype html><meta charset="utf-8"><title>Report {{.City}}</title>
<h1>Weather &amp; Air Quality Report — {{.City}}</h1>
<p>Period: {{.Start}} to {{.End}}</p>
<ul>
  <li>Highest max temperature: {{.MaxTemp}} °C</li>
  <li>Lowest min temperature: {{.MinTemp}} °C</li>
  <li>Wettest day: {{.WettestDate}} ({{.WettestRain}} mm)</li>
  <li>Average PM2.5: {{.PM25Avg}} ({{.PM25Category}})</li>
  <li>Rainy days: {{.RainyDays}}</li>
  <li>Sunrise/sunset range: {{.SunriseEarliest}} / {{.SunsetLatest}}</li>
  <li>Average feels-like: {{.FeelsLikeAvg}} °C</li>
  <li>Average dew point: {{.DewPointAvg}} °C</li>
  <li>Alerts: hot={{.HotDays}}, heavy_rain={{.HeavyRainDays}}, unhealthy_pm25={{.UnhealthyDays}}</li>
</ul>
<h2>Charts</h2>
<script src="https://go-echarts.github.io/go-echarts-assets/assets/echarts.min.js"></script>
{{range .Charts}}{{.}}{{end}}
<h2>Recommendation</h2>
<p>{{.Recommendation}}</p>
`

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func format1(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}
