// Package compare fetches and aggregates daily tables for several cities
// at once, tolerating per-city failures as long as at least two cities
// produce data.
package compare

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Velubby/etl-weather/internal/pipeline"
	"github.com/Velubby/etl-weather/internal/slug"
	"github.com/Velubby/etl-weather/internal/transform"
)

// ErrTooFewCities rejects comparison requests naming fewer than two
// cities before any network call is made.
var ErrTooFewCities = errors.New("comparison requires at least two cities")

// CityResult holds the outcome for a single city. Exactly one of Rows
// and Err is meaningful.
type CityResult struct {
	City string
	Rows []transform.DailyRecord
	Err  error
}

// OK reports whether data was produced for the city.
func (r CityResult) OK() bool { return r.Err == nil }

// InsufficientDataError is returned when fewer than two cities produced
// data. It carries every per-city outcome so callers can report what
// failed and why.
type InsufficientDataError struct {
	Results []CityResult
}

func (e *InsufficientDataError) Error() string {
	var failed []string
	for _, r := range e.Results {
		if r.Err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", r.City, r.Err))
		}
	}
	return "not enough data to compare; failures: " + strings.Join(failed, "; ")
}

// Options control a single comparison run.
type Options struct {
	Days    int
	Refresh bool
}

// Comparer orchestrates per-city ensure-daily runs and renders the
// comparison report.
type Comparer struct {
	Pipeline  *pipeline.Pipeline
	ReportDir string
}

func New(p *pipeline.Pipeline, reportDir string) *Comparer {
	return &Comparer{Pipeline: p, ReportDir: reportDir}
}

// Run produces one CityResult per requested city, in request order. A
// failing city is recorded, not fatal; the run as a whole fails only
// when fewer than two cities succeed.
func (c *Comparer) Run(ctx context.Context, cities []string, opts Options) ([]CityResult, error) {
	if len(cities) < 2 {
		return nil, ErrTooFewCities
	}

	results := make([]CityResult, 0, len(cities))
	ok := 0
	for _, city := range cities {
		rows, err := c.dailyFor(ctx, city, opts)
		if err != nil {
			log.Printf("WARN: comparison: %s failed: %v", city, err)
			results = append(results, CityResult{City: city, Err: err})
			continue
		}
		results = append(results, CityResult{City: city, Rows: rows})
		ok++
	}
	if ok < 2 {
		return results, &InsufficientDataError{Results: results}
	}
	return results, nil
}

func (c *Comparer) dailyFor(ctx context.Context, city string, opts Options) ([]transform.DailyRecord, error) {
	path, err := c.Pipeline.EnsureDaily(ctx, city, opts.Refresh, opts.Days)
	if err != nil {
		return nil, err
	}
	return transform.ReadDailyCSV(path)
}

// WriteReport renders the comparison HTML for the successful cities and
// returns its path. Failed cities are listed but contribute no series.
func (c *Comparer) WriteReport(results []CityResult, outPath string) (string, error) {
	if outPath == "" {
		outPath = filepath.Join(c.ReportDir, reportName(results))
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}

	data := struct {
		Cities string
		Failed []string
		Charts []template.HTML
	}{
		Cities: joinCities(results),
		Charts: buildComparisonCharts(results),
	}
	for _, r := range results {
		if r.Err != nil {
			data.Failed = append(data.Failed, fmt.Sprintf("%s: %v", r.City, r.Err))
		}
	}

	f, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	tpl := template.Must(template.New("compare").Parse(compareTemplate))
	if err := tpl.Execute(f, data); err != nil {
		return "", fmt.Errorf("render comparison: %w", err)
	}
	log.Printf("INFO: saved comparison -> %s", outPath)
	return outPath, nil
}

// reportName joins the slugs of every requested city, failed ones
// included, so the filename identifies the request.
func reportName(results []CityResult) string {
	slugs := make([]string, len(results))
	for i, r := range results {
		slugs[i] = slug.Make(r.City)
	}
	return "compare_" + strings.Join(slugs, "-") + ".html"
}

func joinCities(results []CityResult) string {
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.City
	}
	return strings.Join(names, " vs ")
}

const compareTemplate = `<!doctype html><meta charset="utf-8"><title>Comparison: {{.Cities}}</title>
<h1>City comparison: {{.Cities}}</h1>
{{if .Failed}}<p>No data for: {{range .Failed}}{{.}} {{end}}</p>{{end}}
<script src="https://go-echarts.github.io/go-echarts-assets/assets/echarts.min.js"></script>
{{range .Charts}}{{.}}{{end}}
`
