package compare

import (
	"html/template"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// buildComparisonCharts renders one multi-series line chart per metric
// (max temperature, average PM2.5) across the successful cities. The x
// axis is the sorted union of dates; a city missing a date contributes
// a gap, not a zero.
func buildComparisonCharts(results []CityResult) []template.HTML {
	dates := unionDates(results)
	if len(dates) == 0 {
		return nil
	}

	temp := charts.NewLine()
	temp.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Max temperature (°C)"}),
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "300px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	temp.SetXAxis(dates)

	air := charts.NewLine()
	air.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Average PM2.5 (µg/m³)"}),
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "300px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	air.SetXAxis(dates)

	for _, r := range results {
		if r.Err != nil {
			continue
		}
		byDate := make(map[string]int, len(r.Rows))
		for i, row := range r.Rows {
			byDate[row.Date] = i
		}
		tempSeries := make([]opts.LineData, len(dates))
		airSeries := make([]opts.LineData, len(dates))
		for i, d := range dates {
			if j, found := byDate[d]; found {
				tempSeries[i] = opts.LineData{Value: ptrValue(r.Rows[j].TempMax)}
				airSeries[i] = opts.LineData{Value: ptrValue(r.Rows[j].PM25Avg)}
			} else {
				tempSeries[i] = opts.LineData{Value: nil}
				airSeries[i] = opts.LineData{Value: nil}
			}
		}
		temp.AddSeries(r.City, tempSeries)
		air.AddSeries(r.City, airSeries)
	}

	tempSnippet := temp.RenderSnippet()
	airSnippet := air.RenderSnippet()
	return []template.HTML{
		template.HTML(tempSnippet.Element + "\n" + tempSnippet.Script),
		template.HTML(airSnippet.Element + "\n" + airSnippet.Script),
	}
}

func unionDates(results []CityResult) []string {
	seen := make(map[string]struct{})
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		for _, row := range r.Rows {
			seen[row.Date] = struct{}{}
		}
	}
	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

func ptrValue(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
