package report

import (
	"html/template"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/render"

	"github.com/Velubby/etl-weather/internal/transform"
)

func chartInit() charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "300px"})
}

func chartTooltip() charts.GlobalOpts {
	return charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"})
}

// BuildCharts renders the three report charts (temperature range, daily
// rainfall, PM2.5 trend) as embeddable HTML snippets. Null values become
// gaps in the series rather than zeroes.
func BuildCharts(rows []transform.DailyRecord) []template.HTML {
	dates := make([]string, len(rows))
	tempMin := make([]opts.LineData, len(rows))
	tempMax := make([]opts.LineData, len(rows))
	rain := make([]opts.BarData, len(rows))
	pm25 := make([]opts.LineData, len(rows))
	for i, r := range rows {
		dates[i] = r.Date
		tempMin[i] = opts.LineData{Value: ptrValue(r.TempMin)}
		tempMax[i] = opts.LineData{Value: ptrValue(r.TempMax)}
		rain[i] = opts.BarData{Value: r.TotalRain}
		pm25[i] = opts.LineData{Value: ptrValue(r.PM25Avg)}
	}

	temp := charts.NewLine()
	temp.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Daily temperature range (°C)"}),
		chartInit(), chartTooltip(),
	)
	temp.SetXAxis(dates).
		AddSeries("temp_max", tempMax).
		AddSeries("temp_min", tempMin)

	rainfall := charts.NewBar()
	rainfall.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Daily rainfall (mm)"}),
		chartInit(), chartTooltip(),
	)
	rainfall.SetXAxis(dates).AddSeries("total_rain", rain)

	air := charts.NewLine()
	air.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Daily average PM2.5 (µg/m³)"}),
		chartInit(), chartTooltip(),
	)
	air.SetXAxis(dates).AddSeries("pm25_avg", pm25)

	snippets := []render.ChartSnippet{
		temp.RenderSnippet(),
		rainfall.RenderSnippet(),
		air.RenderSnippet(),
	}

	out := make([]template.HTML, 0, len(snippets))
	for _, s := range snippets {
		out = append(out, template.HTML(s.Element+"\n"+s.Script))
	}
	return out
}

func ptrValue(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
