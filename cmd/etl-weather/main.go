package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	httpapi "github.com/Velubby/etl-weather/internal/api/http"
	"github.com/Velubby/etl-weather/internal/compare"
	"github.com/Velubby/etl-weather/internal/config"
	"github.com/Velubby/etl-weather/internal/fetch"
	"github.com/Velubby/etl-weather/internal/funfact"
	"github.com/Velubby/etl-weather/internal/geo"
	"github.com/Velubby/etl-weather/internal/pipeline"
	"github.com/Velubby/etl-weather/internal/report"
	"github.com/Velubby/etl-weather/internal/scheduler"
	"github.com/Velubby/etl-weather/internal/transform"
)

const usage = `usage: etl-weather <command> [flags]

commands:
  fetch             download raw forecast and air-quality bundles
  transform         build the daily aggregate table
  transform-hourly  build the merged hourly table
  report            render the HTML report
  compare           compare daily tables across cities
  all               fetch, transform and report in one run
  serve             start the HTTP API
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("a command is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	app := newApp(cfg)

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "fetch":
		return app.cmdFetch(rest)
	case "transform":
		return app.cmdTransform(rest, false)
	case "transform-hourly":
		return app.cmdTransform(rest, true)
	case "report":
		return app.cmdReport(rest)
	case "compare":
		return app.cmdCompare(rest)
	case "all":
		return app.cmdAll(rest)
	case "serve":
		return app.cmdServe(rest)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// app wires the components once per process.
type app struct {
	cfg      *config.AppConfig
	fetcher  *fetch.Fetcher
	engine   *transform.Engine
	renderer *report.Renderer
	pipeline *pipeline.Pipeline
	comparer *compare.Comparer
}

func newApp(cfg *config.AppConfig) *app {
	client := &http.Client{Timeout: cfg.HTTPTimeout}
	fetcher := fetch.New(client, geo.New(client), cfg.RawDir, cfg.SampleDir)
	engine := &transform.Engine{RawDir: cfg.RawDir, ProcessedDir: cfg.ProcessedDir}
	renderer := report.NewRenderer(cfg.ProcessedDir, cfg.ReportDir, cfg.TemplateDir)
	p := &pipeline.Pipeline{
		Fetcher:  fetcher,
		Engine:   engine,
		Renderer: renderer,
		Days:     cfg.Days,
		Timezone: cfg.Timezone,
	}
	return &app{
		cfg:      cfg,
		fetcher:  fetcher,
		engine:   engine,
		renderer: renderer,
		pipeline: p,
		comparer: compare.New(p, cfg.ReportDir),
	}
}

func (a *app) cmdFetch(args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	city := fs.String("city", a.cfg.City, "city name")
	days := fs.Int("days", a.cfg.Days, "forecast window in days (1-16)")
	tz := fs.String("timezone", a.cfg.Timezone, "IANA timezone or 'auto'")
	offline := fs.Bool("offline", false, "use the bundled sample instead of the network")
	sampleDir := fs.String("sample-dir", "", "override the sample directory")
	noFallback := fs.Bool("no-fallback", false, "fail instead of substituting the sample on network errors")
	fs.Parse(args)

	res, err := a.fetcher.Run(context.Background(), *city, fetch.Options{
		Days:      *days,
		Timezone:  *tz,
		Offline:   *offline,
		SampleDir: *sampleDir,
		Fallback:  !*noFallback,
	})
	if err != nil {
		return err
	}
	log.Printf("INFO: fetched %s -> %s, %s", *city, res.WeatherLatest, res.AirLatest)
	return nil
}

func (a *app) cmdTransform(args []string, hourly bool) error {
	name := "transform"
	if hourly {
		name = "transform-hourly"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	city := fs.String("city", a.cfg.City, "city name")
	output := fs.String("output", "", "override the output CSV path")
	fs.Parse(args)

	var path string
	var err error
	if hourly {
		path, err = a.engine.Hourly(*city, *output)
	} else {
		path, err = a.engine.Daily(*city, *output)
	}
	if err != nil {
		return err
	}
	log.Printf("INFO: wrote %s", path)
	return nil
}

func (a *app) cmdReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	city := fs.String("city", a.cfg.City, "city name")
	input := fs.String("input", "", "override the daily CSV path")
	output := fs.String("output", "", "override the report path")
	fs.Parse(args)

	path, err := a.renderer.Run(*city, *input, *output)
	if err != nil {
		return err
	}
	log.Printf("INFO: wrote %s", path)
	return nil
}

func (a *app) cmdCompare(args []string) error {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	cities := fs.String("cities", "", "comma-separated city names (at least two)")
	days := fs.Int("days", a.cfg.Days, "forecast window in days (1-16)")
	refresh := fs.Bool("refresh", true, "fetch fresh data before comparing")
	output := fs.String("output", "", "override the comparison report path")
	fs.Parse(args)

	var names []string
	for _, c := range strings.Split(*cities, ",") {
		if c = strings.TrimSpace(c); c != "" {
			names = append(names, c)
		}
	}

	results, err := a.comparer.Run(context.Background(), names, compare.Options{
		Days:    *days,
		Refresh: *refresh,
	})
	if err != nil {
		return err
	}
	path, err := a.comparer.WriteReport(results, *output)
	if err != nil {
		return err
	}
	log.Printf("INFO: wrote %s", path)
	return nil
}

func (a *app) cmdAll(args []string) error {
	fs := flag.NewFlagSet("all", flag.ExitOnError)
	city := fs.String("city", a.cfg.City, "city name")
	days := fs.Int("days", a.cfg.Days, "forecast window in days (1-16)")
	tz := fs.String("timezone", a.cfg.Timezone, "IANA timezone or 'auto'")
	offline := fs.Bool("offline", false, "use the bundled sample instead of the network")
	fs.Parse(args)

	path, err := a.pipeline.RunAll(context.Background(), *city, fetch.Options{
		Days:     *days,
		Timezone: *tz,
		Offline:  *offline,
		Fallback: true,
	})
	if err != nil {
		return err
	}
	log.Printf("INFO: wrote %s", path)
	return nil
}

func (a *app) cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.String("port", a.cfg.Port, "listen port")
	fs.Parse(args)

	server := &httpapi.Server{
		Pipeline: a.pipeline,
		Geo:      geo.New(&http.Client{Timeout: a.cfg.HTTPTimeout}),
		Comparer: a.comparer,
		FunFacts: funfact.NewService(a.cfg.FunFactTTL, funfact.DefaultStrategies(a.cfg.GeminiAPIKey, a.cfg.GeminiModel)...),
		Days:     a.cfg.Days,
	}
	fiberApp := httpapi.NewApp(server)

	// Background refresh is optional; it needs both an interval and cities.
	if a.cfg.RefreshInterval > 0 && len(a.cfg.RefreshCities) > 0 {
		sched := scheduler.New(a.cfg.RefreshCities, a.cfg.RefreshInterval, a.pipeline)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	go func() {
		if err := fiberApp.Listen(":" + *port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()
	log.Printf("INFO: listening on :%s", *port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return fiberApp.ShutdownWithContext(shutdownCtx)
}
