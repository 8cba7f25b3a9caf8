// Package pipeline ties the fetch, transform and report stages together
// for the CLI and the HTTP refresh paths.
package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Velubby/etl-weather/internal/fetch"
	"github.com/Velubby/etl-weather/internal/report"
	"github.com/Velubby/etl-weather/internal/slug"
	"github.com/Velubby/etl-weather/internal/transform"
)

// Pipeline owns the stage collaborators. One invocation processes one city
// to completion; there is no shared mutable state across invocations.
type Pipeline struct {
	Fetcher  *fetch.Fetcher
	Engine   *transform.Engine
	Renderer *report.Renderer

	// Defaults applied when a caller does not override them.
	Days     int
	Timezone string
}

// EnsureDaily returns the daily CSV path for a city, fetching and
// transforming first when refresh is set or no table exists yet.
func (p *Pipeline) EnsureDaily(ctx context.Context, city string, refresh bool, days int) (string, error) {
	path := filepath.Join(p.Engine.ProcessedDir, slug.Make(city)+"_daily.csv")
	if !refresh {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	} else {
		if err := p.fetchOnly(ctx, city, days); err != nil {
			return "", err
		}
	}
	// Transform fails with MissingInputError when raw files are absent and
	// refresh was not requested.
	return p.Engine.Daily(city, "")
}

// EnsureHourly is the hourly analogue of EnsureDaily.
func (p *Pipeline) EnsureHourly(ctx context.Context, city string, refresh bool, days int) (string, error) {
	path := filepath.Join(p.Engine.ProcessedDir, slug.Make(city)+"_hourly.csv")
	if !refresh {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	} else {
		if err := p.fetchOnly(ctx, city, days); err != nil {
			return "", err
		}
	}
	return p.Engine.Hourly(city, "")
}

// Refresh runs fetch then both transforms for a city. Used by the
// background scheduler.
func (p *Pipeline) Refresh(ctx context.Context, city string) error {
	if err := p.fetchOnly(ctx, city, 0); err != nil {
		return err
	}
	if _, err := p.Engine.Daily(city, ""); err != nil {
		return err
	}
	_, err := p.Engine.Hourly(city, "")
	return err
}

// RunAll executes fetch, transform and report for one city, returning the
// report path.
func (p *Pipeline) RunAll(ctx context.Context, city string, opts fetch.Options) (string, error) {
	if _, err := p.Fetcher.Run(ctx, city, opts); err != nil {
		return "", err
	}
	if _, err := p.Engine.Daily(city, ""); err != nil {
		return "", err
	}
	if _, err := p.Engine.Hourly(city, ""); err != nil {
		return "", err
	}
	return p.Renderer.Run(city, "", "")
}

func (p *Pipeline) fetchOnly(ctx context.Context, city string, days int) error {
	if days <= 0 {
		days = p.Days
	}
	_, err := p.Fetcher.Run(ctx, city, fetch.Options{
		Days:     days,
		Timezone: p.Timezone,
		Fallback: true,
	})
	return err
}
