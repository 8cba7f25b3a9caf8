package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/Velubby/etl-weather/internal/pipeline"
)

// Scheduler periodically refreshes raw and processed data for the
// configured cities.
type Scheduler struct {
	scheduler *gocron.Scheduler
	pipeline  *pipeline.Pipeline
	cities    []string
	interval  time.Duration
}

// New creates a new Scheduler.
func New(cities []string, interval time.Duration, p *pipeline.Pipeline) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		pipeline:  p,
		cities:    cities,
		interval:  interval,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// Cities are refreshed one at a time.
func (s *Scheduler) Start() error {
	if len(s.cities) == 0 {
		log.Println("scheduler: no cities configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		log.Println("scheduler: running refresh job")
		for _, city := range s.cities {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			if err := s.pipeline.Refresh(ctx, city); err != nil {
				log.Printf("scheduler: refresh failed for %s: %v", city, err)
			}
			cancel()
		}
		log.Println("scheduler: completed refresh job")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
