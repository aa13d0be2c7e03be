package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/mfenerich/meteoanalytics/internal/meteo"
)

// Scheduler keeps the cache warm by periodically resolving the trailing
// observation window for the configured stations, so interactive requests
// for recent data land on a full cache hit.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *meteo.Service
	stations  []meteo.Station
	interval  time.Duration
	window    time.Duration
	log       *zap.SugaredLogger
}

// New creates a Scheduler.
func New(stations []meteo.Station, interval, window time.Duration, service *meteo.Service, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		stations:  stations,
		interval:  interval,
		window:    window,
		log:       log,
	}
}

// Start schedules the periodic prefetch job and starts the underlying
// scheduler.
func (s *Scheduler) Start() error {
	if len(s.stations) == 0 {
		s.log.Info("scheduler: no prefetch stations configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		s.log.Info("scheduler: running prefetch job")

		end := time.Now().UTC().Truncate(meteo.SampleInterval)
		start := end.Add(-s.window)

		var wg sync.WaitGroup
		for _, station := range s.stations {
			station := station
			wg.Add(1)
			go func() {
				defer wg.Done()

				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if _, err := s.service.Resolve(ctx, station, start, end, time.UTC); err != nil {
					s.log.Warnw("scheduler: prefetch failed", "station", station, "error", err)
				}
			}()
		}
		wg.Wait()
		s.log.Info("scheduler: completed prefetch job")
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
