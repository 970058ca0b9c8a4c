package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Refresher is the job the scheduler runs on every tick.
type Refresher interface {
	RefreshAll(ctx context.Context) error
}

// Scheduler periodically refreshes every tracked forecast.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	log       *slog.Logger
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler. timeout bounds a single refresh run.
func New(log *slog.Logger, refresher Refresher, interval, timeout time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if timeout <= 0 {
		timeout = interval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.Local),
		refresher: refresher,
		log:       log,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the refresh job and starts the underlying scheduler.
// The first run happens immediately.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.log.Info("Refresh scheduler started", "interval", s.interval.String())
	return nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	// Failures are already logged by the refresher; the next tick retries.
	if err := s.refresher.RefreshAll(ctx); err != nil {
		s.log.WarnContext(ctx, "Scheduled refresh failed", "error", err)
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
