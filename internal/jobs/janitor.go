package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"survey-insights/internal/shared/telemetry"
)

const defaultStaleAfter = 30 * time.Minute

// Sweeper is anything with expiring entries to evict, such as the
// questionnaire response cache.
type Sweeper interface {
	Sweep() int
}

// Janitor periodically evicts expired cache entries and fails jobs stuck in
// processing past the stale horizon, which happens when a previous run died
// mid-job.
type Janitor struct {
	cron       *cron.Cron
	store      Store
	cache      Sweeper
	staleAfter time.Duration
	now        func() time.Time
}

// NewJanitor builds a janitor. cache may be nil when nothing is cached.
func NewJanitor(store Store, cache Sweeper, staleAfter time.Duration) *Janitor {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &Janitor{
		store:      store,
		cache:      cache,
		staleAfter: staleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start schedules the sweep. An empty schedule runs every minute.
func (j *Janitor) Start(schedule string) error {
	if schedule == "" {
		schedule = "@every 1m"
	}
	j.cron = cron.New()
	if _, err := j.cron.AddFunc(schedule, j.run); err != nil {
		return err
	}
	j.cron.Start()
	telemetry.Info("janitor.started", map[string]any{
		"schedule":    schedule,
		"stale_after": j.staleAfter.String(),
	})
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

func (j *Janitor) run() {
	swept := 0
	if j.cache != nil {
		swept = j.cache.Sweep()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cutoff := j.now().Add(-j.staleAfter)
	reaped, err := j.store.FailStale(ctx, cutoff, ErrorCodeProvider, "processing exceeded the stale horizon")
	if err != nil {
		telemetry.Error("janitor.reap_failed", map[string]any{"error": err.Error()})
	}
	if swept > 0 || reaped > 0 {
		telemetry.Info("janitor.swept", map[string]any{
			"cache_entries": swept,
			"stale_jobs":    reaped,
		})
	}
}
