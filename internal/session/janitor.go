package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor periodically purges expired records from the store. Expired records
// are already invisible to Get, so the sweep only reclaims memory and rows.
type Janitor struct {
	logger *slog.Logger
	store  Store
	cron   *cron.Cron
	every  time.Duration
}

// NewJanitor creates a sweeper that runs every interval.
func NewJanitor(logger *slog.Logger, store Store, every time.Duration) *Janitor {
	if every <= 0 {
		every = 10 * time.Minute
	}
	return &Janitor{
		logger: logger.With(slog.String("service", "session_janitor")),
		store:  store,
		cron:   cron.New(),
		every:  every,
	}
}

// Start schedules the sweep and launches the cron runner.
func (j *Janitor) Start() error {
	_, err := j.cron.AddFunc(fmt.Sprintf("@every %s", j.every), j.sweep)
	if err != nil {
		return fmt.Errorf("schedule session sweep: %w", err)
	}
	j.cron.Start()
	j.logger.Info("session janitor started", slog.Duration("interval", j.every))
	return nil
}

// Stop halts the cron runner and waits for an in-flight sweep to finish.
func (j *Janitor) Stop(ctx context.Context) error {
	done := j.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Janitor) sweep() {
	purged, err := j.store.PurgeExpired(context.Background())
	if err != nil {
		j.logger.Error("session sweep failed", slog.String("error", err.Error()))
		return
	}
	if purged > 0 {
		j.logger.Info("purged expired sessions", slog.Int("count", purged))
	}
}
