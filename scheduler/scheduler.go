package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const refreshTimeout = 30 * time.Second

// PhaseRefresher rewrites stored tournament phases that went stale.
type PhaseRefresher interface {
	RefreshPhases(ctx context.Context) (int, error)
}

type Scheduler struct {
	c         *cron.Cron
	spec      string
	refresher PhaseRefresher
	logger    *slog.Logger
}

// New accepts standard 5-field specs and descriptors such as "@every 1m".
func New(spec string, refresher PhaseRefresher, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		c:         cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		spec:      spec,
		refresher: refresher,
		logger:    logger,
	}
	if _, err := s.c.AddFunc(spec, s.RefreshNow); err != nil {
		return nil, fmt.Errorf("invalid phase refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

// RefreshNow runs one refresh and logs its outcome.
func (s *Scheduler) RefreshNow() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	updated, err := s.refresher.RefreshPhases(ctx)
	if err != nil {
		s.logger.Error("phase refresh failed", slog.Any("error", err))
		return
	}
	if updated > 0 {
		s.logger.Info("tournament phases refreshed", slog.Int("updated", updated))
	}
}

func (s *Scheduler) Start() {
	s.logger.Info("phase scheduler started", slog.String("schedule", s.spec))
	s.c.Start()
}

// Stop waits for a running refresh to finish or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("phase scheduler stop timed out")
	}
}
