// Package scheduler runs the two background maintenance loops:
// sweeping idle sessions and resetting API key status. Each tick is
// isolated; a panic inside one tick is logged and the loop keeps
// going.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"enhancebot/internal/keypool"
	"enhancebot/internal/metrics"
	"enhancebot/internal/session"
)

type Config struct {
	Sessions         *session.Store
	Keys             *keypool.Pool
	SweepInterval    time.Duration
	MaxIdle          time.Duration
	KeyResetInterval time.Duration
	Logger           zerolog.Logger
	Metrics          *metrics.Metrics
}

type Scheduler struct {
	sessions         *session.Store
	keys             *keypool.Pool
	sweepInterval    time.Duration
	maxIdle          time.Duration
	keyResetInterval time.Duration
	logger           zerolog.Logger
	metrics          *metrics.Metrics
}

func New(cfg Config) *Scheduler {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 24 * time.Hour
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = 7 * 24 * time.Hour
	}
	if cfg.KeyResetInterval <= 0 {
		cfg.KeyResetInterval = time.Hour
	}
	return &Scheduler{
		sessions:         cfg.Sessions,
		keys:             cfg.Keys,
		sweepInterval:    cfg.SweepInterval,
		maxIdle:          cfg.MaxIdle,
		keyResetInterval: cfg.KeyResetInterval,
		logger:           cfg.Logger,
		metrics:          m,
	}
}

// Start runs both loops until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.runEvery(ctx, "session_sweep", s.sweepInterval, s.sweepSessions)
	}()
	go func() {
		defer wg.Done()
		s.runEvery(ctx, "key_reset", s.keyResetInterval, s.resetKeys)
	}()
	wg.Wait()
}

// runEvery invokes tick on every interval until ctx is cancelled.
// Ticks run synchronously on the loop goroutine: the ticker drops
// fires that land while a tick is still running, so a slow tick is
// skipped rather than queued and runs never overlap.
func (s *Scheduler) runEvery(ctx context.Context, name string, interval time.Duration, tick func(now time.Time)) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.runTick(name, now.UTC(), tick)
		}
	}
}

func (s *Scheduler) runTick(name string, now time.Time, tick func(now time.Time)) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("task", name).Any("panic", r).Msg("background tick panicked")
		}
	}()
	tick(now)
}

func (s *Scheduler) sweepSessions(now time.Time) {
	removed := s.sessions.Sweep(now, s.maxIdle)
	s.metrics.SessionsSwept.Add(float64(removed))
	s.logger.Info().Int("removed", removed).Dur("max_idle", s.maxIdle).Msg("session sweep completed")
}

func (s *Scheduler) resetKeys(_ time.Time) {
	reset := s.keys.ResetAll()
	if reset > 0 {
		s.logger.Info().Int("reset", reset).Msg("api key status reset")
	}
}
