package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"enhancebot/internal/keypool"
	"enhancebot/internal/session"
)

func TestRunEverySurvivesPanickingTick(t *testing.T) {
	s := New(Config{
		Sessions: session.NewStore("m", []string{"m"}),
		Keys:     keypool.New(keypool.Config{Logger: zerolog.Nop()}),
		Logger:   zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ticks atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.runEvery(ctx, "test", 5*time.Millisecond, func(time.Time) {
			if ticks.Add(1) == 1 {
				panic("first tick explodes")
			}
		})
	}()

	deadline := time.After(2 * time.Second)
	for ticks.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected ticks to continue after panic, got %d", ticks.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on cancellation")
	}
}

func TestStartRunsSweepAndReset(t *testing.T) {
	sessions := session.NewStore("m", []string{"m"})
	sessions.Touch(1, time.Now().UTC().Add(-30*24*time.Hour))

	pool := keypool.New(keypool.Config{
		Keys:     []keypool.Key{{ID: "key_01", Secret: "s1"}},
		Cooldown: time.Hour,
		Logger:   zerolog.Nop(),
	})
	pool.ReportFailure("key_01", keypool.FailureCredential, time.Now().UTC())

	s := New(Config{
		Sessions:         sessions,
		Keys:             pool,
		SweepInterval:    5 * time.Millisecond,
		MaxIdle:          7 * 24 * time.Hour,
		KeyResetInterval: 5 * time.Millisecond,
		Logger:           zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Start(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for {
		count, _ := sessions.Stats()
		statuses := pool.Statuses()
		if count == 0 && len(statuses) == 1 && statuses[0].Status == keypool.StatusActive {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected sweep and reset to run, sessions=%d statuses=%+v", count, statuses)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancellation")
	}
}
