// Package keypool tracks the health of the backend API keys and
// decides which one each request uses. Key material stays inside the
// pool and the HTTP client; logs and errors carry key IDs only.
package keypool

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"enhancebot/internal/metrics"
)

// ErrNoneAvailable is returned by Acquire when every key is quarantined.
var ErrNoneAvailable = errors.New("no api key available")

// DefaultCooldown is the quarantine window applied on a
// credential-specific failure.
const DefaultCooldown = 15 * time.Minute

type Status int

const (
	StatusActive Status = iota
	StatusQuarantined
)

func (s Status) String() string {
	if s == StatusQuarantined {
		return "quarantined"
	}
	return "active"
}

// FailureKind classifies a backend failure for the pool. Only
// credential-specific failures quarantine a key.
type FailureKind int

const (
	FailureTransient FailureKind = iota
	FailureCredential
)

func (k FailureKind) String() string {
	if k == FailureCredential {
		return "credential"
	}
	return "transient"
}

// Key is one configured credential.
type Key struct {
	ID     string
	Secret string
}

// Credential is a point-in-time grant of one active key.
type Credential struct {
	ID     string
	Secret string
}

// KeyStatus is the externally visible health of one key. It never
// carries the secret.
type KeyStatus struct {
	ID               string
	Status           Status
	QuarantinedUntil time.Time
}

type entry struct {
	id               string
	secret           string
	status           Status
	quarantinedUntil time.Time
}

type Pool struct {
	mu       sync.Mutex
	entries  []*entry
	next     int
	cooldown time.Duration
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

type Config struct {
	Keys     []Key
	Cooldown time.Duration
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
}

func New(cfg Config) *Pool {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	p := &Pool{
		cooldown: cfg.Cooldown,
		logger:   cfg.Logger,
		metrics:  m,
	}
	for _, k := range cfg.Keys {
		if k.Secret == "" {
			continue
		}
		p.entries = append(p.entries, &entry{id: k.ID, secret: k.Secret})
	}
	return p
}

// Len reports how many keys the pool manages.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Acquire hands out one active key, rotating round-robin across the
// active set. A key whose quarantine window has lapsed is reactivated
// in place. Returns ErrNoneAvailable when every key is quarantined.
func (p *Pool) Acquire(now time.Time) (Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.entries)
	for i := 0; i < n; i++ {
		e := p.entries[(p.next+i)%n]
		if e.status == StatusQuarantined {
			if e.quarantinedUntil.After(now) {
				continue
			}
			e.status = StatusActive
			e.quarantinedUntil = time.Time{}
			p.logger.Info().Str("key_id", e.id).Msg("api key quarantine expired, reactivated")
			p.metrics.KeyResets.Inc()
		}
		p.next = (p.next + i + 1) % n
		return Credential{ID: e.id, Secret: e.secret}, nil
	}
	return Credential{}, ErrNoneAvailable
}

// ReportFailure records the outcome of a failed request made with the
// given key. Credential-specific failures quarantine the key for the
// cooldown window; transient failures leave it active.
func (p *Pool) ReportFailure(keyID string, kind FailureKind, now time.Time) {
	if kind != FailureCredential {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		if e.id != keyID {
			continue
		}
		if e.status == StatusQuarantined {
			return
		}
		e.status = StatusQuarantined
		e.quarantinedUntil = now.Add(p.cooldown)
		p.logger.Warn().
			Str("key_id", e.id).
			Time("until", e.quarantinedUntil).
			Msg("api key quarantined")
		p.metrics.KeyQuarantines.Inc()
		return
	}
}

// ResetAll unconditionally reactivates every key. This is the
// scheduler's blunt hourly recovery: optimistic retry instead of
// health checking. Returns the number of keys reactivated.
func (p *Pool) ResetAll() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	reset := 0
	for _, e := range p.entries {
		if e.status != StatusQuarantined {
			continue
		}
		e.status = StatusActive
		e.quarantinedUntil = time.Time{}
		p.logger.Info().Str("key_id", e.id).Msg("api key reset to active")
		p.metrics.KeyResets.Inc()
		reset++
	}
	return reset
}

// ResetExpired reactivates only the keys whose quarantine window has
// passed. Returns the number of keys reactivated.
func (p *Pool) ResetExpired(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	reset := 0
	for _, e := range p.entries {
		if e.status != StatusQuarantined || e.quarantinedUntil.After(now) {
			continue
		}
		e.status = StatusActive
		e.quarantinedUntil = time.Time{}
		p.logger.Info().Str("key_id", e.id).Msg("api key quarantine expired, reactivated")
		p.metrics.KeyResets.Inc()
		reset++
	}
	return reset
}

// Statuses returns the health of every key, in configuration order.
func (p *Pool) Statuses() []KeyStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]KeyStatus, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, KeyStatus{
			ID:               e.id,
			Status:           e.status,
			QuarantinedUntil: e.quarantinedUntil,
		})
	}
	return out
}
