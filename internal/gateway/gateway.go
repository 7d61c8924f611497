// Package gateway drives enhancement requests against the backend:
// key selection, per-attempt timeout, transient retry with backoff,
// and a single cross-key failover on credential failures. Callers see
// exactly three outcomes: a Result, ErrNoCredential, or
// ErrEnhancementFailed.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"enhancebot/internal/keypool"
	"enhancebot/internal/metrics"
	"enhancebot/internal/openrouter"
)

var (
	// ErrNoCredential means every API key is quarantined; no network
	// attempt was made.
	ErrNoCredential = errors.New("no api credential available")

	// ErrEnhancementFailed means all attempts across the available
	// keys were exhausted. It wraps the last underlying cause.
	ErrEnhancementFailed = errors.New("enhancement failed")
)

// Backend is the one call the gateway makes against the LLM service.
type Backend interface {
	Chat(ctx context.Context, apiKey string, req openrouter.ChatRequest) (openrouter.ChatResponse, error)
}

type Result struct {
	Text      string
	ModelUsed string
}

type Config struct {
	Pool           *keypool.Pool
	Backend        Backend
	MaxAttempts    int
	BackoffBase    time.Duration
	AttemptTimeout time.Duration
	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
}

type Gateway struct {
	pool           *keypool.Pool
	backend        Backend
	maxAttempts    int
	backoffBase    time.Duration
	attemptTimeout time.Duration
	logger         zerolog.Logger
	metrics        *metrics.Metrics
}

func New(cfg Config) *Gateway {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 2
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 400 * time.Millisecond
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 45 * time.Second
	}
	return &Gateway{
		pool:           cfg.Pool,
		backend:        cfg.Backend,
		maxAttempts:    cfg.MaxAttempts,
		backoffBase:    cfg.BackoffBase,
		attemptTimeout: cfg.AttemptTimeout,
		logger:         cfg.Logger,
		metrics:        m,
	}
}

// Enhance runs one enhancement request. Key acquisition and failure
// reporting are short lock-scoped pool calls; no lock is held across
// the network attempt.
func (g *Gateway) Enhance(ctx context.Context, model string, messages []openrouter.Message) (Result, error) {
	cred, err := g.pool.Acquire(time.Now().UTC())
	if err != nil {
		g.logger.Warn().Str("model", model).Msg("all api keys quarantined, refusing request")
		return Result{}, ErrNoCredential
	}

	req := openrouter.ChatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   2000,
		Temperature: 0.7,
	}

	resp, err := g.tryKey(ctx, cred, req)
	if err == nil {
		g.metrics.EnhancementsOK.Inc()
		return Result{Text: resp.Text, ModelUsed: resp.ModelUsed}, nil
	}

	kind := classify(err)
	g.report(cred.ID, kind, err)

	if kind == keypool.FailureCredential {
		if other, aerr := g.pool.Acquire(time.Now().UTC()); aerr == nil && other.ID != cred.ID {
			resp, err2 := g.tryKey(ctx, other, req)
			if err2 == nil {
				g.metrics.EnhancementsOK.Inc()
				return Result{Text: resp.Text, ModelUsed: resp.ModelUsed}, nil
			}
			g.report(other.ID, classify(err2), err2)
			err = err2
		}
	}

	g.metrics.EnhancementsFailed.Inc()
	return Result{}, fmt.Errorf("%w: %v", ErrEnhancementFailed, err)
}

// tryKey runs the request with one key, retrying transient failures
// up to the attempt bound with exponential backoff. A credential
// failure aborts immediately so the caller can fail over.
func (g *Gateway) tryKey(ctx context.Context, cred keypool.Credential, req openrouter.ChatRequest) (openrouter.ChatResponse, error) {
	var lastErr error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
		resp, err := g.backend.Chat(attemptCtx, cred.Secret, req)
		cancel()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if classify(err) == keypool.FailureCredential {
			break
		}
		if attempt == g.maxAttempts-1 {
			break
		}
		backoff := g.backoffBase * (1 << attempt)
		select {
		case <-ctx.Done():
			return openrouter.ChatResponse{}, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return openrouter.ChatResponse{}, lastErr
}

func (g *Gateway) report(keyID string, kind keypool.FailureKind, err error) {
	switch kind {
	case keypool.FailureCredential:
		g.metrics.CredentialFailures.Inc()
	default:
		g.metrics.TransientFailures.Inc()
	}
	g.logger.Warn().
		Str("key_id", keyID).
		Str("kind", kind.String()).
		Err(err).
		Msg("backend attempt failed")
	g.pool.ReportFailure(keyID, kind, time.Now().UTC())
}

// classify maps a backend failure onto the pool's taxonomy:
// 401/402/403/429 are credential-specific, everything else (network,
// timeout, 5xx, malformed response) is transient.
func classify(err error) keypool.FailureKind {
	credential := openrouter.IsAPIStatus(err, func(status int) bool {
		switch status {
		case 401, 402, 403, 429:
			return true
		}
		return false
	})
	if credential {
		return keypool.FailureCredential
	}
	return keypool.FailureTransient
}
