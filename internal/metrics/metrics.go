package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	UpdatesTotal       prometheus.Counter
	EnhancementsOK     prometheus.Counter
	EnhancementsFailed prometheus.Counter
	CredentialFailures prometheus.Counter
	TransientFailures  prometheus.Counter
	KeyQuarantines     prometheus.Counter
	KeyResets          prometheus.Counter
	SessionsSwept      prometheus.Counter
	FeedbackStored     prometheus.Counter
	RateLimited        prometheus.Counter
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			UpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "enhancebot",
				Name:      "telegram_updates_total",
				Help:      "Total telegram updates received",
			}),
			EnhancementsOK: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "enhancebot",
				Name:      "enhancements_ok_total",
				Help:      "Total prompt enhancements completed",
			}),
			EnhancementsFailed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "enhancebot",
				Name:      "enhancements_failed_total",
				Help:      "Total prompt enhancements that exhausted all attempts",
			}),
			CredentialFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "enhancebot",
				Name:      "backend_credential_failures_total",
				Help:      "Backend failures classified as credential-specific",
			}),
			TransientFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "enhancebot",
				Name:      "backend_transient_failures_total",
				Help:      "Backend failures classified as transient",
			}),
			KeyQuarantines: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "enhancebot",
				Name:      "key_quarantines_total",
				Help:      "API key transitions into quarantine",
			}),
			KeyResets: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "enhancebot",
				Name:      "key_resets_total",
				Help:      "API keys returned to active by reset",
			}),
			SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "enhancebot",
				Name:      "sessions_swept_total",
				Help:      "Idle sessions removed by the periodic sweep",
			}),
			FeedbackStored: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "enhancebot",
				Name:      "feedback_stored_total",
				Help:      "Feedback entries persisted",
			}),
			RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "enhancebot",
				Name:      "rate_limited_total",
				Help:      "Messages rejected by the per-user rate limit",
			}),
		}
		prometheus.MustRegister(
			global.UpdatesTotal,
			global.EnhancementsOK,
			global.EnhancementsFailed,
			global.CredentialFailures,
			global.TransientFailures,
			global.KeyQuarantines,
			global.KeyResets,
			global.SessionsSwept,
			global.FeedbackStored,
			global.RateLimited,
		)
	})
	return global
}
