package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"enhancebot/internal/config"
	"enhancebot/internal/gateway"
	"enhancebot/internal/keypool"
	"enhancebot/internal/metrics"
	"enhancebot/internal/openrouter"
	"enhancebot/internal/ratelimit"
	"enhancebot/internal/scheduler"
	"enhancebot/internal/session"
	"enhancebot/internal/storage"
	"enhancebot/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogger(cfg.Log.Level)
	log.Info().
		Int64("admin_user_id", cfg.AdminUserID).
		Str("model_free", cfg.Models.Free).
		Str("model_advanced", cfg.Models.Advanced).
		Msg("starting enhancebot")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(ctx, cfg.DB.Driver, cfg.DB.DSN, cfg.DB.AutoMigrate, "migrations")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer store.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer rdb.Close()

	bot, err := gotgbot.NewBot(cfg.BotToken, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create telegram bot")
	}
	log.Info().Str("bot_username", bot.User.Username).Int64("bot_id", bot.User.Id).Msg("telegram bot initialized")

	m := metrics.Global()

	pool := keypool.New(keypool.Config{
		Keys: []keypool.Key{
			{ID: "key_01", Secret: cfg.OpenRouter.Key01},
			{ID: "key_02", Secret: cfg.OpenRouter.Key02},
		},
		Cooldown: cfg.Keys.QuarantineCooldown,
		Logger:   log.Logger,
		Metrics:  m,
	})
	log.Info().Int("keys", pool.Len()).Msg("key pool initialized")

	backend := openrouter.New(openrouter.Config{
		BaseURL:    cfg.OpenRouter.BaseURL,
		Referer:    cfg.OpenRouter.Referer,
		Title:      cfg.OpenRouter.Title,
		HTTPClient: &http.Client{Timeout: cfg.HTTP.ClientTimeout},
	})
	gw := gateway.New(gateway.Config{
		Pool:           pool,
		Backend:        backend,
		MaxAttempts:    cfg.HTTP.MaxRetries,
		BackoffBase:    cfg.HTTP.BackoffBase,
		AttemptTimeout: cfg.HTTP.ClientTimeout,
		Logger:         log.Logger,
		Metrics:        m,
	})

	sessions := session.NewStore(cfg.Models.Free, cfg.Models.All())

	sched := scheduler.New(scheduler.Config{
		Sessions:         sessions,
		Keys:             pool,
		SweepInterval:    cfg.Session.SweepInterval,
		MaxIdle:          cfg.Session.MaxIdle,
		KeyResetInterval: cfg.Keys.ResetInterval,
		Logger:           log.Logger,
		Metrics:          m,
	})
	go sched.Start(ctx)

	logTelegramErr := func(err error) {
		log.Error().Str("component", "telegram").Msg(sanitizeTelegramErr(err, cfg.BotToken))
	}
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		MaxRoutines:      100,
		UnhandledErrFunc: logTelegramErr,
		Processor: telegram.Processor{
			Dedupe:  ratelimit.NewUpdateDeduplicator(rdb, cfg.Redis.UpdateTTL),
			Metrics: m,
			Logger:  log.Logger,
		},
	})
	service := telegram.NewService(telegram.Config{
		FeedbackDB:  store,
		Sessions:    sessions,
		Gateway:     gw,
		Pool:        pool,
		RateLimiter: ratelimit.NewRateLimiter(rdb, cfg.Rate.PerHour),
		Redis:       rdb,
		Logger:      log.Logger,
		Metrics:     m,
		Models:      cfg.Models,
		ChunkLimit:  cfg.Chunk.Limit,
		FeedbackTTL: cfg.Redis.FeedbackTTL,
		AdminUserID: cfg.AdminUserID,
	})
	service.Register(dispatcher)

	updater := ext.NewUpdater(dispatcher, &ext.UpdaterOpts{
		UnhandledErrFunc: logTelegramErr,
	})
	if err := updater.StartPolling(bot, &ext.PollingOpts{
		EnableWebhookDeletion: true,
		DropPendingUpdates:    true,
		GetUpdatesOpts: &gotgbot.GetUpdatesOpts{
			Timeout: 50,
			RequestOpts: &gotgbot.RequestOpts{
				Timeout: 60 * time.Second,
			},
		},
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to start polling")
	}
	log.Info().Msg("polling started")

	errCh := make(chan error, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Server.HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle(cfg.Server.MetricsPath, promhttp.Handler())
	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Server.ListenAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("runtime error")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := updater.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop updater")
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
	}

	log.Info().Msg("stopped")
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLogLevel(level))
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func sanitizeTelegramErr(err error, token string) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if strings.TrimSpace(token) == "" {
		return msg
	}

	msg = strings.ReplaceAll(msg, token, "<redacted-token>")
	if idx := strings.Index(token, ":"); idx > 0 {
		botID := token[:idx]
		msg = strings.ReplaceAll(msg, "/bot"+botID+":", "/bot<redacted>:")
		msg = strings.ReplaceAll(msg, "bot"+botID+"/", "bot<redacted>/")
	}
	return msg
}
