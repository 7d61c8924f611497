package telegram

import (
	"strconv"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/callbackquery"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/message"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"enhancebot/internal/config"
	"enhancebot/internal/gateway"
	"enhancebot/internal/keypool"
	"enhancebot/internal/metrics"
	"enhancebot/internal/ratelimit"
	"enhancebot/internal/session"
	"enhancebot/internal/storage"
)

type Service struct {
	feedbackDB   *storage.Store
	sessions     *session.Store
	gw           *gateway.Gateway
	pool         *keypool.Pool
	rateLimiter  *ratelimit.RateLimiter
	feedbackMode *feedbackModeStore
	logger       zerolog.Logger
	metrics      *metrics.Metrics
	models       config.ModelConfig
	chunkLimit   int
	adminUserID  int64
	startedAt    time.Time
}

type Config struct {
	FeedbackDB  *storage.Store
	Sessions    *session.Store
	Gateway     *gateway.Gateway
	Pool        *keypool.Pool
	RateLimiter *ratelimit.RateLimiter
	Redis       *redis.Client
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
	Models      config.ModelConfig
	ChunkLimit  int
	FeedbackTTL time.Duration
	AdminUserID int64
}

func NewService(cfg Config) *Service {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.ChunkLimit <= 0 {
		cfg.ChunkLimit = 4000
	}
	if cfg.FeedbackTTL <= 0 {
		cfg.FeedbackTTL = 10 * time.Minute
	}
	return &Service{
		feedbackDB:   cfg.FeedbackDB,
		sessions:     cfg.Sessions,
		gw:           cfg.Gateway,
		pool:         cfg.Pool,
		rateLimiter:  cfg.RateLimiter,
		feedbackMode: newFeedbackModeStore(cfg.Redis, cfg.FeedbackTTL),
		logger:       cfg.Logger,
		metrics:      m,
		models:       cfg.Models,
		chunkLimit:   cfg.ChunkLimit,
		adminUserID:  cfg.AdminUserID,
		startedAt:    time.Now().UTC(),
	}
}

func (s *Service) Register(d *ext.Dispatcher) {
	d.AddHandler(handlers.NewCommand("start", s.start))
	d.AddHandler(handlers.NewCommand("help", s.help))
	d.AddHandler(handlers.NewCommand("history", s.history))
	d.AddHandler(handlers.NewCommand("model", s.model))
	d.AddHandler(handlers.NewCommand("feedback", s.feedback))
	d.AddHandler(handlers.NewCommand("status", s.status))
	d.AddHandler(handlers.NewCommand("feedback_stats", s.feedbackStats))
	d.AddHandler(handlers.NewCommand("export_feedback", s.exportFeedback))
	d.AddHandler(handlers.NewCallback(callbackquery.Prefix(cbPrefix), s.onCallback))
	d.AddHandler(handlers.NewMessage(func(msg *gotgbot.Message) bool {
		return message.Text(msg) && !message.Command(msg)
	}, s.onText))
}

func (s *Service) now() time.Time {
	return time.Now().UTC()
}

func userID(ctx *ext.Context) int64 {
	if ctx.EffectiveUser == nil {
		return 0
	}
	return ctx.EffectiveUser.Id
}

// formatUsername picks a stable display name for feedback records:
// handle, else full name, else a synthetic User_<id>.
func formatUsername(user *gotgbot.User) string {
	if user == nil {
		return ""
	}
	if user.Username != "" {
		return user.Username
	}
	name := user.FirstName
	if user.LastName != "" {
		name = name + " " + user.LastName
	}
	if name != "" {
		return name
	}
	return "User_" + strconv.FormatInt(user.Id, 10)
}
