package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Mode names for the two user-selectable backend models.
const (
	ModeFree     = "free"
	ModeAdvanced = "advanced"
)

var (
	ErrMissingBotToken    = errors.New("TELEGRAM_BOT_TOKEN is required")
	ErrMissingAPIKeys     = errors.New("at least one OPENROUTER_API_KEY must be provided")
	ErrMissingDatabaseDSN = errors.New("DB_DSN is required")
)

type Config struct {
	BotToken    string
	AdminUserID int64

	OpenRouter OpenRouterConfig
	Models     ModelConfig
	Chunk      ChunkConfig
	Session    SessionConfig
	Keys       KeyConfig
	HTTP       HTTPConfig
	Redis      RedisConfig
	Rate       RateConfig
	DB         DBConfig
	Server     ServerConfig
	Log        LogConfig
}

type OpenRouterConfig struct {
	BaseURL string
	Key01   string
	Key02   string
	Referer string
	Title   string
}

// ModelConfig maps the free/advanced modes onto concrete backend
// model identifiers. The pair forms the closed model set.
type ModelConfig struct {
	Free     string
	Advanced string
}

func (m ModelConfig) All() []string {
	return []string{m.Free, m.Advanced}
}

// ByMode resolves a mode name to its model identifier. Unknown modes
// resolve to the free model; the session store enforces the closed set.
func (m ModelConfig) ByMode(mode string) string {
	if strings.EqualFold(mode, ModeAdvanced) {
		return m.Advanced
	}
	return m.Free
}

// ModeOf is the inverse of ByMode, for display.
func (m ModelConfig) ModeOf(model string) string {
	if model == m.Advanced {
		return ModeAdvanced
	}
	return ModeFree
}

type ChunkConfig struct {
	Limit int
}

type SessionConfig struct {
	MaxIdle       time.Duration
	SweepInterval time.Duration
}

type KeyConfig struct {
	ResetInterval      time.Duration
	QuarantineCooldown time.Duration
}

type HTTPConfig struct {
	ClientTimeout time.Duration
	MaxRetries    int
	BackoffBase   time.Duration
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	UpdateTTL   time.Duration
	FeedbackTTL time.Duration
}

type RateConfig struct {
	PerHour int64
}

type DBConfig struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

type ServerConfig struct {
	ListenAddr  string
	HealthPath  string
	MetricsPath string
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		BotToken:    mustEnv("TELEGRAM_BOT_TOKEN", ""),
		AdminUserID: mustInt64("ADMIN_USER_ID", 0),
		OpenRouter: OpenRouterConfig{
			BaseURL: mustEnv("OPENROUTER_URL", "https://openrouter.ai/api/v1"),
			Key01:   mustEnv("OPENROUTER_API_KEY_01", ""),
			Key02:   mustEnv("OPENROUTER_API_KEY_02", ""),
			Referer: mustEnv("OPENROUTER_REFERER", "https://github.com/enhancebot/enhancebot"),
			Title:   mustEnv("OPENROUTER_TITLE", "Advanced Prompt Enhancer Bot"),
		},
		Models: ModelConfig{
			Free:     mustEnv("MODEL_FREE", "deepseek/deepseek-r1-0528-qwen3-8b:free"),
			Advanced: mustEnv("MODEL_ADVANCED", "anthropic/claude-3-opus"),
		},
		Chunk: ChunkConfig{
			Limit: mustInt("CHUNK_LIMIT", 4000),
		},
		Session: SessionConfig{
			MaxIdle:       mustDuration("SESSION_MAX_IDLE", 7*24*time.Hour),
			SweepInterval: mustDuration("SESSION_SWEEP_INTERVAL", 24*time.Hour),
		},
		Keys: KeyConfig{
			ResetInterval:      mustDuration("KEY_RESET_INTERVAL", time.Hour),
			QuarantineCooldown: mustDuration("KEY_QUARANTINE_COOLDOWN", 15*time.Minute),
		},
		HTTP: HTTPConfig{
			ClientTimeout: mustDuration("HTTP_TIMEOUT", 45*time.Second),
			MaxRetries:    mustInt("HTTP_MAX_RETRIES", 2),
			BackoffBase:   mustDuration("HTTP_BACKOFF_BASE", 400*time.Millisecond),
		},
		Redis: RedisConfig{
			Addr:        mustEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    mustEnv("REDIS_PASSWORD", ""),
			DB:          mustInt("REDIS_DB", 0),
			UpdateTTL:   mustDuration("UPDATE_DEDUPE_TTL", 6*time.Hour),
			FeedbackTTL: mustDuration("FEEDBACK_TTL", 10*time.Minute),
		},
		Rate: RateConfig{
			PerHour: int64(mustInt("RATE_LIMIT_PER_HOUR", 30)),
		},
		DB: DBConfig{
			Driver:      strings.ToLower(mustEnv("DB_DRIVER", "sqlite")),
			DSN:         mustEnv("DB_DSN", "feedback.db"),
			AutoMigrate: mustBool("AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			ListenAddr:  mustEnv("LISTEN_ADDR", ":8080"),
			HealthPath:  mustEnv("HEALTH_PATH", "/healthz"),
			MetricsPath: mustEnv("METRICS_PATH", "/metrics"),
		},
		Log: LogConfig{
			Level: strings.ToLower(mustEnv("LOG_LEVEL", "info")),
		},
	}

	if cfg.BotToken == "" {
		return nil, ErrMissingBotToken
	}
	if cfg.OpenRouter.Key01 == "" && cfg.OpenRouter.Key02 == "" {
		return nil, ErrMissingAPIKeys
	}
	if cfg.DB.DSN == "" {
		return nil, ErrMissingDatabaseDSN
	}
	return cfg, nil
}

func mustEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func mustInt(key string, def int) int {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustInt64(key string, def int64) int64 {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func mustBool(key string, def bool) bool {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func mustDuration(key string, def time.Duration) time.Duration {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
