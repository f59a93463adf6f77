// Package config loads gateway configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeOptional AuthMode = "optional"
	AuthModeDisabled AuthMode = "disabled"
)

type StoreDriver string

const (
	StoreMemory   StoreDriver = "memory"
	StoreRedis    StoreDriver = "redis"
	StorePostgres StoreDriver = "postgres"
)

type Config struct {
	Addr string

	AuthMode AuthMode
	APIKeys  map[string]struct{}

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Request limits. Audio uploads dominate body size.
	MaxBodyBytes  int64
	MaxAudioBytes int64

	// Session store.
	StoreDriver        StoreDriver
	RedisAddr          string
	RedisPassword      string
	RedisTTL           time.Duration
	PostgresDSN        string
	PostgresMigrate    bool
	StoreRetryAttempts int
	StoreRetryBase     time.Duration

	// Assistant engine. Empty GeminiAPIKey selects the rule engine.
	GeminiAPIKey string
	GeminiModel  string

	// Voice providers.
	CartesiaAPIKey string
	VoiceID        string
	AudioFormat    string

	// Commerce collaborator. Empty disables cart/search enrichment.
	StripeAPIKey string

	// Notification webhook. Empty disables notifications.
	WebhookURL string

	DefaultLanguage string

	// Turn pipeline.
	TurnTimeout        time.Duration
	SweepIdleThreshold time.Duration

	// In-memory limits (per principal).
	LimitRPS                float64
	LimitBurst              int
	LimitMaxConcurrentTurns int
	LimitMaxLiveSessions    int

	// Live WebSocket mode (/v1/live).
	LiveMaxAudioBufferBytes int64
	LiveMaxSessionDuration  time.Duration
	LiveWSPingInterval      time.Duration
	LiveWSWriteTimeout      time.Duration

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	HandlerTimeout      time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                    envOr("VOXCART_ADDR", ":8080"),
		AuthMode:                AuthMode(envOr("VOXCART_AUTH_MODE", string(AuthModeRequired))),
		APIKeys:                 make(map[string]struct{}),
		CORSAllowedOrigins:      make(map[string]struct{}),
		MaxBodyBytes:            envInt64Or("VOXCART_MAX_BODY_BYTES", 8<<20), // 8 MiB
		MaxAudioBytes:           envInt64Or("VOXCART_MAX_AUDIO_BYTES", 4<<20),
		StoreDriver:             StoreDriver(envOr("VOXCART_STORE_DRIVER", string(StoreMemory))),
		RedisAddr:               envOr("VOXCART_REDIS_ADDR", "localhost:6379"),
		RedisPassword:           os.Getenv("VOXCART_REDIS_PASSWORD"),
		RedisTTL:                envDurationOr("VOXCART_REDIS_TTL", 24*time.Hour),
		PostgresDSN:             os.Getenv("VOXCART_POSTGRES_DSN"),
		PostgresMigrate:         envBoolOr("VOXCART_POSTGRES_MIGRATE", true),
		StoreRetryAttempts:      envIntOr("VOXCART_STORE_RETRY_ATTEMPTS", 3),
		StoreRetryBase:          envDurationOr("VOXCART_STORE_RETRY_BASE", 100*time.Millisecond),
		GeminiAPIKey:            os.Getenv("VOXCART_GEMINI_API_KEY"),
		GeminiModel:             envOr("VOXCART_GEMINI_MODEL", "gemini-2.0-flash"),
		CartesiaAPIKey:          os.Getenv("VOXCART_CARTESIA_API_KEY"),
		VoiceID:                 os.Getenv("VOXCART_VOICE_ID"),
		AudioFormat:             envOr("VOXCART_AUDIO_FORMAT", "mp3"),
		StripeAPIKey:            os.Getenv("VOXCART_STRIPE_API_KEY"),
		WebhookURL:              os.Getenv("VOXCART_WEBHOOK_URL"),
		DefaultLanguage:         envOr("VOXCART_DEFAULT_LANGUAGE", "en-US"),
		TurnTimeout:             envDurationOr("VOXCART_TURN_TIMEOUT", 30*time.Second),
		SweepIdleThreshold:      envDurationOr("VOXCART_SWEEP_IDLE_THRESHOLD", time.Hour),
		LimitRPS:                envFloat64Or("VOXCART_RATE_LIMIT_RPS", 2.0),
		LimitBurst:              envIntOr("VOXCART_RATE_LIMIT_BURST", 4),
		LimitMaxConcurrentTurns: envIntOr("VOXCART_MAX_CONCURRENT_TURNS", 20),
		LimitMaxLiveSessions:    envIntOr("VOXCART_MAX_LIVE_SESSIONS_PER_PRINCIPAL", 2),
		LiveMaxAudioBufferBytes: envInt64Or("VOXCART_LIVE_MAX_AUDIO_BUFFER_BYTES", 4<<20),
		LiveMaxSessionDuration:  envDurationOr("VOXCART_LIVE_MAX_DURATION", 2*time.Hour),
		LiveWSPingInterval:      envDurationOr("VOXCART_LIVE_WS_PING_INTERVAL", 20*time.Second),
		LiveWSWriteTimeout:      envDurationOr("VOXCART_LIVE_WS_WRITE_TIMEOUT", 5*time.Second),
		ReadHeaderTimeout:       envDurationOr("VOXCART_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:             envDurationOr("VOXCART_READ_TIMEOUT", 30*time.Second),
		HandlerTimeout:          envDurationOr("VOXCART_TOTAL_REQUEST_TIMEOUT", time.Minute),
		ShutdownGracePeriod:     envDurationOr("VOXCART_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeOptional, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("VOXCART_AUTH_MODE must be one of required|optional|disabled")
	}

	for _, key := range splitCSV(os.Getenv("VOXCART_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}
	for _, origin := range splitCSV(os.Getenv("VOXCART_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	switch cfg.StoreDriver {
	case StoreMemory, StoreRedis, StorePostgres:
	default:
		return Config{}, fmt.Errorf("VOXCART_STORE_DRIVER must be one of memory|redis|postgres")
	}
	if cfg.StoreDriver == StorePostgres && strings.TrimSpace(cfg.PostgresDSN) == "" {
		return Config{}, fmt.Errorf("VOXCART_POSTGRES_DSN must be set when VOXCART_STORE_DRIVER=postgres")
	}
	if cfg.StoreDriver == StoreRedis && strings.TrimSpace(cfg.RedisAddr) == "" {
		return Config{}, fmt.Errorf("VOXCART_REDIS_ADDR must be set when VOXCART_STORE_DRIVER=redis")
	}

	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("VOXCART_MAX_BODY_BYTES must be > 0")
	}
	if cfg.MaxAudioBytes <= 0 {
		return Config{}, fmt.Errorf("VOXCART_MAX_AUDIO_BYTES must be > 0")
	}
	if cfg.MaxAudioBytes > cfg.MaxBodyBytes {
		return Config{}, fmt.Errorf("VOXCART_MAX_AUDIO_BYTES must be <= VOXCART_MAX_BODY_BYTES")
	}
	if cfg.StoreRetryAttempts <= 0 {
		return Config{}, fmt.Errorf("VOXCART_STORE_RETRY_ATTEMPTS must be > 0")
	}
	if cfg.StoreRetryBase <= 0 {
		return Config{}, fmt.Errorf("VOXCART_STORE_RETRY_BASE must be > 0")
	}
	if cfg.TurnTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXCART_TURN_TIMEOUT must be > 0")
	}
	if cfg.SweepIdleThreshold <= 0 {
		return Config{}, fmt.Errorf("VOXCART_SWEEP_IDLE_THRESHOLD must be > 0")
	}
	if cfg.LimitRPS < 0 {
		return Config{}, fmt.Errorf("VOXCART_RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.LimitBurst < 0 {
		return Config{}, fmt.Errorf("VOXCART_RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.LimitMaxConcurrentTurns < 0 {
		return Config{}, fmt.Errorf("VOXCART_MAX_CONCURRENT_TURNS must be >= 0")
	}
	if cfg.LimitMaxLiveSessions < 0 {
		return Config{}, fmt.Errorf("VOXCART_MAX_LIVE_SESSIONS_PER_PRINCIPAL must be >= 0")
	}
	if cfg.LiveMaxAudioBufferBytes <= 0 {
		return Config{}, fmt.Errorf("VOXCART_LIVE_MAX_AUDIO_BUFFER_BYTES must be > 0")
	}
	if cfg.LiveMaxSessionDuration <= 0 {
		return Config{}, fmt.Errorf("VOXCART_LIVE_MAX_DURATION must be > 0")
	}
	if cfg.LiveWSPingInterval <= 0 {
		return Config{}, fmt.Errorf("VOXCART_LIVE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.LiveWSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXCART_LIVE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXCART_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXCART_READ_TIMEOUT must be > 0")
	}
	if cfg.HandlerTimeout <= 0 {
		return Config{}, fmt.Errorf("VOXCART_TOTAL_REQUEST_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("VOXCART_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	if cfg.AuthMode == AuthModeRequired && len(cfg.APIKeys) == 0 {
		return Config{}, fmt.Errorf("VOXCART_API_KEYS must be set when VOXCART_AUTH_MODE=required")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
