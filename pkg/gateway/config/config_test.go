package config

import (
	"strings"
	"testing"
	"time"
)

var gatewayEnvKeys = []string{
	"VOXCART_ADDR",
	"VOXCART_AUTH_MODE",
	"VOXCART_API_KEYS",
	"VOXCART_CORS_ORIGINS",
	"VOXCART_MAX_BODY_BYTES",
	"VOXCART_MAX_AUDIO_BYTES",
	"VOXCART_STORE_DRIVER",
	"VOXCART_REDIS_ADDR",
	"VOXCART_REDIS_PASSWORD",
	"VOXCART_REDIS_TTL",
	"VOXCART_POSTGRES_DSN",
	"VOXCART_POSTGRES_MIGRATE",
	"VOXCART_STORE_RETRY_ATTEMPTS",
	"VOXCART_STORE_RETRY_BASE",
	"VOXCART_GEMINI_API_KEY",
	"VOXCART_GEMINI_MODEL",
	"VOXCART_CARTESIA_API_KEY",
	"VOXCART_VOICE_ID",
	"VOXCART_AUDIO_FORMAT",
	"VOXCART_STRIPE_API_KEY",
	"VOXCART_WEBHOOK_URL",
	"VOXCART_DEFAULT_LANGUAGE",
	"VOXCART_TURN_TIMEOUT",
	"VOXCART_SWEEP_IDLE_THRESHOLD",
	"VOXCART_RATE_LIMIT_RPS",
	"VOXCART_RATE_LIMIT_BURST",
	"VOXCART_MAX_CONCURRENT_TURNS",
	"VOXCART_MAX_LIVE_SESSIONS_PER_PRINCIPAL",
	"VOXCART_LIVE_MAX_AUDIO_BUFFER_BYTES",
	"VOXCART_LIVE_MAX_DURATION",
	"VOXCART_LIVE_WS_PING_INTERVAL",
	"VOXCART_LIVE_WS_WRITE_TIMEOUT",
	"VOXCART_READ_HEADER_TIMEOUT",
	"VOXCART_READ_TIMEOUT",
	"VOXCART_TOTAL_REQUEST_TIMEOUT",
	"VOXCART_SHUTDOWN_GRACE_PERIOD",
}

func clearGatewayEnv(t *testing.T) {
	t.Helper()
	for _, key := range gatewayEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("VOXCART_API_KEYS", "vx_sk_test")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.AuthMode != AuthModeRequired {
		t.Fatalf("AuthMode = %q, want %q", cfg.AuthMode, AuthModeRequired)
	}
	if cfg.MaxBodyBytes != 8<<20 {
		t.Fatalf("MaxBodyBytes = %d, want %d", cfg.MaxBodyBytes, int64(8<<20))
	}
	if cfg.MaxAudioBytes != 4<<20 {
		t.Fatalf("MaxAudioBytes = %d, want %d", cfg.MaxAudioBytes, int64(4<<20))
	}
	if cfg.StoreDriver != StoreMemory {
		t.Fatalf("StoreDriver = %q, want memory", cfg.StoreDriver)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("RedisAddr = %q", cfg.RedisAddr)
	}
	if cfg.RedisTTL != 24*time.Hour {
		t.Fatalf("RedisTTL = %v, want 24h", cfg.RedisTTL)
	}
	if !cfg.PostgresMigrate {
		t.Fatalf("PostgresMigrate = false, want true")
	}
	if cfg.StoreRetryAttempts != 3 {
		t.Fatalf("StoreRetryAttempts = %d, want 3", cfg.StoreRetryAttempts)
	}
	if cfg.StoreRetryBase != 100*time.Millisecond {
		t.Fatalf("StoreRetryBase = %v, want 100ms", cfg.StoreRetryBase)
	}
	if cfg.GeminiModel != "gemini-2.0-flash" {
		t.Fatalf("GeminiModel = %q", cfg.GeminiModel)
	}
	if cfg.AudioFormat != "mp3" {
		t.Fatalf("AudioFormat = %q, want mp3", cfg.AudioFormat)
	}
	if cfg.DefaultLanguage != "en-US" {
		t.Fatalf("DefaultLanguage = %q, want en-US", cfg.DefaultLanguage)
	}
	if cfg.TurnTimeout != 30*time.Second {
		t.Fatalf("TurnTimeout = %v, want 30s", cfg.TurnTimeout)
	}
	if cfg.SweepIdleThreshold != time.Hour {
		t.Fatalf("SweepIdleThreshold = %v, want 1h", cfg.SweepIdleThreshold)
	}
	if cfg.LimitRPS != 2.0 {
		t.Fatalf("LimitRPS = %v, want 2.0", cfg.LimitRPS)
	}
	if cfg.LimitBurst != 4 {
		t.Fatalf("LimitBurst = %d, want 4", cfg.LimitBurst)
	}
	if cfg.LimitMaxConcurrentTurns != 20 {
		t.Fatalf("LimitMaxConcurrentTurns = %d, want 20", cfg.LimitMaxConcurrentTurns)
	}
	if cfg.LimitMaxLiveSessions != 2 {
		t.Fatalf("LimitMaxLiveSessions = %d, want 2", cfg.LimitMaxLiveSessions)
	}
	if cfg.LiveMaxAudioBufferBytes != 4<<20 {
		t.Fatalf("LiveMaxAudioBufferBytes = %d", cfg.LiveMaxAudioBufferBytes)
	}
	if cfg.LiveMaxSessionDuration != 2*time.Hour {
		t.Fatalf("LiveMaxSessionDuration = %v, want 2h", cfg.LiveMaxSessionDuration)
	}
	if cfg.LiveWSPingInterval != 20*time.Second {
		t.Fatalf("LiveWSPingInterval = %v, want 20s", cfg.LiveWSPingInterval)
	}
	if cfg.LiveWSWriteTimeout != 5*time.Second {
		t.Fatalf("LiveWSWriteTimeout = %v, want 5s", cfg.LiveWSWriteTimeout)
	}
	if cfg.ReadHeaderTimeout != 10*time.Second {
		t.Fatalf("ReadHeaderTimeout = %v, want 10s", cfg.ReadHeaderTimeout)
	}
	if cfg.ReadTimeout != 30*time.Second {
		t.Fatalf("ReadTimeout = %v, want 30s", cfg.ReadTimeout)
	}
	if cfg.HandlerTimeout != time.Minute {
		t.Fatalf("HandlerTimeout = %v, want 1m", cfg.HandlerTimeout)
	}
	if cfg.ShutdownGracePeriod != 30*time.Second {
		t.Fatalf("ShutdownGracePeriod = %v, want 30s", cfg.ShutdownGracePeriod)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("VOXCART_ADDR", ":9090")
	t.Setenv("VOXCART_AUTH_MODE", "optional")
	t.Setenv("VOXCART_API_KEYS", "k1, k2,,k3")
	t.Setenv("VOXCART_CORS_ORIGINS", "https://shop.example, https://admin.example")
	t.Setenv("VOXCART_MAX_BODY_BYTES", "1048576")
	t.Setenv("VOXCART_MAX_AUDIO_BYTES", "524288")
	t.Setenv("VOXCART_STORE_DRIVER", "redis")
	t.Setenv("VOXCART_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("VOXCART_REDIS_TTL", "2h")
	t.Setenv("VOXCART_TURN_TIMEOUT", "45s")
	t.Setenv("VOXCART_SWEEP_IDLE_THRESHOLD", "90m")
	t.Setenv("VOXCART_RATE_LIMIT_RPS", "7.5")
	t.Setenv("VOXCART_RATE_LIMIT_BURST", "9")
	t.Setenv("VOXCART_DEFAULT_LANGUAGE", "fr-FR")
	t.Setenv("VOXCART_POSTGRES_MIGRATE", "false")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":9090" {
		t.Fatalf("Addr = %q, want :9090", cfg.Addr)
	}
	if cfg.AuthMode != AuthModeOptional {
		t.Fatalf("AuthMode = %q, want optional", cfg.AuthMode)
	}
	if len(cfg.APIKeys) != 3 {
		t.Fatalf("APIKeys = %v, want 3 entries", cfg.APIKeys)
	}
	for _, key := range []string{"k1", "k2", "k3"} {
		if _, ok := cfg.APIKeys[key]; !ok {
			t.Fatalf("APIKeys missing %q", key)
		}
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("CORSAllowedOrigins = %v, want 2 entries", cfg.CORSAllowedOrigins)
	}
	if _, ok := cfg.CORSAllowedOrigins["https://shop.example"]; !ok {
		t.Fatalf("CORSAllowedOrigins missing https://shop.example")
	}
	if cfg.MaxBodyBytes != 1048576 {
		t.Fatalf("MaxBodyBytes = %d", cfg.MaxBodyBytes)
	}
	if cfg.MaxAudioBytes != 524288 {
		t.Fatalf("MaxAudioBytes = %d", cfg.MaxAudioBytes)
	}
	if cfg.StoreDriver != StoreRedis {
		t.Fatalf("StoreDriver = %q, want redis", cfg.StoreDriver)
	}
	if cfg.RedisAddr != "redis.internal:6380" {
		t.Fatalf("RedisAddr = %q", cfg.RedisAddr)
	}
	if cfg.RedisTTL != 2*time.Hour {
		t.Fatalf("RedisTTL = %v, want 2h", cfg.RedisTTL)
	}
	if cfg.TurnTimeout != 45*time.Second {
		t.Fatalf("TurnTimeout = %v, want 45s", cfg.TurnTimeout)
	}
	if cfg.SweepIdleThreshold != 90*time.Minute {
		t.Fatalf("SweepIdleThreshold = %v, want 90m", cfg.SweepIdleThreshold)
	}
	if cfg.LimitRPS != 7.5 {
		t.Fatalf("LimitRPS = %v, want 7.5", cfg.LimitRPS)
	}
	if cfg.LimitBurst != 9 {
		t.Fatalf("LimitBurst = %d, want 9", cfg.LimitBurst)
	}
	if cfg.DefaultLanguage != "fr-FR" {
		t.Fatalf("DefaultLanguage = %q, want fr-FR", cfg.DefaultLanguage)
	}
	if cfg.PostgresMigrate {
		t.Fatalf("PostgresMigrate = true, want false")
	}
}

func TestLoadFromEnv_MalformedValuesFallBackToDefaults(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("VOXCART_API_KEYS", "k1")
	t.Setenv("VOXCART_MAX_BODY_BYTES", "not-a-number")
	t.Setenv("VOXCART_TURN_TIMEOUT", "banana")
	t.Setenv("VOXCART_RATE_LIMIT_RPS", "fast")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.MaxBodyBytes != 8<<20 {
		t.Fatalf("MaxBodyBytes = %d, want default", cfg.MaxBodyBytes)
	}
	if cfg.TurnTimeout != 30*time.Second {
		t.Fatalf("TurnTimeout = %v, want default", cfg.TurnTimeout)
	}
	if cfg.LimitRPS != 2.0 {
		t.Fatalf("LimitRPS = %v, want default", cfg.LimitRPS)
	}
}

func TestLoadFromEnv_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "bad auth mode",
			env:     map[string]string{"VOXCART_AUTH_MODE": "open"},
			wantErr: "VOXCART_AUTH_MODE",
		},
		{
			name:    "required auth without keys",
			env:     map[string]string{"VOXCART_AUTH_MODE": "required"},
			wantErr: "VOXCART_API_KEYS",
		},
		{
			name:    "bad store driver",
			env:     map[string]string{"VOXCART_API_KEYS": "k1", "VOXCART_STORE_DRIVER": "dynamo"},
			wantErr: "VOXCART_STORE_DRIVER",
		},
		{
			name:    "postgres without dsn",
			env:     map[string]string{"VOXCART_API_KEYS": "k1", "VOXCART_STORE_DRIVER": "postgres"},
			wantErr: "VOXCART_POSTGRES_DSN",
		},
		{
			name: "audio larger than body",
			env: map[string]string{
				"VOXCART_API_KEYS":        "k1",
				"VOXCART_MAX_BODY_BYTES":  "1024",
				"VOXCART_MAX_AUDIO_BYTES": "2048",
			},
			wantErr: "VOXCART_MAX_AUDIO_BYTES",
		},
		{
			name:    "zero body limit",
			env:     map[string]string{"VOXCART_API_KEYS": "k1", "VOXCART_MAX_BODY_BYTES": "0"},
			wantErr: "VOXCART_MAX_BODY_BYTES",
		},
		{
			name:    "negative rps",
			env:     map[string]string{"VOXCART_API_KEYS": "k1", "VOXCART_RATE_LIMIT_RPS": "-1"},
			wantErr: "VOXCART_RATE_LIMIT_RPS",
		},
		{
			name:    "zero retry attempts",
			env:     map[string]string{"VOXCART_API_KEYS": "k1", "VOXCART_STORE_RETRY_ATTEMPTS": "0"},
			wantErr: "VOXCART_STORE_RETRY_ATTEMPTS",
		},
		{
			name:    "zero sweep threshold",
			env:     map[string]string{"VOXCART_API_KEYS": "k1", "VOXCART_SWEEP_IDLE_THRESHOLD": "0s"},
			wantErr: "VOXCART_SWEEP_IDLE_THRESHOLD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearGatewayEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			if err == nil {
				t.Fatalf("LoadFromEnv() error = nil, want error mentioning %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("LoadFromEnv() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestSplitCSV(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"  ", 0},
		{"a", 1},
		{"a,b,c", 3},
		{" a , b ,, c ", 3},
		{",,,", 0},
	}
	for _, tt := range tests {
		got := splitCSV(tt.in)
		if len(got) != tt.want {
			t.Errorf("splitCSV(%q) = %v, want %d entries", tt.in, got, tt.want)
		}
	}
}
