package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/voxcart/voxcart/pkg/gateway/config"
	"github.com/voxcart/voxcart/pkg/gateway/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK            bool     `json:"ok"`
		Draining      bool     `json:"draining,omitempty"`
		AuthMode      string   `json:"auth_mode"`
		StoreDriver   string   `json:"store_driver"`
		Engine        string   `json:"engine"`
		LimitsEnabled bool     `json:"limits_enabled"`
		Issues        []string `json:"issues,omitempty"`
	}

	if h.Lifecycle.IsDraining() {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(readyResp{
			OK:          false,
			Draining:    true,
			AuthMode:    string(h.Config.AuthMode),
			StoreDriver: string(h.Config.StoreDriver),
			Engine:      engineName(h.Config),
		})
		return
	}

	issues := make([]string, 0, 4)

	switch h.Config.AuthMode {
	case config.AuthModeRequired, config.AuthModeOptional, config.AuthModeDisabled:
	default:
		issues = append(issues, "invalid auth_mode")
	}
	if h.Config.AuthMode == config.AuthModeRequired && len(h.Config.APIKeys) == 0 {
		issues = append(issues, "auth_mode=required but no api keys configured")
	}
	if h.Config.MaxBodyBytes <= 0 || h.Config.MaxAudioBytes <= 0 {
		issues = append(issues, "body and audio budgets must be > 0")
	}
	if h.Config.MaxAudioBytes > h.Config.MaxBodyBytes {
		issues = append(issues, "audio budget must be <= body budget")
	}
	if h.Config.TurnTimeout <= 0 {
		issues = append(issues, "turn timeout must be > 0")
	}
	if h.Config.CartesiaAPIKey == "" {
		issues = append(issues, "no speech provider key configured")
	}
	if h.Config.LiveMaxSessionDuration <= 0 || h.Config.LiveWSPingInterval <= 0 {
		issues = append(issues, "live session limits must be > 0")
	}
	if h.Config.ReadHeaderTimeout <= 0 || h.Config.ReadTimeout <= 0 || h.Config.HandlerTimeout <= 0 {
		issues = append(issues, "timeouts must be > 0")
	}

	limitsEnabled := (h.Config.LimitRPS > 0 && h.Config.LimitBurst > 0) ||
		h.Config.LimitMaxConcurrentTurns > 0 ||
		h.Config.LimitMaxLiveSessions > 0

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:            ok,
		AuthMode:      string(h.Config.AuthMode),
		StoreDriver:   string(h.Config.StoreDriver),
		Engine:        engineName(h.Config),
		LimitsEnabled: limitsEnabled,
		Issues:        issues,
	})
}

func engineName(cfg config.Config) string {
	if cfg.GeminiAPIKey != "" {
		return "gemini"
	}
	return "rules"
}
