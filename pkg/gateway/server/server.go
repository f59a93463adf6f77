// Package server wires the gateway routes and middleware chain.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/voxcart/voxcart/pkg/core/voice/tts"
	"github.com/voxcart/voxcart/pkg/gateway/config"
	"github.com/voxcart/voxcart/pkg/gateway/handlers"
	"github.com/voxcart/voxcart/pkg/gateway/lifecycle"
	"github.com/voxcart/voxcart/pkg/gateway/live"
	"github.com/voxcart/voxcart/pkg/gateway/metrics"
	"github.com/voxcart/voxcart/pkg/gateway/mw"
	"github.com/voxcart/voxcart/pkg/gateway/ratelimit"
	"github.com/voxcart/voxcart/pkg/pipeline"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	orch    *pipeline.Orchestrator
	manager *pipeline.Manager
	tts     tts.Provider

	limiter   *ratelimit.Limiter
	metrics   *metrics.Metrics
	lifecycle *lifecycle.Lifecycle
	tracker   *live.Tracker
}

func New(cfg config.Config, logger *slog.Logger, orch *pipeline.Orchestrator, manager *pipeline.Manager, synth tts.Provider) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		mux:     http.NewServeMux(),
		orch:    orch,
		manager: manager,
		tts:     synth,
		limiter: ratelimit.New(ratelimit.Config{
			RPS:                cfg.LimitRPS,
			Burst:              cfg.LimitBurst,
			MaxConcurrentTurns: cfg.LimitMaxConcurrentTurns,
			MaxLiveSessions:    cfg.LimitMaxLiveSessions,
		}),
		metrics:   metrics.New(),
		lifecycle: &lifecycle.Lifecycle{},
		tracker:   live.NewTracker(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("GET /healthz", handlers.HealthHandler{})
	s.mux.Handle("GET /readyz", handlers.ReadyHandler{Config: s.cfg, Lifecycle: s.lifecycle})
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	s.mux.Handle("POST /v1/sessions", handlers.StartSessionHandler{
		Config:   s.cfg,
		Sessions: s.manager,
		Metrics:  s.metrics,
		Logger:   s.logger,
	})
	s.mux.Handle("GET /v1/sessions/{id}", handlers.GetSessionHandler{Sessions: s.manager})
	s.mux.Handle("POST /v1/sessions/{id}/turns", handlers.TurnHandler{
		Config:  s.cfg,
		Turns:   s.orch,
		TTS:     s.tts,
		Metrics: s.metrics,
		Logger:  s.logger,
	})
	s.mux.Handle("POST /v1/sessions/{id}/pause", handlers.PauseSessionHandler{Sessions: s.manager})
	s.mux.Handle("POST /v1/sessions/{id}/resume", handlers.ResumeSessionHandler{Sessions: s.manager})
	s.mux.Handle("POST /v1/sessions/{id}/end", handlers.EndSessionHandler{Sessions: s.manager, Metrics: s.metrics})

	s.mux.Handle("POST /v1/speak", handlers.SpeakHandler{
		Config: s.cfg,
		TTS:    s.tts,
		Logger: s.logger,
	})

	s.mux.Handle("GET /v1/live", live.NewHandler(live.Options{
		Turns:               s.orch,
		Manager:             s.manager,
		TTS:                 s.tts,
		Limiter:             s.limiter,
		Metrics:             s.metrics,
		Tracker:             s.tracker,
		Logger:              s.logger,
		AllowedOrigins:      s.cfg.CORSAllowedOrigins,
		MaxAudioBufferBytes: s.cfg.LiveMaxAudioBufferBytes,
		MaxSessionDuration:  s.cfg.LiveMaxSessionDuration,
		PingInterval:        s.cfg.LiveWSPingInterval,
		WriteTimeout:        s.cfg.LiveWSWriteTimeout,
		VoiceID:             s.cfg.VoiceID,
		AudioFormat:         s.cfg.AudioFormat,
		DefaultLanguage:     s.cfg.DefaultLanguage,
	}))

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.RateLimit(s.limiter, h)
	h = mw.Auth(s.cfg, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// Metrics exposes the server's registry for components wired outside the
// request path (the sweeper, the lifecycle manager).
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Shutdown hooks used by main's signal handling.

func (s *Server) SetDraining(draining bool) {
	s.lifecycle.SetDraining(draining)
}

func (s *Server) WarnLiveSessions(code, message string) int {
	return s.tracker.WarnAll(code, message)
}

func (s *Server) CancelLiveSessions() int {
	return s.tracker.CancelAll()
}

func (s *Server) WaitLiveSessions(ctx context.Context) bool {
	return s.tracker.Wait(ctx)
}

func (s *Server) LiveSessionCount() int {
	return s.tracker.Count()
}
