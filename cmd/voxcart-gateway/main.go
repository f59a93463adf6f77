package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/voxcart/voxcart/pkg/core/assistant"
	"github.com/voxcart/voxcart/pkg/core/commerce"
	"github.com/voxcart/voxcart/pkg/core/notify"
	"github.com/voxcart/voxcart/pkg/core/session"
	"github.com/voxcart/voxcart/pkg/core/voice/stt"
	"github.com/voxcart/voxcart/pkg/core/voice/tts"
	"github.com/voxcart/voxcart/pkg/gateway/config"
	gatewayserver "github.com/voxcart/voxcart/pkg/gateway/server"
	"github.com/voxcart/voxcart/pkg/pipeline"
)

type gatewayDeps struct {
	loadConfig   func() (config.Config, error)
	buildServer  func(context.Context, config.Config, *slog.Logger) (*gatewayserver.Server, func(), error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultGatewayDeps() gatewayDeps {
	return gatewayDeps{
		loadConfig:  config.LoadFromEnv,
		buildServer: buildServer,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func openStore(ctx context.Context, cfg config.Config) (session.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return session.NewMemory(), nil
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return session.NewRedis(client, cfg.RedisTTL), nil
	case config.StorePostgres:
		if cfg.PostgresMigrate {
			if err := session.Migrate(ctx, cfg.PostgresDSN); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return session.NewPostgres(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func buildServer(ctx context.Context, cfg config.Config, logger *slog.Logger) (*gatewayserver.Server, func(), error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open session store: %w", err)
	}
	cleanup := func() { _ = store.Close() }

	retried := session.WithRetry(store, cfg.StoreRetryAttempts, cfg.StoreRetryBase)

	var engine assistant.Engine
	if cfg.GeminiAPIKey != "" {
		engine, err = assistant.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("gemini engine: %w", err)
		}
	} else {
		logger.Warn("no gemini api key configured; using rule engine")
		engine = assistant.NewRuleEngine()
	}

	transcriber := stt.NewCartesia(cfg.CartesiaAPIKey)

	var synth tts.Provider
	if cfg.CartesiaAPIKey != "" {
		synth = tts.NewCartesia(cfg.CartesiaAPIKey)
	}

	var commerceClient commerce.Client
	if cfg.StripeAPIKey != "" {
		commerceClient = commerce.NewStripe(cfg.StripeAPIKey)
	}

	var notifier notify.Notifier
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhook(cfg.WebhookURL, nil)
	}

	orch, err := pipeline.NewOrchestrator(pipeline.Deps{
		Store:       retried,
		Transcriber: transcriber,
		Engine:      engine,
		Commerce:    commerceClient,
		Notifier:    notifier,
		Logger:      logger,
		TurnTimeout: cfg.TurnTimeout,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("orchestrator: %w", err)
	}
	manager := pipeline.NewManager(retried, orch, notifier, logger)

	return gatewayserver.New(cfg, logger, orch, manager, synth), cleanup, nil
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func runGateway(ctx context.Context, logger *slog.Logger, deps gatewayDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.buildServer == nil {
		return errors.New("missing buildServer dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gw, cleanup, err := deps.buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting gateway",
		"addr", cfg.Addr,
		"auth_mode", cfg.AuthMode,
		"store_driver", cfg.StoreDriver,
	)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	gw.SetDraining(true)
	gw.WarnLiveSessions("draining", "server is shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !gw.WaitLiveSessions(waitCtx) {
		gw.CancelLiveSessions()
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps gatewayDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(stderr, nil))

	// Missing .env is fine; explicit env vars win either way.
	_ = godotenv.Load()

	if err := runGateway(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "voxcart-gateway: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultGatewayDeps()))
}
