// voxcart-sweep marks idle active sessions as abandoned. It runs once and
// exits, intended for cron or a Kubernetes CronJob.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/voxcart/voxcart/pkg/core/notify"
	"github.com/voxcart/voxcart/pkg/core/session"
	"github.com/voxcart/voxcart/pkg/gateway/config"
	"github.com/voxcart/voxcart/pkg/pipeline"
)

func openStore(ctx context.Context, cfg config.Config) (session.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		// A fresh in-memory store has nothing to sweep; this only makes
		// sense against a shared backend.
		return nil, fmt.Errorf("store driver %q has no shared state to sweep", cfg.StoreDriver)
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
		return session.NewPostgres(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func runSweep(ctx context.Context, logger *slog.Logger, idleOverride time.Duration) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	idle := cfg.SweepIdleThreshold
	if idleOverride > 0 {
		idle = idleOverride
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	retried := session.WithRetry(store, cfg.StoreRetryAttempts, cfg.StoreRetryBase)

	var notifier notify.Notifier
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhook(cfg.WebhookURL, nil)
	}

	manager := pipeline.NewStandaloneManager(retried, notifier, logger)
	swept, err := manager.SweepAbandoned(ctx, idle)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	logger.Info("sweep complete", "swept", swept, "idle_threshold", idle.String())
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, args []string) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(stderr, nil))

	fs := flag.NewFlagSet("voxcart-sweep", flag.ContinueOnError)
	fs.SetOutput(stderr)
	idle := fs.Duration("idle", 0, "idle threshold override (default from VOXCART_SWEEP_IDLE_THRESHOLD)")
	timeout := fs.Duration("timeout", 5*time.Minute, "overall run timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	_ = godotenv.Load()

	runCtx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := runSweep(runCtx, logger, *idle); err != nil {
		fmt.Fprintf(stderr, "voxcart-sweep: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, os.Args[1:]))
}
