package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angeloszaimis/notify-router/config"
	"github.com/angeloszaimis/notify-router/internal/channel"
	"github.com/angeloszaimis/notify-router/internal/handler"
	"github.com/angeloszaimis/notify-router/internal/healthcheck"
	"github.com/angeloszaimis/notify-router/internal/httpserver"
	"github.com/angeloszaimis/notify-router/internal/metrics"
	"github.com/angeloszaimis/notify-router/internal/ratelimit"
	"github.com/angeloszaimis/notify-router/internal/router"
	"github.com/angeloszaimis/notify-router/pkg/logger"
)

const healthWatchInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Notification router stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	loc, err := cfg.QuotaLocation()
	if err != nil {
		return fmt.Errorf("quota location: %w", err)
	}

	channels, err := buildChannels(cfg, log)
	if err != nil {
		return err
	}

	store, stopStore, err := buildStore(ctx, cfg, loc, log)
	if err != nil {
		return err
	}
	defer stopStore()

	collector := metrics.NewCollector(cfg.Metrics.BufferSize, log.With(slog.String("component", "metrics")))
	collectorCtx, stopCollector := context.WithCancel(context.Background())
	defer stopCollector()
	collector.Start(collectorCtx)

	rt, err := router.New(router.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Timeout:          cfg.BreakerTimeout(),
		MaxPerDay:        cfg.RateLimit.MaxPerDay,
		Location:         loc,
	}, channels,
		router.WithLogger(log),
		router.WithStore(store),
		router.WithTelemetry(collector),
	)
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	go healthcheck.Watch(ctx, rt.Breakers(), healthWatchInterval, log.With(slog.String("component", "healthcheck")))

	h := handler.NewNotificationHandler(log, rt, collector)
	srv, err := httpserver.New(cfg.Server.Address, h.Routes())
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Start()
	}()

	log.Info("Notification router listening",
		slog.String("addr", srv.Addr()),
		slog.Any("channels", rt.Channels()))

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
		return nil
	case err := <-srvErrCh:
		return err
	}
}

// buildChannels turns the configured channel list into router channels,
// keeping configuration order as fallback order.
func buildChannels(cfg *config.Config, log *slog.Logger) ([]router.Channel, error) {
	channels := make([]router.Channel, 0, len(cfg.Channels))
	for _, cc := range cfg.Channels {
		adapter, err := channel.FromConfig(cc, log)
		if err != nil {
			return nil, err
		}
		channels = append(channels, router.Channel{Name: cc.Name, Adapter: adapter})
		log.Debug("Channel configured",
			slog.String("channel", cc.Name),
			slog.String("kind", cc.Kind),
			slog.Any("types", cc.Types))
	}
	return channels, nil
}

// buildStore returns the quota store plus a function releasing whatever
// background work it started.
func buildStore(ctx context.Context, cfg *config.Config, loc *time.Location, log *slog.Logger) (ratelimit.Store, func(), error) {
	switch cfg.RateLimit.Store {
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RateLimit.RedisAddr, err)
		}
		log.Info("Using redis quota store", slog.String("addr", cfg.RateLimit.RedisAddr))
		return ratelimit.NewRedisStore(rdb, cfg.RateLimit.MaxPerDay), func() { _ = rdb.Close() }, nil

	default:
		store := ratelimit.NewMemoryStore(cfg.RateLimit.MaxPerDay)
		pruner, err := ratelimit.NewPruner(cfg.RateLimit.PruneSchedule, store, loc, log)
		if err != nil {
			return nil, nil, err
		}
		pruner.Start()
		stop := func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			pruner.Stop(stopCtx)
		}
		return store, stop, nil
	}
}
