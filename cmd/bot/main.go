package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"withgames/internal/adapters/discord"
	"withgames/internal/adapters/health"
	"withgames/internal/application"
	"withgames/internal/config"
	"withgames/internal/infrastructure/database"
	"withgames/internal/infrastructure/i18n"
	"withgames/internal/infrastructure/lease"
	"withgames/internal/infrastructure/memory"
	"withgames/internal/ports/output"
	"withgames/pkg/logger"
	"withgames/pkg/tz"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.L.Error("withgames stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	checks := map[string]health.Check{}

	store, closeStore, err := openStore(ctx, cfg, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	var schedulerLease output.Lease
	if cfg.RedisAddr != "" {
		rdb, err := lease.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		schedulerLease = lease.NewRedisLease(rdb, lease.DefaultKey, cfg.LeaseTTL, logger.WithComponent("lease"))
	}

	translator := i18n.NewTranslator(cfg.DefaultLocale, logger.WithComponent("i18n"))

	var dispatcher output.Dispatcher = discord.NewLogDispatcher(logger.WithComponent("dispatcher"))
	var bot *discord.Bot
	session, err := newSession(cfg)
	if err != nil {
		return err
	}
	if session != nil {
		dispatcher = discord.NewDispatcher(session, translator, cfg.DefaultLocale, tz.Tokyo, logger.WithComponent("dispatcher"))
	}

	roster := application.NewRosterManager(store, dispatcher, cfg.MaxCapacity, logger.WithComponent("roster"))
	scheduler := application.NewScheduler(store, dispatcher, schedulerLease, application.SchedulerConfig{
		RetryDelay:        cfg.SchedulerRetryDelay,
		LeaseInterval:     cfg.LeaseTTL / 3,
		ReconcileInterval: reconcileInterval(schedulerLease),
	}, logger.WithComponent("scheduler"))
	lifecycle := application.NewLifecycleController(
		store, roster, dispatcher, scheduler, cfg.ReminderMinutes, nil, logger.WithComponent("lifecycle"),
	)
	scheduler.SetHandler(lifecycle)

	if session != nil {
		handler := discord.NewHandler(lifecycle, roster, translator, cfg.DefaultLocale, tz.Tokyo, logger.WithComponent("discord"))
		bot = discord.NewBot(session, cfg, handler, logger.WithComponent("discord"))
	}

	healthServer := health.NewServer(cfg.HealthAddr, checks, logger.WithComponent("health"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return healthServer.ListenAndServe(ctx) })
	g.Go(func() error { return scheduler.Run(ctx) })
	if bot != nil {
		g.Go(func() error { return bot.Start(ctx) })
	} else {
		logger.L.Warn("discord disabled, notifications are only logged")
	}

	logger.L.Info("withgames started",
		zap.String("store", cfg.Store),
		zap.Bool("lease", schedulerLease != nil),
		zap.String("health_addr", cfg.HealthAddr),
	)
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, checks map[string]health.Check) (output.EventStore, func(), error) {
	if cfg.Store == config.StoreMemory {
		logger.L.Warn("using in-memory store, data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	storeLog := logger.WithComponent("store")
	if cfg.Migrations {
		if err := database.RunMigrations(cfg.DatabaseURL, storeLog); err != nil {
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
	}
	pool, err := database.NewPool(ctx, cfg.DatabaseURL, database.PoolConfig{
		MaxConns: int32(cfg.DatabaseMaxConns),
		MinConns: int32(cfg.DatabaseMinConns),
	}, storeLog)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	checks["postgres"] = pool.Ping
	return database.NewStore(pool, database.DefaultRetryConfig(), storeLog), pool.Close, nil
}

func newSession(cfg *config.Config) (*discordgo.Session, error) {
	if cfg.DiscordDisabled {
		return nil, nil
	}
	return discord.NewSession(cfg.Token)
}

// With several processes sharing the store, the leader reloads timers created
// elsewhere.
func reconcileInterval(l output.Lease) time.Duration {
	if l == nil {
		return 0
	}
	return time.Minute
}
