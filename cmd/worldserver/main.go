// Package main provides the world server binary: it loads the world, runs
// the tick loop, and delivers NPC events to sessions over the embedded
// message broker.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hearth/internal/config"
	"github.com/cory-johannsen/hearth/internal/game/autonomy"
	"github.com/cory-johannsen/hearth/internal/game/executor"
	"github.com/cory-johannsen/hearth/internal/game/guard"
	"github.com/cory-johannsen/hearth/internal/game/tick"
	"github.com/cory-johannsen/hearth/internal/game/world"
	"github.com/cory-johannsen/hearth/internal/observability"
	"github.com/cory-johannsen/hearth/internal/planner"
	"github.com/cory-johannsen/hearth/internal/ratelimit"
	"github.com/cory-johannsen/hearth/internal/server"
	"github.com/cory-johannsen/hearth/internal/storage/postgres"
	"github.com/cory-johannsen/hearth/internal/transport"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting world server",
		zap.String("world", cfg.Server.Name),
		zap.String("planner_mode", cfg.Server.PlannerMode),
	)

	// Load world content
	worldStart := time.Now()
	state, err := world.LoadWorldDir(cfg.World.ContentDir)
	if err != nil {
		logger.Fatal("loading world content", zap.Error(err))
	}
	state.Mode = world.PlannerMode(cfg.Server.PlannerMode)
	logger.Info("world content loaded",
		zap.String("dir", cfg.World.ContentDir),
		zap.Int("rooms", len(state.Rooms)),
		zap.Int("sheets", len(state.Sheets)),
		zap.Duration("elapsed", time.Since(worldStart)),
	)

	// Connect to PostgreSQL for snapshot persistence
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	snapRepo := postgres.NewSnapshotRepository(pool.DB())

	// A stored snapshot takes precedence over freshly loaded content.
	snap, savedAt, err := snapRepo.Load(ctx, cfg.Server.Name)
	switch {
	case err == nil:
		state.Lock()
		state.Restore(snap)
		state.Unlock()
		logger.Info("world restored from snapshot", zap.Time("saved_at", savedAt))
	case errors.Is(err, postgres.ErrSnapshotNotFound):
		logger.Info("no snapshot found, starting from content")
	default:
		logger.Fatal("loading snapshot", zap.Error(err))
	}

	limiter := ratelimit.NewLimiter(cfg.RateLimit)

	// Post-load consistency sweep
	g := guard.NewGuard(logger, limiter.Reset)
	state.Lock()
	actions, health := g.OnWorldReload(state)
	state.Unlock()
	logger.Info("world reload check complete",
		zap.Int("repairs", len(actions)),
		zap.Float64("health", health),
	)

	// Message broker. Started before the tick loop so deliveries always have
	// a live connection.
	broker, err := transport.NewServer(cfg.Nats, logger)
	if err != nil {
		logger.Fatal("creating message broker", zap.Error(err))
	}
	if err := broker.Start(ctx); err != nil {
		logger.Fatal("starting message broker", zap.Error(err))
	}
	publisher := transport.NewPublisher(broker, logger)

	// Planner stack
	gen := planner.NewPlanner(cfg.Planner, logger)
	if gen.Configured() {
		logger.Info("generative planner configured")
	} else if state.Mode == world.ModeAdvanced {
		logger.Warn("advanced mode requested but no planner API key; offline fallback will serve all plans")
	}

	saver := postgres.NewSaver(snapRepo, state, cfg.Server.Name, cfg.World.SaveInterval, logger)

	scheduler := tick.NewScheduler(cfg.Tick, state,
		executor.NewExecutor(logger),
		autonomy.NewOfflinePlanner(autonomy.DefaultThresholds()),
		gen, limiter, publisher, saver, logger)

	// Wire lifecycle
	tickCtx, cancelTicks := context.WithCancel(ctx)
	lifecycle := server.NewLifecycle(logger)

	// Services stop in reverse order: broker first so nothing new is
	// delivered, then ticks, then the saver's final flush, then the pool.
	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			for {
				time.Sleep(30 * time.Second)
				if err := pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
				}
			}
		},
		StopFn: func() {
			pool.Close()
		},
	})

	lifecycle.Add("saver", saver)

	lifecycle.Add("ticks", &server.FuncService{
		StartFn: func() error {
			scheduler.Start(tickCtx)
			scheduler.Wait()
			return nil
		},
		StopFn: func() {
			cancelTicks()
			scheduler.Wait()
		},
	})

	brokerDone := make(chan struct{})
	lifecycle.Add("broker", &server.FuncService{
		StartFn: func() error {
			<-brokerDone
			return nil
		},
		StopFn: func() {
			_ = broker.Stop(ctx)
			close(brokerDone)
		},
	})

	logger.Info("world server initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
