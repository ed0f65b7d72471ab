// Command server runs the branch-aware workflow scheduler API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/app"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/bus"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/config"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/imaging"
	infrahttp "github.com/Jane1217/branch-aware-workflow-scheduler/internal/infra/http"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/infra/http/routes"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/infra/websocket"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/workflow"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/logger"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/validator"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ==========================================================================
	// Configuration & Logger
	// ==========================================================================
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := initLogger(cfg)
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ==========================================================================
	// Storage & Executors
	// ==========================================================================
	storage, err := imaging.NewStorage(cfg.Storage.ResultPath)
	if err != nil {
		log.Error("failed to initialize result storage", "error", err)
		return 1
	}
	log.Info("result storage initialized", "path", cfg.Storage.ResultPath)

	executors := app.NewExecutorRegistry()
	executors.Register(workflow.JobTypeCellSegmentation, imaging.NewCellSegmentation(cfg.Executor, storage, log))
	executors.Register(workflow.JobTypeTissueMask, imaging.NewTissueMask(cfg.Executor, storage, log))

	// ==========================================================================
	// Scheduling Core
	// ==========================================================================
	eventBus := bus.New(cfg.Scheduler.EventMailboxSize, log)
	pool := app.NewWorkerPool(cfg.Scheduler.MaxWorkers, log)
	engine := app.NewEngine(cfg.Scheduler, executors, pool, eventBus, log)

	pool.Start(ctx)
	go engine.Run(ctx)

	retention := app.NewRetentionSweeper(engine, cfg.Retention, log)
	if err := retention.Start(); err != nil {
		log.Error("failed to start retention sweeper", "error", err)
		return 1
	}
	defer retention.Stop()

	// ==========================================================================
	// HTTP & WebSocket
	// ==========================================================================
	hub := websocket.NewHub(log)
	server := infrahttp.NewServer(cfg, log)

	routes.Setup(server.Router(), &routes.Dependencies{
		Config:    cfg,
		Engine:    engine,
		Storage:   storage,
		Hub:       hub,
		Validator: validator.New(),
		Logger:    log,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Error("server error", "error", err)
			return 1
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	// ==========================================================================
	// Graceful Shutdown
	// ==========================================================================
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown server", "error", err)
	}
	hub.CloseAll()
	stop()
	pool.Wait()

	log.Info("application stopped")
	return 0
}

func initLogger(cfg *config.Config) *logger.Logger {
	if cfg.IsDevelopment() && cfg.App.Debug {
		return logger.NewDevelopment()
	}
	return logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
}
