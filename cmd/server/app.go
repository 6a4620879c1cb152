package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/docpolish/docpolish-api/internal/codec"
	"github.com/docpolish/docpolish-api/internal/config"
	"github.com/docpolish/docpolish-api/internal/platform/gemini"
	"github.com/docpolish/docpolish-api/internal/platform/logger"
	"github.com/docpolish/docpolish-api/internal/platform/objectstore"
	"github.com/docpolish/docpolish-api/internal/platform/postgres"
	"github.com/docpolish/docpolish-api/internal/service"
	"github.com/docpolish/docpolish-api/internal/task"
)

// application holds the fully wired dependency graph of the server.
type application struct {
	config      *config.Config
	logger      *slog.Logger
	db          *sql.DB
	taskService *service.TaskService
	runner      *task.Runner
	sweeper     *task.Sweeper
}

// initializeApp loads configuration and constructs every component of the
// server in dependency order. Any failure here aborts startup; nothing is
// allowed to limp along half-configured.
func initializeApp(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"model", cfg.LLM.ModelName)

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := runMigrations(db, appLogger); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	documents, err := objectstore.NewDocumentStore(ctx, cfg.Storage, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to init document storage: %w", err)
	}

	rewriter, err := gemini.NewRewriteClient(ctx, appLogger, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to init rewrite client: %w", err)
	}

	taskStore := postgres.NewPostgresTaskStore(db)
	placeholderCodec := codec.New(cfg.Pipeline.MaxDocumentBytes, appLogger)

	writer, err := task.NewTransitionWriter(taskStore, appLogger)
	if err != nil {
		return nil, err
	}

	scheduler, err := task.NewScheduler(taskStore, appLogger)
	if err != nil {
		return nil, err
	}

	worker, err := task.NewWorker(
		taskStore, documents, nil, placeholderCodec, rewriter, writer, appLogger)
	if err != nil {
		return nil, err
	}

	watchdog, err := task.NewWatchdog(writer, cfg.Pipeline.TaskTimeout, appLogger)
	if err != nil {
		return nil, err
	}

	runner, err := task.NewRunner(scheduler, worker, watchdog, writer, task.RunnerConfig{
		PollInterval: cfg.Pipeline.PollInterval,
		TaskTimeout:  cfg.Pipeline.TaskTimeout,
	}, appLogger)
	if err != nil {
		return nil, err
	}

	sweeper, err := task.NewSweeper(taskStore, cfg.Pipeline.SweepInterval, appLogger)
	if err != nil {
		return nil, err
	}

	taskService, err := service.NewTaskService(
		taskStore, writer, cfg.Pipeline.Retention, cfg.Pipeline.TaskTimeout, appLogger)
	if err != nil {
		return nil, err
	}

	return &application{
		config:      cfg,
		logger:      appLogger,
		db:          db,
		taskService: taskService,
		runner:      runner,
		sweeper:     sweeper,
	}, nil
}

// run starts the background pipeline and serves HTTP until shutdown.
func (app *application) run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.runner.Start(); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}

	go app.sweeper.Run(ctx)

	err := app.startHTTPServer(ctx, app.setupRouter())

	app.runner.Stop()
	cancel()
	app.cleanup()

	return err
}

// cleanup releases resources on shutdown.
func (app *application) cleanup() {
	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database", "error", err)
	}
}
