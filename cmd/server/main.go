package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/kpicloud/taskflow/internal/application/history"
	"github.com/kpicloud/taskflow/internal/application/service"
	"github.com/kpicloud/taskflow/internal/catalog"
	"github.com/kpicloud/taskflow/internal/config"
	"github.com/kpicloud/taskflow/internal/infrastructure/persistence/repository"
	"github.com/kpicloud/taskflow/internal/infrastructure/persistence/sqlite"
	httpserver "github.com/kpicloud/taskflow/internal/interfaces/http"
	"github.com/kpicloud/taskflow/pkg/database"
	"github.com/kpicloud/taskflow/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	// Load .env before the config reads the environment
	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting task management server",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Reference data must be consistent before anything touches the database
	catalogs, err := catalog.Load(cfg.Catalog.RolesPath, cfg.Catalog.TeamsPath)
	if err != nil {
		logger.Fatal("Failed to load catalogs", zap.Error(err))
	}
	logger.Info("Catalogs loaded",
		zap.Int("roles", len(catalogs.Roles)),
		zap.Int("teams", len(catalogs.Teams)))

	sqlDB, err := database.Open(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer sqlDB.Close()

	migrator := database.NewMigrator(sqlDB, logger)
	if err := migrator.Run(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	db := sqlite.NewDB(sqlDB, logger)

	// Repositories
	taskRepo := repository.NewTaskRepository(sqlDB, logger)
	approvalRepo := repository.NewApprovalRepository(sqlDB, logger)
	historyRepo := repository.NewHistoryRepository(sqlDB, logger)
	userRepo := repository.NewUserRepository(sqlDB, logger)

	recorder := history.NewRecorder(historyRepo, logger)
	svcLogger := utils.NewSugarAdapter(logger)

	// Services
	authService := service.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, svcLogger)
	taskService := service.NewTaskService(taskRepo, db, recorder, svcLogger)
	approvalService := service.NewApprovalService(approvalRepo, taskRepo, userRepo, db, recorder, svcLogger)
	importService := service.NewImportService(taskRepo, userRepo, recorder, svcLogger)

	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		authService,
		taskService,
		approvalService,
		importService,
		svcLogger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited")
}
