package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/fso-systems/travelreq/internal/allocation"
	"github.com/fso-systems/travelreq/internal/config"
	"github.com/fso-systems/travelreq/internal/directory"
	"github.com/fso-systems/travelreq/internal/export"
	"github.com/fso-systems/travelreq/internal/httpapi"
	"github.com/fso-systems/travelreq/internal/reimbursement"
	"github.com/fso-systems/travelreq/internal/request"
	"github.com/fso-systems/travelreq/migrations"
	"github.com/fso-systems/travelreq/pkg/database"
	"github.com/fso-systems/travelreq/pkg/logging"
)

func main() {
	_ = gotenv.Load()

	configPath := "configs/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting travel approval service", zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.Run(migrations.FS); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	dir := directory.New(db.DB, logger)
	requests := request.NewStore(db, dir, cfg.Workflow, logger)
	ledger := reimbursement.NewLedger(db, dir, cfg.Workflow, logger)
	allocations := allocation.NewLedger(db, dir, logger)
	statements := export.NewWriter(db, logger)

	server := httpapi.NewServer(httpapi.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, requests, ledger, allocations, statements, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
	logger.Info("Server stopped")
}
