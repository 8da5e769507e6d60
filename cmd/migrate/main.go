package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	mongoMigration "carrental/internal/migrations/mongo"
	"carrental/pkg/config"
)

const (
	JobName          = "mongo-migration"
	migrationTimeout = 2 * time.Minute
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Mongo migration job", "database", cfg.MongoDatabaseName)
	err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo.Database(cfg.MongoDatabaseName), cfg.Log)
	cfg.GracefulShutdown()
	if err != nil {
		cfg.Log.Fatal("Migration failed", "database", cfg.MongoDatabaseName, "error", err)
	}
	cfg.Log.Info("Migration completed successfully", "database", cfg.MongoDatabaseName)
}
