package main

import (
	"github.com/sirupsen/logrus"

	"cashback-service/internal/config"
	"cashback-service/internal/database"
	"cashback-service/internal/logging"
)

func main() {
	// Load environment variables
	config.LoadEnv()
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	// Initialize Database
	database.Connect(cfg)

	// Run Migrations
	logrus.Info("Running database migrations...")
	database.Migrate()

	logrus.Info("Migrations completed successfully!")
}
