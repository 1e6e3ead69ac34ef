package main

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"cashback-service/internal/app"
	"cashback-service/internal/config"
	"cashback-service/internal/database"
	"cashback-service/internal/logging"
	"cashback-service/internal/worker"
)

func main() {
	// Load env
	config.LoadEnv()
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	// Connect DB
	database.Connect(cfg)

	// The worker runs retries itself, so it gets no queue.
	a, err := app.New(cfg, database.DB, nil)
	if err != nil {
		logrus.Fatalf("Failed to create services: %v", err)
	}
	defer a.Close()
	a.InitChain(context.Background())

	// Redis
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisURL}

	logrus.Info("Starting Asynq Worker...")
	worker.StartWorker(redisOpt, a.MintRetry)
}
