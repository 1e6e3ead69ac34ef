package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"cashback-service/internal/app"
	"cashback-service/internal/config"
	"cashback-service/internal/database"
	grpcServer "cashback-service/internal/grpc"
	"cashback-service/internal/handlers"
	"cashback-service/internal/logging"
	"cashback-service/internal/middleware"
	"cashback-service/internal/worker"
)

func main() {
	// Load environment variables
	config.LoadEnv()
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	// Initialize Database
	database.Connect(cfg)
	database.Migrate()

	// Redis/Asynq Client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisURL})
	defer asynqClient.Close()

	a, err := app.New(cfg, database.DB, worker.NewQueue(asynqClient))
	if err != nil {
		logrus.Fatalf("Failed to create services: %v", err)
	}
	defer a.Close()
	a.InitChain(context.Background())

	router := handlers.NewRouter(a.Handler(), handlers.RouterConfig{
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		AdminJWTSecret:    cfg.AdminJWTSecret,
	})

	// Start gRPC server
	go grpcServer.StartGRPCServer(cfg.GRPCPort, a.Transactions, a.Ownership)

	// Start Cron Schedulers
	scheduler, err := a.MintRetry.StartScheduler(cfg.MintRetryCron)
	if err != nil {
		logrus.Fatalf("Invalid MINT_RETRY_CRON %q: %v", cfg.MintRetryCron, err)
	}
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.CORS(router, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatal("Failed to start server: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}
}
