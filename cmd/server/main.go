package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/acanas/selftest-service/internal/cache"
	"github.com/acanas/selftest-service/internal/config"
	"github.com/acanas/selftest-service/internal/events"
	"github.com/acanas/selftest-service/internal/handlers"
	"github.com/acanas/selftest-service/internal/models"
	"github.com/acanas/selftest-service/internal/repositories/postgres"
	"github.com/acanas/selftest-service/internal/services"
	"github.com/acanas/selftest-service/internal/utils"
	"github.com/acanas/selftest-service/pkg"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
	} else {
		logger = utils.NewDevelopmentLogger()
	}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := db.AutoMigrate(
		&models.Question{},
		&models.Option{},
		&models.Tag{},
		&models.TestPrint{},
		&models.PrintedQuestion{},
		&models.TestConfig{},
		&models.User{},
	); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	repo := postgres.NewRepository(db)

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	throttleStore := cache.NewRedisThrottleStore(redisClient, repo.Print(), logger)

	publisher, err := events.NewKafkaEventPublisher(events.PublisherConfig{
		KafkaBrokers: cfg.KafkaBrokers,
		TopicName:    cfg.KafkaTopic,
		Logger:       utils.ToSlogLogger(logger),
	})
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	validator := utils.NewValidator()

	configService := services.NewConfigService(repo, validator, logger)
	printService := services.NewPrintService(repo, configService, throttleStore, publisher, validator, logger)
	exportService := services.NewExportService(repo, printService, logger)

	printHandler := handlers.NewPrintHandler(printService, exportService, validator, logger)
	configHandler := handlers.NewConfigHandler(configService, validator, logger)
	handlerManager := handlers.NewHandlerManager(printHandler, configHandler)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))

	handlerManager.SetupRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", "error", err)
	}
}
