package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"spam-detector/internal/artifact"
	"spam-detector/internal/config"
	"spam-detector/internal/handler"
	"spam-detector/internal/logging"
	"spam-detector/internal/repository"
	"spam-detector/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yml"
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		panic(err)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting Spam Detector...")

	// Initialize repository
	if cfg.Database.Type == "sqlite" {
		os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755)
	}

	repo, err := repository.NewHistoryRepository(cfg.Database.Type, cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	// Load the trained model; without it nothing can be served
	store := artifact.NewFileStore(cfg.Artifacts.Dir)
	artifacts, err := store.Load()
	if err != nil {
		logger.Fatal("Failed to load artifacts, run the trainer first",
			zap.String("dir", cfg.Artifacts.Dir),
			zap.Error(err))
	}

	predictor, err := service.NewPredictor(artifacts, repo, logger)
	if err != nil {
		logger.Fatal("Failed to initialize predictor", zap.Error(err))
	}

	// Initialize HTTP handler
	apiHandler := handler.NewHandler(predictor, repo, logger)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register routes
	apiHandler.RegisterRoutes(router)

	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("Server starting", zap.String("address", serverAddr))

	// Graceful shutdown
	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	info := predictor.Info()
	logger.Info("Spam Detector is running",
		zap.String("port", cfg.Server.Port),
		zap.String("model", info.RunID),
		zap.Int("max_len", info.MaxLen),
		zap.Int("vocab_size", info.VocabSize))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
