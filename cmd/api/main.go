// Package main provides the API server entry point: REST, WebSocket
// and gRPC health surfaces over a single ReferenceModeStore.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/arcs-project/arcs-core/internal/api/rest"
	"github.com/arcs-project/arcs-core/internal/api/ws"
	"github.com/arcs-project/arcs-core/internal/config"
	"github.com/arcs-project/arcs-core/internal/crdt"
	"github.com/arcs-project/arcs-core/internal/drivers"
	arcsgrpc "github.com/arcs-project/arcs-core/internal/grpc"
	"github.com/arcs-project/arcs-core/internal/metrics"
	"github.com/arcs-project/arcs-core/internal/middleware"
	"github.com/arcs-project/arcs-core/internal/services"
	"github.com/arcs-project/arcs-core/internal/store"
	"github.com/arcs-project/arcs-core/internal/wire"
)

// @title Arcs Core API
// @version 1.0
// @description CRDT store and recipe-graph tooling over REST and WebSocket.
// @host localhost:8080
// @BasePath /api/v1
func main() {
	cfg := config.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	storeMetrics := metrics.New()

	containerKey := wire.StorageKey{Protocol: "arcs", Location: "container/default"}
	backingKey := wire.StorageKey{Protocol: "arcs", Location: "backing/default"}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	containerDriver, backingDriver, err := drivers.Build(ctx, cfg, containerKey, backingKey, logger)
	if err != nil {
		logger.Fatal("failed to build store drivers", zap.Error(err))
	}

	refStore := store.New(store.Config{
		LocalActor:      crdt.Actor(fmt.Sprintf("api-%d", os.Getpid())),
		ContainerKey:    containerKey,
		BackingKey:      backingKey,
		ContainerDriver: containerDriver,
		BackingDriver:   backingDriver,
		Container:       crdt.NewCollection(),
		NewEntity:       func() *crdt.Entity { return crdt.NewEntity(map[string]crdt.Model{}) },
		InboxSize:       cfg.Store.InboxSize,
		Logger:          logger,
		Metrics:         storeMetrics,
	})
	refStore.Start(ctx)
	defer refStore.Close()

	storeService := services.NewStoreService(refStore, logger)
	recipeService := services.NewRecipeService(cfg.Recipe, storeMetrics, logger)
	refinementService := services.NewRefinementService(logger)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(middleware.RateLimit(cfg.RateLimit))

	router.GET("/health", func(c *gin.Context) {
		status := "healthy"
		if !storeService.Idle() {
			status = "busy"
		}
		c.JSON(http.StatusOK, gin.H{"status": status, "timestamp": time.Now()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	restHandler := rest.NewHandler(storeService, recipeService, refinementService, logger)
	v1 := router.Group("/api/v1")
	restHandler.SetupRoutes(v1)

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	wsHandler := ws.NewHandler(storeService, upgrader, logger)
	router.GET("/ws", wsHandler.HandleWebSocket)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	grpcServer := arcsgrpc.NewServer(arcsgrpc.Config{
		Port:                  cfg.Server.Port + 1,
		MaxConnectionIdle:     15 * time.Minute,
		MaxConnectionAge:      30 * time.Minute,
		MaxConnectionAgeGrace: 5 * time.Minute,
		Time:                  2 * time.Hour,
		Timeout:               20 * time.Second,
	}, logger)

	go func() {
		logger.Info("starting http server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Error("grpc server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server forced to shutdown", zap.Error(err))
	}
	grpcServer.Stop()

	logger.Info("shutdown complete")
}
