package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tasksync/internal/config"
	"tasksync/internal/db"
	httpServer "tasksync/internal/http"
	"tasksync/internal/http/handlers"
	"tasksync/internal/http/middleware"
	"tasksync/internal/logger"
	"tasksync/internal/repository"
	"tasksync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON, File: cfg.LogFile})
	service.InitJWT(cfg.JWTSecret, cfg.JWTTTL)

	var (
		store    service.TaskStore
		identity service.IdentityProvider
	)
	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warn("using in-memory task store, data is lost on restart")
		store = repository.NewMemoryTaskRepository(nil)
		identity = service.NewTokenIdentity(nil)
	default:
		dbPool := db.Connect(cfg.DatabaseURL)
		defer dbPool.Close()
		store = repository.NewTaskRepository(dbPool)
		identity = service.NewTokenIdentity(repository.NewUserRepository(dbPool))
	}

	if middleware.InitRedisRateLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB) {
		logger.Info("redis rate limiter enabled", "addr", cfg.RedisAddr)
	}
	defer middleware.CloseRedisRateLimiter()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())

	// CORS for offline clients served from another origin
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := handlers.NewHandler(store, identity)
	health := handlers.NewHealthHandler(store, middleware.RedisPinger(), cfg.AppVersion)
	httpServer.RegisterRoutes(r, h, health, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "store", cfg.StoreDriver, "version", cfg.AppVersion)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return
	}

	logger.Info("server exited")
}
