package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"group_chat/internal/config"
	"group_chat/internal/handler"
	"group_chat/internal/middleware"
	"group_chat/internal/repository"
	"group_chat/internal/service"
	"group_chat/internal/session"
	"group_chat/internal/ws"
	"group_chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	appLogger := logger.NewWithEnvironment(cfg.Log.Level, cfg.Environment)
	defer func() { _ = appLogger.Sync() }()

	// Подключение к PostgreSQL
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Failed to parse database DSN", "error", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
	poolCfg.MaxConnIdleTime = cfg.Database.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	dbPool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	// Проверка подключения к БД
	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	// Подключение к Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Без Redis сервис работает: лимиты пропускают, last-seen не пишется
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Warn("Redis is unavailable, rate limits fail open", "error", err)
	} else {
		appLogger.Info("Redis connection established")
	}

	// Инициализация репозиториев
	repos := repository.NewRepositories(dbPool, rdb, appLogger)

	// Realtime-слой: хаб и учет соединений нужны сервисам для рассылки
	hub := ws.NewHub(appLogger)
	sessions := session.NewStore()
	presence := session.NewPresence()

	// Инициализация сервисов
	services := service.NewServices(repos, cfg, hub, presence, appLogger)

	manager := ws.NewManager(hub, sessions, presence, services.Auth, services.Chat, services.Presence, cfg.Realtime, appLogger)

	sweeperCtx, stopSweeper := context.WithCancel(context.Background())
	go manager.RunSweeper(sweeperCtx)

	// Инициализация middleware
	authMiddleware := middleware.NewAuthMiddleware(services.Auth, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, cfg.RateLimit, appLogger)

	// Инициализация handlers
	handlers := handler.NewHandlers(services, manager, dbPool, rdb, cfg, appLogger)

	// Настройка роутера
	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	// Запуск HTTP сервера
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Ожидание сигнала для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// websocket-соединения захвачены и srv.Shutdown их не ждет
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	stopSweeper()
	if err := manager.Shutdown(ctx); err != nil {
		appLogger.Error("Realtime connections did not drain", "error", err)
	}

	appLogger.Info("Server exited")
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler())

	// Health check
	router.GET("/health", handlers.Health.Check)
	router.GET("/ready", handlers.Health.Ready)

	// API v1
	v1 := router.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(rateLimitMiddleware.Limit(), authMiddleware.RequireAuth())
	{
		protected.GET("/groups/:id/messages", handlers.Chat.GetMessages)
		protected.GET("/presence/:userId", handlers.Presence.GetPresence)
	}

	// WebSocket endpoint группового чата
	router.GET("/ws", rateLimitMiddleware.Limit(), handlers.WebSocket.HandleConnection)

	return router
}
