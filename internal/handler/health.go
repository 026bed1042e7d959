package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"group_chat/pkg/logger"
)

// ConnectionCounter - источник числа открытых websocket-соединений
type ConnectionCounter interface {
	ConnectionCount() int
}

type HealthHandler struct {
	db       *pgxpool.Pool
	redis    *redis.Client
	realtime ConnectionCounter
	log      logger.Logger
}

func NewHealthHandler(db *pgxpool.Pool, redis *redis.Client, realtime ConnectionCounter, log logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:       db,
		redis:    redis,
		realtime: realtime,
		log:      log,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"service":     "group-chat",
		"connections": h.realtime.ConnectionCount(),
	})
}

// Ready проверяет хранилища; nil-зависимость считается отключенной
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	status := http.StatusOK

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			h.log.Warn("Database ping failed", "error", err)
			checks["database"] = "down"
			status = http.StatusServiceUnavailable
		} else {
			checks["database"] = "up"
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			h.log.Warn("Redis ping failed", "error", err)
			checks["redis"] = "down"
			status = http.StatusServiceUnavailable
		} else {
			checks["redis"] = "up"
		}
	}

	c.JSON(status, gin.H{"checks": checks})
}
