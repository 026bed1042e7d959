package handler

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"group_chat/internal/config"
	"group_chat/internal/service"
	"group_chat/internal/ws"
	"group_chat/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Chat      *ChatHandler
	Presence  *PresenceHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, manager *ws.Manager, db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(db, rdb, manager, log),
		Chat:      NewChatHandler(services.Auth, services.Chat, log),
		Presence:  NewPresenceHandler(services.Presence, log),
		WebSocket: NewWebSocketHandler(manager, cfg.Server.CORSAllowedOrigins, log),
	}
}
