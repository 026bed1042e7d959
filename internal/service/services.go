package service

import (
	"group_chat/internal/config"
	"group_chat/internal/repository"
	"group_chat/pkg/logger"
)

type Services struct {
	Auth      AuthService
	Chat      ChatService
	RateLimit RateLimitService
	Audit     AuditService
	Presence  PresenceService
}

// NewServices собирает сервисы. broadcaster и online живут в realtime-слое и создаются раньше.
func NewServices(repos *repository.Repositories, cfg *config.Config, broadcaster Broadcaster, online OnlineChecker, log logger.Logger) *Services {
	services := &Services{
		Auth:      NewAuthService(repos.Membership, cfg.JWT, log),
		RateLimit: NewRateLimitService(repos.RateLimit, log),
		Audit:     NewAuditService(repos.Audit, log),
		Presence:  NewPresenceService(repos.Presence, online, log),
	}

	services.Chat = NewChatService(
		repos.Chat,
		repos.User,
		services.Auth,
		services.Audit,
		services.RateLimit,
		broadcaster,
		cfg,
		log,
	)

	log.Info("Services initialized")

	return services
}
